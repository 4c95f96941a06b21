package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/autofill"
	"meal-planner/internal/calendar"
	"meal-planner/internal/config"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"
	"meal-planner/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) HandleUpdate(r *http.Request) (*tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (f *fakeTelegram) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// lastText returns the text of the most recent message or edit.
func (f *fakeTelegram) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	switch m := f.sent[len(f.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		return m.Text
	case tgbotapi.EditMessageTextConfig:
		return m.Text
	}
	t.Fatalf("unexpected chattable %T", f.sent[len(f.sent)-1])
	return ""
}

func (f *fakeTelegram) lastKeyboard(t *testing.T) *tgbotapi.InlineKeyboardMarkup {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	edit, ok := f.sent[len(f.sent)-1].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	return edit.ReplyMarkup
}

type fakeService struct {
	mu        sync.Mutex
	today     calendar.Date
	preview   *autofill.Result
	applied   *autofill.Result
	err       error
	statusErr error
	calls     []autofillCall
	applies   []applyCall
}

type autofillCall struct {
	req    autofill.Request
	dryRun bool
}

type applyCall struct {
	req         autofill.Request
	assignments []mealplan.QuickPlanAssignment
}

func (s *fakeService) Today() calendar.Date { return s.today }

func (s *fakeService) Week(_ context.Context, d calendar.Date) (*app.WeekView, error) {
	if s.err != nil {
		return nil, s.err
	}
	if d.IsZero() {
		d = s.today
	}
	week := calendar.WeekOf(d, time.Monday)
	plan := &mealplan.MealPlanWithSlots{Slots: []mealplan.MealSlot{
		{Date: week.Start, MealType: mealplan.Dinner, RecipeID: "r1", Recipe: &mealplan.Recipe{Title: "Bibimbap"}},
	}}
	return app.NewWeekView(week, plan), nil
}

func (s *fakeService) AutoFill(_ context.Context, req autofill.Request, dryRun bool) (*autofill.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, autofillCall{req: req, dryRun: dryRun})
	if s.err != nil {
		return nil, s.err
	}
	if dryRun {
		return s.preview, nil
	}
	return s.applied, nil
}

func (s *fakeService) ApplyPreview(_ context.Context, req autofill.Request, assignments []mealplan.QuickPlanAssignment) (*autofill.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applies = append(s.applies, applyCall{req: req, assignments: assignments})
	if s.err != nil {
		return nil, s.err
	}
	return &autofill.Result{
		Week:        calendar.WeekOf(req.WeekStart, time.Monday),
		MealTypes:   req.MealTypes,
		OpenCells:   len(assignments),
		Assignments: assignments,
		Applied:     true,
	}, nil
}

func (s *fakeService) ShoppingList(context.Context, calendar.Date, []mealplan.MealType) (*mealplan.ShoppingList, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &mealplan.ShoppingList{Name: "Week of 2024-03-04", Items: []mealplan.ShoppingItem{
		{IngredientName: "rice", Amount: 2, Unit: "cup", Category: "pantry"},
		{IngredientName: "gochujang", Amount: 1, Unit: "tbsp", Category: "pantry", IsChecked: true},
	}}, nil
}

func (s *fakeService) History(context.Context, int) ([]metrics.Run, error) {
	return []metrics.Run{{WeekStart: "2024-03-04", Status: metrics.StatusApplied, Assigned: 5, OpenCells: 5, Origin: "telegram", CreatedAt: time.Now()}}, nil
}

func (s *fakeService) Usage(context.Context, int) ([]metrics.DailyUsage, error) {
	return []metrics.DailyUsage{{Date: "2024-03-06", Runs: 3, Applied: 1, Assigned: 5}}, nil
}

func (s *fakeService) Status(context.Context) (*app.Status, error) {
	st := &app.Status{
		State:  session.StateAuthenticated,
		User:   &mealplan.User{Name: "Cook", Email: "cook@example.com"},
		Health: metrics.SysHealth{AllocMB: 3, SysMB: 12, Goroutines: 8, DataSize: "1.0 MB"},
	}
	if s.statusErr != nil {
		st.User = nil
	}
	return st, s.statusErr
}

func dinnerResult() *autofill.Result {
	return &autofill.Result{
		Week:      calendar.WeekOf(calendar.New(2024, time.March, 6), time.Monday),
		MealTypes: []mealplan.MealType{mealplan.Dinner},
		OpenCells: 2,
		Assignments: []mealplan.QuickPlanAssignment{
			{Date: calendar.New(2024, time.March, 9), MealType: mealplan.Dinner, Source: mealplan.SourceSpoonacular, ExternalID: "101"},
			{Date: calendar.New(2024, time.March, 10), MealType: mealplan.Dinner, Source: mealplan.SourceTheMealDB, ExternalID: "52772"},
		},
	}
}

func newTestBot(t *testing.T, svc *fakeService) (*Bot, *fakeTelegram) {
	t.Helper()
	repo, _ := newPendingRepo(t)
	cfg := config.Default()
	cfg.TelegramAllowedUserIDs = []int64{42}
	tg := &fakeTelegram{}
	return newBot(tg, cfg, svc, repo), tg
}

func command(text string) *tgbotapi.Message {
	cmd, _, _ := strings.Cut(text, " ")
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 10},
		From:     &tgbotapi.User{ID: 42},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func callback(data string, messageID int) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 42},
		Data:    data,
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: 10}},
	}
}

func TestAutoFillPreviewAndApply(t *testing.T) {
	preview := dinnerResult()
	preview.SetTitle(preview.Assignments[0], "Kimchi Stew")
	// A fresh run would discover different recipes.
	rerun := dinnerResult()
	rerun.Assignments[0].ExternalID = "999"
	rerun.Applied = true

	svc := &fakeService{today: calendar.New(2024, time.March, 6), preview: preview, applied: rerun}
	bot, tg := newTestBot(t, svc)

	bot.processMessage(command("/autofill dinner cuisine=korean"))

	require.Len(t, svc.calls, 1)
	assert.True(t, svc.calls[0].dryRun)
	assert.Equal(t, []mealplan.MealType{mealplan.Dinner}, svc.calls[0].req.MealTypes)
	assert.Equal(t, "korean", svc.calls[0].req.Cuisine)

	text := tg.lastText(t)
	assert.Contains(t, text, "Auto-fill preview")
	assert.Contains(t, text, "Sat 2024-03-09 dinner: Kimchi Stew")
	assert.Contains(t, text, "Sun 2024-03-10 dinner: 52772")
	assert.Contains(t, text, "2 of 2 open slots")

	keyboard := tg.lastKeyboard(t)
	require.NotNil(t, keyboard)
	apply := *keyboard.InlineKeyboard[0][0].CallbackData
	require.True(t, strings.HasPrefix(apply, "apply|"))

	bot.handleCallbackQuery(callback(apply, 1))

	assert.Len(t, svc.calls, 1, "apply does not rerun auto-fill")
	require.Len(t, svc.applies, 1)
	assert.Equal(t, preview.Assignments, svc.applies[0].assignments, "commits exactly the previewed slots")
	assert.Equal(t, "2024-03-04", svc.applies[0].req.WeekStart.String())
	assert.Equal(t, "korean", svc.applies[0].req.Cuisine)
	assert.Equal(t, "telegram", svc.applies[0].req.Origin)

	applied := tg.lastText(t)
	assert.Contains(t, applied, "Added 2 meals")
	assert.Contains(t, applied, "Kimchi Stew")
	assert.NotContains(t, applied, "999")
	assert.Len(t, tg.requests, 1, "callback spinner answered")

	// A second press finds the preview already consumed.
	bot.handleCallbackQuery(callback(apply, 1))
	assert.Len(t, svc.applies, 1)
	assert.Contains(t, tg.lastText(t), "expired")
}

func TestAutoFillCancel(t *testing.T) {
	svc := &fakeService{today: calendar.New(2024, time.March, 6), preview: dinnerResult()}
	bot, tg := newTestBot(t, svc)

	bot.processMessage(command("/autofill"))
	assert.Equal(t, mealplan.MealTypes, svc.calls[0].req.MealTypes)

	cancel := *tg.lastKeyboard(t).InlineKeyboard[0][1].CallbackData
	require.True(t, strings.HasPrefix(cancel, "cancel|"))

	bot.handleCallbackQuery(callback(cancel, 1))
	assert.Len(t, svc.calls, 1)
	assert.Empty(t, svc.applies)
	assert.Contains(t, tg.lastText(t), "cancelled")
}

func TestAutoFillNothingToFill(t *testing.T) {
	empty := &autofill.Result{Week: calendar.WeekOf(calendar.New(2024, time.March, 6), time.Monday), OpenCells: 0}
	svc := &fakeService{today: calendar.New(2024, time.March, 6), preview: empty}
	bot, tg := newTestBot(t, svc)

	bot.processMessage(command("/autofill lunch"))
	assert.Contains(t, tg.lastText(t), "Nothing to fill")
	assert.Nil(t, tg.lastKeyboard(t))
}

func TestAutoFillErrors(t *testing.T) {
	t.Run("UnknownMealType", func(t *testing.T) {
		svc := &fakeService{today: calendar.New(2024, time.March, 6)}
		bot, tg := newTestBot(t, svc)

		bot.processMessage(command("/autofill brunch"))
		assert.Empty(t, svc.calls)
		assert.Contains(t, tg.lastText(t), "brunch")
	})

	t.Run("SessionExpired", func(t *testing.T) {
		svc := &fakeService{today: calendar.New(2024, time.March, 6), err: session.ErrAuthExpired}
		bot, tg := newTestBot(t, svc)

		bot.processMessage(command("/autofill dinner"))
		assert.Contains(t, tg.lastText(t), "meal-planner login")
	})
}

func TestCommands(t *testing.T) {
	svc := &fakeService{today: calendar.New(2024, time.March, 6)}
	bot, tg := newTestBot(t, svc)

	bot.processMessage(command("/week"))
	week := tg.lastText(t)
	assert.Contains(t, week, "Week of 2024-03-04")
	assert.Contains(t, week, "dinner: Bibimbap")
	assert.Contains(t, week, "1 of 28 slots booked")

	bot.processMessage(command("/shopping"))
	list := tg.lastText(t)
	assert.Contains(t, list, "_pantry_")
	assert.Contains(t, list, "• rice (2 cup)")
	assert.Contains(t, list, "☑️ gochujang")

	bot.processMessage(command("/history"))
	assert.Contains(t, tg.lastText(t), "week 2024-03-04: applied, 5/5 (telegram)")

	bot.processMessage(command("/status"))
	status := tg.lastText(t)
	assert.Contains(t, status, "Session: authenticated")
	assert.Contains(t, status, "*2024-03-06*: 3 runs, 1 applied, 5 meals")
	assert.Contains(t, status, "Goroutines: 8")

	bot.processMessage(command("/start"))
	assert.Contains(t, tg.lastText(t), "/autofill")

	bot.processMessage(command("/week someday"))
	assert.Contains(t, tg.lastText(t), "not a date")
}

func TestStatusShowsProfileError(t *testing.T) {
	svc := &fakeService{today: calendar.New(2024, time.March, 6), statusErr: errors.New("profile unavailable")}
	bot, tg := newTestBot(t, svc)

	bot.processMessage(command("/status"))
	status := tg.lastText(t)
	assert.Contains(t, status, "Session: authenticated")
	assert.Contains(t, status, "profile unavailable")
	assert.Contains(t, status, "Goroutines: 8")
}

func TestShoppingWithoutPlan(t *testing.T) {
	svc := &fakeService{today: calendar.New(2024, time.March, 6), err: app.ErrNoPlan}
	bot, tg := newTestBot(t, svc)

	bot.processMessage(command("/shopping next"))
	assert.Contains(t, tg.lastText(t), "no meal plan")
}

func TestWebhook(t *testing.T) {
	svc := &fakeService{today: calendar.New(2024, time.March, 6)}
	bot, tg := newTestBot(t, svc)
	srv := httptest.NewServer(bot.Router())
	defer srv.Close()

	post := func(from int64) {
		body, _ := json.Marshal(tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{
			Text:     "/week",
			Chat:     &tgbotapi.Chat{ID: 10},
			From:     &tgbotapi.User{ID: from, UserName: "someone"},
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Length: 5}},
		}})
		resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(string(body)))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	post(7)
	assert.Never(t, func() bool { return tg.sentCount() > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	post(42)
	assert.Eventually(t, func() bool { return tg.sentCount() == 1 }, time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestParseAutoFillArgs(t *testing.T) {
	today := calendar.New(2024, time.March, 6)

	req, err := parseAutoFillArgs("lunch dinner next cuisine=italian", today)
	require.NoError(t, err)
	assert.Equal(t, []mealplan.MealType{mealplan.Lunch, mealplan.Dinner}, req.MealTypes)
	assert.Equal(t, "2024-03-13", req.WeekStart.String())
	assert.Equal(t, "italian", req.Cuisine)

	req, err = parseAutoFillArgs("2024-04-01 breakfast", today)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-01", req.WeekStart.String())
	assert.Equal(t, []mealplan.MealType{mealplan.Breakfast}, req.MealTypes)

	_, err = parseAutoFillArgs("2024-13-40", today)
	assert.Error(t, err)
}

func TestFormatError(t *testing.T) {
	assert.Contains(t, formatError(errors.New("boom `x`")), "boom 'x'")
	assert.Contains(t, formatError(autofill.ErrNoMealTypes), "breakfast, lunch, dinner, snack")
}
