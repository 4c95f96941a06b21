package telegram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/autofill"
	"meal-planner/internal/calendar"
	"meal-planner/internal/config"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const handlerTimeout = 2 * time.Minute

// Service is the part of the application the bot drives. *app.App satisfies it.
type Service interface {
	Today() calendar.Date
	Week(ctx context.Context, d calendar.Date) (*app.WeekView, error)
	AutoFill(ctx context.Context, req autofill.Request, dryRun bool) (*autofill.Result, error)
	ApplyPreview(ctx context.Context, req autofill.Request, assignments []mealplan.QuickPlanAssignment) (*autofill.Result, error)
	ShoppingList(ctx context.Context, d calendar.Date, mealTypes []mealplan.MealType) (*mealplan.ShoppingList, error)
	History(ctx context.Context, limit int) ([]metrics.Run, error)
	Usage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
	Status(ctx context.Context) (*app.Status, error)
}

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Bot wraps the Telegram API and the meal planner.
type Bot struct {
	api     botAPI
	svc     Service
	pending *PendingRepository
	cfg     *config.Config
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, svc Service, pending *PendingRepository) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	if webhookURL := cfg.TelegramWebhookURL; webhookURL != "" {
		wh, err := tgbotapi.NewWebhook(webhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url %s: %w", webhookURL, err)
		}
		resp, err := bot.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", webhookURL, err)
		}
		log.Printf("Webhook set response: %s", resp.Description)
	}

	return newBot(bot, cfg, svc, pending), nil
}

func newBot(api botAPI, cfg *config.Config, svc Service, pending *PendingRepository) *Bot {
	return &Bot{api: api, svc: svc, pending: pending, cfg: cfg}
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if update.CallbackQuery != nil {
		if !b.allowed(update.CallbackQuery.From) {
			return
		}
		go b.handleCallbackQuery(update.CallbackQuery)
		return
	}

	if update.Message == nil || !b.allowed(update.Message.From) {
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) allowed(from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	if !b.cfg.IsAllowedUser(from.ID) {
		log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", from.ID, from.UserName)
		return false
	}
	return true
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch msg.Command() {
	case "week":
		b.handleWeek(ctx, msg)
	case "autofill":
		b.handleAutoFill(ctx, msg)
	case "shopping":
		b.handleShopping(ctx, msg)
	case "history":
		b.handleHistory(ctx, msg.Chat.ID)
	case "status", "metrics":
		b.handleStatus(ctx, msg.Chat.ID)
	default:
		b.reply(msg.Chat.ID, helpText)
	}
}

const helpText = `🍽 *Meal Planner*

/week [date|next] - show the week grid
/autofill [meal types] [date|next] [cuisine=x] - preview auto-fill
/shopping [date|next] - generate the shopping list
/history - recent auto-fill runs
/status - session and system health`

func (b *Bot) handleWeek(ctx context.Context, msg *tgbotapi.Message) {
	d, err := parseWeekArg(msg.CommandArguments(), b.svc.Today())
	if err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	view, err := b.svc.Week(ctx, d)
	if err != nil {
		log.Printf("Error fetching week: %v", err)
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	b.reply(msg.Chat.ID, formatWeek(view))
}

func (b *Bot) handleAutoFill(ctx context.Context, msg *tgbotapi.Message) {
	req, err := parseAutoFillArgs(msg.CommandArguments(), b.svc.Today())
	if err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}

	sent, err := b.send(msg.Chat.ID, "🧑‍🍳 *Finding recipes...*", nil)
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	res, err := b.svc.AutoFill(ctx, req, true)
	if err != nil {
		log.Printf("Error previewing auto-fill: %v", err)
		b.edit(msg.Chat.ID, sent.MessageID, formatError(err), nil)
		return
	}
	if res.Empty() {
		b.edit(msg.Chat.ID, sent.MessageID, formatPreview(res), nil)
		return
	}

	slots := make([]PreviewSlot, len(res.Assignments))
	for i, a := range res.Assignments {
		slots[i] = PreviewSlot{QuickPlanAssignment: a, Title: res.Title(a)}
	}
	id, err := b.pending.Create(ctx, Pending{
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		WeekStart: res.Week.Start,
		MealTypes: res.MealTypes,
		Cuisine:   req.Cuisine,
		Assigned:  len(res.Assignments),
		Slots:     slots,
	}, b.cfg.TelegramPendingTTL)
	if err != nil {
		log.Printf("Error saving preview: %v", err)
		b.edit(msg.Chat.ID, sent.MessageID, formatError(err), nil)
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Apply", "apply|"+id),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "cancel|"+id),
		),
	)
	b.edit(msg.Chat.ID, sent.MessageID, formatPreview(res), &keyboard)
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	// Answer callback to remove spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}
	if query.Message == nil {
		return
	}
	chatID, messageID := query.Message.Chat.ID, query.Message.MessageID

	action, id, ok := strings.Cut(query.Data, "|")
	if !ok {
		return
	}

	p, err := b.pending.Get(ctx, id)
	if err != nil {
		log.Printf("Error loading preview %s: %v", id, err)
		b.edit(chatID, messageID, formatError(err), nil)
		return
	}
	if p == nil {
		b.edit(chatID, messageID, "⌛ This preview has expired. Run /autofill again.", nil)
		return
	}
	if err := b.pending.Delete(ctx, id); err != nil {
		log.Printf("Warning: failed to delete preview %s: %v", id, err)
	}

	switch action {
	case "apply":
		b.edit(chatID, messageID, "🧑‍🍳 *Applying...*", nil)
		res, err := b.svc.ApplyPreview(ctx, autofill.Request{
			WeekStart: p.WeekStart,
			MealTypes: p.MealTypes,
			Cuisine:   p.Cuisine,
			Origin:    "telegram",
		}, p.Assignments())
		if err != nil {
			log.Printf("Error applying auto-fill: %v", err)
			b.edit(chatID, messageID, formatError(err), nil)
			return
		}
		for _, slot := range p.Slots {
			if slot.Title != "" {
				res.SetTitle(slot.QuickPlanAssignment, slot.Title)
			}
		}
		b.edit(chatID, messageID, formatApplied(res), nil)
	case "cancel":
		b.edit(chatID, messageID, "✖️ Auto-fill cancelled.", nil)
	}
}

func (b *Bot) handleShopping(ctx context.Context, msg *tgbotapi.Message) {
	d, err := parseWeekArg(msg.CommandArguments(), b.svc.Today())
	if err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	list, err := b.svc.ShoppingList(ctx, d, nil)
	if err != nil {
		log.Printf("Error generating shopping list: %v", err)
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	b.reply(msg.Chat.ID, formatShoppingList(list))
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64) {
	runs, err := b.svc.History(ctx, 10)
	if err != nil {
		b.reply(chatID, "❌ Error fetching history.")
		return
	}
	b.reply(chatID, formatHistory(runs))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	st, statusErr := b.svc.Status(ctx)
	if statusErr != nil {
		log.Printf("Error fetching status: %v", statusErr)
	}
	if st == nil {
		b.reply(chatID, formatError(statusErr))
		return
	}
	usage, err := b.svc.Usage(ctx, 7)
	if err != nil {
		log.Printf("Error fetching usage: %v", err)
	}
	b.reply(chatID, formatStatus(st, usage, statusErr))
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.send(chatID, text, nil); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

func (b *Bot) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	return b.api.Send(msg)
}

func (b *Bot) edit(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = keyboard
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
}

// parseWeekArg reads an optional "next" or YYYY-MM-DD argument. A zero date
// means the current week.
func parseWeekArg(arg string, today calendar.Date) (calendar.Date, error) {
	arg = strings.TrimSpace(arg)
	switch arg {
	case "":
		return calendar.Date{}, nil
	case "next":
		return today.AddDays(calendar.DaysInWeek), nil
	}
	d, err := calendar.Parse(arg)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("%q is not a date (want YYYY-MM-DD or next)", arg)
	}
	return d, nil
}

// parseAutoFillArgs reads meal types, an optional week argument and an
// optional cuisine=x filter in any order. Without meal types all four are
// filled.
func parseAutoFillArgs(args string, today calendar.Date) (autofill.Request, error) {
	req := autofill.Request{Origin: "telegram"}
	var types []string
	for _, field := range strings.Fields(args) {
		switch {
		case strings.HasPrefix(field, "cuisine="):
			req.Cuisine = strings.TrimPrefix(field, "cuisine=")
		case field == "next" || (len(field) == len(calendar.Layout) && field[0] >= '0' && field[0] <= '9'):
			d, err := parseWeekArg(field, today)
			if err != nil {
				return req, err
			}
			req.WeekStart = d
		default:
			types = append(types, field)
		}
	}

	if len(types) == 0 {
		req.MealTypes = append([]mealplan.MealType(nil), mealplan.MealTypes...)
		return req, nil
	}
	mts, err := mealplan.ParseMealTypes(strings.Join(types, ","))
	if err != nil {
		return req, err
	}
	req.MealTypes = mts
	return req, nil
}
