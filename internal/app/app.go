package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"meal-planner/internal/autofill"
	"meal-planner/internal/calendar"
	"meal-planner/internal/config"
	"meal-planner/internal/database"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"
	"meal-planner/internal/session"
	"meal-planner/internal/storage"
)

// ErrNoPlan is returned when an operation needs a week plan that does not exist.
var ErrNoPlan = errors.New("no meal plan for this week")

// App holds the application's dependencies.
type App struct {
	cfg       *config.Config
	session   *session.Client
	api       mealplan.Client
	filler    *autofill.Filler
	db        *database.DB
	history   *metrics.Store
	tokens    *storage.FileTokenStore
	now       func() time.Time
	startedAt time.Time
}

// Option configures an App.
type Option func(*App)

// WithClock overrides time.Now for week selection and auto-fill.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New wires the session, storage and API layers from cfg and restores any
// persisted session.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	a.startedAt = a.now()

	tokens, err := storage.NewFileTokenStore(cfg.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init token store: %w", err)
	}
	a.tokens = tokens

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	a.db = db
	a.history = metrics.NewStore(db.SQL)

	a.session = session.New(cfg.APIURL,
		session.WithTokenStore(tokens),
		session.WithRateLimit(cfg.RateLimit, 5),
		session.WithProactiveRefresh(cfg.ProactiveRefresh),
		session.WithHTTPClient(newHTTPClient(cfg.RequestTimeout)),
		session.WithExpiryHook(func() {
			log.Printf("Session expired, stored tokens at %s were cleared", tokens.Path())
		}),
	)

	restored, err := a.session.Restore(ctx)
	if err != nil {
		log.Printf("Warning: could not restore session: %v", err)
	} else if restored {
		log.Printf("Restored session from %s", tokens.Path())
	}

	a.api = mealplan.NewClient(a.session)
	a.filler = autofill.NewFiller(a.api,
		autofill.WithHistory(a.history),
		autofill.WithClock(a.now),
		autofill.WithWeekStartsOn(cfg.FirstDay),
		autofill.WithPoolSize(cfg.DiscoverCount),
		autofill.WithServings(cfg.Servings),
	)

	return a, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Close releases the database.
func (a *App) Close() error {
	return a.db.Close()
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// DB exposes the shared database for front-end specific repositories.
func (a *App) DB() *database.DB { return a.db }

// Session returns the session client.
func (a *App) Session() *session.Client { return a.session }

// Today returns the local calendar date.
func (a *App) Today() calendar.Date {
	return calendar.Today(a.now())
}

// ResolveWeek returns the week containing d, or the current week when d is zero.
func (a *App) ResolveWeek(d calendar.Date) calendar.Week {
	if d.IsZero() {
		d = a.Today()
	}
	return calendar.WeekOf(d, a.cfg.FirstDay)
}

// Login signs in and persists the session.
func (a *App) Login(ctx context.Context, email, password string) (*session.User, error) {
	return a.session.Login(ctx, email, password)
}

// Register creates an account and signs in.
func (a *App) Register(ctx context.Context, email, password, name string) (*session.User, error) {
	return a.session.Register(ctx, email, password, name)
}

// Logout ends the session locally and on the backend.
func (a *App) Logout(ctx context.Context) error {
	return a.session.Logout(ctx)
}

// Status describes the current session.
type Status struct {
	State     session.State
	User      *mealplan.User
	ExpiresAt time.Time
	Health    metrics.SysHealth
}

// Status reports the session state and, when signed in, the profile.
func (a *App) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		State:  a.session.State(),
		Health: metrics.CollectSysHealth(a.cfg.DBPath, a.startedAt),
	}
	if exp, ok := a.session.ExpiresAt(); ok {
		st.ExpiresAt = exp
	}
	if st.State == session.StateUnauthenticated && !a.session.EnsureFreshToken(ctx) {
		return st, nil
	}

	user, err := a.api.Me(ctx)
	if err != nil {
		return st, err
	}
	st.User = user
	st.State = a.session.State()
	return st, nil
}

// Week fetches the grid for the week containing d.
func (a *App) Week(ctx context.Context, d calendar.Date) (*WeekView, error) {
	week := a.ResolveWeek(d)
	var plans []*mealplan.MealPlanWithSlots
	for _, start := range week.PlanStarts() {
		plan, err := a.api.WeekPlan(ctx, start)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return NewWeekView(week, plans...), nil
}

// AutoFill previews or commits auto-fill for a week.
func (a *App) AutoFill(ctx context.Context, req autofill.Request, dryRun bool) (*autofill.Result, error) {
	if dryRun {
		return a.filler.Preview(ctx, req)
	}
	return a.filler.Run(ctx, req)
}

// ApplyPreview commits previously previewed assignments unchanged.
func (a *App) ApplyPreview(ctx context.Context, req autofill.Request, assignments []mealplan.QuickPlanAssignment) (*autofill.Result, error) {
	return a.filler.Apply(ctx, req, assignments)
}

// AddSlot books a stored recipe, creating the week plan when needed.
func (a *App) AddSlot(ctx context.Context, req mealplan.CreateSlotRequest) (*mealplan.MealSlot, error) {
	if req.Date.IsZero() {
		return nil, errors.New("slot date is required")
	}
	if req.Servings <= 0 {
		req.Servings = a.cfg.Servings
	}
	plan, err := a.api.EnsureWeekPlan(ctx, calendar.PlanWeekStart(req.Date))
	if err != nil {
		return nil, err
	}
	return a.api.AddSlot(ctx, plan.ID, req)
}

// ShoppingList generates a list from the plan of the week containing d,
// optionally limited to some meal types. Lists are built per backend plan, so
// a Sunday week uses the plan of its Monday through Saturday.
func (a *App) ShoppingList(ctx context.Context, d calendar.Date, mealTypes []mealplan.MealType) (*mealplan.ShoppingList, error) {
	week := a.ResolveWeek(d)
	start := calendar.PlanWeekStart(week.End())
	plan, err := a.api.WeekPlan(ctx, start)
	if err != nil {
		return nil, err
	}
	if plan == nil || len(plan.Slots) == 0 {
		return nil, fmt.Errorf("%w (%s)", ErrNoPlan, start)
	}

	return a.api.GenerateShoppingList(ctx, mealplan.GenerateShoppingListRequest{
		MealPlanID: plan.ID,
		Name:       "Week of " + start.String(),
		MealTypes:  mealTypes,
	})
}

// History returns the most recent auto-fill runs.
func (a *App) History(ctx context.Context, limit int) ([]metrics.Run, error) {
	return a.history.Recent(ctx, limit)
}

// Usage aggregates auto-fill runs per day.
func (a *App) Usage(ctx context.Context, days int) ([]metrics.DailyUsage, error) {
	return a.history.GetDailyUsage(ctx, days)
}

// CleanupHistory removes runs older than days.
func (a *App) CleanupHistory(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, fmt.Errorf("days must be positive, got %d", days)
	}
	return a.history.Cleanup(ctx, days)
}
