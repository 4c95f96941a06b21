package autofill

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"

	"golang.org/x/sync/errgroup"
)

// DefaultPoolSize is how many candidates are discovered per meal type.
const DefaultPoolSize = 20

// ErrNoMealTypes is returned when the selection is empty or names an
// unknown meal type.
var ErrNoMealTypes = errors.New("select at least one valid meal type")

// History records auto-fill runs. *metrics.Store satisfies it.
type History interface {
	Record(ctx context.Context, r metrics.Run) (metrics.Run, error)
}

// Request describes one auto-fill invocation.
type Request struct {
	// WeekStart is any date in the target week; zero means the current week.
	WeekStart calendar.Date
	MealTypes []mealplan.MealType
	Cuisine   string
	Servings  int
	// Origin tags the run in history, e.g. "cli" or "telegram".
	Origin string
}

// Result is the outcome of Preview or Run.
type Result struct {
	Week        calendar.Week
	MealTypes   []mealplan.MealType
	OpenCells   int
	Assignments []mealplan.QuickPlanAssignment
	// Plan is the first committed plan; nil for previews and empty results.
	// Plans holds every committed plan when the week spans two.
	Plan    *mealplan.MealPlanWithSlots
	Plans   []*mealplan.MealPlanWithSlots
	Applied bool

	titles map[string]string
}

// Empty reports whether there was nothing to fill.
func (r *Result) Empty() bool {
	return r == nil || len(r.Assignments) == 0
}

// Title returns the display title of an assignment's recipe, falling back to
// its external id.
func (r *Result) Title(a mealplan.QuickPlanAssignment) string {
	if t := r.titles[string(a.Source)+":"+a.ExternalID]; t != "" {
		return t
	}
	return a.ExternalID
}

// SetTitle records the display title of an assignment's recipe.
func (r *Result) SetTitle(a mealplan.QuickPlanAssignment, title string) {
	if r.titles == nil {
		r.titles = make(map[string]string)
	}
	r.titles[string(a.Source)+":"+a.ExternalID] = title
}

// Filler plans and commits auto-fill for one week.
type Filler struct {
	api      mealplan.Client
	history  History
	now      func() time.Time
	firstDay time.Weekday
	poolSize int
	servings int
}

// FillerOption configures a Filler.
type FillerOption func(*Filler)

// WithHistory records every run.
func WithHistory(h History) FillerOption {
	return func(f *Filler) { f.history = h }
}

// WithClock overrides the clock used to determine today.
func WithClock(now func() time.Time) FillerOption {
	return func(f *Filler) {
		if now != nil {
			f.now = now
		}
	}
}

// WithWeekStartsOn sets the week origin, time.Monday or time.Sunday.
func WithWeekStartsOn(day time.Weekday) FillerOption {
	return func(f *Filler) { f.firstDay = day }
}

// WithPoolSize sets how many candidates are requested per meal type.
func WithPoolSize(n int) FillerOption {
	return func(f *Filler) {
		if n > 0 {
			f.poolSize = n
		}
	}
}

// WithServings sets the servings used when a request does not specify any.
func WithServings(n int) FillerOption {
	return func(f *Filler) {
		if n > 0 {
			f.servings = n
		}
	}
}

// NewFiller creates a Filler on top of the meal-planning API.
func NewFiller(api mealplan.Client, opts ...FillerOption) *Filler {
	f := &Filler{
		api:      api,
		now:      time.Now,
		firstDay: time.Monday,
		poolSize: DefaultPoolSize,
		servings: DefaultServings,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Preview computes the assignments without committing them.
func (f *Filler) Preview(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := f.plan(ctx, req)
	if err != nil {
		if !errors.Is(err, ErrNoMealTypes) {
			f.finish(ctx, req, res, metrics.StatusFailed, err, start, true)
		}
		return nil, err
	}

	status := metrics.StatusPreview
	if res.Empty() {
		status = metrics.StatusEmpty
	}
	f.finish(ctx, req, res, status, nil, start, true)
	return res, nil
}

// Run computes the assignments and commits them with quick-plan requests,
// one per backend plan the week overlaps. Nothing is sent when there is
// nothing to fill.
func (f *Filler) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := f.plan(ctx, req)
	if err != nil {
		if !errors.Is(err, ErrNoMealTypes) {
			f.finish(ctx, req, res, metrics.StatusFailed, err, start, false)
		}
		return nil, err
	}
	return f.commit(ctx, req, res, start)
}

// Apply commits assignments computed by an earlier Preview exactly as they
// were shown. Assignments dated before today are dropped; cells booked in
// the meantime are skipped by the backend.
func (f *Filler) Apply(ctx context.Context, req Request, assignments []mealplan.QuickPlanAssignment) (*Result, error) {
	start := time.Now()
	today := calendar.Today(f.now())
	anchor := req.WeekStart
	if anchor.IsZero() {
		anchor = today
	}
	week := calendar.WeekOf(anchor, f.firstDay)

	res := &Result{Week: week, MealTypes: req.MealTypes}
	for _, a := range assignments {
		if !week.Contains(a.Date) {
			return nil, fmt.Errorf("assignment %s is outside the week of %s", mealplan.SlotKey(a.Date, a.MealType), week.Start)
		}
		if a.Date.Before(today) {
			log.Printf("[autofill] Dropping past assignment %s", mealplan.SlotKey(a.Date, a.MealType))
			continue
		}
		res.Assignments = append(res.Assignments, a)
	}
	res.OpenCells = len(res.Assignments)
	return f.commit(ctx, req, res, start)
}

func (f *Filler) commit(ctx context.Context, req Request, res *Result, start time.Time) (*Result, error) {
	if res.Empty() {
		f.finish(ctx, req, res, metrics.StatusEmpty, nil, start, false)
		return res, nil
	}

	for _, batch := range splitByPlan(res.Assignments) {
		plan, err := f.api.QuickPlan(ctx, batch)
		if err != nil {
			err = fmt.Errorf("failed to commit auto-fill for %s: %w", batch.WeekStartDate, err)
			if len(res.Plans) > 0 {
				log.Printf("[autofill] Partial commit: %d of the week's plans were saved before: %v", len(res.Plans), err)
			}
			f.finish(ctx, req, res, metrics.StatusFailed, err, start, false)
			return nil, err
		}
		res.Plans = append(res.Plans, plan)
	}

	res.Plan = res.Plans[0]
	res.Applied = true
	for _, a := range res.Assignments {
		assignmentsTotal.WithLabelValues(string(a.MealType)).Inc()
	}
	f.finish(ctx, req, res, metrics.StatusApplied, nil, start, false)
	log.Printf("[autofill] Committed %d slots for week %s", len(res.Assignments), res.Week.Start)
	return res, nil
}

// splitByPlan groups assignments by the backend plan that holds their date,
// keeping their order.
func splitByPlan(assignments []mealplan.QuickPlanAssignment) []mealplan.QuickPlanRequest {
	var out []mealplan.QuickPlanRequest
	for _, a := range assignments {
		start := calendar.PlanWeekStart(a.Date)
		if n := len(out); n > 0 && out[n-1].WeekStartDate == start {
			out[n-1].Slots = append(out[n-1].Slots, a)
			continue
		}
		out = append(out, mealplan.QuickPlanRequest{WeekStartDate: start, Slots: []mealplan.QuickPlanAssignment{a}})
	}
	return out
}

func (f *Filler) plan(ctx context.Context, req Request) (*Result, error) {
	mealTypes, err := normalizeMealTypes(req.MealTypes)
	if err != nil {
		return nil, err
	}

	today := calendar.Today(f.now())
	anchor := req.WeekStart
	if anchor.IsZero() {
		anchor = today
	}
	week := calendar.WeekOf(anchor, f.firstDay)

	planStarts := week.PlanStarts()
	var (
		plans = make([]*mealplan.MealPlanWithSlots, len(planStarts))
		pools = make([][]mealplan.CandidateRecipe, len(mealTypes))
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, ps := range planStarts {
		i, ps := i, ps
		g.Go(func() error {
			p, err := f.api.WeekPlan(gctx, ps)
			plans[i] = p
			return err
		})
	}
	for i, mt := range mealTypes {
		i, mt := i, mt
		g.Go(func() error {
			found, err := f.api.Discover(gctx, mealplan.DiscoverParams{
				Category: string(mt),
				Cuisine:  req.Cuisine,
				Number:   f.poolSize,
			})
			if err != nil {
				return fmt.Errorf("discover %s: %w", mt, err)
			}
			pools[i] = found.Candidates()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	servings := req.Servings
	if servings <= 0 {
		servings = f.servings
	}

	in := Input{
		WeekStart: week.Start,
		Today:     today,
		MealTypes: mealTypes,
		Pools:     make(map[mealplan.MealType][]mealplan.CandidateRecipe, len(mealTypes)),
		Servings:  servings,
	}
	for _, p := range plans {
		in.Existing = append(in.Existing, p.ExistingSlots()...)
	}
	titles := make(map[string]string)
	for i, mt := range mealTypes {
		in.Pools[mt] = pools[i]
		if len(pools[i]) == 0 {
			log.Printf("[autofill] No candidates for %s, its slots stay empty", mt)
		}
		for _, c := range pools[i] {
			titles[c.Key()] = c.Title
		}
	}

	assignments := Allocate(in)

	return &Result{
		Week:        week,
		MealTypes:   mealTypes,
		OpenCells:   in.OpenCells(),
		Assignments: assignments,
		titles:      titles,
	}, nil
}

func (f *Filler) finish(ctx context.Context, req Request, res *Result, status string, runErr error, start time.Time, dryRun bool) {
	elapsed := time.Since(start)
	runsTotal.WithLabelValues(status).Inc()
	runDuration.Observe(elapsed.Seconds())

	if f.history == nil {
		return
	}

	run := metrics.Run{
		Cuisine: req.Cuisine,
		Origin:  req.Origin,
		DryRun:  dryRun,
		Status:  status,
		Latency: elapsed,
	}
	for _, mt := range req.MealTypes {
		run.MealTypes = append(run.MealTypes, string(mt))
	}
	if !req.WeekStart.IsZero() {
		run.WeekStart = req.WeekStart.String()
	}
	if res != nil {
		run.WeekStart = res.Week.Start.String()
		run.OpenCells = res.OpenCells
		run.Assigned = len(res.Assignments)
		if res.Plan != nil {
			run.PlanID = res.Plan.ID
		}
		if len(res.MealTypes) > 0 {
			run.MealTypes = run.MealTypes[:0]
			for _, mt := range res.MealTypes {
				run.MealTypes = append(run.MealTypes, string(mt))
			}
		}
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	// History is best effort; the run itself already succeeded or failed.
	if _, err := f.history.Record(context.WithoutCancel(ctx), run); err != nil {
		log.Printf("[autofill] Warning: failed to record run: %v", err)
	}
}

func normalizeMealTypes(in []mealplan.MealType) ([]mealplan.MealType, error) {
	seen := make(map[mealplan.MealType]bool, len(in))
	var out []mealplan.MealType
	for _, mt := range in {
		if !mt.Valid() {
			return nil, fmt.Errorf("%w: unknown meal type %q", ErrNoMealTypes, mt)
		}
		if seen[mt] {
			continue
		}
		seen[mt] = true
		out = append(out, mt)
	}
	if len(out) == 0 {
		return nil, ErrNoMealTypes
	}
	return out, nil
}
