package mealplan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"meal-planner/internal/calendar"
	"meal-planner/internal/session"
)

// MaxDiscoverNumber is the largest page the discover endpoint serves.
const MaxDiscoverNumber = 50

// ErrEmptyQuickPlan is returned when a quick-plan request carries no slots.
var ErrEmptyQuickPlan = errors.New("quick plan has no slots")

// Requester sends authenticated API requests. *session.Client satisfies it.
type Requester interface {
	Get(ctx context.Context, endpoint string, out any) error
	Post(ctx context.Context, endpoint string, body, out any) error
}

// Client is the typed meal-planning API.
type Client interface {
	WeekPlan(ctx context.Context, weekStart calendar.Date) (*MealPlanWithSlots, error)
	CreatePlan(ctx context.Context, weekStart calendar.Date, notes string) (*MealPlanWithSlots, error)
	EnsureWeekPlan(ctx context.Context, weekStart calendar.Date) (*MealPlanWithSlots, error)
	AddSlot(ctx context.Context, planID string, req CreateSlotRequest) (*MealSlot, error)
	QuickPlan(ctx context.Context, req QuickPlanRequest) (*MealPlanWithSlots, error)
	Discover(ctx context.Context, params DiscoverParams) (*DiscoverResult, error)
	GenerateShoppingList(ctx context.Context, req GenerateShoppingListRequest) (*ShoppingList, error)
	Me(ctx context.Context) (*User, error)
}

// apiResponse is the success envelope every endpoint wraps its payload in.
type apiResponse[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type apiClient struct {
	requester Requester
}

// NewClient creates a meal-planning API client on top of an authenticated
// requester.
func NewClient(requester Requester) Client {
	return &apiClient{requester: requester}
}

// WeekPlan fetches the plan for the week starting at weekStart. It returns
// nil, nil when the user has no plan for that week.
func (c *apiClient) WeekPlan(ctx context.Context, weekStart calendar.Date) (*MealPlanWithSlots, error) {
	var resp apiResponse[*MealPlanWithSlots]
	err := c.requester.Get(ctx, "/meal-plans/week/"+weekStart.String(), &resp)
	if session.IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch week plan %s: %w", weekStart, err)
	}
	return resp.Data, nil
}

// CreatePlan creates an empty plan for the week. The backend returns the
// existing plan when one is already there.
func (c *apiClient) CreatePlan(ctx context.Context, weekStart calendar.Date, notes string) (*MealPlanWithSlots, error) {
	var resp apiResponse[*MealPlanWithSlots]
	body := createPlanRequest{WeekStartDate: weekStart, Notes: notes}
	if err := c.requester.Post(ctx, "/meal-plans", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to create plan for %s: %w", weekStart, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("create plan for %s: empty response", weekStart)
	}
	return resp.Data, nil
}

// EnsureWeekPlan returns the week's plan, creating it when missing. A
// concurrent creation elsewhere (409) is resolved by reading the plan again.
func (c *apiClient) EnsureWeekPlan(ctx context.Context, weekStart calendar.Date) (*MealPlanWithSlots, error) {
	plan, err := c.WeekPlan(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		return plan, nil
	}

	plan, err = c.CreatePlan(ctx, weekStart, "")
	if session.IsStatus(err, http.StatusConflict) {
		log.Printf("Plan for %s created concurrently, reloading", weekStart)
		plan, err = c.WeekPlan(ctx, weekStart)
		if err == nil && plan == nil {
			err = fmt.Errorf("plan for %s missing after conflict", weekStart)
		}
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// AddSlot books a stored recipe into one cell of a plan.
func (c *apiClient) AddSlot(ctx context.Context, planID string, req CreateSlotRequest) (*MealSlot, error) {
	if planID == "" {
		return nil, errors.New("plan id is required")
	}
	if !req.MealType.Valid() {
		return nil, fmt.Errorf("unknown meal type %q", req.MealType)
	}

	var resp apiResponse[*MealSlot]
	endpoint := "/meal-plans/" + url.PathEscape(planID) + "/slots"
	if err := c.requester.Post(ctx, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to add slot %s: %w", SlotKey(req.Date, req.MealType), err)
	}
	return resp.Data, nil
}

// QuickPlan commits a batch of external recipes in one request. The backend
// upserts the week plan, imports each recipe and skips cells that are taken.
func (c *apiClient) QuickPlan(ctx context.Context, req QuickPlanRequest) (*MealPlanWithSlots, error) {
	if len(req.Slots) == 0 {
		return nil, ErrEmptyQuickPlan
	}

	var resp apiResponse[*MealPlanWithSlots]
	if err := c.requester.Post(ctx, "/meal-plans/quick-plan", req, &resp); err != nil {
		return nil, fmt.Errorf("quick plan for %s failed: %w", req.WeekStartDate, err)
	}
	return resp.Data, nil
}

// Discover lists candidate recipes from the external catalogs.
func (c *apiClient) Discover(ctx context.Context, params DiscoverParams) (*DiscoverResult, error) {
	q := url.Values{}
	if params.Category != "" {
		q.Set("category", params.Category)
	}
	if params.Cuisine != "" {
		q.Set("cuisine", params.Cuisine)
	}
	if params.Number > 0 {
		q.Set("number", strconv.Itoa(min(params.Number, MaxDiscoverNumber)))
	}

	endpoint := "/recipes/discover"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var resp apiResponse[DiscoverResult]
	if err := c.requester.Get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to discover recipes: %w", err)
	}
	return &resp.Data, nil
}

// GenerateShoppingList builds a shopping list from a plan's slots.
func (c *apiClient) GenerateShoppingList(ctx context.Context, req GenerateShoppingListRequest) (*ShoppingList, error) {
	if req.MealPlanID == "" {
		return nil, errors.New("meal plan id is required")
	}

	var resp apiResponse[*ShoppingList]
	if err := c.requester.Post(ctx, "/shopping-lists/generate", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to generate shopping list: %w", err)
	}
	return resp.Data, nil
}

// Me returns the signed-in user's profile.
func (c *apiClient) Me(ctx context.Context) (*User, error) {
	var resp apiResponse[*User]
	if err := c.requester.Get(ctx, "/users/me", &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return resp.Data, nil
}
