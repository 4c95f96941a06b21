package mealplan

import (
	"fmt"
	"strings"

	"meal-planner/internal/calendar"
)

// MealType is one of the four daily meal columns of the weekly grid.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snack     MealType = "snack"
)

// MealTypes lists the grid columns in display order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner, Snack}

// Valid reports whether m is a known meal type.
func (m MealType) Valid() bool {
	switch m {
	case Breakfast, Lunch, Dinner, Snack:
		return true
	}
	return false
}

// ParseMealTypes parses a comma or space separated list, dropping duplicates
// while keeping the first occurrence order.
func ParseMealTypes(s string) ([]MealType, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	seen := make(map[MealType]bool, len(fields))
	var out []MealType
	for _, f := range fields {
		m := MealType(strings.ToLower(strings.TrimSpace(f)))
		if !m.Valid() {
			return nil, fmt.Errorf("unknown meal type %q", f)
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out, nil
}

// Source identifies the external catalog a recipe is imported from.
type Source string

const (
	SourceSpoonacular     Source = "spoonacular"
	SourceTheMealDB       Source = "themealdb"
	SourceFoodSafetyKorea Source = "foodsafetykorea"
	SourceMAFRA           Source = "mafra"
)

// Recipe is the subset of a stored recipe the client displays.
type Recipe struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Servings       int    `json:"servings"`
	ExternalSource Source `json:"external_source,omitempty"`
	ExternalID     string `json:"external_id,omitempty"`
}

// MealPlan is a user's plan for one week.
type MealPlan struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	WeekStartDate calendar.Date `json:"week_start_date"`
	Notes         *string       `json:"notes"`
}

// MealSlot is one booked cell of the grid.
type MealSlot struct {
	ID         string        `json:"id"`
	MealPlanID string        `json:"meal_plan_id"`
	RecipeID   string        `json:"recipe_id"`
	Date       calendar.Date `json:"date"`
	MealType   MealType      `json:"meal_type"`
	Servings   int           `json:"servings"`
	Notes      *string       `json:"notes"`
	Recipe     *Recipe       `json:"recipe,omitempty"`
}

// MealPlanWithSlots is a plan together with its booked slots.
type MealPlanWithSlots struct {
	MealPlan
	Slots []MealSlot `json:"slots"`
}

// ExistingSlots projects the plan's slots into allocator input. A nil plan
// has no slots.
func (p *MealPlanWithSlots) ExistingSlots() []ExistingSlot {
	if p == nil {
		return nil
	}
	out := make([]ExistingSlot, 0, len(p.Slots))
	for _, s := range p.Slots {
		out = append(out, ExistingSlot{Date: s.Date, MealType: s.MealType, RecipeID: s.RecipeID})
	}
	return out
}

// ExistingSlot is an already booked cell. The allocator never overwrites it.
type ExistingSlot struct {
	Date     calendar.Date
	MealType MealType
	RecipeID string
}

// SlotKey identifies a grid cell as "YYYY-MM-DD-<mealType>".
func SlotKey(d calendar.Date, m MealType) string {
	return d.String() + "-" + string(m)
}

// CandidateRecipe is an external recipe offered for auto-fill.
type CandidateRecipe struct {
	Source         Source  `json:"source"`
	ExternalID     string  `json:"external_id"`
	Title          string  `json:"title"`
	ImageURL       *string `json:"image_url,omitempty"`
	ReadyInMinutes *int    `json:"ready_in_minutes,omitempty"`
	Servings       *int    `json:"servings,omitempty"`
	Category       *string `json:"category,omitempty"`
	Area           *string `json:"area,omitempty"`
}

// Key identifies a candidate across sources.
func (c CandidateRecipe) Key() string {
	return string(c.Source) + ":" + c.ExternalID
}

// QuickPlanAssignment is one cell of a bulk quick-plan commit.
type QuickPlanAssignment struct {
	Date       calendar.Date `json:"date"`
	MealType   MealType      `json:"meal_type"`
	Source     Source        `json:"source"`
	ExternalID string        `json:"external_id"`
	Servings   int           `json:"servings,omitempty"`
}

// QuickPlanRequest is the body of POST /meal-plans/quick-plan.
type QuickPlanRequest struct {
	WeekStartDate calendar.Date         `json:"week_start_date"`
	Slots         []QuickPlanAssignment `json:"slots"`
	Notes         string                `json:"notes,omitempty"`
}

// CreateSlotRequest books a stored recipe into a cell.
type CreateSlotRequest struct {
	RecipeID string        `json:"recipe_id"`
	Date     calendar.Date `json:"date"`
	MealType MealType      `json:"meal_type"`
	Servings int           `json:"servings,omitempty"`
	Notes    string        `json:"notes,omitempty"`
}

type createPlanRequest struct {
	WeekStartDate calendar.Date `json:"week_start_date"`
	Notes         string        `json:"notes,omitempty"`
}

// DiscoverParams filters GET /recipes/discover.
type DiscoverParams struct {
	Category string
	Cuisine  string
	Number   int
}

// DiscoverResult groups discovered recipes by catalog.
type DiscoverResult struct {
	KoreanSeed  []CandidateRecipe `json:"korean_seed"`
	Spoonacular []CandidateRecipe `json:"spoonacular"`
	TheMealDB   []CandidateRecipe `json:"themealdb"`
	Total       int               `json:"total"`
}

// Candidates flattens the result in catalog order, dropping duplicates and
// entries without an external id.
func (r *DiscoverResult) Candidates() []CandidateRecipe {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []CandidateRecipe
	for _, group := range [][]CandidateRecipe{r.KoreanSeed, r.Spoonacular, r.TheMealDB} {
		for _, c := range group {
			if c.ExternalID == "" || seen[c.Key()] {
				continue
			}
			seen[c.Key()] = true
			out = append(out, c)
		}
	}
	return out
}

// GenerateShoppingListRequest is the body of POST /shopping-lists/generate.
type GenerateShoppingListRequest struct {
	MealPlanID string     `json:"meal_plan_id"`
	Name       string     `json:"name,omitempty"`
	Dates      []string   `json:"dates,omitempty"`
	MealTypes  []MealType `json:"meal_types,omitempty"`
}

// ShoppingItem is one aggregated ingredient line.
type ShoppingItem struct {
	ID             string  `json:"id"`
	IngredientName string  `json:"ingredient_name"`
	Amount         float64 `json:"amount"`
	Unit           string  `json:"unit"`
	IsChecked      bool    `json:"is_checked"`
	Category       string  `json:"category"`
}

// ShoppingList is a generated list with its items.
type ShoppingList struct {
	ID         string         `json:"id"`
	MealPlanID *string        `json:"meal_plan_id"`
	Name       string         `json:"name"`
	Items      []ShoppingItem `json:"items"`
}

// User is the profile returned by GET /users/me.
type User struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Name            string   `json:"name"`
	Provider        string   `json:"provider"`
	ServingsDefault int      `json:"servings_default"`
	Allergens       []string `json:"allergens"`
}
