package app

import (
	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
)

// WeekView is a week plan laid out as a 7×4 grid.
type WeekView struct {
	Week calendar.Week
	// Plan is the first existing plan behind the week, nil when there is none.
	Plan  *mealplan.MealPlanWithSlots
	cells map[string]mealplan.MealSlot
}

// NewWeekView indexes the slots of plans that fall inside week by cell. A
// week that does not start on Monday is backed by two plans. Nil plans are
// skipped.
func NewWeekView(week calendar.Week, plans ...*mealplan.MealPlanWithSlots) *WeekView {
	v := &WeekView{Week: week, cells: make(map[string]mealplan.MealSlot)}
	for _, plan := range plans {
		if plan == nil {
			continue
		}
		if v.Plan == nil {
			v.Plan = plan
		}
		for _, s := range plan.Slots {
			if week.Contains(s.Date) {
				v.cells[mealplan.SlotKey(s.Date, s.MealType)] = s
			}
		}
	}
	return v
}

// Cell returns the slot booked at (d, mt), if any.
func (v *WeekView) Cell(d calendar.Date, mt mealplan.MealType) (mealplan.MealSlot, bool) {
	s, ok := v.cells[mealplan.SlotKey(d, mt)]
	return s, ok
}

// Label is the text shown for a cell: the recipe title, or "-" when empty.
func (v *WeekView) Label(d calendar.Date, mt mealplan.MealType) string {
	s, ok := v.Cell(d, mt)
	if !ok {
		return "-"
	}
	if s.Recipe != nil && s.Recipe.Title != "" {
		return s.Recipe.Title
	}
	return s.RecipeID
}

// Filled counts the booked cells.
func (v *WeekView) Filled() int {
	return len(v.cells)
}
