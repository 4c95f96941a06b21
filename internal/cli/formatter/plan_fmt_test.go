package formatter

import (
	"strings"
	"testing"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/autofill"
	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"
	"meal-planner/internal/session"

	"github.com/stretchr/testify/assert"
)

func testWeek() calendar.Week {
	return calendar.WeekOf(calendar.New(2024, time.March, 6), time.Monday)
}

func TestFormatWeek(t *testing.T) {
	t.Run("Grid", func(t *testing.T) {
		plan := &mealplan.MealPlanWithSlots{Slots: []mealplan.MealSlot{
			{Date: calendar.New(2024, time.March, 6), MealType: mealplan.Lunch, Recipe: &mealplan.Recipe{Title: "Kimchi Fried Rice"}},
			{Date: calendar.New(2024, time.March, 7), MealType: mealplan.Dinner, Recipe: &mealplan.Recipe{Title: "A very long recipe title that will not fit"}},
		}}
		out := FormatWeek(app.NewWeekView(testWeek(), plan), calendar.New(2024, time.March, 6))

		assert.Contains(t, out, "Week of 2024-03-04")
		assert.Contains(t, out, "breakfast")
		assert.Contains(t, out, "Wed 03-06")
		assert.Contains(t, out, "Kimchi Fried Rice")
		assert.Contains(t, out, "A very long recipe ti…")
		assert.Contains(t, out, "2 of 28 slots booked")
		assert.Contains(t, out, "Sun 03-10")
	})

	t.Run("NoPlan", func(t *testing.T) {
		out := FormatWeek(app.NewWeekView(testWeek(), nil), calendar.New(2024, time.March, 6))
		assert.Contains(t, out, "No plan for this week yet")
	})
}

func TestFormatAutoFill(t *testing.T) {
	res := &autofill.Result{
		Week:      testWeek(),
		OpenCells: 3,
		Assignments: []mealplan.QuickPlanAssignment{
			{Date: calendar.New(2024, time.March, 6), MealType: mealplan.Dinner, Source: mealplan.SourceTheMealDB, ExternalID: "52772"},
		},
	}

	out := FormatAutoFill(res)
	assert.Contains(t, out, "Auto-fill preview: week of 2024-03-04")
	assert.Contains(t, out, "Wed 2024-03-06")
	assert.Contains(t, out, "52772")
	assert.Contains(t, out, "themealdb")
	assert.Contains(t, out, "1 of 3 open slots filled")
	assert.Contains(t, out, "dry run")

	res.Applied = true
	out = FormatAutoFill(res)
	assert.Contains(t, out, "Auto-fill applied")
	assert.NotContains(t, out, "dry run")

	assert.Contains(t, FormatAutoFill(&autofill.Result{Week: testWeek()}), "Nothing to fill")
	assert.Contains(t, FormatAutoFill(&autofill.Result{Week: testWeek(), OpenCells: 4}), "No recipes found for 4 open slots")
}

func TestFormatShoppingList(t *testing.T) {
	out := FormatShoppingList(&mealplan.ShoppingList{Name: "Week of 2024-03-04", Items: []mealplan.ShoppingItem{
		{IngredientName: "rice", Amount: 1.5, Unit: "cup", Category: "pantry"},
		{IngredientName: "soy sauce", Category: "pantry", IsChecked: true},
		{IngredientName: "scallion", Amount: 3, Category: "produce"},
	}})

	assert.Contains(t, out, "Week of 2024-03-04")
	assert.Equal(t, 1, strings.Count(out, "pantry"))
	assert.Contains(t, out, "[ ] rice 1.5 cup")
	assert.Contains(t, out, "[x] soy sauce")
	assert.Contains(t, out, "[ ] scallion 3")

	assert.Contains(t, FormatShoppingList(&mealplan.ShoppingList{Name: "Empty"}), "Nothing to buy")
}

func TestFormatHistoryAndUsage(t *testing.T) {
	out := FormatHistory([]metrics.Run{{
		WeekStart: "2024-03-04",
		MealTypes: []string{"lunch", "dinner"},
		Status:    metrics.StatusApplied,
		Assigned:  10,
		OpenCells: 10,
		Origin:    "cli",
		Latency:   1234 * time.Millisecond,
		CreatedAt: time.Now(),
	}})
	assert.Contains(t, out, "lunch,dinner")
	assert.Contains(t, out, "applied")
	assert.Contains(t, out, "10/10")
	assert.Contains(t, out, "1.234s")
	assert.Contains(t, FormatHistory(nil), "No auto-fill runs")

	usage := FormatUsage([]metrics.DailyUsage{{Date: "2024-03-06", Runs: 4, Applied: 2, Assigned: 12}})
	assert.Contains(t, usage, "2024-03-06")
	assert.Contains(t, usage, "12")
	assert.Contains(t, FormatUsage(nil), "No activity")
}

func TestFormatStatus(t *testing.T) {
	out := FormatStatus(&app.Status{
		State:     session.StateAuthenticated,
		User:      &mealplan.User{Name: "Cook", Email: "cook@example.com"},
		ExpiresAt: time.Date(2024, time.March, 6, 10, 0, 0, 0, time.Local),
	})
	assert.Contains(t, out, "authenticated")
	assert.Contains(t, out, "Cook <cook@example.com>")
	assert.Contains(t, out, "2024-03-06 10:00:00")

	out = FormatStatus(&app.Status{State: session.StateUnauthenticated})
	assert.Contains(t, out, "unauthenticated")
	assert.NotContains(t, out, "User:")
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"A", "Long header"}, [][]string{{"value", "x"}, {"v"}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "─────"))
	assert.Equal(t, strings.Index(lines[0], "Long"), strings.Index(lines[2], "x"), "columns align")

	assert.Empty(t, RenderTable(nil, nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc…", Truncate("abcdefgh", 4))
	assert.Equal(t, "비빔…", Truncate("비빔밥정식", 3))
}
