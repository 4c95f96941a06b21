package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/autofill"
	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"
)

const cellWidth = 22

// FormatWeek renders the week as a grid with one row per day and one column
// per meal type. Past days are dimmed.
func FormatWeek(v *app.WeekView, today calendar.Date) string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render(fmt.Sprintf("Week of %s", v.Week.Start)))
	b.WriteString("\n")

	if v.Plan == nil {
		b.WriteString(StyleDim.Render("No plan for this week yet. Run `meal-planner autofill` to fill it."))
		b.WriteString("\n")
		return b.String()
	}

	headers := []string{"Day"}
	for _, mt := range mealplan.MealTypes {
		headers = append(headers, string(mt))
	}

	var rows [][]string
	for _, d := range v.Week.Days() {
		day := d.Weekday().String()[:3] + " " + d.String()[5:]
		past := d.Before(today)
		if past {
			day = StyleDim.Render(day)
		}
		row := []string{day}
		for _, mt := range mealplan.MealTypes {
			label := Truncate(v.Label(d, mt), cellWidth)
			if past || label == "-" {
				label = StyleDim.Render(label)
			}
			row = append(row, label)
		}
		rows = append(rows, row)
	}
	b.WriteString(RenderTable(headers, rows))

	fmt.Fprintf(&b, "\n%d of %d slots booked\n", v.Filled(), len(v.Week.Days())*len(mealplan.MealTypes))
	return b.String()
}

// FormatAutoFill renders a preview or an applied auto-fill result.
func FormatAutoFill(res *autofill.Result) string {
	var b strings.Builder

	title := "Auto-fill preview"
	if res.Applied {
		title = "Auto-fill applied"
	}
	b.WriteString(StyleTitle.Render(fmt.Sprintf("%s: week of %s", title, res.Week.Start)))
	b.WriteString("\n")

	if res.Empty() {
		if res.OpenCells == 0 {
			b.WriteString("Nothing to fill: every remaining slot is booked.\n")
		} else {
			fmt.Fprintf(&b, "No recipes found for %d open slots.\n", res.OpenCells)
		}
		return b.String()
	}

	rows := make([][]string, 0, len(res.Assignments))
	for _, a := range res.Assignments {
		rows = append(rows, []string{
			a.Date.Weekday().String()[:3] + " " + a.Date.String(),
			string(a.MealType),
			Truncate(res.Title(a), 40),
			string(a.Source),
		})
	}
	b.WriteString(RenderTable([]string{"Date", "Meal", "Recipe", "Source"}, rows))

	fmt.Fprintf(&b, "\n%d of %d open slots filled", len(res.Assignments), res.OpenCells)
	if !res.Applied {
		b.WriteString(StyleDim.Render(" (dry run, nothing was saved)"))
	}
	b.WriteString("\n")
	return b.String()
}

// FormatShoppingList groups items by category.
func FormatShoppingList(list *mealplan.ShoppingList) string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render(list.Name))
	b.WriteString("\n")
	if len(list.Items) == 0 {
		b.WriteString(StyleDim.Render("Nothing to buy."))
		b.WriteString("\n")
		return b.String()
	}

	var category string
	for _, item := range list.Items {
		if item.Category != "" && item.Category != category {
			category = item.Category
			b.WriteString(StyleHeader.Render(category))
			b.WriteString("\n")
		}
		box := "[ ]"
		if item.IsChecked {
			box = "[x]"
		}
		fmt.Fprintf(&b, "  %s %s", box, item.IngredientName)
		if item.Amount > 0 {
			fmt.Fprintf(&b, " %s", StyleDim.Render(strings.TrimSpace(formatAmount(item.Amount)+" "+item.Unit)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatHistory renders recent auto-fill runs, newest first.
func FormatHistory(runs []metrics.Run) string {
	if len(runs) == 0 {
		return StyleDim.Render("No auto-fill runs recorded yet.") + "\n"
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.WeekStart,
			strings.Join(r.MealTypes, ","),
			StatusStyle(r.Status).Render(r.Status),
			fmt.Sprintf("%d/%d", r.Assigned, r.OpenCells),
			r.Origin,
			r.Latency.Round(time.Millisecond).String(),
		})
	}
	return RenderTable([]string{"When", "Week", "Meals", "Status", "Filled", "Origin", "Took"}, rows)
}

// FormatUsage renders per-day run totals.
func FormatUsage(usage []metrics.DailyUsage) string {
	if len(usage) == 0 {
		return StyleDim.Render("No activity in this period.") + "\n"
	}
	rows := make([][]string, 0, len(usage))
	for _, u := range usage {
		rows = append(rows, []string{u.Date, strconv.Itoa(u.Runs), strconv.Itoa(u.Applied), strconv.Itoa(u.Assigned)})
	}
	return RenderTable([]string{"Day", "Runs", "Applied", "Meals"}, rows)
}

// FormatStatus renders the session state and process health.
func FormatStatus(st *app.Status) string {
	var b strings.Builder

	state := st.State.String()
	switch state {
	case "authenticated":
		state = StyleGreen.Render(state)
	case "unauthenticated":
		state = StyleRed.Render(state)
	}
	fmt.Fprintf(&b, "Session:  %s\n", state)
	if st.User != nil {
		fmt.Fprintf(&b, "User:     %s <%s>\n", st.User.Name, st.User.Email)
	}
	if !st.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "Expires:  %s\n", st.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "Health:   %s\n", StyleDim.Render(st.Health.String()))
	return b.String()
}
