package telegram

import (
	"errors"
	"fmt"
	"strings"

	"meal-planner/internal/app"
	"meal-planner/internal/autofill"
	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"
	"meal-planner/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatError(err error) string {
	switch {
	case errors.Is(err, session.ErrAuthExpired):
		return "🔒 *Session expired.*\nRun `meal-planner login` on the server, then try again."
	case errors.Is(err, app.ErrNoPlan):
		return "🗓️ There is no meal plan for that week yet. Try /autofill first."
	case errors.Is(err, autofill.ErrNoMealTypes):
		return "❌ Pick meal types from: breakfast, lunch, dinner, snack."
	}
	safeErr := strings.ReplaceAll(fmt.Sprint(err), "`", "'")
	return fmt.Sprintf("❌ *Error:*\n```\n%s\n```", safeErr)
}

func formatWeek(v *app.WeekView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 *Week of %s*\n", v.Week.Start)
	if v.Plan == nil {
		sb.WriteString("\n_No plan yet._\n")
		return sb.String()
	}

	for _, d := range v.Week.Days() {
		fmt.Fprintf(&sb, "\n*%s %s*\n", d.Weekday().String()[:3], d)
		for _, mt := range mealplan.MealTypes {
			if _, ok := v.Cell(d, mt); !ok {
				continue
			}
			fmt.Fprintf(&sb, "• %s: %s\n", mt, esc(v.Label(d, mt)))
		}
	}
	fmt.Fprintf(&sb, "\n%d of %d slots booked", v.Filled(), calendar.DaysInWeek*len(mealplan.MealTypes))
	return sb.String()
}

func formatPreview(res *autofill.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🧑‍🍳 *Auto-fill preview* (week of %s)\n\n", res.Week.Start)
	if res.Empty() {
		if res.OpenCells == 0 {
			sb.WriteString("Nothing to fill: every remaining slot is booked.")
		} else {
			sb.WriteString("No recipes found for the open slots.")
		}
		return sb.String()
	}
	writeAssignments(&sb, res)
	fmt.Fprintf(&sb, "\n%d of %d open slots", len(res.Assignments), res.OpenCells)
	return sb.String()
}

func formatApplied(res *autofill.Result) string {
	var sb strings.Builder
	if res.Empty() {
		fmt.Fprintf(&sb, "✅ Week of %s is already full.", res.Week.Start)
		return sb.String()
	}
	fmt.Fprintf(&sb, "✅ *Added %d meals* to the week of %s\n\n", len(res.Assignments), res.Week.Start)
	writeAssignments(&sb, res)
	return sb.String()
}

func writeAssignments(sb *strings.Builder, res *autofill.Result) {
	for _, a := range res.Assignments {
		fmt.Fprintf(sb, "• %s %s %s: %s\n", a.Date.Weekday().String()[:3], a.Date, a.MealType, esc(res.Title(a)))
	}
}

func formatShoppingList(list *mealplan.ShoppingList) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🛒 *%s*\n\n", esc(list.Name))
	if len(list.Items) == 0 {
		sb.WriteString("_Nothing to buy._")
		return sb.String()
	}

	var category string
	for _, item := range list.Items {
		if item.Category != category && item.Category != "" {
			category = item.Category
			fmt.Fprintf(&sb, "\n_%s_\n", esc(category))
		}
		check := "•"
		if item.IsChecked {
			check = "☑️"
		}
		fmt.Fprintf(&sb, "%s %s", check, esc(item.IngredientName))
		if item.Amount > 0 {
			fmt.Fprintf(&sb, " (%g %s)", item.Amount, esc(item.Unit))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatHistory(runs []metrics.Run) string {
	var sb strings.Builder
	sb.WriteString("📜 *Recent auto-fill runs*\n\n")
	if len(runs) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, r := range runs {
		fmt.Fprintf(&sb, "• %s week %s: %s, %d/%d (%s)\n",
			r.CreatedAt.Local().Format("01-02 15:04"), r.WeekStart, r.Status, r.Assigned, r.OpenCells, r.Origin)
	}
	return sb.String()
}

func formatStatus(st *app.Status, usage []metrics.DailyUsage, statusErr error) string {
	var sb strings.Builder
	sb.WriteString("📊 *Status*\n\n")

	fmt.Fprintf(&sb, "🔑 Session: %s\n", st.State)
	if st.User != nil {
		fmt.Fprintf(&sb, "👤 %s (%s)\n", esc(st.User.Name), esc(st.User.Email))
	}
	if statusErr != nil {
		fmt.Fprintf(&sb, "\n%s\n\n", formatError(statusErr))
	}
	if !st.ExpiresAt.IsZero() {
		fmt.Fprintf(&sb, "⏳ Token expires %s\n", st.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}

	sb.WriteString("\n🗓 *Auto-fill activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d runs, %d applied, %d meals\n", d.Date, d.Runs, d.Applied, d.Assigned)
	}

	h := st.Health
	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", h.AllocMB, h.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", h.Goroutines)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", h.DataSize)
	fmt.Fprintf(&sb, "• Uptime: %s\n", h.Uptime)
	return sb.String()
}
