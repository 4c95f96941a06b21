package cli

import (
	"fmt"

	"meal-planner/internal/app"
	"meal-planner/internal/autofill"
	"meal-planner/internal/calendar"
	"meal-planner/internal/cli/formatter"
	"meal-planner/internal/mealplan"

	"github.com/spf13/cobra"
)

func newWeekCmd(a *app.App) *cobra.Command {
	var week string

	cmd := &cobra.Command{
		Use:   "week",
		Short: "Show the weekly grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDateFlag(a, week)
			if err != nil {
				return err
			}
			view, err := a.Week(cmd.Context(), d)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatWeek(view, a.Today()))
			return nil
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "Any date in the week (YYYY-MM-DD or \"next\"); default this week")
	return cmd
}

func newAutoFillCmd(a *app.App) *cobra.Command {
	var (
		week, mealTypes, cuisine string
		servings                 int
		dryRun                   bool
	)

	cmd := &cobra.Command{
		Use:   "autofill",
		Short: "Fill the open slots of a week with discovered recipes",
		Long: `Fills every empty slot from today to the end of the week for the chosen
meal types. Recipes are discovered per meal type and assigned in rotation,
then committed in a single quick-plan request. Booked slots are never touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDateFlag(a, week)
			if err != nil {
				return err
			}
			mts, err := mealplan.ParseMealTypes(mealTypes)
			if err != nil {
				return err
			}

			res, err := a.AutoFill(cmd.Context(), autofill.Request{
				WeekStart: d,
				MealTypes: mts,
				Cuisine:   cuisine,
				Servings:  servings,
				Origin:    "cli",
			}, dryRun)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatAutoFill(res))
			return nil
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "Any date in the week (YYYY-MM-DD or \"next\"); default this week")
	cmd.Flags().StringVar(&mealTypes, "meal-types", "lunch,dinner", "Comma separated meal types to fill")
	cmd.Flags().StringVar(&cuisine, "cuisine", "", "Restrict discovery to a cuisine")
	cmd.Flags().IntVar(&servings, "servings", 0, "Servings per slot (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview the assignments without saving")
	return cmd
}

func newSlotCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Manage individual meal slots",
	}
	cmd.AddCommand(newSlotAddCmd(a))
	return cmd
}

func newSlotAddCmd(a *app.App) *cobra.Command {
	var (
		recipeID, date, mealType, notes string
		servings                        int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Book a stored recipe into one slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := calendar.Parse(date)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			mt := mealplan.MealType(mealType)
			if !mt.Valid() {
				return fmt.Errorf("unknown meal type %q", mealType)
			}

			slot, err := a.AddSlot(cmd.Context(), mealplan.CreateSlotRequest{
				RecipeID: recipeID,
				Date:     d,
				MealType: mt,
				Servings: servings,
				Notes:    notes,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Booked %s for %s on %s (%d servings)\n", slot.RecipeID, slot.MealType, slot.Date, slot.Servings)
			return nil
		},
	}

	cmd.Flags().StringVar(&recipeID, "recipe", "", "Stored recipe ID")
	cmd.Flags().StringVar(&date, "date", "", "Slot date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&mealType, "meal", "", "breakfast, lunch, dinner or snack")
	cmd.Flags().IntVar(&servings, "servings", 0, "Servings (default from config)")
	cmd.Flags().StringVar(&notes, "notes", "", "Slot notes")
	_ = cmd.MarkFlagRequired("recipe")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("meal")
	return cmd
}

func newShoppingListCmd(a *app.App) *cobra.Command {
	var week, mealTypes string

	cmd := &cobra.Command{
		Use:   "shopping-list",
		Short: "Generate a shopping list from a week's plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDateFlag(a, week)
			if err != nil {
				return err
			}
			mts, err := mealplan.ParseMealTypes(mealTypes)
			if err != nil {
				return err
			}
			list, err := a.ShoppingList(cmd.Context(), d, mts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatShoppingList(list))
			return nil
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "Any date in the week (YYYY-MM-DD or \"next\"); default this week")
	cmd.Flags().StringVar(&mealTypes, "meal-types", "", "Only include these meal types")
	return cmd
}

// parseDateFlag accepts "", "next" or YYYY-MM-DD. The empty string yields the
// zero date, meaning the current week.
func parseDateFlag(a *app.App, v string) (calendar.Date, error) {
	switch v {
	case "":
		return calendar.Date{}, nil
	case "next":
		return a.Today().AddDays(calendar.DaysInWeek), nil
	}
	d, err := calendar.Parse(v)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("invalid --week %q: want YYYY-MM-DD or next", v)
	}
	return d, nil
}
