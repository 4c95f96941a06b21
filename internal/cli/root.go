package cli

import (
	"errors"
	"fmt"
	"io"

	"meal-planner/internal/app"
	"meal-planner/internal/session"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the top-level "meal-planner" command and registers all
// subcommands against the provided App.
func NewRootCmd(a *app.App) *cobra.Command {
	root := &cobra.Command{
		Use:           "meal-planner",
		Short:         "Plan the week's meals from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newWeekCmd(a),
		newAutoFillCmd(a),
		newSlotCmd(a),
		newShoppingListCmd(a),
		newHistoryCmd(a),
	)

	return root
}

// Execute runs root and prints any error to errOut. It returns the process
// exit code.
func Execute(root *cobra.Command, errOut io.Writer) int {
	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(errOut, "Error: %v\n", err)
	if errors.Is(err, session.ErrAuthExpired) {
		fmt.Fprintln(errOut, "Your session has expired. Run `meal-planner login` to sign in again.")
	}
	return 1
}
