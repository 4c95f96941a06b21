package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"meal-planner/internal/app"
	"meal-planner/internal/cli/formatter"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app.App) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			user, err := a.Login(cmd.Context(), email, pw)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (default $MEALPLAN_PASSWORD, then stdin)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newRegisterCmd(a *app.App) *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			user, err := a.Register(cmd.Context(), email, pw, name)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! You are signed in.\n", user.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Account password (default $MEALPLAN_PASSWORD, then stdin)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newLogoutCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newStatusCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state and process health",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.Status(cmd.Context())
			if st != nil {
				fmt.Fprint(cmd.OutOrStdout(), formatter.FormatStatus(st))
			}
			return err
		},
	}
}

// resolvePassword prefers the flag, then $MEALPLAN_PASSWORD, then the first
// line of in.
func resolvePassword(in io.Reader, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("MEALPLAN_PASSWORD"); env != "" {
		return env, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password is required")
	}
	return pw, nil
}
