package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/cli/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Taskdeck",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set TASKDECK_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set TASKDECK_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, email, password string) error {
	// Environment fallbacks for CI/CD use.
	if email == "" {
		email = os.Getenv("TASKDECK_EMAIL")
	}
	if password == "" {
		password = os.Getenv("TASKDECK_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or TASKDECK_EMAIL env var)")
	}

	if password == "" {
		var err error
		password, err = promptPassword("Password")
		if err != nil {
			return err
		}
	}

	ctrl, err := buildController()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	res := ctrl.Login(ctx, email, password)
	if res.Status == session.StatusFailure {
		return fmt.Errorf("login failed: %s", res.Message)
	}

	if res.ChallengeRequired() {
		fmt.Println("This account requires a verification code.")
		code, err := promptLine("Code (leave empty to cancel)")
		if err != nil {
			return err
		}
		if code == "" {
			ctrl.CancelTwoFactor()
			fmt.Println("Login cancelled.")
			return nil
		}

		verify := ctrl.VerifyTwoFactor(ctx, code)
		if verify.Status == session.StatusFailure {
			ctrl.CancelTwoFactor()
			return fmt.Errorf("verification failed: %s", verify.Message)
		}
	}

	current := ctrl.Current()
	fmt.Println("✓ Login successful!")
	if current != nil {
		fmt.Printf("  User: %s %s (%s)\n", current.Profile.FirstName, current.Profile.LastName, current.Profile.Email)
	}

	return nil
}
