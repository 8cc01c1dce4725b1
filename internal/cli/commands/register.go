package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/cli/gateway"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd() *cobra.Command {
	var req gateway.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a Taskdeck account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, req)
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.MiddleName, "middle-name", "", "Middle name (optional)")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&req.InviteToken, "invite-token", "", "Organization invite token (optional)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (will prompt if not provided)")

	return cmd
}

func runRegister(cmd *cobra.Command, req gateway.RegisterRequest) error {
	if req.Password == "" {
		req.Password = os.Getenv("TASKDECK_PASSWORD")
	}
	if req.Password == "" {
		var err error
		req.Password, err = promptPassword("Password")
		if err != nil {
			return err
		}
	}

	ctrl, err := buildController()
	if err != nil {
		return err
	}

	res := ctrl.Register(cmd.Context(), req)
	if err := resultErr(res); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	current := ctrl.Current()
	fmt.Println("✓ Account created, you are now logged in.")
	if current != nil {
		fmt.Printf("  User: %s %s (%s)\n", current.Profile.FirstName, current.Profile.LastName, current.Profile.Email)
	}
	return nil
}
