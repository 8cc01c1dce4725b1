package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := buildController()
			if err != nil {
				return err
			}

			if err := guardRoute(cmd.Context(), ctrl, "/dashboard"); err != nil {
				return err
			}

			current := ctrl.Current()
			if current == nil {
				return fmt.Errorf("not logged in. Please run 'taskdeck login' first")
			}

			p := current.Profile
			fmt.Printf("User:     %s %s\n", p.FirstName, p.LastName)
			fmt.Printf("Email:    %s\n", p.Email)
			fmt.Printf("Username: %s\n", p.Username)
			if p.Phone != "" {
				fmt.Printf("Phone:    %s\n", p.Phone)
			}
			if p.OrganizationID != "" {
				fmt.Printf("Org:      %s\n", p.OrganizationID)
			}
			if p.TwoFactorEnabled {
				fmt.Println("2FA:      enabled")
			} else {
				fmt.Println("2FA:      disabled")
			}
			return nil
		},
	}
}
