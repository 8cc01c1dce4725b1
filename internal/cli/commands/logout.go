package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and discard the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := buildController()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			ctrl.Hydrate(ctx)
			ctrl.Logout(ctx)

			fmt.Println("✓ Logged out.")
			return nil
		},
	}
}
