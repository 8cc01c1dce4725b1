package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPasswordCmd creates the password command group
func NewPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Password reset operations",
	}
	cmd.AddCommand(newPasswordForgotCmd())
	cmd.AddCommand(newPasswordResetCmd())
	cmd.AddCommand(newPasswordVerifyKeyCmd())
	return cmd
}

func newPasswordForgotCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot",
		Short: "Request a password reset key by email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("email is required (use --email)")
			}

			ctrl, err := buildController()
			if err != nil {
				return err
			}

			if err := resultErr(ctrl.RequestPasswordReset(cmd.Context(), email)); err != nil {
				return fmt.Errorf("request failed: %w", err)
			}

			fmt.Println("✓ If the address is registered, a reset key is on its way.")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	return cmd
}

func newPasswordResetCmd() *cobra.Command {
	var key, password string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password using a reset key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return fmt.Errorf("reset key is required (use --key)")
			}

			if password == "" {
				var err error
				password, err = promptPassword("New password")
				if err != nil {
					return err
				}
			}

			ctrl, err := buildController()
			if err != nil {
				return err
			}

			if err := resultErr(ctrl.ResetPassword(cmd.Context(), key, password)); err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}

			fmt.Println("✓ Password updated. You can log in with the new password now.")
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Reset key from the email")
	cmd.Flags().StringVar(&password, "password", "", "New password (will prompt if not provided)")
	return cmd
}

func newPasswordVerifyKeyCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "verify-key",
		Short: "Check whether a reset key is still valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return fmt.Errorf("reset key is required (use --key)")
			}

			ctrl, err := buildController()
			if err != nil {
				return err
			}

			valid, res := ctrl.VerifyResetKey(cmd.Context(), key)
			if err := resultErr(res); err != nil {
				return fmt.Errorf("check failed: %w", err)
			}

			if valid {
				fmt.Println("✓ Key is valid.")
			} else {
				fmt.Println("✗ Key is expired or unknown.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Reset key to check")
	return cmd
}
