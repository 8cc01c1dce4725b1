package commands

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewTwoFactorCmd creates the 2fa command group
func NewTwoFactorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "2fa",
		Short: "Manage two-factor authentication",
	}
	cmd.AddCommand(newTwoFactorSetupCmd())
	cmd.AddCommand(newTwoFactorVerifyCmd())
	cmd.AddCommand(newTwoFactorDisableCmd())
	return cmd
}

func newTwoFactorSetupCmd() *cobra.Command {
	var qrOutput string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Generate a secret for an authenticator app",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := buildController()
			if err != nil {
				return err
			}

			if err := guardRoute(cmd.Context(), ctrl, "/settings"); err != nil {
				return err
			}

			enrollment, res := ctrl.SetupTwoFactor(cmd.Context())
			if err := resultErr(res); err != nil {
				return fmt.Errorf("setup failed: %w", err)
			}

			fmt.Printf("Secret: %s\n", enrollment.Secret)
			fmt.Println("Add it to your authenticator app, then run 'taskdeck 2fa verify --code <code>'.")

			if qrOutput != "" {
				img, err := base64.StdEncoding.DecodeString(enrollment.QRCodeImage)
				if err != nil {
					return fmt.Errorf("failed to decode QR code image: %w", err)
				}
				if err := os.WriteFile(qrOutput, img, 0600); err != nil {
					return fmt.Errorf("failed to write QR code image: %w", err)
				}
				fmt.Printf("QR code written to %s\n", qrOutput)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&qrOutput, "qr-output", "", "Write the enrollment QR code PNG to this file")
	return cmd
}

func newTwoFactorVerifyCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Confirm the authenticator code and enable 2FA",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := buildController()
			if err != nil {
				return err
			}

			if err := guardRoute(cmd.Context(), ctrl, "/settings"); err != nil {
				return err
			}

			if err := resultErr(ctrl.ConfirmTwoFactor(cmd.Context(), code)); err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}

			fmt.Println("✓ Two-factor authentication is now enabled.")
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Current 6-digit authenticator code")
	return cmd
}

func newTwoFactorDisableCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable two-factor authentication",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := buildController()
			if err != nil {
				return err
			}

			if err := guardRoute(cmd.Context(), ctrl, "/settings"); err != nil {
				return err
			}

			if err := resultErr(ctrl.DisableTwoFactor(cmd.Context(), code)); err != nil {
				return fmt.Errorf("disable failed: %w", err)
			}

			fmt.Println("✓ Two-factor authentication is now disabled.")
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Current 6-digit authenticator code")
	return cmd
}
