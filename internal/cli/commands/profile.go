package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskdeck-dev/taskdeck/internal/cli/gateway"
)

// NewProfileCmd creates the profile command group
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your profile",
	}
	cmd.AddCommand(newProfileCompleteCmd())
	return cmd
}

func newProfileCompleteCmd() *cobra.Command {
	var req gateway.CompleteProfileRequest

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Fill in phone, address and organization details",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := buildController()
			if err != nil {
				return err
			}

			if err := guardRoute(cmd.Context(), ctrl, "/settings"); err != nil {
				return err
			}

			res := ctrl.CompleteProfile(cmd.Context(), req)
			if err := resultErr(res); err != nil {
				return fmt.Errorf("profile update failed: %w", err)
			}

			fmt.Println("✓ Profile updated.")
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&req.Street, "street", "", "Street address")
	cmd.Flags().StringVar(&req.City, "city", "", "City")
	cmd.Flags().StringVar(&req.Region, "region", "", "State or region")
	cmd.Flags().StringVar(&req.PostalCode, "postal-code", "", "Postal code")
	cmd.Flags().StringVar(&req.Country, "country", "", "Country")
	cmd.Flags().StringVar(&req.OrganizationID, "organization", "", "Organization identifier")

	return cmd
}
