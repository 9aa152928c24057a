package main

import (
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/rentalcore/internal/app"
	"github.com/nikhilbhutani/rentalcore/internal/config"
)

func newPermissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Role and permission maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Create missing permissions, roles and grants from the module declarations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(_ *config.Config, svc *app.Services) error {
				sum, syncErr := svc.Syncer.Sync(cmd.Context())
				if err := writeJSON(sum); err != nil {
					return err
				}
				// Skipped declarations are configuration errors: fail the deploy step.
				return syncErr
			})
		},
	})
	return cmd
}
