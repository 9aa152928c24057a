package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/rentalcore/internal/app"
	"github.com/nikhilbhutani/rentalcore/internal/config"
)

func newUploadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "Temporary upload maintenance",
	}

	var olderThan time.Duration
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove unattached uploads older than the threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(cfg *config.Config, svc *app.Services) error {
				removed, err := svc.Uploads.Cleanup(cmd.Context(), olderThan)
				if err != nil {
					return err
				}
				return writeJSON(map[string]any{"removed": removed})
			})
		},
	}
	cleanup.Flags().DurationVar(&olderThan, "older-than", 0, "Age threshold (default UPLOADS_TTL)")
	cmd.AddCommand(cleanup)
	return cmd
}
