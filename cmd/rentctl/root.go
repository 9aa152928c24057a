package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/rentalcore/internal/app"
	"github.com/nikhilbhutani/rentalcore/internal/config"
	"github.com/nikhilbhutani/rentalcore/internal/database"
	"github.com/nikhilbhutani/rentalcore/internal/storage"
	"github.com/nikhilbhutani/rentalcore/internal/store/postgres"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rentctl",
		Short:         "Operational tooling for the rental backend",
		SilenceUsage:  true,
	}
	cmd.AddCommand(newPermissionsCmd(), newUploadsCmd(), newMigrateCmd())
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

// withServices connects to the database and runs fn over the wired services.
func withServices(ctx context.Context, fn func(cfg *config.Config, svc *app.Services) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var pool *pgxpool.Pool
	if pool, err = database.NewPool(ctx, cfg.Database); err != nil {
		return err
	}
	defer pool.Close()

	svc := app.New(cfg, app.Deps{
		Store: postgres.New(pool),
		Files: storage.NewLocalStorage(cfg.Uploads.Dir),
	})
	return fn(cfg, svc)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
