package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/intake-api/internal/config"
	"github.com/jwalitptl/intake-api/internal/repository/postgres"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "intake-api",
		Short:        "Patient intake dashboard API",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (default ./config.yaml or ./config/config.yaml)")

	rootCmd.AddCommand(serveCmd(&configFile))
	rootCmd.AddCommand(migrateCmd(&configFile))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func migrateCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres record store schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), *configFile, func(ctx context.Context, cfg *config.Config) error {
				db, err := postgres.NewDB(ctx, cfg.Store.DatabaseURL, cfg.Store.ToPoolConfig())
				if err != nil {
					return err
				}
				defer db.Close()

				if err := postgres.Migrate(ctx, db.DB); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Println("Migrations applied successfully.")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), *configFile, func(ctx context.Context, cfg *config.Config) error {
				db, err := postgres.NewDB(ctx, cfg.Store.DatabaseURL, cfg.Store.ToPoolConfig())
				if err != nil {
					return err
				}
				defer db.Close()

				if err := postgres.MigrationStatus(ctx, db.DB); err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				return nil
			})
		},
	})

	return cmd
}

func loadConfig(file string) (*config.Config, error) {
	cfg, err := config.LoadConfig(file)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func withDatabase(ctx context.Context, file string, fn func(context.Context, *config.Config) error) error {
	cfg, err := config.LoadConfig(file)
	if err != nil {
		return err
	}
	if cfg.Store.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return fn(ctx, cfg)
}
