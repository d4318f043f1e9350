package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ms-raffles/internal/config"
	"ms-raffles/internal/database"
	"ms-raffles/internal/database/migrations"
	"ms-raffles/internal/logger"
)

func runner(cmd *cobra.Command) (*migrations.Runner, func(), error) {
	cfg := config.Load()
	if cfg.Database.Driver != "postgres" {
		return nil, nil, fmt.Errorf("migrations run against postgres only, DB_DRIVER is %q", cfg.Database.Driver)
	}
	log := logger.NewLogger("raffle-migrate")
	bunDB, err := database.Open(context.Background(), cfg.Database, log)
	if err != nil {
		log.Close()
		return nil, nil, err
	}
	dir, _ := cmd.Flags().GetString("dir")
	r := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: dir}, log)
	cleanup := func() {
		if err := r.Close(); err != nil {
			log.Warn("MIGRATE", err.Error())
		}
		log.Close()
	}
	return r, cleanup, nil
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cleanup, err := runner(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return r.RunMigrations()
		},
	}
}

func downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cleanup, err := runner(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return r.MigrateDown()
		},
	}
}

func toCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "to <version>",
		Short: "Migrate up or down to a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			r, cleanup, err := runner(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return r.MigrateTo(uint(version))
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cleanup, err := runner(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			version, dirty, err := r.Version()
			if err != nil {
				return err
			}
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the raffle node Postgres schema",
	}
	root.PersistentFlags().String("dir", os.Getenv("DB_MIGRATIONS_DIR"), "migrations directory (embedded files when empty)")
	root.AddCommand(upCmd(), downCmd(), toCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
