// Package database opens the node's bun handle for the configured driver and
// prepares its schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-raffles/internal/config"
	"ms-raffles/internal/database/migrations"
	"ms-raffles/internal/ledger"
	"ms-raffles/internal/logger"
	raffledb "ms-raffles/internal/raffle/db"
)

const (
	maxRetries = 5
	retryDelay = 2 * time.Second
)

// Open connects to Postgres or SQLite, retrying Postgres while it starts.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return openPostgres(ctx, cfg, log)
	case "sqlite":
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// one writer at a time
		sqldb.SetMaxOpenConns(1)
		log.LogDatabase("OPEN", "sqlite", cfg.DSN)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var sqldb *sql.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = sqldb.PingContext(ctx)
			if err == nil {
				break
			}
			sqldb.Close()
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", maxRetries, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Prepare brings the schema up to date. Postgres runs the versioned
// migrations; SQLite creates the tables from the models.
func Prepare(ctx context.Context, bunDB *bun.DB, cfg config.DatabaseConfig, log *logger.Logger) error {
	if bunDB.Dialect().Name() == dialect.PG {
		if !cfg.AutoMigrate {
			log.Info("MIGRATE", "auto migration disabled")
			return nil
		}
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.MigrationsDir,
			AutoMigrate:   cfg.AutoMigrate,
		}, log)
		// Left open: closing the runner closes bunDB as well.
		return runner.RunMigrations()
	}

	if err := ledger.CreateSchema(ctx, bunDB); err != nil {
		return err
	}
	if err := raffledb.CreateSchema(ctx, bunDB); err != nil {
		return err
	}
	log.LogDatabase("CREATE_SCHEMA", "sqlite", "ledger and projection tables ready")
	return nil
}
