package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/go-faster/errors"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"awaydesk/backend/internal/config"
	"awaydesk/backend/internal/logging"
	"awaydesk/backend/internal/store/postgres"
	"awaydesk/backend/migrations"
)

const migrationsDir = "."

func newRootCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:          "awaydesk-migrate",
		Short:        "Apply or inspect the awaydesk database schema",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to database.url from config)")

	run := func(action func(ctx context.Context, db *sql.DB) error) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			log, zl, db, err := open(databaseURL)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Warn("database close failed", slog.Any("err", err))
				}
				_ = zl.Sync()
			}()
			return action(cmd.Context(), db)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: run(func(ctx context.Context, db *sql.DB) error {
				if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
					return errors.Wrap(err, "migrate up")
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: run(func(ctx context.Context, db *sql.DB) error {
				if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
					return errors.Wrap(err, "migrate down")
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			RunE: run(func(ctx context.Context, db *sql.DB) error {
				if err := goose.StatusContext(ctx, db, migrationsDir); err != nil {
					return errors.Wrap(err, "migrate status")
				}
				return nil
			}),
		},
	)
	return cmd
}

func open(databaseURL string) (*slog.Logger, *zap.Logger, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "load config")
	}
	log, zl, err := logging.New("awaydesk-migrate", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "init logger")
	}
	if databaseURL == "" {
		databaseURL = cfg.DatabaseURL
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, nil, nil, errors.Wrap(err, "set goose dialect")
	}

	db, err := postgres.OpenSQL(databaseURL, postgres.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "open database")
	}
	log.Info("connected to database")
	return log, zl, db, nil
}
