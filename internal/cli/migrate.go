package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter/gormstore"
	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter/spool"
	"github.com/gyaneshwarpardhi/shopsynth/internal/sink/pglog"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store/sqlstore"
)

const logMsgMigrated = "schema applied"

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schemas",
		Long: `Create the entity tables, the Postgres event log, the dead-letter table
and the local spool. Every statement is idempotent. Stores configured with
the memory driver are skipped.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runMigrate(ctx, rootOpts, cmd.OutOrStdout())
		},
	}
}

func runMigrate(ctx context.Context, opts *RootOptions, w io.Writer) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	done := func(what string) {
		logger.Info(logMsgMigrated, "target", what)
		fmt.Fprintf(w, "migrated %s\n", what)
	}

	if cfg.Database.Driver == "postgres" {
		gw, err := sqlstore.Open(ctx, cfg.Database.DSN, sqlstore.PoolConfig{MaxOpenConns: 1}, sqlstore.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("connect entity store: %w", err)
		}
		err = gw.Migrate(ctx)
		gw.Close()
		if err != nil {
			return err
		}
		done("entity store")
	}

	if cfg.EventLog.Driver == "postgres" {
		pool, err := pglog.Connect(ctx, cfg.EventLog.DSN, 1)
		if err != nil {
			return fmt.Errorf("connect event log: %w", err)
		}
		err = pglog.Migrate(ctx, pool)
		pool.Close()
		if err != nil {
			return err
		}
		done("event log")
	}

	if cfg.DeadLetter.DSN != "" {
		dl, err := gormstore.Open(ctx, cfg.DeadLetter.DSN, logger)
		if err != nil {
			return fmt.Errorf("connect dead-letter store: %w", err)
		}
		err = dl.Migrate(ctx)
		dl.Close()
		if err != nil {
			return err
		}
		done("dead-letter store")
	}

	sp, err := spool.Open(cfg.DeadLetter.SpoolPath)
	if err != nil {
		return err
	}
	if err := sp.Close(); err != nil {
		return err
	}
	done("dead-letter spool")
	return nil
}
