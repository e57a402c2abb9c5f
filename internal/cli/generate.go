package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/shopsynth/internal/api"
	"github.com/gyaneshwarpardhi/shopsynth/internal/config"
	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter"
	"github.com/gyaneshwarpardhi/shopsynth/internal/engine"
	"github.com/gyaneshwarpardhi/shopsynth/internal/generator"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
	"github.com/gyaneshwarpardhi/shopsynth/internal/sink"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

const (
	logMsgWatchUnavailable = "config watcher unavailable, hot-reload disabled"
	logMsgServerStarting   = "http server starting"
	logMsgShuttingDown     = "shutting down"
	logMsgDryRun           = "dry run: store, event log and dead letters kept in memory"
)

var ErrNothingEnabled = errors.New("no generator left to run")

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	DryRun bool
	Only   []string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the generators and the operational HTTP server",
		Long: `Run every enabled generator under the orchestrator until interrupted.

Generators start in dependency order and wait until their upstream tables
hold data. The HTTP server exposes health, readiness, Prometheus metrics,
generator status and policy reloads. Policy edits in the config file are
picked up without a restart.

Example:
  shopsynth generate --config configs/shopsynth.yaml
  shopsynth generate --dry-run --only user,session`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "keep the store, event log and dead letters in memory")
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "run only these generators (comma separated)")

	return cmd
}

func runGenerate(parent context.Context, opts *GenerateOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	loader, logger, err := opts.loader()
	if err != nil {
		return err
	}
	cfg := loader.Config()

	run, err := selectGenerators(cfg, opts.Only)
	if err != nil {
		return err
	}

	src := policy.NewSource(cfg.Policies)
	loader.BindPolicies(src)
	if stop, err := loader.Watch(); err != nil {
		logger.Warn(logMsgWatchUnavailable, "err", err)
	} else {
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gw, out, dlq, err := openRuntime(ctx, cfg, src, opts.DryRun, logger)
	if err != nil {
		return err
	}

	gens, err := generator.All(generator.Deps{
		Store:       gw,
		Sink:        out,
		DeadLetters: dlq,
		Policies:    src,
		Logger:      logger,
		Seed:        cfg.Orchestrator.Seed,
	})
	if err != nil {
		return errors.Join(err, closeAll(gw, out, dlq))
	}
	eng, err := engine.New(gens, engine.NewGate(gw), cfg.Orchestrator,
		engine.WithLogger(logger),
		engine.WithResources(gw, out, dlq),
		engine.WithOnly(run...),
	)
	if err != nil {
		return errors.Join(err, closeAll(gw, out, dlq))
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.New(eng, src, loader, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info(logMsgServerStarting, "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
		close(serveErr)
	}()

	runErr := eng.Run(ctx)
	logger.Info(logMsgShuttingDown)

	shutCtx, shutCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutCancel()
	return errors.Join(runErr, srv.Shutdown(shutCtx), <-serveErr)
}

// selectGenerators returns the generators the config leaves on, narrowed to
// only when it is set.
func selectGenerators(cfg *config.Config, only []string) ([]string, error) {
	for _, n := range only {
		if !slices.Contains(generator.Names(), n) {
			return nil, fmt.Errorf("%w: %q", generator.ErrUnknownGenerator, n)
		}
	}
	run := cfg.Enabled(generator.Names())
	if len(only) > 0 {
		run = slices.DeleteFunc(run, func(n string) bool { return !slices.Contains(only, n) })
	}
	if len(run) == 0 {
		return nil, ErrNothingEnabled
	}
	return run, nil
}

// openRuntime connects the entity store, the faulty event sink and the
// dead-letter store. Failing to reach any of them is fatal.
func openRuntime(ctx context.Context, cfg *config.Config, src *policy.Source, dryRun bool, logger *slog.Logger) (store.Gateway, sink.Sink, deadletter.Store, error) {
	if dryRun {
		logger.Info(logMsgDryRun)
		dbConf, logConf := cfg.Database, cfg.EventLog
		dbConf.Driver, logConf.Driver = "memory", "memory"
		gw, err := openStore(ctx, dbConf, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		out, err := openSink(ctx, logConf, src, cfg.Orchestrator.Seed, logger)
		if err != nil {
			return nil, nil, nil, errors.Join(err, gw.Close())
		}
		return gw, out, deadletter.NewMemory(), nil
	}

	gw, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	out, err := openSink(ctx, cfg.EventLog, src, cfg.Orchestrator.Seed, logger)
	if err != nil {
		return nil, nil, nil, errors.Join(err, gw.Close())
	}
	dlq, err := openDeadLetters(ctx, cfg.DeadLetter, logger)
	if err != nil {
		return nil, nil, nil, errors.Join(err, gw.Close(), out.Close())
	}
	return gw, out, dlq, nil
}
