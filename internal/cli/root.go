// Package cli wires the shopsynth commands: generate, consume, deadletter and
// migrate.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/shopsynth/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string // overrides log.level when set
	LogFormat  string // overrides log.format when set

	// Stderr receives log output; nil means os.Stderr.
	Stderr io.Writer
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// NewRootCommand creates the root command for the shopsynth CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shopsynth",
		Short: "Synthetic e-commerce event generator",
		Long: `shopsynth simulates an online shop: users, sessions, catalogue, carts,
orders and support tickets evolve over time and every change is published
as an event.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.LogLevel != "" && !slices.Contains(validLevels, opts.LogLevel) {
				return fmt.Errorf("invalid log level %q: must be one of %v", opts.LogLevel, validLevels)
			}
			if opts.LogFormat != "" && !slices.Contains(validFormats, opts.LogFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "configs/shopsynth.yaml", "path to the config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides the config")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json), overrides the config")

	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewConsumeCommand(opts))
	cmd.AddCommand(NewDeadLetterCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// load reads the config file and builds the process logger from it and the
// flag overrides. The logger also becomes slog's default.
func (o *RootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, o.logger(cfg.Log), nil
}

// loader reads the config once into a hot-reloading Loader whose reload logs
// go through the command's logger.
func (o *RootOptions) loader() (*config.Loader, *slog.Logger, error) {
	loader, err := config.NewLoader(o.ConfigPath, nil)
	if err != nil {
		return nil, nil, err
	}
	logger := o.logger(loader.Config().Log)
	loader.SetLogger(logger)
	return loader, logger, nil
}

func (o *RootOptions) logger(conf config.LogConf) *slog.Logger {
	level, format := conf.Level, conf.Format
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	if o.LogFormat != "" {
		format = o.LogFormat
	}
	var w io.Writer = os.Stderr
	if o.Stderr != nil {
		w = o.Stderr
	}
	logger := newLogger(w, level, format)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
