package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gyaneshwarpardhi/shopsynth/internal/condition"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
)

// Validate checks the rules the schema cannot express:
//   - a DSN or broker list for every backend that needs one
//   - known generator names, topics and event types
//   - quality rules that compile
//   - consistent policy tables
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		add("log.level %q must be one of debug, info, warn, error", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		add("log.format %q must be text or json", cfg.Log.Format)
	}

	switch cfg.Database.Driver {
	case "memory":
	case "postgres":
		if cfg.Database.DSN == "" {
			add("database.dsn is required for driver postgres")
		}
	default:
		add("database.driver %q must be postgres or memory", cfg.Database.Driver)
	}

	switch cfg.EventLog.Driver {
	case "memory":
	case "postgres":
		if cfg.EventLog.DSN == "" {
			add("event_log.dsn is required for driver postgres")
		}
	case "kafka":
		if len(cfg.EventLog.Brokers) == 0 {
			add("event_log.brokers must not be empty for driver kafka")
		}
	default:
		add("event_log.driver %q must be postgres, kafka or memory", cfg.EventLog.Driver)
	}

	if cfg.DeadLetter.SpoolPath == "" {
		add("dead_letter.spool_path is required")
	}
	if cfg.DeadLetter.Sweep.MaxAttempts < 1 {
		add("dead_letter.sweep.max_attempts must be >= 1")
	}

	o := cfg.Orchestrator
	if o.Stagger < 0 || o.ErrorBackoff < 0 || o.RestartCooldown < 0 {
		add("orchestrator durations must not be negative")
	}
	if o.DependencyPoll <= 0 {
		add("orchestrator.dependency_poll must be positive")
	}

	known := policy.Generators()
	for name := range cfg.Generators {
		if !slices.Contains(known, name) {
			add("generators: unknown generator %q", name)
		}
	}
	if len(cfg.Enabled(known)) == 0 {
		add("generators: every generator is disabled")
	}

	topics := event.Topics()
	for _, t := range cfg.Pipeline.Topics {
		if !slices.Contains(topics, t) {
			add("pipeline.topics: unknown topic %q", t)
		}
	}
	for typ := range cfg.Pipeline.Required {
		if _, ok := event.Lookup(event.Type(typ)); !ok {
			add("pipeline.required: unknown event type %q", typ)
		}
	}
	if _, err := condition.CompileSet(cfg.Pipeline.Rules); err != nil {
		add("pipeline.rules: %s", err)
	}

	if cfg.Policies == nil {
		add("policies are missing")
	} else {
		for _, p := range cfg.Policies.Problems() {
			add("policies.%s", p)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
