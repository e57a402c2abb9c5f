package config

import (
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
)

// Config is the top-level YAML structure.
type Config struct {
	Version      string           `yaml:"version"`
	Log          LogConf          `yaml:"log"`
	HTTP         HTTPConf         `yaml:"http"`
	Database     DatabaseConf     `yaml:"database"`
	EventLog     EventLogConf     `yaml:"event_log"`
	DeadLetter   DeadLetterConf   `yaml:"dead_letter"`
	Orchestrator OrchestratorConf `yaml:"orchestrator"`
	// Generators switches individual generators off; absent names run.
	Generators map[string]bool `yaml:"generators"`
	Policies   *policy.Tables  `yaml:"policies"`
	Pipeline   PipelineConf    `yaml:"pipeline"`
}

type LogConf struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type HTTPConf struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConf selects the entity store. Driver memory keeps everything in
// process, for dry runs.
type DatabaseConf struct {
	Driver          string        `yaml:"driver"` // postgres | memory
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// EventLogConf selects the durable event log the sink publishes to.
type EventLogConf struct {
	Driver      string   `yaml:"driver"` // postgres | kafka | memory
	DSN         string   `yaml:"dsn"`
	MaxConns    int32    `yaml:"max_conns"`
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix"`
}

// DeadLetterConf places quarantined events in Postgres with a local SQLite
// spool as fallback. An empty DSN leaves the spool as the only store.
type DeadLetterConf struct {
	DSN       string    `yaml:"dsn"`
	SpoolPath string    `yaml:"spool_path"`
	Sweep     SweepConf `yaml:"sweep"`
}

type SweepConf struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	JitterFactor float64       `yaml:"jitter_factor"`
	Workers      int           `yaml:"workers"`
	Limit        int           `yaml:"limit"`
	Every        time.Duration `yaml:"every"`
}

type OrchestratorConf struct {
	// Seed fixes every generator's random stream; 0 picks a random seed.
	Seed            uint64        `yaml:"seed"`
	Stagger         time.Duration `yaml:"stagger"`
	DependencyPoll  time.Duration `yaml:"dependency_poll"`
	ErrorBackoff    time.Duration `yaml:"error_backoff"`
	RestartCooldown time.Duration `yaml:"restart_cooldown"`
}

type PipelineConf struct {
	Group        string        `yaml:"group"`
	Topics       []string      `yaml:"topics"` // empty consumes every topic
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	// Required lists extra payload fields per event type on top of the
	// entity id.
	Required map[string][]string `yaml:"required"`
	// Rules are quality expressions per topic.
	Rules map[string][]string `yaml:"rules"`
}

// Default returns the configuration used for every key the file omits.
func Default() *Config {
	return &Config{
		Log:  LogConf{Level: "info", Format: "text"},
		HTTP: HTTPConf{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Database: DatabaseConf{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		EventLog: EventLogConf{Driver: "postgres", MaxConns: 8},
		DeadLetter: DeadLetterConf{
			SpoolPath: "shopsynth-spool.db",
			Sweep: SweepConf{
				MaxAttempts:  6,
				BaseDelay:    100 * time.Millisecond,
				JitterFactor: 0.3,
				Workers:      4,
				Limit:        500,
				Every:        time.Minute,
			},
		},
		Orchestrator: OrchestratorConf{
			Stagger:         2 * time.Second,
			DependencyPoll:  10 * time.Second,
			ErrorBackoff:    5 * time.Second,
			RestartCooldown: 5 * time.Second,
		},
		Generators: map[string]bool{},
		Policies:   policy.Default(),
		Pipeline: PipelineConf{
			Group:        "shopsynth-mirror",
			PollInterval: time.Second,
			BatchSize:    100,
			Required: map[string][]string{
				"new_user": {"email", "first_name", "last_name"},
			},
			Rules: map[string][]string{},
		},
	}
}

// Enabled filters names down to the generators the config leaves on.
func (c *Config) Enabled(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if on, set := c.Generators[n]; set && !on {
			continue
		}
		out = append(out, n)
	}
	return out
}
