package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/shopsynth/internal/metrics"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
)

//go:embed schema.cue
var schemaCUE string

const (
	logMsgReloaded       = "config reloaded"
	logMsgReloadRejected = "config reload rejected, keeping previous config"
	logMsgWatchError     = "config watcher error"

	reloadOK       = "ok"
	reloadRejected = "rejected"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, expands, checks and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse turns raw YAML into a validated Config. ${VAR} references are
// replaced from the environment first; every key the document omits keeps
// its Default value, and policy weight maps merge key by key.
func Parse(name string, data []byte) (*Config, error) {
	data = expandEnv(data)
	if err := checkSchema(name, data); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", name, err)
	}
	if cfg.Policies == nil {
		cfg.Policies = policy.Default()
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// checkSchema unifies the document with the closed #Config definition, which
// rejects unknown keys and out-of-range values before any Go decoding.
func checkSchema(name string, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	cctx := cuecontext.New()
	schema := cctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", name, err)
	}
	doc := cctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("parse config %s: %w", name, err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		var msgs []string
		for _, e := range cueerrors.Errors(err) {
			msgs = append(msgs, e.Error())
		}
		return fmt.Errorf("config schema errors:\n  - %s", strings.Join(msgs, "\n  - "))
	}
	return nil
}

// Loader holds the current config and hot-reloads it when the file changes.
type Loader struct {
	path     string
	logger   *slog.Logger
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Loader{path: filepath.Clean(path), logger: logger, current: cfg}, nil
}

// SetLogger replaces the reload logger. Call it before Watch.
func (l *Loader) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// BindPolicies keeps src in step with the policies section across reloads.
func (l *Loader) BindPolicies(src *policy.Source) {
	l.OnChange(func(c *Config) { src.Store(c.Policies) })
}

// Watch starts a background goroutine that hot-reloads the config on file
// changes. The directory is watched so editors that replace the file by
// rename are seen too. Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != l.path {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					_, _ = l.Reload()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn(logMsgWatchError, "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the config file. A rejected file
// leaves the previous config in place.
func (l *Loader) Reload() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		metrics.PolicyReloads.WithLabelValues(reloadRejected).Inc()
		l.logger.Error(logMsgReloadRejected, "path", l.path, "err", err)
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	metrics.PolicyReloads.WithLabelValues(reloadOK).Inc()
	l.logger.Info(logMsgReloaded, "path", l.path)
	return cfg, nil
}
