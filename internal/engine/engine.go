// Package engine supervises the generator loops: it orders them by their
// declared dependencies, holds each one until its upstream tables have data,
// restarts crashed loops and releases the shared resources once at shutdown.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/config"
	"github.com/gyaneshwarpardhi/shopsynth/internal/dag"
	"github.com/gyaneshwarpardhi/shopsynth/internal/generator"
	"github.com/gyaneshwarpardhi/shopsynth/internal/metrics"
)

const (
	outcomeOK    = "ok"
	outcomeNoop  = "noop"
	outcomeError = "error"

	logMsgStarted       = "generator started"
	logMsgStopped       = "generator stopped"
	logMsgWaiting       = "waiting for upstream data"
	logMsgGateFailed    = "dependency check failed"
	logMsgTickFailed    = "tick failed"
	logMsgCrashed       = "generator crashed, restarting after cooldown"
	logMsgCloseFailed   = "closing resource failed"
	logMsgEngineStarted = "engine started"
)

var (
	ErrDependencyNotReady = errors.New("dependency not ready")
	ErrDependencyCycle    = dag.ErrCycle
	ErrUnknownDependency  = dag.ErrUnknownDependency
	ErrNoGenerators       = errors.New("no generators to run")
	ErrAlreadyRunning     = errors.New("engine already running")
	ErrPanic              = errors.New("generator panicked")
)

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithResources registers resources closed once after every loop exits, in
// registration order.
func WithResources(rs ...io.Closer) Option {
	return func(e *Engine) { e.resources = append(e.resources, rs...) }
}

// WithOnly restricts the loops started to names. The remaining generators
// still take part in dependency checks.
func WithOnly(names ...string) Option {
	return func(e *Engine) { e.only = names }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs one supervised loop per generator.
type Engine struct {
	gens      map[string]generator.Generator
	graph     *dag.Graph
	order     []string
	gate      Gate
	conf      config.OrchestratorConf
	logger    *slog.Logger
	now       func() time.Time
	only      []string
	resources []io.Closer

	running   atomic.Bool
	mu        sync.RWMutex
	status    map[string]*Status
	closeOnce sync.Once
	closeErr  error
}

// New validates the dependency graph of gens. An unknown upstream or a cycle
// is reported here, before any loop starts.
func New(gens []generator.Generator, gate Gate, conf config.OrchestratorConf, opts ...Option) (*Engine, error) {
	if len(gens) == 0 {
		return nil, ErrNoGenerators
	}
	g, err := dag.Build(gens)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		gens:   make(map[string]generator.Generator, len(gens)),
		graph:  g,
		gate:   gate,
		conf:   conf,
		logger: slog.Default(),
		now:    time.Now,
		status: make(map[string]*Status, len(gens)),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, gen := range gens {
		e.gens[gen.Name()] = gen
	}
	for _, name := range g.Order() {
		if len(e.only) > 0 && !slices.Contains(e.only, name) {
			continue
		}
		e.order = append(e.order, name)
	}
	for _, name := range e.only {
		if _, ok := e.gens[name]; !ok {
			return nil, fmt.Errorf("%w: %q", generator.ErrUnknownGenerator, name)
		}
	}
	since := e.now()
	for _, name := range e.order {
		e.status[name] = &Status{Name: name, State: Waiting, Since: since}
		metrics.GeneratorState.WithLabelValues(name).Set(float64(Waiting))
	}
	return e, nil
}

// Run starts the loops in dependency order and blocks until ctx is
// cancelled and every loop has returned. It then closes the registered
// resources and returns their joined close errors.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)
	e.logger.Info(logMsgEngineStarted, "generators", e.order)

	var wg sync.WaitGroup
	for i, name := range e.order {
		if i > 0 && !sleep(ctx, e.conf.Stagger) {
			break
		}
		gen := e.gens[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.supervise(ctx, gen)
		}()
	}
	wg.Wait()
	return e.Close()
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Close releases the registered resources. Only the first call closes; later
// calls return the same result.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		var errs []error
		for _, r := range e.resources {
			if err := r.Close(); err != nil {
				e.logger.Error(logMsgCloseFailed, "err", err)
				errs = append(errs, err)
			}
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}

// Snapshot returns the status of every supervised generator in start order.
func (e *Engine) Snapshot() []Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Status, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, *e.status[name])
	}
	return out
}

func (e *Engine) supervise(ctx context.Context, gen generator.Generator) {
	name := gen.Name()
	logger := e.logger.With("generator", name)

	if err := e.awaitUpstream(ctx, gen, logger); err != nil {
		e.setState(name, Stopped, nil)
		return
	}
	for {
		err := e.loop(ctx, gen, logger)
		if ctx.Err() != nil {
			e.setState(name, Stopped, nil)
			logger.Info(logMsgStopped)
			return
		}
		e.setState(name, Crashed, err)
		logger.Error(logMsgCrashed, "err", err, "cooldown", e.conf.RestartCooldown)
		if !sleep(ctx, e.conf.RestartCooldown) {
			e.setState(name, Stopped, nil)
			return
		}
		metrics.Restarts.WithLabelValues(name).Inc()
		e.update(name, func(s *Status) { s.Restarts++ })
	}
}

// awaitUpstream polls the gate until every upstream table has a row. Check
// errors are logged and polled again.
func (e *Engine) awaitUpstream(ctx context.Context, gen generator.Generator, logger *slog.Logger) error {
	var tables []string
	for _, n := range e.graph.Upstream(gen.Name()) {
		tables = append(tables, n.Table)
	}
	if len(tables) == 0 {
		return nil
	}
	for {
		err := e.gate.Ready(ctx, tables...)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrDependencyNotReady):
			metrics.DependencyWaits.WithLabelValues(gen.Name()).Inc()
			logger.Debug(logMsgWaiting, "reason", err)
		default:
			logger.Warn(logMsgGateFailed, "err", err)
		}
		if !sleep(ctx, e.conf.DependencyPoll) {
			return ctx.Err()
		}
	}
}

// loop loads the working set and ticks until ctx is cancelled. A load error
// or a panic ends the loop with an error.
func (e *Engine) loop(ctx context.Context, gen generator.Generator, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	if err := gen.Load(ctx); err != nil {
		return fmt.Errorf("load %s: %w", gen.Name(), err)
	}
	e.setState(gen.Name(), Running, nil)
	logger.Info(logMsgStarted)

	for ctx.Err() == nil {
		wait := gen.NextInterval(e.now())
		if failed := e.tick(ctx, gen, logger); failed {
			wait = e.conf.ErrorBackoff
		}
		if !sleep(ctx, wait) {
			break
		}
	}
	return nil
}

// tick runs one Tick and reports whether it failed. No-ops and ticks cut
// short by cancellation are not failures.
func (e *Engine) tick(ctx context.Context, gen generator.Generator, logger *slog.Logger) bool {
	name := gen.Name()
	start := time.Now()
	err := gen.Tick(ctx)
	metrics.TickDuration.WithLabelValues(name).Observe(milliseconds(time.Since(start)))

	outcome := outcomeOK
	switch {
	case err == nil:
	case errors.Is(err, generator.ErrNoEligibleUpstream):
		outcome = outcomeNoop
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return false
	default:
		outcome = outcomeError
	}
	metrics.Ticks.WithLabelValues(name, outcome).Inc()

	e.update(name, func(s *Status) {
		s.Ticks++
		if outcome == outcomeError {
			s.Failures++
			s.LastError = err.Error()
		}
	})
	if outcome == outcomeError {
		logger.Warn(logMsgTickFailed, "err", err)
		return true
	}
	return false
}

func (e *Engine) setState(name string, st State, cause error) {
	metrics.GeneratorState.WithLabelValues(name).Set(float64(st))
	now := e.now()
	e.update(name, func(s *Status) {
		if s.State != st {
			s.State = st
			s.Since = now
		}
		if cause != nil {
			s.LastError = cause.Error()
		}
	})
}

func (e *Engine) update(name string, fn func(*Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.status[name]; ok {
		fn(s)
	}
}

// sleep waits d or until ctx is done, reporting whether the wait completed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// milliseconds keeps microsecond precision; most memstore ticks finish
// well under a millisecond.
func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
