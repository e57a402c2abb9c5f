package deadletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/metrics"
	"github.com/gyaneshwarpardhi/shopsynth/internal/sink"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
	defaultWorkers      = 4

	outcomeResolved = "resolved"
	outcomeFailed   = "failed"

	logMsgSweepStarted  = "dead-letter sweep started"
	logMsgSweepFinished = "dead-letter sweep finished"
	logMsgRepublishFail = "republish failed"
	logMsgUndecodable   = "quarantined payload cannot be decoded"
)

var (
	ErrNilStore            = errors.New("dead-letter store must not be nil")
	ErrNilSink             = errors.New("sink must not be nil")
	ErrInvalidMaxAttempts  = errors.New("max attempts must be positive")
	ErrNegativeBaseDelay   = errors.New("base delay must not be negative")
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// Report sums up one sweep.
type Report struct {
	Resolved int
	Failed   int
}

// Sweeper republishes pending entries. Each entry gets up to maxAttempts
// publishes with exponential backoff plus jitter; every failed attempt is
// recorded with MarkFailed, a success resolves the entry.
type Sweeper struct {
	store        Store
	sink         sink.Sink
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	workers      int
	logger       *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type SweepOption func(*Sweeper) error

func WithMaxAttempts(n int) SweepOption {
	return func(s *Sweeper) error {
		if n <= 0 {
			return ErrInvalidMaxAttempts
		}
		s.maxAttempts = n
		return nil
	}
}

func WithBaseDelay(d time.Duration) SweepOption {
	return func(s *Sweeper) error {
		if d < 0 {
			return ErrNegativeBaseDelay
		}
		s.baseDelay = d
		return nil
	}
}

func WithJitterFactor(f float64) SweepOption {
	return func(s *Sweeper) error {
		if f < 0 || f > 1 {
			return ErrInvalidJitterFactor
		}
		s.jitterFactor = f
		return nil
	}
}

func WithWorkers(n int) SweepOption {
	return func(s *Sweeper) error {
		if n > 0 {
			s.workers = n
		}
		return nil
	}
}

func WithSweepLogger(l *slog.Logger) SweepOption {
	return func(s *Sweeper) error {
		s.logger = l
		return nil
	}
}

func NewSweeper(store Store, out sink.Sink, opts ...SweepOption) (*Sweeper, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if out == nil {
		return nil, ErrNilSink
	}
	s := &Sweeper{
		store:        store,
		sink:         out,
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
		workers:      defaultWorkers,
		logger:       slog.Default(),
		rng:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Sweep retries up to limit pending entries concurrently.
func (s *Sweeper) Sweep(ctx context.Context, limit int) (Report, error) {
	entries, err := s.store.Pending(ctx, limit)
	if err != nil {
		return Report{}, fmt.Errorf("list pending dead letters: %w", err)
	}
	s.logger.Info(logMsgSweepStarted, "pending", len(entries))
	if len(entries) == 0 {
		return Report{}, nil
	}

	pool := newRetryPool(ctx, s.workers, len(entries), s.retry)
	for _, e := range entries {
		if !pool.submit(ctx, e) {
			break
		}
	}

	var rep Report
	var errs []error
	for _, r := range pool.drain() {
		metrics.SweepOutcomes.WithLabelValues(r.outcome).Inc()
		if r.outcome == outcomeResolved {
			rep.Resolved++
			continue
		}
		rep.Failed++
		if r.err != nil {
			errs = append(errs, fmt.Errorf("dead letter %s: %w", r.entry.ID, r.err))
		}
	}
	s.logger.Info(logMsgSweepFinished, "resolved", rep.Resolved, "failed", rep.Failed)
	if ctx.Err() != nil {
		return rep, ctx.Err()
	}
	return rep, errors.Join(errs...)
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, limit int, every time.Duration) error {
	for {
		if _, err := s.Sweep(ctx, limit); err != nil && ctx.Err() == nil {
			s.logger.Error("dead-letter sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(every):
		}
	}
}

// retry returns the outcome label. The error is only set when the store
// itself failed; publish failures are recorded on the entry instead.
func (s *Sweeper) retry(ctx context.Context, e Entry) (string, error) {
	decoded, err := event.Decode(e.Payload)
	if err != nil {
		s.logger.Error(logMsgUndecodable, "id", e.ID, "topic", e.Topic, "err", err)
		return outcomeFailed, s.store.MarkFailed(ctx, e.ID, err)
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.backoff(attempt)):
			case <-ctx.Done():
				return outcomeFailed, nil
			}
		}
		pubErr := s.sink.Publish(ctx, decoded.Event)
		if pubErr == nil {
			return outcomeResolved, s.store.Resolve(ctx, e.ID)
		}
		s.logger.Warn(logMsgRepublishFail, "id", e.ID, "topic", e.Topic, "attempt", attempt+1, "err", pubErr)
		if err := s.store.MarkFailed(ctx, e.ID, pubErr); err != nil {
			return outcomeFailed, err
		}
	}
	return outcomeFailed, nil
}

// backoff is baseDelay * 2^(attempt-1) plus up to jitterFactor of that.
func (s *Sweeper) backoff(attempt int) time.Duration {
	delay := s.baseDelay * time.Duration(1<<(attempt-1))
	s.mu.Lock()
	jitter := s.rng.Float64() * float64(delay) * s.jitterFactor
	s.mu.Unlock()
	return delay + time.Duration(jitter)
}
