package generator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter"
	"github.com/gyaneshwarpardhi/shopsynth/internal/domain"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/fake"
	"github.com/gyaneshwarpardhi/shopsynth/internal/metrics"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
	"github.com/gyaneshwarpardhi/shopsynth/internal/sink"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

const (
	logMsgPublishFailed    = "publish failed, quarantining event"
	logMsgQuarantineFailed = "event neither published nor quarantined"
	logMsgQualityIssue     = "injected data quality issue"
	logMsgDuplicate        = "unique constraint hit, skipping"

	logAttrTopic   = "topic"
	logAttrEventID = "event_id"
	logAttrType    = "type"
	logAttrField   = "field"
	logAttrTable   = "table"
)

const (
	// upstreamLimit bounds the rows read when picking an upstream entity.
	upstreamLimit = 500
	// loadLimit bounds the working set rebuilt by Load.
	loadLimit = 5000
)

var (
	ErrNilStore       = errors.New("generator: nil entity store")
	ErrNilSink        = errors.New("generator: nil event sink")
	ErrNilDeadLetters = errors.New("generator: nil dead-letter store")
	ErrNilPolicies    = errors.New("generator: nil policy source")
)

// Deps are the collaborators shared by every generator.
type Deps struct {
	Store       store.Gateway
	Sink        sink.Sink
	DeadLetters deadletter.Store
	Policies    *policy.Source
	Logger      *slog.Logger
	// Seed fixes each generator's random stream; zero draws a random seed.
	Seed  uint64
	Clock func() time.Time
	IDs   func() string
}

// Toolkit is what a generator composes instead of inheriting: store access,
// publish-with-quarantine, a private rng and fake-data source, the clock, id
// minting and the current policy tables.
type Toolkit struct {
	name     string
	gw       store.Gateway
	out      sink.Sink
	dlq      deadletter.Store
	policies *policy.Source
	logger   *slog.Logger
	rng      *rand.Rand
	fake     *fake.Faker
	clock    func() time.Time
	ids      func() string
}

func NewToolkit(name string, d Deps) (*Toolkit, error) {
	switch {
	case d.Store == nil:
		return nil, ErrNilStore
	case d.Sink == nil:
		return nil, ErrNilSink
	case d.DeadLetters == nil:
		return nil, ErrNilDeadLetters
	case d.Policies == nil:
		return nil, ErrNilPolicies
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := d.IDs
	if ids == nil {
		ids = uuid.NewString
	}
	seed := d.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	h := fnv.New64a()
	h.Write([]byte(name))
	stream := h.Sum64()

	return &Toolkit{
		name:     name,
		gw:       d.Store,
		out:      d.Sink,
		dlq:      d.DeadLetters,
		policies: d.Policies,
		logger:   logger.With("generator", name),
		rng:      rand.New(rand.NewPCG(seed, stream)),
		fake:     fake.New(seed ^ stream),
		clock:    clock,
		ids:      ids,
	}, nil
}

func (tk *Toolkit) Name() string           { return tk.name }
func (tk *Toolkit) Logger() *slog.Logger   { return tk.logger }
func (tk *Toolkit) Rand() *rand.Rand       { return tk.rng }
func (tk *Toolkit) Fake() *fake.Faker      { return tk.fake }
func (tk *Toolkit) Tables() *policy.Tables { return tk.policies.Load() }
func (tk *Toolkit) NewID() string          { return tk.ids() }

// Now is the current time at store precision.
func (tk *Toolkit) Now() time.Time { return domain.UTC(tk.clock()) }

// Chance rolls the generator's rng.
func (tk *Toolkit) Chance(p float64) bool { return policy.Chance(tk.rng, p) }

// NextInterval samples the pause before the next tick, scaled by the time of
// day when time patterns are on.
func (tk *Toolkit) NextInterval(now time.Time) time.Duration {
	t := tk.Tables()
	d := t.Interval(tk.name).Sample(tk.rng)
	if t.TimePatterns {
		d = policy.Scale(d, now)
	}
	return d
}

func (tk *Toolkit) Query(ctx context.Context, q store.Query) ([]store.Record, error) {
	rows, err := tk.gw.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	return rows, nil
}

func (tk *Toolkit) Exists(ctx context.Context, table string, where ...store.Cond) (bool, error) {
	ok, err := tk.gw.Exists(ctx, table, where...)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", table, err)
	}
	return ok, nil
}

func (tk *Toolkit) Insert(ctx context.Context, table string, rec store.Record) error {
	if err := tk.gw.Insert(ctx, table, rec); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// InsertAll writes rows atomically. The error names the first table.
func (tk *Toolkit) InsertAll(ctx context.Context, rows ...store.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tk.gw.InsertAll(ctx, rows...); err != nil {
		return fmt.Errorf("insert %s: %w", rows[0].Table, err)
	}
	return nil
}

func (tk *Toolkit) Update(ctx context.Context, table, keyColumn, id string, fields store.Record) (bool, error) {
	ok, err := tk.gw.Update(ctx, table, keyColumn, id, fields)
	if err != nil {
		return false, fmt.Errorf("update %s %s: %w", table, id, err)
	}
	return ok, nil
}

func (tk *Toolkit) Upsert(ctx context.Context, table, keyColumn string, rec store.Record) error {
	if err := tk.gw.Upsert(ctx, table, keyColumn, rec); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

// Pick reads up to upstreamLimit rows of q and returns one at random.
// ErrNoEligibleUpstream when none match.
func (tk *Toolkit) Pick(ctx context.Context, q store.Query) (store.Record, error) {
	if q.Limit == 0 {
		q.Limit = upstreamLimit
	}
	rows, err := tk.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEligibleUpstream, q.Table)
	}
	return rows[tk.rng.IntN(len(rows))], nil
}

// Duplicate turns a unique violation into a no-op tick.
func (tk *Toolkit) Duplicate(table string, err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		tk.logger.Debug(logMsgDuplicate, logAttrTable, table, "err", err)
		return fmt.Errorf("%w: %s already present", ErrNoEligibleUpstream, table)
	}
	return err
}

// Emit publishes one event. When the sink does not acknowledge it the event
// is quarantined instead and Emit reports success: the caller's store write
// stands and is not retried. Only when quarantine fails too does Emit return
// both errors joined.
func (tk *Toolkit) Emit(ctx context.Context, typ event.Type, p event.Payload) error {
	if tk.Chance(tk.Tables().Failures.QualityIssueRate) {
		if corrupted, field, ok := corrupt(tk.rng, p); ok {
			tk.logger.Debug(logMsgQualityIssue, logAttrType, typ, logAttrField, field)
			p = corrupted
		}
	}
	ev, err := event.New(tk.NewID(), typ, p, tk.clock())
	if err != nil {
		return err
	}

	pubErr := tk.out.Publish(ctx, ev)
	if pubErr == nil {
		metrics.EventsPublished.WithLabelValues(ev.Topic, string(ev.Type)).Inc()
		return nil
	}
	metrics.PublishFailures.WithLabelValues(ev.Topic).Inc()
	tk.logger.Warn(logMsgPublishFailed, logAttrTopic, ev.Topic, logAttrEventID, ev.ID, "err", pubErr)

	entry, err := deadletter.NewEntry(ev, pubErr, tk.clock())
	if err == nil {
		// The tick's context may be the one that was cancelled.
		err = tk.dlq.Quarantine(context.WithoutCancel(ctx), entry)
	}
	if err != nil {
		metrics.QuarantineFailures.WithLabelValues(ev.Topic).Inc()
		joined := errors.Join(pubErr, err)
		tk.logger.Error(logMsgQuarantineFailed, logAttrTopic, ev.Topic, logAttrEventID, ev.ID, "err", joined)
		return joined
	}
	metrics.Quarantined.WithLabelValues(ev.Topic).Inc()
	return nil
}
