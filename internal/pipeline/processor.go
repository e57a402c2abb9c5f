// Package pipeline is the downstream consumer: it reads envelopes back off
// the event log, rejects the ones a warehouse would refuse and mirrors the
// latest state of every entity into mirror_events.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/shopsynth/internal/condition"
	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
	"github.com/gyaneshwarpardhi/shopsynth/internal/metrics"
	"github.com/gyaneshwarpardhi/shopsynth/internal/store"
)

// MirrorTable holds one row per entity, keyed by topic and event key.
const MirrorTable = "mirror_events"

const (
	reasonEnvelope = "malformed_envelope"
	reasonRequired = "required_field"
	reasonQuality  = "quality_rule"
)

var (
	ErrMalformedRequiredField = errors.New("required field missing or empty")
	ErrQualityRule            = errors.New("quality rule violated")
	ErrNilGateway             = errors.New("pipeline: nil store gateway")
)

// Rejected reports whether err marks a message that must not be retried.
func Rejected(err error) bool {
	return errors.Is(err, ErrMalformedRequiredField) ||
		errors.Is(err, ErrQualityRule) ||
		errors.Is(err, event.ErrMalformedEnvelope) ||
		errors.Is(err, event.ErrUnknownType)
}

type Option func(*Processor)

// WithRequired adds payload fields that must be present per event type, on
// top of the entity id every payload carries.
func WithRequired(required map[string][]string) Option {
	return func(p *Processor) {
		for typ, fields := range required {
			p.required[event.Type(typ)] = append(p.required[event.Type(typ)], fields...)
		}
	}
}

func WithRules(rules condition.Set) Option {
	return func(p *Processor) { p.rules = rules }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// Processor validates and mirrors single envelopes. It is safe for
// concurrent use when the gateway is.
type Processor struct {
	gw       store.Gateway
	required map[event.Type][]string
	rules    condition.Set
	now      func() time.Time
	logger   *slog.Logger
}

func NewProcessor(gw store.Gateway, opts ...Option) (*Processor, error) {
	if gw == nil {
		return nil, ErrNilGateway
	}
	p := &Processor{
		gw:       gw,
		required: make(map[event.Type][]string),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process decodes raw, checks it and upserts the mirror row. Rejections are
// counted and wrap ErrMalformedRequiredField or ErrQualityRule; gateway
// errors are returned as they are so the caller can retry.
func (p *Processor) Process(ctx context.Context, topic string, raw []byte) error {
	d, err := event.Decode(raw)
	if err != nil {
		metrics.PipelineRejected.WithLabelValues(topic, reasonEnvelope).Inc()
		return err
	}
	if err := p.checkRequired(d); err != nil {
		metrics.PipelineRejected.WithLabelValues(topic, reasonRequired).Inc()
		return err
	}

	doc := condition.Fields{
		"event_id":   d.ID,
		"type":       string(d.Type),
		"topic":      d.Topic,
		"key":        d.Key,
		"emitted_at": d.EmittedAt.Format(time.RFC3339Nano),
		"payload":    d.Fields,
	}
	rule, evalErr := p.rules.Violation(topic, doc)
	if rule != nil {
		metrics.PipelineRejected.WithLabelValues(topic, reasonQuality).Inc()
		return errors.Join(fmt.Errorf("%w: %s: %s", ErrQualityRule, d.ID, rule), evalErr)
	}

	rec := store.Record{
		"entity_key":   topic + ":" + d.Key,
		"topic":        topic,
		"event_id":     d.ID,
		"event_type":   string(d.Type),
		"payload":      string(d.RawPayload),
		"emitted_at":   d.EmittedAt,
		"processed_at": p.now().UTC(),
	}
	if err := p.gw.Upsert(ctx, MirrorTable, "entity_key", rec); err != nil {
		return fmt.Errorf("mirror %s %s: %w", d.Type, d.ID, err)
	}
	metrics.PipelineProcessed.WithLabelValues(topic).Inc()
	return nil
}

func (p *Processor) checkRequired(d event.Decoded) error {
	fields := append([]string{event.IDField(d.Type)}, p.required[d.Type]...)
	var missing []string
	for _, f := range fields {
		if !present(d.Fields[f]) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s %s: %s", ErrMalformedRequiredField, d.Type, d.ID, strings.Join(missing, ", "))
	}
	return nil
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	}
	return true
}
