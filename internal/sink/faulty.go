package sink

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
)

var errInjected = errors.New("injected transient failure")

// Faulty fails a fraction of publishes before they reach the wrapped sink.
// The rate is read on every call so policy reloads take effect at once.
type Faulty struct {
	next Sink
	rate func() float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewFaulty(next Sink, rate func() float64, rng *rand.Rand) *Faulty {
	return &Faulty{next: next, rate: rate, rng: rng}
}

func (f *Faulty) Publish(ctx context.Context, ev event.Event) error {
	f.mu.Lock()
	roll := f.rng.Float64()
	f.mu.Unlock()
	if roll < f.rate() {
		return fmt.Errorf("%w: %s %s: %w", ErrPublishFailed, ev.Topic, ev.ID, errInjected)
	}
	return f.next.Publish(ctx, ev)
}

func (f *Faulty) Close() error {
	return f.next.Close()
}
