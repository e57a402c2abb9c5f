// Package sink is the boundary to the durable event log.
package sink

import (
	"context"
	"errors"

	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
)

// ErrPublishFailed wraps every publish error. Callers quarantine the event
// and do not retry it in the same tick.
var ErrPublishFailed = errors.New("publish failed")

// Sink acknowledges an event only once the log has durably accepted it.
// Implementations do not retry internally and are safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, ev event.Event) error
	Close() error
}
