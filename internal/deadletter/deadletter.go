// Package deadletter quarantines events the log did not acknowledge and
// retries them out of band.
package deadletter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
)

var ErrNotFound = errors.New("dead letter not found")

// Entry is a quarantined event. (Topic, EventID) is unique: quarantining the
// same event twice keeps the first entry and its FirstSeenAt.
type Entry struct {
	ID            string
	Topic         string
	EventID       string
	EventType     string
	Payload       []byte
	FirstSeenAt   time.Time
	LastAttemptAt time.Time
	RetryCount    int
	LastError     string
	ResolvedAt    *time.Time
}

// Store is safe for concurrent use. RetryCount only ever grows.
type Store interface {
	Quarantine(ctx context.Context, e Entry) error
	Pending(ctx context.Context, limit int) ([]Entry, error)
	MarkFailed(ctx context.Context, id string, cause error) error
	Resolve(ctx context.Context, id string) error
	Close() error
}

// NewEntry quarantines ev after cause. Payload holds the whole wire envelope
// so the sweeper can republish it unchanged.
func NewEntry(ev event.Event, cause error, now time.Time) (Entry, error) {
	raw, err := event.Marshal(ev)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		ID:            uuid.NewString(),
		Topic:         ev.Topic,
		EventID:       ev.ID,
		EventType:     string(ev.Type),
		Payload:       raw,
		FirstSeenAt:   now.UTC(),
		LastAttemptAt: now.UTC(),
	}
	if cause != nil {
		e.LastError = cause.Error()
	}
	return e, nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
