package deadletter

import (
	"context"
	"errors"
	"log/slog"
)

// Chain writes to primary and falls back to a second store, typically the
// local spool, when primary is down.
type Chain struct {
	primary  Store
	fallback Store
	logger   *slog.Logger
}

var _ Store = (*Chain)(nil)

func NewChain(primary, fallback Store, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{primary: primary, fallback: fallback, logger: logger}
}

// Quarantine returns nil when either store accepted the entry and both
// errors joined when neither did.
func (c *Chain) Quarantine(ctx context.Context, e Entry) error {
	err := c.primary.Quarantine(ctx, e)
	if err == nil {
		return nil
	}
	c.logger.Warn("primary dead-letter store failed, spooling", "topic", e.Topic, "event_id", e.EventID, "err", err)
	if fbErr := c.fallback.Quarantine(ctx, e); fbErr != nil {
		return errors.Join(err, fbErr)
	}
	return nil
}

// Pending merges both stores, oldest first. One store failing is logged and
// the other's entries are still returned.
func (c *Chain) Pending(ctx context.Context, limit int) ([]Entry, error) {
	a, errA := c.primary.Pending(ctx, limit)
	b, errB := c.fallback.Pending(ctx, limit)
	if errA != nil && errB != nil {
		return nil, errors.Join(errA, errB)
	}
	if errA != nil {
		c.logger.Warn("primary dead-letter store unreadable", "err", errA)
	}
	if errB != nil {
		c.logger.Warn("dead-letter spool unreadable", "err", errB)
	}
	out := append(a, b...)
	sortOldestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Chain) MarkFailed(ctx context.Context, id string, cause error) error {
	err := c.primary.MarkFailed(ctx, id, cause)
	if err == nil {
		return nil
	}
	if fbErr := c.fallback.MarkFailed(ctx, id, cause); fbErr != nil {
		return errors.Join(err, fbErr)
	}
	return nil
}

func (c *Chain) Resolve(ctx context.Context, id string) error {
	err := c.primary.Resolve(ctx, id)
	if err == nil {
		return nil
	}
	if fbErr := c.fallback.Resolve(ctx, id); fbErr != nil {
		return errors.Join(err, fbErr)
	}
	return nil
}

func (c *Chain) Close() error {
	return errors.Join(c.primary.Close(), c.fallback.Close())
}
