package deadletter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and dry runs.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	byKey    map[string]string
	failWith error
	now      func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*Entry),
		byKey:   make(map[string]string),
		now:     time.Now,
	}
}

// FailWith makes every following call fail with err; nil restores it.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *Memory) Quarantine(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	key := e.Topic + "\x00" + e.EventID
	if _, ok := m.byKey[key]; ok {
		return nil
	}
	e.Payload = append([]byte(nil), e.Payload...)
	m.entries[e.ID] = &e
	m.byKey[key] = e.ID
	return nil
}

// Pending returns unresolved entries, oldest first.
func (m *Memory) Pending(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []Entry
	for _, e := range m.entries {
		if e.ResolvedAt == nil {
			out = append(out, *e)
		}
	}
	sortOldestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) MarkFailed(_ context.Context, id string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	e, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.RetryCount++
	e.LastError = errorText(cause)
	e.LastAttemptAt = m.now().UTC()
	return nil
}

func (m *Memory) Resolve(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	e, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := m.now().UTC()
	e.ResolvedAt = &now
	return nil
}

func (m *Memory) Close() error { return nil }

// All returns every entry, resolved or not, oldest first.
func (m *Memory) All() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	sortOldestFirst(out)
	return out
}

func sortOldestFirst(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].FirstSeenAt.Equal(entries[j].FirstSeenAt) {
			return entries[i].FirstSeenAt.Before(entries[j].FirstSeenAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
