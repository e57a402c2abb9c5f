package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/gyaneshwarpardhi/shopsynth/internal/event"
)

// Message is an event as the Memory sink recorded it.
type Message struct {
	Event event.Event
	Raw   []byte
}

// Memory records published events in process. It encodes every event with
// the wire codec so unserializable payloads fail here too.
type Memory struct {
	mu       sync.Mutex
	messages []Message
	failWith error
	closed   int
}

func NewMemory() *Memory {
	return &Memory{}
}

// FailWith makes every following Publish fail with err; nil restores
// normal operation.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *Memory) Publish(ctx context.Context, ev event.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	raw, err := event.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, m.failWith)
	}
	m.messages = append(m.messages, Message{Event: ev, Raw: raw})
	return nil
}

// Messages returns everything published so far, oldest first.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Events returns the published events, optionally restricted to topics.
func (m *Memory) Events(topics ...string) []event.Event {
	want := make(map[string]bool, len(topics))
	for _, t := range topics {
		want[t] = true
	}
	var out []event.Event
	for _, msg := range m.Messages() {
		if len(want) == 0 || want[msg.Event.Topic] {
			out = append(out, msg.Event)
		}
	}
	return out
}

// Types returns the type of every published event in order.
func (m *Memory) Types() []event.Type {
	var out []event.Type
	for _, msg := range m.Messages() {
		out = append(out, msg.Event.Type)
	}
	return out
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Closed reports how many times Close was called.
func (m *Memory) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
