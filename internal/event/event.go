// Package event defines the envelope every generator publishes and the
// catalogue of event types, their topics and payload shapes.
package event

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

var (
	ErrUnknownType       = errors.New("unknown event type")
	ErrPayloadMismatch   = errors.New("payload does not match event type")
	ErrMalformedEnvelope = errors.New("malformed event envelope")
)

// Type names what happened, e.g. "order_create".
type Type string

// Payload is the typed body of an event.
type Payload interface {
	// EntityID is the id of the aggregate the event belongs to. It is the
	// log key, so events of one aggregate stay ordered.
	EntityID() string
}

// Event is immutable once built.
type Event struct {
	ID        string
	Type      Type
	Topic     string
	Key       string
	EmittedAt time.Time
	Payload   Payload
}

// New builds an envelope for p. The topic comes from the type catalogue and
// the key from the payload.
func New(id string, t Type, p Payload, at time.Time) (Event, error) {
	d, ok := catalogue[t]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	if p == nil || indirect(reflect.TypeOf(p)) != indirect(reflect.TypeOf(d.factory())) {
		return Event{}, fmt.Errorf("%w: %s carries %T", ErrPayloadMismatch, t, p)
	}
	return Event{
		ID:        id,
		Type:      t,
		Topic:     d.topic,
		Key:       p.EntityID(),
		EmittedAt: at.UTC(),
		Payload:   p,
	}, nil
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
