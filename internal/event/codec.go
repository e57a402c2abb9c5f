package event

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type envelope struct {
	EventID   string              `json:"event_id"`
	Type      Type                `json:"type"`
	Topic     string              `json:"topic"`
	Key       string              `json:"key"`
	EmittedAt string              `json:"emitted_at"`
	Payload   jsoniter.RawMessage `json:"payload"`
}

// Marshal encodes ev in the wire envelope. Timestamps are RFC 3339 with
// nanoseconds in UTC.
func Marshal(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.Type, err)
	}
	return json.Marshal(envelope{
		EventID:   ev.ID,
		Type:      ev.Type,
		Topic:     ev.Topic,
		Key:       ev.Key,
		EmittedAt: ev.EmittedAt.UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
}

// Decoded is an envelope read back off the log.
type Decoded struct {
	Event
	// Fields is the payload as a generic document (numbers are float64).
	Fields map[string]any
	// RawPayload is the payload exactly as it appeared on the wire.
	RawPayload []byte
}

// Decode parses a wire envelope and dispatches the payload to its typed
// variant. Decoded payloads are pointers to the registered payload structs.
func Decode(raw []byte) (Decoded, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.EventID == "" || env.Type == "" || len(env.Payload) == 0 {
		return Decoded{}, fmt.Errorf("%w: missing event_id, type or payload", ErrMalformedEnvelope)
	}
	factory, ok := Lookup(env.Type)
	if !ok {
		return Decoded{}, fmt.Errorf("%w: %s", ErrUnknownType, env.Type)
	}
	emitted, err := time.Parse(time.RFC3339Nano, env.EmittedAt)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: emitted_at: %v", ErrMalformedEnvelope, err)
	}

	payload := factory()
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return Decoded{}, fmt.Errorf("%w: %s payload: %v", ErrMalformedEnvelope, env.Type, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(env.Payload, &fields); err != nil {
		return Decoded{}, fmt.Errorf("%w: %s payload: %v", ErrMalformedEnvelope, env.Type, err)
	}

	return Decoded{
		Event: Event{
			ID:        env.EventID,
			Type:      env.Type,
			Topic:     env.Topic,
			Key:       env.Key,
			EmittedAt: emitted,
			Payload:   payload,
		},
		Fields:     fields,
		RawPayload: env.Payload,
	}, nil
}
