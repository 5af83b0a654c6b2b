// Package transport carries chat events between the client session and a
// realtime endpoint. Frames are JSON envelopes naming the event and its data.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Event names understood by the chat endpoint.
const (
	EventJoin    = "join"
	EventMessage = "message"
)

var (
	// ErrClosed is returned when emitting on a handle that has shut down.
	ErrClosed = errors.New("transport closed")
	// ErrSendBufferFull is returned when the outbound queue cannot take another frame.
	ErrSendBufferFull = errors.New("transport send buffer full")
)

// Handler receives the raw data of one inbound event.
type Handler func(ctx context.Context, data json.RawMessage)

// Subscription identifies a registered handler.
type Subscription struct {
	ID    string
	Event string
}

// Handle is the contract a chat session needs from a realtime connection.
// Emit is best-effort and never waits for the peer. Handlers registered for the
// same event run one at a time, in arrival order.
type Handle interface {
	Emit(ctx context.Context, event string, payload any) error
	Subscribe(event string, handler Handler) (Subscription, error)
	Unsubscribe(sub Subscription)
	Close() error
}

// Envelope is the frame exchanged over the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode wraps payload into a serialized envelope.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode parses a serialized envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, errors.New("decode frame: missing event name")
	}
	return env, nil
}

// InboundTopic is the bus topic inbound frames of event are published on.
func InboundTopic(event string) string {
	return "transport.inbound." + event
}
