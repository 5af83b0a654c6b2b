package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "transport.inbound.message").
	Topic string
	// Payload contains the raw frame data.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context (e.g., receive time).
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the bus.
type Subscriber interface {
	// Subscribe starts delivering messages of topic to handler in the background.
	// Delivery stops when ctx is canceled.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
