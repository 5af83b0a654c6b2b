// Package hub fans frames out to every registered subscriber.
package hub

import (
	"context"
	"errors"
	"log/slog"
)

// ErrStopped is returned when querying a hub whose Run loop has ended.
var ErrStopped = errors.New("hub stopped")

// Subscriber is one connected peer. The hub writes frames to Send and closes
// it when the subscriber is dropped.
type Subscriber struct {
	ID   string
	Name string
	Send chan []byte
}

// NewSubscriber creates a subscriber with a buffered outbound channel.
func NewSubscriber(id string, buffer int) *Subscriber {
	return &Subscriber{ID: id, Send: make(chan []byte, buffer)}
}

// Hub maintains the set of active subscribers and broadcasts frames to them.
// All state is owned by the Run goroutine.
type Hub struct {
	subscribers map[*Subscriber]bool

	// Broadcast delivers a frame to every subscriber.
	Broadcast chan []byte
	// Register adds a subscriber.
	Register chan *Subscriber
	// Unregister removes a subscriber and closes its Send channel.
	Unregister chan *Subscriber

	count  chan chan int
	done   chan struct{}
	logger *slog.Logger
}

// NewHub creates a hub. Run must be started before it is used.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		Broadcast:   make(chan []byte),
		Register:    make(chan *Subscriber),
		Unregister:  make(chan *Subscriber),
		count:       make(chan chan int),
		done:        make(chan struct{}),
		logger:      slog.Default().With("component", "hub"),
	}
}

// Run processes hub traffic until ctx is canceled, then drops every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for subscriber := range h.subscribers {
			close(subscriber.Send)
			delete(h.subscribers, subscriber)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case subscriber := <-h.Register:
			h.subscribers[subscriber] = true
			h.logger.Info("Subscriber registered", "id", subscriber.ID, "total_subscribers", len(h.subscribers))

		case subscriber := <-h.Unregister:
			if _, ok := h.subscribers[subscriber]; ok {
				delete(h.subscribers, subscriber)
				close(subscriber.Send)
				h.logger.Info("Subscriber unregistered", "id", subscriber.ID, "total_subscribers", len(h.subscribers))
			}

		case frame := <-h.Broadcast:
			h.logger.Debug("Broadcasting frame", "recipient_count", len(h.subscribers))
			for subscriber := range h.subscribers {
				// A full buffer means the peer is stuck; drop it rather than
				// stall everyone else.
				select {
				case subscriber.Send <- frame:
				default:
					close(subscriber.Send)
					delete(h.subscribers, subscriber)
					h.logger.Warn("Unregistering slow subscriber", "id", subscriber.ID, "total_subscribers", len(h.subscribers))
				}
			}

		case reply := <-h.count:
			reply <- len(h.subscribers)
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Count returns the number of registered subscribers.
func (h *Hub) Count(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
	case <-h.done:
		return 0, ErrStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return <-reply, nil
}
