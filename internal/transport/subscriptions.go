package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nfrund/chatline/internal/pubsub"
)

// bus is what a handle needs to fan inbound frames out to its subscriptions.
type bus interface {
	pubsub.Publisher
	pubsub.Subscriber
}

// subscriptions tracks the handlers registered on one handle. Each one is a
// bus subscription; canceling its context is the unsubscribe.
type subscriptions struct {
	bus bus

	mu     sync.Mutex
	active map[string]context.CancelFunc
	closed bool
}

func newSubscriptions(b bus) *subscriptions {
	return &subscriptions{bus: b, active: make(map[string]context.CancelFunc)}
}

func (s *subscriptions) add(event string, handler Handler) (Subscription, error) {
	sub := Subscription{ID: uuid.NewString(), Event: event}
	ctx, cancel := context.WithCancel(context.Background())

	// Register before subscribing and without holding mu across the bus call:
	// an in-flight publish holds the bus lock while its handlers call isActive.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return Subscription{}, ErrClosed
	}
	s.active[sub.ID] = cancel
	s.mu.Unlock()

	// watermill drops the subscriber asynchronously, so the handler also checks
	// that the subscription is still registered before running.
	err := s.bus.Subscribe(ctx, InboundTopic(event), func(ctx context.Context, msg pubsub.Message) error {
		if !s.isActive(sub.ID) {
			return nil
		}
		handler(ctx, json.RawMessage(msg.Payload))
		return nil
	})
	if err != nil {
		s.remove(sub)
		return Subscription{}, err
	}

	// close may have run while the bus call was in progress.
	if !s.isActive(sub.ID) {
		return Subscription{}, ErrClosed
	}
	return sub, nil
}

func (s *subscriptions) remove(sub Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.active[sub.ID]; ok {
		cancel()
		delete(s.active, sub.ID)
	}
}

func (s *subscriptions) isActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[id]
	return ok
}

func (s *subscriptions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// deliver publishes one inbound frame and returns after every handler ran.
func (s *subscriptions) deliver(ctx context.Context, event string, data []byte) error {
	return s.bus.Publish(ctx, pubsub.Message{
		Topic:   InboundTopic(event),
		Payload: data,
		Metadata: map[string]string{
			"received_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
}

func (s *subscriptions) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, cancel := range s.active {
		cancel()
		delete(s.active, id)
	}
	s.closed = true
}
