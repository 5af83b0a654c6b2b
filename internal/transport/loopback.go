package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nfrund/chatline/internal/pubsub"
)

// Loopback is an in-process Handle. It records what is emitted and, when echo
// is enabled, plays every emitted message back to its own subscribers the way a
// broadcasting server would.
type Loopback struct {
	bus    *pubsub.WatermillBridge
	subs   *subscriptions
	echo   bool
	logger *slog.Logger

	mu      sync.Mutex
	emitted []Envelope
	closed  bool

	inbound chan Envelope
	done    chan struct{}
}

// Compile-time interface compliance check
var _ Handle = (*Loopback)(nil)

// LoopbackOption configures a Loopback.
type LoopbackOption func(*Loopback)

// WithoutEcho stops the loopback from playing emitted messages back.
func WithoutEcho() LoopbackOption {
	return func(l *Loopback) {
		l.echo = false
	}
}

// NewLoopback creates a loopback handle and starts its delivery goroutine.
func NewLoopback(opts ...LoopbackOption) *Loopback {
	bus := pubsub.NewWatermillBridge()
	l := &Loopback{
		bus:     bus,
		subs:    newSubscriptions(bus),
		echo:    true,
		logger:  slog.Default().With("component", "transport", "endpoint", "loopback"),
		inbound: make(chan Envelope, defaultSendBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.run()
	return l
}

// Emit records the event and, for messages, schedules the echo.
func (l *Loopback) Emit(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}
	env, err := Decode(frame)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.emitted = append(l.emitted, env)

	if l.echo && event == EventMessage {
		return l.enqueue(env)
	}
	return nil
}

// Inject delivers an event to subscribers as if the server had pushed it.
func (l *Loopback) Inject(event string, payload any) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}
	env, err := Decode(frame)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	return l.enqueue(env)
}

// enqueue must be called with mu held.
func (l *Loopback) enqueue(env Envelope) error {
	select {
	case l.inbound <- env:
		return nil
	default:
		l.logger.Warn("Loopback queue full, dropping frame", "event", env.Event)
		return ErrSendBufferFull
	}
}

// Emitted returns a copy of every envelope emitted so far.
func (l *Loopback) Emitted() []Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Envelope, len(l.emitted))
	copy(out, l.emitted)
	return out
}

// Subscribe registers handler for events delivered by the loopback.
func (l *Loopback) Subscribe(event string, handler Handler) (Subscription, error) {
	return l.subs.add(event, handler)
}

// Unsubscribe removes a subscription. Removing an unknown one is a no-op.
func (l *Loopback) Unsubscribe(sub Subscription) {
	l.subs.remove(sub)
}

// Subscriptions returns the number of active subscriptions.
func (l *Loopback) Subscriptions() int {
	return l.subs.count()
}

// Close stops delivery and releases every subscription.
func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.inbound)
	l.mu.Unlock()

	<-l.done
	l.subs.close()
	return l.bus.Close()
}

func (l *Loopback) run() {
	defer close(l.done)

	for env := range l.inbound {
		if err := l.subs.deliver(context.Background(), env.Event, env.Data); err != nil {
			l.logger.Error("Failed to deliver loopback frame", "event", env.Event, "error", err)
		}
	}
}
