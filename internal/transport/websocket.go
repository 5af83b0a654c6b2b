package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/nfrund/chatline/internal/pubsub"
)

const (
	defaultSendBuffer   = 256
	defaultWriteTimeout = 10 * time.Second
)

type options struct {
	sendBuffer   int
	writeTimeout time.Duration
	logger       *slog.Logger
	dial         *websocket.DialOptions
}

// Option configures a websocket connection.
type Option func(*options)

// WithSendBuffer sets how many outbound frames may be queued.
func WithSendBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds how long a single frame write may take.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

// WithLogger sets the logger used by the connection pumps.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDialOptions passes options through to the websocket handshake.
func WithDialOptions(d *websocket.DialOptions) Option {
	return func(o *options) {
		o.dial = d
	}
}

// Conn is a Handle backed by a websocket connection.
type Conn struct {
	endpoint     string
	ws           *websocket.Conn
	bus          *pubsub.WatermillBridge
	subs         *subscriptions
	writeTimeout time.Duration
	logger       *slog.Logger

	// mu guards send against concurrent close.
	mu     sync.RWMutex
	send   chan []byte
	closed bool

	shutdownOnce sync.Once
	done         chan struct{}
}

// Compile-time interface compliance check
var _ Handle = (*Conn)(nil)

// Dial connects to endpoint and starts the read and write pumps.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Conn, error) {
	o := options{
		sendBuffer:   defaultSendBuffer,
		writeTimeout: defaultWriteTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ws, _, err := websocket.Dial(ctx, endpoint, o.dial)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	bus := pubsub.NewWatermillBridge()
	c := &Conn{
		endpoint:     endpoint,
		ws:           ws,
		bus:          bus,
		subs:         newSubscriptions(bus),
		writeTimeout: o.writeTimeout,
		logger:       o.logger.With("component", "transport", "endpoint", endpoint),
		send:         make(chan []byte, o.sendBuffer),
		done:         make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	c.logger.Info("Connected to chat endpoint")
	return c, nil
}

// Emit queues an event for the write pump. It never waits for the network.
func (c *Conn) Emit(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn("Send buffer full, dropping frame", "event", event)
		return ErrSendBufferFull
	}
}

// Subscribe registers handler for inbound frames of event.
func (c *Conn) Subscribe(event string, handler Handler) (Subscription, error) {
	return c.subs.add(event, handler)
}

// Unsubscribe removes a subscription. Removing an unknown one is a no-op.
func (c *Conn) Unsubscribe(sub Subscription) {
	c.subs.remove(sub)
}

// Subscriptions returns the number of active subscriptions.
func (c *Conn) Subscriptions() int {
	return c.subs.count()
}

// Close stops accepting frames. Queued frames are flushed before the
// websocket closes; Done is closed once the read pump exits.
func (c *Conn) Close() error {
	c.shutdown()
	return nil
}

// Done is closed once the connection has fully stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) shutdown() {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		c.subs.close()
	})
}

// readPump publishes every inbound frame on the bus. It is the only reader of
// the connection, so frames reach subscribers in arrival order.
func (c *Conn) readPump() {
	defer func() {
		c.shutdown()
		if err := c.bus.Close(); err != nil {
			c.logger.Error("Failed to close inbound bus", "error", err)
		}
		close(c.done)
	}()

	for {
		_, frame, err := c.ws.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				c.logger.Info("Connection closed normally")
			case errors.Is(err, io.EOF):
				c.logger.Info("Connection closed by peer")
			default:
				c.logger.Error("Read error", "error", err)
			}
			return
		}

		env, err := Decode(frame)
		if err != nil {
			c.logger.Warn("Dropping malformed frame", "error", err)
			continue
		}

		if err := c.subs.deliver(context.Background(), env.Event, env.Data); err != nil {
			c.logger.Error("Failed to dispatch inbound frame", "event", env.Event, "error", err)
		}
	}
}

// writePump drains the send queue onto the connection, then closes it.
func (c *Conn) writePump() {
	for frame := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
		err := c.ws.Write(ctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			c.logger.Error("Write error", "error", err)
			c.ws.CloseNow()
			return
		}
	}

	if err := c.ws.Close(websocket.StatusNormalClosure, "client closing"); err != nil {
		c.logger.Debug("Close handshake did not complete", "error", err)
	}
}
