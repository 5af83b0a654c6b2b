package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nfrund/chatline/internal/domain"
)

// State is the membership state of a session.
type State int

const (
	// Anonymous is the initial state: no name has been announced yet.
	Anonymous State = iota
	// Joined is terminal; there is no leave.
	Joined
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Joined:
		return "joined"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EchoMode decides how the sender's own messages reach the log.
type EchoMode string

const (
	// EchoWait relies on the transport playing sent messages back.
	EchoWait EchoMode = "wait"
	// EchoOptimistic appends sent messages immediately and swallows their echo.
	EchoOptimistic EchoMode = "optimistic"
)

// ParseEchoMode converts a configuration value into an EchoMode.
func ParseEchoMode(s string) (EchoMode, error) {
	switch EchoMode(s) {
	case EchoWait, EchoOptimistic:
		return EchoMode(s), nil
	default:
		return "", fmt.Errorf("unknown echo mode %q", s)
	}
}

// Snapshot is an immutable copy of the session state handed to renderers.
type Snapshot struct {
	State    State
	Username string
	Messages []domain.ChatMessage
	Draft    string
}

type options struct {
	echoMode    EchoMode
	scrollDelay time.Duration
	scroller    func()
	onChange    func(Snapshot)
	now         func() time.Time
	logger      *slog.Logger
}

// Option is a function that configures a Session.
type Option func(*options)

// WithEchoMode selects how the sender's own messages reach the log.
func WithEchoMode(m EchoMode) Option {
	return func(o *options) {
		o.echoMode = m
	}
}

// WithScroller sets the scroll-to-latest side effect and its settle delay.
func WithScroller(delay time.Duration, fn func()) Option {
	return func(o *options) {
		o.scrollDelay = delay
		if fn != nil {
			o.scroller = fn
		}
	}
}

// WithOnChange registers a render callback at construction time.
func WithOnChange(fn func(Snapshot)) Option {
	return func(o *options) {
		o.onChange = fn
	}
}

// WithClock overrides the time source used to stamp outbound messages.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
