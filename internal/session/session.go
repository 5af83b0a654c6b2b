// Package session holds one client's participation in the chat room: who the
// user is, whether they joined, the messages received so far and the draft
// being typed. All mutation goes through Join, SetDraft, Send and the inbound
// message dispatcher.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nfrund/chatline/internal/debounce"
	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/transport"
)

// DefaultScrollDelay lets the view settle before scrolling to the newest message.
const DefaultScrollDelay = 100 * time.Millisecond

// maxPending bounds how many optimistic sends wait for their echo.
const maxPending = 64

// Transport is the part of a realtime handle the session uses.
type Transport interface {
	Emit(ctx context.Context, event string, payload any) error
	Subscribe(event string, handler transport.Handler) (transport.Subscription, error)
	Unsubscribe(sub transport.Subscription)
}

// Session is the client-side chat state machine.
type Session struct {
	transport Transport
	echoMode  EchoMode
	now       func() time.Time
	logger    *slog.Logger

	scrollDelay time.Duration
	scroller    func()

	mu       sync.Mutex
	scroll   *debounce.Debouncer
	state    State
	username string
	log      []domain.ChatMessage
	draft    string
	pending  []domain.ChatMessage
	sub      *transport.Subscription
	// mounting is set while Mount waits on the transport; unmounted asks
	// that in-flight Mount to undo its subscription.
	mounting  bool
	unmounted bool

	listenersMu sync.RWMutex
	listeners   []func(Snapshot)
}

// New creates an anonymous session bound to t. Call Mount before expecting
// inbound messages.
func New(t Transport, opts ...Option) *Session {
	o := options{
		echoMode:    EchoWait,
		scrollDelay: DefaultScrollDelay,
		scroller:    func() {},
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		transport:   t,
		echoMode:    o.echoMode,
		now:         o.now,
		logger:      o.logger.With("component", "session"),
		scrollDelay: o.scrollDelay,
		scroller:    o.scroller,
		state:       Anonymous,
	}
	s.scroll = debounce.New(s.scrollDelay, s.scroller)
	if o.onChange != nil {
		s.listeners = append(s.listeners, o.onChange)
	}
	return s
}

// OnChange registers fn to be called with a fresh snapshot after every
// state change. fn runs outside the session lock.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Mount subscribes the dispatcher to inbound messages. Mounting an already
// mounted session does nothing.
func (s *Session) Mount() error {
	s.mu.Lock()
	if s.sub != nil || s.mounting {
		s.mu.Unlock()
		return nil
	}
	s.mounting = true
	s.unmounted = false
	s.mu.Unlock()

	// The session lock is not held here: the dispatcher needs it to finish
	// deliveries the transport may be waiting on.
	sub, err := s.transport.Subscribe(transport.EventMessage, s.dispatch)

	s.mu.Lock()
	s.mounting = false
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("subscribe to %s: %w", transport.EventMessage, err)
	}
	if s.unmounted {
		s.unmounted = false
		s.mu.Unlock()
		s.transport.Unsubscribe(sub)
		return nil
	}
	s.sub = &sub
	s.mu.Unlock()

	s.logger.Debug("Dispatcher mounted", "subscription", sub.ID)
	return nil
}

// Unmount removes the dispatcher subscription and cancels a pending scroll.
// It is safe to call more than once.
func (s *Session) Unmount() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	if s.mounting {
		s.unmounted = true
	}
	if sub != nil {
		// A stopped debouncer ignores triggers, so the next mount gets a fresh one.
		s.scroll.Stop()
		s.scroll = debounce.New(s.scrollDelay, s.scroller)
	}
	s.mu.Unlock()

	if sub == nil {
		return
	}
	s.transport.Unsubscribe(*sub)
	s.logger.Debug("Dispatcher unmounted", "subscription", sub.ID)
}

// Mounted reports whether the dispatcher is subscribed.
func (s *Session) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// Join announces the user under the trimmed candidate name and moves the
// session to Joined. A blank name or a repeated join changes nothing.
func (s *Session) Join(ctx context.Context, candidate string) error {
	name := strings.TrimSpace(candidate)
	if name == "" {
		return domain.ErrEmptyUsername
	}

	s.mu.Lock()
	if s.state == Joined {
		s.mu.Unlock()
		return domain.ErrAlreadyJoined
	}

	if err := s.transport.Emit(ctx, transport.EventJoin, name); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("emit %s: %w", transport.EventJoin, err)
	}
	s.username = name
	s.state = Joined
	s.mu.Unlock()

	s.logger.Info("Joined chat", "username", name)
	s.notify()
	return nil
}

// SetDraft replaces the text being typed.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()

	s.notify()
}

// Send emits the current draft as a chat message and clears it. The draft is
// sent untrimmed. In EchoWait mode the message reaches the log only when the
// transport plays it back.
func (s *Session) Send(ctx context.Context) error {
	s.mu.Lock()

	if s.state != Joined {
		s.mu.Unlock()
		return domain.ErrNotJoined
	}
	if domain.Blank(s.draft) {
		s.mu.Unlock()
		return domain.ErrEmptyDraft
	}

	msg := domain.NewChatMessage(s.username, s.draft, s.now())
	if err := msg.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid outbound message: %w", err)
	}

	if err := s.transport.Emit(ctx, transport.EventMessage, msg); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("emit %s: %w", transport.EventMessage, err)
	}
	s.draft = ""

	optimistic := s.echoMode == EchoOptimistic
	if optimistic {
		s.log = append(s.log, msg)
		s.pending = append(s.pending, msg)
		if len(s.pending) > maxPending {
			// The oldest echoes are not coming; forget them.
			s.pending = s.pending[len(s.pending)-maxPending:]
		}
	}
	scroll := s.scroll
	s.mu.Unlock()

	if optimistic {
		scroll.Trigger()
	}
	s.notify()
	return nil
}

// dispatch is the inbound message handler. Payloads are trusted; frames that
// cannot be decoded at all are dropped.
func (s *Session) dispatch(ctx context.Context, data json.RawMessage) {
	var msg domain.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("Dropping undecodable chat message", "error", err)
		return
	}
	s.Receive(msg)
}

// Receive appends an inbound message to the log and schedules a scroll to
// the newest entry.
func (s *Session) Receive(msg domain.ChatMessage) {
	s.mu.Lock()
	if s.consumePending(msg) {
		s.mu.Unlock()
		return
	}
	s.log = append(s.log, msg)
	scroll := s.scroll
	s.mu.Unlock()

	scroll.Trigger()
	s.notify()
}

// consumePending drops the echo of an optimistically appended message. It
// must be called with mu held.
func (s *Session) consumePending(msg domain.ChatMessage) bool {
	for i, p := range s.pending {
		if p.SameAs(msg) {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// State returns the current membership state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Joined reports whether the session has joined the chat.
func (s *Session) Joined() bool {
	return s.State() == Joined
}

// Username returns the joined display name, or "" before joining.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Draft returns the text being typed.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Log returns a copy of the messages in arrival order.
func (s *Session) Log() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLog()
}

// Snapshot returns a consistent copy of the whole state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		State:    s.state,
		Username: s.username,
		Messages: s.copyLog(),
		Draft:    s.draft,
	}
}

func (s *Session) copyLog() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(s.log))
	copy(out, s.log)
	return out
}

func (s *Session) notify() {
	s.listenersMu.RLock()
	listeners := make([]func(Snapshot), len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()

	if len(listeners) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}
