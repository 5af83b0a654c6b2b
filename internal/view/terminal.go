// Package view renders a chat session on a terminal: a join form before the
// user picks a name, then the chat surface with the newest message at the bottom.
package view

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/samber/lo"

	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/session"
)

const (
	DefaultTitle    = "Thrifty AI Chat"
	DefaultViewport = 20

	clearScreen = "\033[H\033[2J"
	timeLayout  = "15:04:05"
)

// Terminal draws session snapshots onto a writer.
//
// With redraw enabled every render clears the screen and paints the header,
// the newest messages and the input line. Without it the terminal is treated
// as a plain stream and only messages not printed yet are written.
type Terminal struct {
	out      io.Writer
	title    string
	viewport int
	colored  bool
	redraw   bool
	loc      *time.Location

	mu        sync.Mutex
	last      session.Snapshot
	printed   int
	headerOut bool
	flash     *Flash
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithTitle sets the room title shown in the header.
func WithTitle(title string) Option {
	return func(t *Terminal) {
		if title != "" {
			t.title = title
		}
	}
}

// WithViewport sets how many messages fit on screen in redraw mode.
func WithViewport(n int) Option {
	return func(t *Terminal) {
		if n > 0 {
			t.viewport = n
		}
	}
}

// WithColor toggles ANSI colors.
func WithColor(enabled bool) Option {
	return func(t *Terminal) {
		t.colored = enabled
	}
}

// WithRedraw toggles full-screen redraws.
func WithRedraw(enabled bool) Option {
	return func(t *Terminal) {
		t.redraw = enabled
	}
}

// WithLocation sets the zone timestamps are shown in.
func WithLocation(loc *time.Location) Option {
	return func(t *Terminal) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// NewTerminal creates a renderer writing to out.
func NewTerminal(out io.Writer, opts ...Option) *Terminal {
	t := &Terminal{
		out:      out,
		title:    DefaultTitle,
		viewport: DefaultViewport,
		colored:  color.SupportColor(),
		loc:      time.Local,
		flash:    NewFlash(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Flash returns the hint queue shown on the next render.
func (t *Terminal) Flash() *Flash {
	return t.flash
}

// Render paints snap. It is safe to call from any goroutine.
func (t *Terminal) Render(snap session.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = snap
	t.paint()
}

// ScrollToLatest brings the newest message into view.
func (t *Terminal) ScrollToLatest() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.redraw {
		t.paint()
	}
}

// paint must be called with mu held.
func (t *Terminal) paint() {
	snap := t.last
	var b strings.Builder

	if snap.State != session.Joined {
		if t.redraw {
			b.WriteString(clearScreen)
		}
		t.writeHints(&b)
		io.WriteString(t.out, b.String())
		return
	}

	if t.redraw {
		b.WriteString(clearScreen)
		b.WriteString(t.header())
		for _, line := range t.lines(Visible(snap.Messages, t.viewport), snap.Username) {
			b.WriteString(line + "\n")
		}
		t.writeHints(&b)
		b.WriteString("> " + snap.Draft)
		io.WriteString(t.out, b.String())
		return
	}

	if !t.headerOut {
		b.WriteString(t.header())
		t.headerOut = true
	}
	if t.printed < len(snap.Messages) {
		for _, line := range t.lines(snap.Messages[t.printed:], snap.Username) {
			b.WriteString(line + "\n")
		}
		t.printed = len(snap.Messages)
	}
	t.writeHints(&b)
	io.WriteString(t.out, b.String())
}

func (t *Terminal) writeHints(b *strings.Builder) {
	for _, hint := range t.flash.Drain() {
		b.WriteString(t.paintHint(hint) + "\n")
	}
}

func (t *Terminal) header() string {
	line := "● Online | " + t.title
	if t.colored {
		line = color.New(color.BgGreen, color.FgWhite, color.OpBold).Render(line)
	}
	return line + "\n"
}

func (t *Terminal) lines(msgs []domain.ChatMessage, self string) []string {
	return lo.Map(msgs, func(m domain.ChatMessage, _ int) string {
		return t.FormatMessage(m, self)
	})
}

// FormatMessage renders one message line. The user's own messages carry no
// sender label; bot replies are muted.
func (t *Terminal) FormatMessage(msg domain.ChatMessage, self string) string {
	stamp := msg.SentAt.In(t.loc).Format(timeLayout)

	switch {
	case msg.Sender == self:
		line := fmt.Sprintf("%s  » %s", stamp, msg.Body)
		if t.colored {
			return color.FgGreen.Render(line)
		}
		return line
	case msg.FromBot():
		line := fmt.Sprintf("%s  %s: %s", stamp, msg.Sender, msg.Body)
		if t.colored {
			return color.FgGray.Render(line)
		}
		return line
	default:
		label := msg.Sender + ":"
		if t.colored {
			label = color.OpBold.Render(label)
		}
		return fmt.Sprintf("%s  %s %s", stamp, label, msg.Body)
	}
}

func (t *Terminal) paintHint(h Hint) string {
	text := "! " + h.Text
	if !t.colored {
		return text
	}
	if h.Level == LevelError {
		return color.FgRed.Render(text)
	}
	return color.FgYellow.Render(text)
}

// JoinPrompt is the join form shown before the user has a name.
func (t *Terminal) JoinPrompt() string {
	title := "Join Chat"
	if t.colored {
		title = color.OpBold.Render(title)
	}
	return title + "\nEnter your name: "
}

// Visible returns the newest n messages, oldest first, so the latest one ends
// up at the bottom of the screen.
func Visible(msgs []domain.ChatMessage, n int) []domain.ChatMessage {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return lo.Slice(msgs, len(msgs)-n, len(msgs))
}
