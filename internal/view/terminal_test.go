package view

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nfrund/chatline/internal/domain"
	"github.com/nfrund/chatline/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noon = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func plainTerminal(buf *bytes.Buffer, opts ...Option) *Terminal {
	opts = append([]Option{WithColor(false), WithLocation(time.UTC)}, opts...)
	return NewTerminal(buf, opts...)
}

func messages(n int) []domain.ChatMessage {
	out := make([]domain.ChatMessage, n)
	for i := range out {
		out[i] = domain.NewChatMessage("Alice", fmt.Sprintf("m%d", i), noon.Add(time.Duration(i)*time.Second))
	}
	return out
}

func TestVisible(t *testing.T) {
	msgs := messages(5)

	assert.Equal(t, msgs, Visible(msgs, 10))
	assert.Equal(t, msgs, Visible(msgs, 0))

	tail := Visible(msgs, 2)
	require.Len(t, tail, 2)
	assert.Equal(t, "m3", tail[0].Body)
	assert.Equal(t, "m4", tail[1].Body, "newest message is last")
}

func TestFormatMessage(t *testing.T) {
	var buf bytes.Buffer
	term := plainTerminal(&buf)

	assert.Equal(t, "12:00:00  » hi", term.FormatMessage(domain.NewChatMessage("Bob", "hi", noon), "Bob"))
	assert.Equal(t, "12:00:00  Alice: hi", term.FormatMessage(domain.NewChatMessage("Alice", "hi", noon), "Bob"))
	assert.Equal(t, "12:00:00  Bot: beep", term.FormatMessage(domain.NewChatMessage(domain.BotSender, "beep", noon), "Bob"))
}

func TestTerminal_StreamModePrintsOnlyNewMessages(t *testing.T) {
	var buf bytes.Buffer
	term := plainTerminal(&buf, WithTitle("Room"))

	msgs := messages(3)
	term.Render(session.Snapshot{State: session.Joined, Username: "Bob", Messages: msgs[:1]})
	term.Render(session.Snapshot{State: session.Joined, Username: "Bob", Messages: msgs[:1], Draft: "typing"})
	term.Render(session.Snapshot{State: session.Joined, Username: "Bob", Messages: msgs})

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "● Online | Room"))
	assert.Equal(t, 1, strings.Count(out, "m0"))
	assert.Less(t, strings.Index(out, "m1"), strings.Index(out, "m2"), "chronological order")
	assert.NotContains(t, out, clearScreen)
}

func TestTerminal_RedrawModeShowsViewport(t *testing.T) {
	var buf bytes.Buffer
	term := plainTerminal(&buf, WithRedraw(true), WithViewport(2))

	term.Render(session.Snapshot{State: session.Joined, Username: "Bob", Messages: messages(4), Draft: "draft"})

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, clearScreen))
	assert.NotContains(t, out, "m1")
	assert.Contains(t, out, "m2")
	assert.Less(t, strings.Index(out, "m2"), strings.Index(out, "m3"))
	assert.True(t, strings.HasSuffix(out, "> draft"))

	buf.Reset()
	term.ScrollToLatest()
	assert.Contains(t, buf.String(), "m3")
}

func TestTerminal_ScrollToLatestIsNoOpWhenStreaming(t *testing.T) {
	var buf bytes.Buffer
	term := plainTerminal(&buf)

	term.Render(session.Snapshot{State: session.Joined, Username: "Bob", Messages: messages(1)})
	buf.Reset()

	term.ScrollToLatest()
	assert.Empty(t, buf.String())
}

func TestTerminal_HintsAreShownOnce(t *testing.T) {
	var buf bytes.Buffer
	term := plainTerminal(&buf)

	term.Flash().FromError(domain.ErrEmptyUsername)
	term.Render(session.Snapshot{State: session.Anonymous})
	assert.Contains(t, buf.String(), "! Please enter a name to start chatting.")

	buf.Reset()
	term.Render(session.Snapshot{State: session.Anonymous})
	assert.Empty(t, buf.String())
}

func TestTerminal_JoinPrompt(t *testing.T) {
	var buf bytes.Buffer
	term := plainTerminal(&buf)

	assert.Equal(t, "Join Chat\nEnter your name: ", term.JoinPrompt())
}

func TestFlash_FromError(t *testing.T) {
	f := NewFlash()
	f.FromError(nil)
	f.FromError(domain.ErrEmptyDraft)
	f.FromError(fmt.Errorf("emit message: %w", domain.ErrNotJoined))
	f.FromError(domain.ErrAlreadyJoined)
	f.FromError(errors.New("transport closed"))

	hints := f.Drain()
	require.Len(t, hints, 4)
	assert.Equal(t, LevelInfo, hints[0].Level)
	assert.Equal(t, "Join the chat before sending messages.", hints[1].Text)
	assert.Equal(t, LevelInfo, hints[2].Level)
	assert.Equal(t, Hint{Level: LevelError, Text: "transport closed"}, hints[3])
	assert.Empty(t, f.Drain())
}
