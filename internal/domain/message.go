package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// BotSender is the display name the backend uses for automated replies.
const BotSender = "Bot"

// ChatMessage is a single chat line as it travels over the wire.
type ChatMessage struct {
	Sender string    `json:"username" validate:"required"`
	Body   string    `json:"message" validate:"required"`
	SentAt time.Time `json:"timestamp" validate:"required"`
}

var validate = validator.New()

// NewChatMessage builds an outbound message. The body is kept untrimmed.
func NewChatMessage(sender, body string, sentAt time.Time) ChatMessage {
	return ChatMessage{Sender: sender, Body: body, SentAt: sentAt}
}

// Validate checks that the message carries everything a peer needs to display it.
func (m ChatMessage) Validate() error {
	return validate.Struct(m)
}

// FromBot reports whether the message was produced by the backend bot.
func (m ChatMessage) FromBot() bool {
	return m.Sender == BotSender
}

// SameAs reports whether two messages describe the same send, comparing the
// instant rather than the location of SentAt.
func (m ChatMessage) SameAs(other ChatMessage) bool {
	return m.Sender == other.Sender && m.Body == other.Body && m.SentAt.Equal(other.SentAt)
}

// Blank reports whether s is empty after trimming surrounding whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
