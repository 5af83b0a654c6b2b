package view

import (
	"errors"
	"sync"

	"github.com/nfrund/chatline/internal/domain"
)

// Level classifies a hint.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Hint is a one-shot notice shown on the next render.
type Hint struct {
	Level Level
	Text  string
}

// Flash queues hints until a render drains them.
type Flash struct {
	mu    sync.Mutex
	hints []Hint
}

// NewFlash creates an empty queue.
func NewFlash() *Flash {
	return &Flash{}
}

// Info queues an informational hint.
func (f *Flash) Info(text string) {
	f.add(Hint{Level: LevelInfo, Text: text})
}

// Error queues an error hint.
func (f *Flash) Error(text string) {
	f.add(Hint{Level: LevelError, Text: text})
}

// FromError queues a hint describing err. Validation failures get a friendly
// text; anything else is reported as an error.
func (f *Flash) FromError(err error) {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrEmptyUsername):
		f.Info("Please enter a name to start chatting.")
	case errors.Is(err, domain.ErrEmptyDraft):
		f.Info("Type a message before sending.")
	case errors.Is(err, domain.ErrNotJoined):
		f.Info("Join the chat before sending messages.")
	case errors.Is(err, domain.ErrAlreadyJoined):
		f.Info("You already joined the chat.")
	default:
		f.Error(err.Error())
	}
}

// Drain returns and clears the queued hints.
func (f *Flash) Drain() []Hint {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.hints
	f.hints = nil
	return out
}

func (f *Flash) add(h Hint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hints = append(f.hints, h)
}
