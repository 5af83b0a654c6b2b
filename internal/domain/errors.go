package domain

import "errors"

// Sentinel errors for the chat session. Validation failures leave the session
// untouched; callers decide whether to surface them.
var (
	ErrEmptyUsername = errors.New("username must not be blank")
	ErrEmptyDraft    = errors.New("message must not be blank")
	ErrNotJoined     = errors.New("session has not joined the chat")
	ErrAlreadyJoined = errors.New("session already joined the chat")
)
