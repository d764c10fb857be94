// Package chat stores per-user conversation history.
//
// A session is an append-only log of turns. Turns are validated at the store
// boundary, so nothing malformed is ever persisted, and appends for one user
// are serialized so no turn is lost to a concurrent write.
package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidTurn is returned for a turn with an unknown role or empty content.
	ErrInvalidTurn = errors.New("chat: invalid turn")
	// ErrUnavailable is returned when the history backend cannot be reached.
	ErrUnavailable = errors.New("chat: history unavailable")
	// ErrPermissionDenied is returned when the backend refuses the write.
	ErrPermissionDenied = errors.New("chat: permission denied")
)

// Role is who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in a conversation. Immutable once appended.
type Turn struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// ValidateTurn rejects unknown roles and blank content.
func ValidateTurn(t Turn) error {
	if !t.Role.Valid() {
		return fmt.Errorf("%w: role %q", ErrInvalidTurn, t.Role)
	}
	if strings.TrimSpace(t.Content) == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidTurn)
	}
	return nil
}

// Session is the ordered log of turns for one user.
type Session struct {
	UserID string
	Turns  []Turn
}

// Len returns the number of turns.
func (s Session) Len() int { return len(s.Turns) }

// Last returns the most recent turn and false if the session is empty.
func (s Session) Last() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

// Message is the wire shape of a turn: {"role": ..., "content": ...}.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Document is the wire shape of a session: {"messages": [...]}.
type Document struct {
	Messages []Message `json:"messages"`
}

// Messages renders turns in wire shape. Never returns nil.
func Messages(turns []Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, Message{Role: string(t.Role), Content: t.Content})
	}
	return out
}

// Document renders the session in wire shape.
func (s Session) Document() Document {
	return Document{Messages: Messages(s.Turns)}
}
