package chat

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]Turn
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Turn), now: time.Now}
}

func (m *MemoryStore) Append(ctx context.Context, userID string, turn Turn) (Session, error) {
	if userID == "" {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidTurn, errNoUser)
	}
	if err := ValidateTurn(turn); err != nil {
		return Session{}, err
	}
	if err := ctx.Err(); err != nil {
		return Session{}, fmt.Errorf("chat: append: %w: %w", ErrUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.sessions[userID]
	var prev time.Time
	if n := len(turns); n > 0 {
		prev = turns[n-1].CreatedAt
	}
	m.sessions[userID] = append(turns, stamp(turn, prev, m.now))
	return m.snapshot(userID), nil
}

func (m *MemoryStore) Read(ctx context.Context, userID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, fmt.Errorf("chat: read: %w: %w", ErrUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(userID), nil
}

// snapshot copies the turns so callers never share the backing array.
// Caller holds m.mu.
func (m *MemoryStore) snapshot(userID string) Session {
	turns := m.sessions[userID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return Session{UserID: userID, Turns: out}
}
