package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// HistoryStore persists sessions.
//
// Append validates the turn, adds it at the end of the user's session and
// returns the updated session. Appends for one user are linearizable.
// Read returns an empty session for an unknown user.
type HistoryStore interface {
	Append(ctx context.Context, userID string, turn Turn) (Session, error)
	Read(ctx context.Context, userID string) (Session, error)
}

var errNoUser = errors.New("user id is required")

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// stamp fills a zero CreatedAt and keeps timestamps non-decreasing.
func stamp(t Turn, prev time.Time, now func() time.Time) Turn {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now()
	}
	t.CreatedAt = t.CreatedAt.UTC()
	if t.CreatedAt.Before(prev) {
		t.CreatedAt = prev
	}
	return t
}
