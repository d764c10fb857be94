package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matiasleandrokruk/hubrag/internal/infra/sqlite"
)

// storeFactories runs every behavioural test against both implementations.
func storeFactories(t *testing.T) map[string]func(t *testing.T) HistoryStore {
	t.Helper()
	return map[string]func(t *testing.T) HistoryStore{
		"memory": func(t *testing.T) HistoryStore { return NewMemoryStore() },
		"sqlite": func(t *testing.T) HistoryStore { return NewSQLiteStore(mustHistoryDB(t)) },
	}
}

func mustHistoryDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.NewDB(ctx, sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("NewDB error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := sqlite.MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp error = %v", err)
	}
	return db
}

func TestValidateTurn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		turn Turn
		ok   bool
	}{
		{"user", Turn{Role: RoleUser, Content: "hi"}, true},
		{"assistant", Turn{Role: RoleAssistant, Content: "hello"}, true},
		{"missing role", Turn{Content: "hi"}, false},
		{"system role", Turn{Role: "system", Content: "hi"}, false},
		{"missing content", Turn{Role: RoleUser}, false},
		{"whitespace content", Turn{Role: RoleUser, Content: " \n\t"}, false},
	}
	for _, tt := range tests {
		err := ValidateTurn(tt.turn)
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidTurn) {
			t.Errorf("%s: err = %v; want ErrInvalidTurn", tt.name, err)
		}
	}
}

func TestStore_AppendThenRead(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories(t) {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := newStore(t)

			turns := []Turn{
				{Role: RoleUser, Content: "What helps sleep?"},
				{Role: RoleAssistant, Content: "Morning light."},
				{Role: RoleUser, Content: "And caffeine?"},
			}
			for i, turn := range turns {
				before, err := s.Read(ctx, "u1")
				if err != nil {
					t.Fatalf("Read error = %v", err)
				}
				if _, err := s.Append(ctx, "u1", turn); err != nil {
					t.Fatalf("Append error = %v", err)
				}
				after, err := s.Read(ctx, "u1")
				if err != nil {
					t.Fatalf("Read error = %v", err)
				}
				if after.Len() != before.Len()+1 {
					t.Fatalf("step %d: len %d -> %d; want +1", i, before.Len(), after.Len())
				}
				last, _ := after.Last()
				if last.Role != turn.Role || last.Content != turn.Content {
					t.Fatalf("step %d: last = %+v; want %+v", i, last, turn)
				}
			}
		})
	}
}

func TestStore_AppendReturnsUpdatedSession(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories(t) {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t)
			ctx := context.Background()

			s.Append(ctx, "u1", Turn{Role: RoleUser, Content: "one"}) //nolint:errcheck
			got, err := s.Append(ctx, "u1", Turn{Role: RoleAssistant, Content: "two"})
			if err != nil {
				t.Fatalf("Append error = %v", err)
			}
			if got.UserID != "u1" || got.Len() != 2 || got.Turns[1].Content != "two" {
				t.Errorf("session = %+v", got)
			}
		})
	}
}

func TestStore_InvalidTurnLeavesSessionUnchanged(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories(t) {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t)
			ctx := context.Background()
			if _, err := s.Append(ctx, "u1", Turn{Role: RoleUser, Content: "hi"}); err != nil {
				t.Fatalf("Append error = %v", err)
			}

			for _, bad := range []Turn{
				{Content: "no role"},
				{Role: RoleUser},
				{Role: "tool", Content: "x"},
			} {
				if _, err := s.Append(ctx, "u1", bad); !errors.Is(err, ErrInvalidTurn) {
					t.Errorf("Append(%+v) err = %v; want ErrInvalidTurn", bad, err)
				}
			}
			if _, err := s.Append(ctx, "", Turn{Role: RoleUser, Content: "hi"}); !errors.Is(err, ErrInvalidTurn) {
				t.Errorf("Append with empty user err = %v; want ErrInvalidTurn", err)
			}

			got, _ := s.Read(ctx, "u1")
			if got.Len() != 1 {
				t.Errorf("len = %d; want 1 after rejected appends", got.Len())
			}
		})
	}
}

func TestStore_ReadUnknownUserIsEmpty(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories(t) {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := newStore(t).Read(context.Background(), "nobody")
			if err != nil {
				t.Fatalf("Read error = %v", err)
			}
			if got.Len() != 0 || got.UserID != "nobody" {
				t.Errorf("session = %+v", got)
			}
		})
	}
}

func TestStore_ConcurrentAppendsLoseNothing(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories(t) {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t)
			ctx := context.Background()

			const writers = 20
			var wg sync.WaitGroup
			errs := make(chan error, writers*2)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					for _, user := range []string{"u1", "u2"} {
						if _, err := s.Append(ctx, user, Turn{Role: RoleUser, Content: fmt.Sprintf("m%d", i)}); err != nil {
							errs <- err
						}
					}
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("concurrent Append error = %v", err)
			}

			for _, user := range []string{"u1", "u2"} {
				got, _ := s.Read(ctx, user)
				if got.Len() != writers {
					t.Errorf("%s: len = %d; want %d", user, got.Len(), writers)
				}
			}
		})
	}
}

func TestStore_CreatedAtNonDecreasing(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories(t) {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t)
			ctx := context.Background()
			later := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			earlier := later.Add(-time.Hour)

			s.Append(ctx, "u1", Turn{Role: RoleUser, Content: "first", CreatedAt: later})         //nolint:errcheck
			s.Append(ctx, "u1", Turn{Role: RoleAssistant, Content: "second", CreatedAt: earlier}) //nolint:errcheck

			got, _ := s.Read(ctx, "u1")
			if got.Len() != 2 {
				t.Fatalf("len = %d", got.Len())
			}
			if got.Turns[1].CreatedAt.Before(got.Turns[0].CreatedAt) {
				t.Errorf("created_at decreased: %v then %v", got.Turns[0].CreatedAt, got.Turns[1].CreatedAt)
			}
			if !got.Turns[0].CreatedAt.Equal(later) {
				t.Errorf("first created_at = %v; want %v", got.Turns[0].CreatedAt, later)
			}
		})
	}
}

func TestSQLiteStore_ReadOnlyDB_PermissionDenied(t *testing.T) {
	t.Parallel()

	db := mustHistoryDB(t)
	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		t.Fatalf("PRAGMA query_only: %v", err)
	}

	_, err := NewSQLiteStore(db).Append(context.Background(), "u1", Turn{Role: RoleUser, Content: "hi"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v; want ErrPermissionDenied", err)
	}
}

func TestSQLiteStore_ClosedDB_Unavailable(t *testing.T) {
	t.Parallel()

	db := mustHistoryDB(t)
	s := NewSQLiteStore(db)
	db.Close()

	if _, err := s.Append(context.Background(), "u1", Turn{Role: RoleUser, Content: "hi"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Append err = %v; want ErrUnavailable", err)
	}
	if _, err := s.Read(context.Background(), "u1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Read err = %v; want ErrUnavailable", err)
	}
}

func TestSQLiteStore_ReadSkipsInvalidRows(t *testing.T) {
	t.Parallel()

	db := mustHistoryDB(t)
	s := NewSQLiteStore(db)
	ctx := context.Background()
	s.Append(ctx, "u1", Turn{Role: RoleUser, Content: "kept"}) //nolint:errcheck

	// Legacy rows written before the CHECK constraints existed.
	if _, err := db.Exec("PRAGMA ignore_check_constraints = ON"); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if _, err := db.Exec(
		"INSERT INTO chat_turn (user_id, seq, role, content, created_at) VALUES ('u1', 2, 'system', 'x', '2026-01-01T00:00:00.000000000Z')",
	); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	got, err := s.Read(ctx, "u1")
	if err != nil {
		t.Fatalf("Read error = %v", err)
	}
	if got.Len() != 1 || got.Turns[0].Content != "kept" {
		t.Errorf("session = %+v; want only the valid turn", got)
	}
}

func TestKeyedMutex_ReleasesKeys(t *testing.T) {
	t.Parallel()

	k := newKeyedMutex()
	unlock := k.Lock("u1")
	unlock()
	if len(k.locks) != 0 {
		t.Errorf("locks = %d; want 0 after unlock", len(k.locks))
	}
}

func TestSession_Document(t *testing.T) {
	t.Parallel()

	empty := Session{UserID: "u"}.Document()
	if empty.Messages == nil {
		t.Error("Document of empty session must have non-nil messages")
	}

	doc := Session{Turns: []Turn{{Role: RoleUser, Content: "q"}, {Role: RoleAssistant, Content: "a"}}}.Document()
	if len(doc.Messages) != 2 || doc.Messages[1] != (Message{Role: "assistant", Content: "a"}) {
		t.Errorf("Document = %+v", doc)
	}
}
