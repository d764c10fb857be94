package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed-width so timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// appendTurnSQL picks the next sequence number and clamps created_at to the
// latest stored one in a single statement, so the write lock is taken before
// anything is read.
const appendTurnSQL = `
INSERT INTO chat_turn (user_id, seq, role, content, created_at)
SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, MAX(?, COALESCE(MAX(created_at), ''))
FROM chat_turn
WHERE user_id = ?`

const readTurnsSQL = `
SELECT role, content, created_at
FROM chat_turn
WHERE user_id = ?
ORDER BY seq`

// SQLiteStore is a HistoryStore over the chat_turn event-log table.
type SQLiteStore struct {
	db    *sql.DB
	locks *keyedMutex
	now   func() time.Time
}

// NewSQLiteStore creates a store over a migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, locks: newKeyedMutex(), now: time.Now}
}

// Append inserts the turn and reads the session back in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, userID string, turn Turn) (Session, error) {
	if userID == "" {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidTurn, errNoUser)
	}
	if err := ValidateTurn(turn); err != nil {
		return Session{}, err
	}
	turn = stamp(turn, time.Time{}, s.now)

	unlock := s.locks.Lock(userID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, mapStoreErr("append begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, appendTurnSQL,
		userID, string(turn.Role), turn.Content, turn.CreatedAt.Format(timeLayout), userID,
	); err != nil {
		return Session{}, mapStoreErr("append insert", err)
	}

	session, err := readSession(ctx, tx, userID)
	if err != nil {
		return Session{}, mapStoreErr("append read back", err)
	}
	if err := tx.Commit(); err != nil {
		return Session{}, mapStoreErr("append commit", err)
	}
	return session, nil
}

// Read returns the user's session; rows that fail validation are skipped.
func (s *SQLiteStore) Read(ctx context.Context, userID string) (Session, error) {
	session, err := readSession(ctx, s.db, userID)
	if err != nil {
		return Session{}, mapStoreErr("read", err)
	}
	return session, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readSession(ctx context.Context, q querier, userID string) (Session, error) {
	rows, err := q.QueryContext(ctx, readTurnsSQL, userID)
	if err != nil {
		return Session{}, err
	}
	defer rows.Close()

	session := Session{UserID: userID, Turns: []Turn{}}
	for rows.Next() {
		var role, content, created string
		if err := rows.Scan(&role, &content, &created); err != nil {
			return Session{}, err
		}
		t := Turn{Role: Role(role), Content: content}
		if ValidateTurn(t) != nil {
			continue
		}
		t.CreatedAt, _ = time.Parse(timeLayout, created)
		session.Turns = append(session.Turns, t)
	}
	return session, rows.Err()
}

// mapStoreErr sorts driver errors into ErrPermissionDenied and ErrUnavailable.
func mapStoreErr(op string, err error) error {
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_READONLY, sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH:
			return fmt.Errorf("chat: %s: %w: %w", op, ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("chat: %s: %w: %w", op, ErrUnavailable, err)
}
