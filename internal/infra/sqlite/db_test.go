package sqlite_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/matiasleandrokruk/hubrag/internal/infra/sqlite"
)

func TestNewDB_Pragmas(t *testing.T) {
	t.Parallel()
	db := mustOpenDB(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
		{"synchronous", "1"}, // NORMAL
	}
	for _, tt := range tests {
		var got string
		if err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", tt.pragma, err)
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q; want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestNewDB_CreatesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hubrag.db")
	db, err := sqlite.NewDB(context.Background(), path)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if db.Stats().MaxOpenConnections <= 1 {
		t.Errorf("file database should use a pool, MaxOpenConnections = %d", db.Stats().MaxOpenConnections)
	}
}

func TestNewDB_MissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "hubrag.db")
	if db, err := sqlite.NewDB(context.Background(), path); err == nil {
		db.Close()
		t.Fatalf("NewDB(%q) succeeded; want error", path)
	}
}

// An in-memory database only exists per connection, so the pool must be pinned
// or a migrated schema would vanish on the next connection.
func TestNewDB_MemoryKeepsSchemaAcrossQueries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("MaxOpenConnections = %d; want 1", got)
	}
	if _, err := sqlite.MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var n int
			if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_turn`).Scan(&n); err != nil {
				t.Errorf("query chat_turn: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestNewDB_PingHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if db, err := sqlite.NewDB(ctx, tempDBPath(t)); err == nil {
		db.Close()
		t.Fatal("NewDB with a cancelled context succeeded; want error")
	}
}

func mustOpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(context.Background(), tempDBPath(t))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}
