package db

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
)

// NewTestDB creates a fresh file-backed SQLite database with the schema applied.
// A file is used instead of :memory: so every pooled connection sees the same data.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}
