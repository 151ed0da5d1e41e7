package db

import (
	"strings"
	"testing"
)

func TestDSNCarriesPragmas(t *testing.T) {
	got := dsn("zaloga.sqlite3")
	if !strings.HasPrefix(got, "file:zaloga.sqlite3?") {
		t.Errorf("unexpected dsn prefix: %s", got)
	}
	for _, want := range []string{"foreign_keys%281%29", "busy_timeout%285000%29", "_txlock=immediate"} {
		if !strings.Contains(got, want) {
			t.Errorf("dsn %q missing %q", got, want)
		}
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	database := NewTestDB(t)

	var on int
	if err := database.Get(&on, `PRAGMA foreign_keys`); err != nil {
		t.Fatalf("reading pragma: %v", err)
	}
	if on != 1 {
		t.Errorf("expected foreign_keys=1, got %d", on)
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	database := NewTestDB(t)
	if err := EnsureSchema(database); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}
