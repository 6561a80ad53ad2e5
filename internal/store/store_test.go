package store

import (
	"context"
	"path/filepath"
	"testing"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen_AppliesPragmas(t *testing.T) {
	st := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := st.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestOpen_CreatesTables(t *testing.T) {
	st := createTestStore(t)

	for _, table := range []string{"cart_slots", "dispatch_log"} {
		var name string
		err := st.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	sess, err := first.OpenSession(context.Background(), "web")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	if err := sess.SetCartID(context.Background(), "cart_1"); err != nil {
		t.Fatalf("SetCartID() error = %v", err)
	}
	first.Close()

	second, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer second.Close()

	sess, err = second.OpenSession(context.Background(), "web")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	got, err := sess.CartID(context.Background())
	if err != nil {
		t.Fatalf("CartID() error = %v", err)
	}
	if got != "cart_1" {
		t.Errorf("CartID() = %q, want %q", got, "cart_1")
	}
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	st := createTestStore(t)

	version, err := st.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("SchemaVersion() = %d, want %d", version, currentSchemaVersion)
	}

	var idx string
	err = st.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_dispatch_log_cart'",
	).Scan(&idx)
	if err != nil {
		t.Errorf("migration index not created: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	if err == nil {
		t.Fatal("Open() with missing directory should fail")
	}
}

func TestClose_Nil(t *testing.T) {
	var st Store
	if err := st.Close(); err != nil {
		t.Errorf("Close() on empty store = %v", err)
	}
}
