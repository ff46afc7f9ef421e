package db

import (
	"os"
	"path/filepath"
	"testing"

	"gorm.io/gorm/logger"
)

// testStore creates a Store with a temporary database for testing.
func testStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "retrace_db_test_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	cfg := Config{
		Path:     filepath.Join(tmpDir, "test.db"),
		MaxConns: 4,
		LogLevel: logger.Silent,
	}

	store, err := NewStore(cfg)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("NewStore failed: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func TestNewStore(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()

	if err := store.Ping(); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	// Verify WAL mode is enabled
	var journalMode string
	err := store.DB.Raw("PRAGMA journal_mode").Scan(&journalMode).Error
	if err != nil {
		t.Fatalf("query journal_mode failed: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected WAL mode, got %q", journalMode)
	}

	tables := []string{
		"events",
		"event_screenshots",
		"classify_queue",
	}
	for _, table := range tables {
		if !store.DB.Migrator().HasTable(table) {
			t.Errorf("table %q does not exist", table)
		}
	}
}

func TestMigrationIdempotency(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "retrace_db_idempotency_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := Config{
		Path:     filepath.Join(tmpDir, "test.db"),
		MaxConns: 4,
		LogLevel: logger.Silent,
	}

	store, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	store.Close()

	// Reopening the same database must re-run migrations without error.
	store2, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore on existing database failed: %v", err)
	}
	defer store2.Close()

	if !store2.DB.Migrator().HasTable("events") {
		t.Error("events table missing after reopen")
	}
}
