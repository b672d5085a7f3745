package db

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	tables := []string{
		"settings", "manuals", "answer_logs",
		"monitored_posts", "install_settings", "notifications",
	}

	for _, table := range tables {
		var count int
		err := d.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "csbot.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if d.Path() != path {
		t.Errorf("Path() = %q, want %q", d.Path(), path)
	}
	d.Close()

	// Reopening an existing database must not re-run the initial migration.
	d, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	d.Close()
}

func TestOnePendingAnswerPerPostAndMode(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	now := time.Now().UTC()
	insert := func(postID, mode, status string) error {
		_, err := d.Exec(`INSERT INTO answer_logs (post_id, board_id, answer_mode, status, created_at, updated_at)
			VALUES (?, '1', ?, ?, ?, ?)`, postID, mode, status, now, now)
		return err
	}

	if err := insert("10", "auto", "pending"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err = insert("10", "auto", "pending")
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if err := insert("10", "semi-auto", "pending"); err != nil {
		t.Errorf("other mode should be allowed: %v", err)
	}
	if err := insert("10", "auto", "posted"); err != nil {
		t.Errorf("terminal rows are not constrained: %v", err)
	}
}

func TestMonitoredPostUnique(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	now := time.Now().UTC()
	q := `INSERT INTO monitored_posts (post_id, board_id, created_at, updated_at) VALUES ('7', '1', ?, ?)`
	if _, err := d.Exec(q, now, now); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := d.Exec(q, now, now); !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}

func TestIsUniqueViolationNil(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Error("nil error is not a violation")
	}
}
