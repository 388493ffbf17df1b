package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestIndexesExist verifies that the runs table indexes are created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_runs_file", "idx_runs_created_at"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying index %s: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %s not found", idx)
		}
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)

	run := Run{
		ID:        "run-1",
		File:      "Acme_20250503.txt",
		Client:    "Acme",
		Date:      "2025-05-03",
		Status:    StatusCompleted,
		CreatedAt: time.Date(2025, 5, 3, 14, 30, 0, 0, time.UTC),
	}
	if err := s.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.File != run.File || got.Client != run.Client || got.Status != run.Status {
		t.Errorf("GetRun = %+v, want %+v", got, run)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, run.CreatedAt)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun err = %v, want ErrNotFound", err)
	}
}

func TestListRuns_NewestFirstWithLimit(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := s.SaveRun(Run{
			ID:        fmt.Sprintf("run-%d", i),
			File:      fmt.Sprintf("Acme_2025050%d.txt", i+1),
			Client:    "Acme",
			Date:      fmt.Sprintf("2025-05-0%d", i+1),
			Status:    StatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("SaveRun %d: %v", i, err)
		}
	}

	runs, err := s.ListRuns(3)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].ID != "run-4" {
		t.Errorf("newest run = %s, want run-4", runs[0].ID)
	}
	if runs[2].ID != "run-2" {
		t.Errorf("third run = %s, want run-2", runs[2].ID)
	}
}

func TestHasProcessed(t *testing.T) {
	s := openTestStore(t)

	if err := s.RecordRun("run-f", "Acme_20250503.txt", "Acme", "2025-05-03", StatusFailed, "model down"); err != nil {
		t.Fatal(err)
	}

	done, err := s.HasProcessed("Acme_20250503.txt")
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("failed run should not count as processed")
	}

	if err := s.RecordRun("run-c", "Acme_20250503.txt", "Acme", "2025-05-03", StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}

	done, err = s.HasProcessed("Acme_20250503.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("completed run should count as processed")
	}

	done, err = s.HasProcessed("Globex_20250101.txt")
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("unknown file reported as processed")
	}
}
