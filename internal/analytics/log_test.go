package analytics

import (
	"path/filepath"
	"testing"
	"time"
)

func entry(id string, success bool) Entry {
	return Entry{
		RunID:     id,
		Timestamp: time.Date(2025, 5, 3, 10, 30, 0, 0, time.UTC),
		Client:    "Acme",
		Date:      "2025-05-03",
		StepMillis: map[string]int64{
			"read":      3,
			"summarize": 2100,
			"email":     1800,
			"extract":   950,
			"ledger":    4,
			"persist":   2,
		},
		TotalMs: 4859,
		Success: success,
	}
}

func TestAppend_OneRowPerCall(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "analytics.csv"))

	if err := l.Append(entry("run-1", true)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	failed := entry("run-2", false)
	failed.Error = "step summarize: collaborator_unavailable: context deadline exceeded"
	if err := l.Append(failed); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].RunID != "run-1" || !entries[0].Success {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Success || entries[1].Error == "" {
		t.Errorf("failure entry = %+v, want success=false with error text", entries[1])
	}
}

func TestAppend_PreservesPriorRows(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "analytics.csv"))

	if err := l.Append(entry("run-1", true)); err != nil {
		t.Fatal(err)
	}
	first, err := l.ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	if err := l.Append(entry("run-2", true)); err != nil {
		t.Fatal(err)
	}
	both, err := l.ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	if len(both) != 2 {
		t.Fatalf("got %d entries, want 2", len(both))
	}
	if both[0].RunID != first[0].RunID || both[0].TotalMs != first[0].TotalMs {
		t.Errorf("prior row changed after append: %+v vs %+v", both[0], first[0])
	}
}

func TestRoundTripDurations(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "analytics.csv"))
	if err := l.Append(entry("run-1", true)); err != nil {
		t.Fatal(err)
	}

	entries, err := l.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	got := entries[0]
	if got.StepMillis["summarize"] != 2100 {
		t.Errorf("summarize ms = %d, want 2100", got.StepMillis["summarize"])
	}
	if got.TotalMs != 4859 {
		t.Errorf("total ms = %d, want 4859", got.TotalMs)
	}
	if !got.Timestamp.Equal(time.Date(2025, 5, 3, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", got.Timestamp)
	}
}

func TestReadAll_MissingFile(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "analytics.csv"))
	entries, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if entries != nil {
		t.Errorf("entries = %v, want nil", entries)
	}
}
