package history_test

import (
	"path/filepath"
	"testing"
	"time"

	"stampede/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSaveAndList(t *testing.T) {
	s := openStore(t)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []history.Entry{
		{
			RunID: "run-b", Scenario: "stress", Target: "http://localhost:8080",
			StartTime: base.Add(time.Hour), EndTime: base.Add(70 * time.Minute),
			Requests: 50000, ErrorRate: 0.02, Throughput: 83.3, P95: 700 * time.Millisecond, Breaches: 2,
		},
		{
			RunID: "run-a", Scenario: "baseline", Target: "http://localhost:8080",
			StartTime: base, EndTime: base.Add(5 * time.Minute),
			Requests: 1200, ErrorRate: 0.001, Throughput: 4.0, P95: 120 * time.Millisecond,
		},
	}
	for _, e := range entries {
		if err := s.Save(e); err != nil {
			t.Fatalf("Save(%s) failed: %v", e.RunID, err)
		}
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}

	// Oldest first, regardless of insertion order.
	if got[0].RunID != "run-a" || got[1].RunID != "run-b" {
		t.Errorf("order = %s, %s; want run-a, run-b", got[0].RunID, got[1].RunID)
	}

	if got[1].Scenario != "stress" || got[1].Breaches != 2 || got[1].P95 != 700*time.Millisecond {
		t.Errorf("entry fields lost: %+v", got[1])
	}
	if !got[0].StartTime.Equal(base) {
		t.Errorf("StartTime = %v, want %v", got[0].StartTime, base)
	}
}

func TestStoreEmptyList(t *testing.T) {
	s := openStore(t)

	got, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d entries from fresh store", len(got))
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := history.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	e := history.Entry{RunID: "run-1", Scenario: "normal", StartTime: time.Now().UTC()}
	if err := s.Save(e); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = history.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].RunID != "run-1" {
		t.Errorf("entries after reopen = %+v", got)
	}
}
