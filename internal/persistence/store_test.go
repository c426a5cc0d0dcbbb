package persistence

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestFSRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	got, err := s.LoadFS()
	if err != nil {
		t.Fatalf("LoadFS() error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil before first save, got %s", got)
	}

	want := json.RawMessage(`{"a":1}`)
	if err := s.SaveFS(want); err != nil {
		t.Fatalf("SaveFS() error: %v", err)
	}
	got, err = s.LoadFS()
	if err != nil {
		t.Fatalf("LoadFS() error: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestSnapshotSingletonRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := s.SaveSnapshot(json.RawMessage(`"v1"`)); err != nil {
		t.Fatalf("SaveSnapshot() error: %v", err)
	}
	got, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot() error: %v", err)
	}
	if string(got) != `"v1"` {
		t.Errorf("expected \"v1\", got %s", got)
	}

	// Overwrite via upsert.
	if err := s.SaveSnapshot(json.RawMessage(`"v2"`)); err != nil {
		t.Fatalf("SaveSnapshot() error: %v", err)
	}
	got, _ = s.LoadSnapshot()
	if string(got) != `"v2"` {
		t.Errorf("expected \"v2\" after overwrite, got %s", got)
	}
}

func TestNamedSnapshotIsolation(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := s.SaveNamedSnapshot("a", json.RawMessage(`1`)); err != nil {
		t.Fatalf("SaveNamedSnapshot(a) error: %v", err)
	}
	if err := s.SaveNamedSnapshot("b", json.RawMessage(`2`)); err != nil {
		t.Fatalf("SaveNamedSnapshot(b) error: %v", err)
	}

	got, err := s.LoadNamedSnapshot("a")
	if err != nil {
		t.Fatalf("LoadNamedSnapshot(a) error: %v", err)
	}
	if string(got) != "1" {
		t.Errorf("expected 1, got %s", got)
	}

	got, err = s.LoadNamedSnapshot("c")
	if err != nil {
		t.Fatalf("LoadNamedSnapshot(c) error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown name, got %s", got)
	}
}

func TestNewNoDataDir(t *testing.T) {
	if _, err := New(""); err != ErrNoDataDir {
		t.Errorf("expected ErrNoDataDir, got %v", err)
	}
}

func TestDataDirIsCreated(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "nested", "helios-os")
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := s.SaveFS(json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SaveFS() error: %v", err)
	}
}
