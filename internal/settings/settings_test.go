package settings

import (
	"path/filepath"
	"testing"
)

func TestSaveAndLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	m := NewManagerAt(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}

	m.SetPreferredDevice("Back Camera")
	m.AddScan()
	m.AddScan()
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reloaded := NewManagerAt(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.PreferredDevice(); got != "Back Camera" {
		t.Errorf("PreferredDevice = %q, want %q", got, "Back Camera")
	}
	if got := reloaded.ScansLifetime(); got != 2 {
		t.Errorf("ScansLifetime = %d, want 2", got)
	}
}

func TestCloseWithoutChanges(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "settings.json"))
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close with nothing dirty: %v", err)
	}
}
