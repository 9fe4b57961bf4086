package telemetry

import (
	"path/filepath"
	"testing"

	"github.com/pthm-cable/motes/particle"
	"github.com/pthm-cable/motes/vec"
)

func TestSnapshotSaveLoad(t *testing.T) {
	om, err := NewOutputManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	live := []*particle.Base{
		{Idx: 3, Pos: vec.New(1.5, -2), R: 4, RGBA: 0xbf44fcff},
		{Idx: 7, Pos: vec.New(100, 200), R: 0.5, RGBA: 0x007accff},
	}
	states := Capture(live)

	path, err := om.WriteSnapshot(42, states)
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if filepath.Base(path) != "snapshot_42.csv" {
		t.Errorf("unexpected snapshot name %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(loaded) != len(states) {
		t.Fatalf("expected %d rows, got %d", len(states), len(loaded))
	}
	for i := range states {
		if loaded[i] != states[i] {
			t.Errorf("row %d: got %+v, want %+v", i, loaded[i], states[i])
		}
	}
}

func TestSnapshotDisabled(t *testing.T) {
	var om *OutputManager
	path, err := om.WriteSnapshot(1, nil)
	if err != nil || path != "" {
		t.Errorf("expected no-op for nil manager, got %q %v", path, err)
	}
}

func TestLoadSnapshotMissing(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
