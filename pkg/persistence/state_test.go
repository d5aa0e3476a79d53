package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStateStore(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewStateStore(filepath.Join(t.TempDir(), "nonexistent.json"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		store := NewStateStore(filepath.Join(t.TempDir(), "state.json"))

		state := &NodeState{
			NodeName: "kitchen",
			Models: map[string]ModelState{
				"chat": {State: json.RawMessage(`{"messages":["hi"]}`), UpdatedAt: time.Now()},
			},
		}
		if err := store.Save(state); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if got.SavedAt.IsZero() {
			t.Error("SavedAt should be set")
		}
		if got.NodeName != "kitchen" {
			t.Errorf("NodeName = %q, want kitchen", got.NodeName)
		}
		if string(got.Models["chat"].State) != `{"messages":["hi"]}` {
			t.Errorf("chat state = %s", got.Models["chat"].State)
		}
	})

	t.Run("CreatesParentDirectory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")
		store := NewStateStore(path)

		if err := store.Save(&NodeState{}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("state file not created: %v", err)
		}
	})

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		dir := t.TempDir()
		store := NewStateStore(filepath.Join(dir, "state.json"))

		for range 3 {
			if err := store.PutModel("n", "chat", json.RawMessage(`{}`)); err != nil {
				t.Fatalf("PutModel() error = %v", err)
			}
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("dir has %d entries, want 1", len(entries))
		}
	})

	t.Run("PutModelKeepsOtherModels", func(t *testing.T) {
		store := NewStateStore(filepath.Join(t.TempDir(), "state.json"))

		if err := store.PutModel("n", "chat", json.RawMessage(`{"a":1}`)); err != nil {
			t.Fatal(err)
		}
		if err := store.PutModel("n", "todo", json.RawMessage(`{"b":2}`)); err != nil {
			t.Fatal(err)
		}
		if err := store.PutModel("n", "chat", json.RawMessage(`{"a":3}`)); err != nil {
			t.Fatal(err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Models) != 2 {
			t.Fatalf("len(Models) = %d, want 2", len(got.Models))
		}
		if string(got.Models["chat"].State) != `{"a":3}` {
			t.Errorf("chat state = %s", got.Models["chat"].State)
		}
		if string(got.Models["todo"].State) != `{"b":2}` {
			t.Errorf("todo state = %s", got.Models["todo"].State)
		}
	})

	t.Run("SnapshotKeepsTimestampOfUnchangedModels", func(t *testing.T) {
		store := NewStateStore(filepath.Join(t.TempDir(), "state.json"))

		if err := store.PutModel("n", "chat", json.RawMessage(`{"a":1}`)); err != nil {
			t.Fatal(err)
		}
		before, err := store.Load()
		if err != nil {
			t.Fatal(err)
		}

		err = store.Snapshot("n", map[string]json.RawMessage{
			"chat": json.RawMessage(`{"a":1}`),
			"todo": json.RawMessage(`[]`),
		})
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}

		after, err := store.Load()
		if err != nil {
			t.Fatal(err)
		}
		if !after.Models["chat"].UpdatedAt.Equal(before.Models["chat"].UpdatedAt) {
			t.Error("unchanged model should keep its UpdatedAt")
		}
		if string(after.Models["todo"].State) != `[]` {
			t.Errorf("todo state = %s", after.Models["todo"].State)
		}
	})

	t.Run("LoadRejectsNewerVersion", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte(`{"version": 99}`), 0o644); err != nil {
			t.Fatal(err)
		}

		_, err := NewStateStore(path).Load()
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("Load() error = %v, want ErrUnsupportedVersion", err)
		}
	})

	t.Run("LoadMalformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, err := NewStateStore(path).Load(); err == nil {
			t.Error("Load() should fail for malformed file")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		store := NewStateStore(path)

		if err := store.Save(&NodeState{}); err != nil {
			t.Fatal(err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("state file should be removed")
		}
		if err := store.Clear(); err != nil {
			t.Errorf("Clear() on missing file error = %v", err)
		}
	})
}
