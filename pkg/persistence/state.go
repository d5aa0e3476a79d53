package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ErrUnsupportedVersion is returned by Load for files written by a newer format.
var ErrUnsupportedVersion = errors.New("unsupported state file version")

// NodeState contains the persisted state of a node.
type NodeState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// NodeName is the display name of the node that wrote the file.
	NodeName string `json:"node_name,omitempty"`

	// Models holds the state of each model, keyed by model name.
	Models map[string]ModelState `json:"models,omitempty"`
}

// ModelState is the persisted state of one model.
type ModelState struct {
	State     json.RawMessage `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StateStore manages persistence of node state to a JSON file.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a new state store.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the file the store writes to.
func (s *StateStore) Path() string { return s.path }

// Save persists the node state to disk.
func (s *StateStore) Save(state *NodeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(state)
}

func (s *StateStore) save(state *NodeState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the node state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *StateStore) Load() (*NodeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *StateStore) load() (*NodeState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &NodeState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, state.Version)
	}
	return state, nil
}

// PutModel records the state of one model, keeping every other entry.
func (s *StateStore) PutModel(nodeName, modelName string, state json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return err
	}
	if current == nil {
		current = &NodeState{}
	}
	if current.Models == nil {
		current.Models = make(map[string]ModelState)
	}
	current.NodeName = nodeName
	current.Models[modelName] = ModelState{
		State:     append(json.RawMessage(nil), state...),
		UpdatedAt: time.Now(),
	}
	return s.save(current)
}

// Snapshot replaces the stored models with states. Entries for models that
// are not in states are kept.
func (s *StateStore) Snapshot(nodeName string, states map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return err
	}
	if current == nil {
		current = &NodeState{}
	}
	models := make(map[string]ModelState, len(current.Models)+len(states))
	maps.Copy(models, current.Models)

	now := time.Now()
	for name, state := range states {
		if prev, ok := models[name]; ok && string(prev.State) == string(state) {
			continue
		}
		models[name] = ModelState{State: append(json.RawMessage(nil), state...), UpdatedAt: now}
	}
	current.NodeName = nodeName
	current.Models = models
	return s.save(current)
}

// Clear removes the state file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
