package model

import "slices"

// Device is a participant on the broker.
// JSON field names follow the wire format shared with other RTSM nodes.
type Device struct {
	// ID is the stable device identifier, unique per process lifetime.
	ID string `json:"_id"`

	// Name is the human-readable device name.
	Name string `json:"name"`

	// Models lists the model names the device participates in, sorted.
	Models []string `json:"models,omitempty"`

	// HasState lists the models for which the device holds valid state, sorted.
	HasState []string `json:"models_has_state,omitempty"`
}

// HasModel reports whether the device participates in the named model.
func (d Device) HasModel(name string) bool {
	_, found := slices.BinarySearch(d.Models, name)
	return found
}

// HoldsState reports whether the device holds state for the named model.
func (d Device) HoldsState(name string) bool {
	_, found := slices.BinarySearch(d.HasState, name)
	return found
}

// deviceEntry is the registry's mutable representation of a device.
type deviceEntry struct {
	id       string
	name     string
	models   map[string]struct{}
	hasState map[string]struct{}
}

func newDeviceEntry(id, name string) *deviceEntry {
	return &deviceEntry{
		id:       id,
		name:     name,
		models:   make(map[string]struct{}),
		hasState: make(map[string]struct{}),
	}
}

// addModel records participation in a model. Adding twice is a no-op.
func (e *deviceEntry) addModel(name string) {
	e.models[name] = struct{}{}
}

// setHasState adds or removes name from the has-state set. Adding also
// records participation so that has-state stays a subset of models.
func (e *deviceEntry) setHasState(name string, present bool) {
	if present {
		e.models[name] = struct{}{}
		e.hasState[name] = struct{}{}
		return
	}
	delete(e.hasState, name)
}

// snapshot returns an immutable copy of the entry.
func (e *deviceEntry) snapshot() Device {
	return Device{
		ID:       e.id,
		Name:     e.name,
		Models:   sortedKeys(e.models),
		HasState: sortedKeys(e.hasState),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
