package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rtsm-protocol/rtsm-go/pkg/schema"
	"github.com/rtsm-protocol/rtsm-go/pkg/topic"
)

// Registry errors.
var (
	ErrValidation    = errors.New("model validation failed")
	ErrModelNotFound = errors.New("model not found")
)

// ValidationError reports why a model document was rejected.
type ValidationError struct {
	// Model is the model name, if it could be determined.
	Model string

	// Err is the validator's detail.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%v: %v", ErrValidation, e.Err)
	}
	return fmt.Sprintf("%v: model %q: %v", ErrValidation, e.Model, e.Err)
}

// Unwrap returns the validator's detail.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Registry holds the local device, its models and the remote devices known
// to a node.
type Registry struct {
	mu sync.RWMutex

	validator schema.Validator

	local *deviceEntry

	// Models indexed by name; order keeps registration order.
	models map[string]*Model
	order  []string

	// Remote devices indexed by ID.
	remotes map[string]*deviceEntry
}

// NewRegistry creates a registry for the local device. A nil validator
// selects schema.NewJSONSchemaValidator.
func NewRegistry(localID, localName string, validator schema.Validator) *Registry {
	if validator == nil {
		validator = schema.NewJSONSchemaValidator()
	}
	return &Registry{
		validator: validator,
		local:     newDeviceEntry(localID, localName),
		models:    make(map[string]*Model),
		remotes:   make(map[string]*deviceEntry),
	}
}

// Local returns a copy of the local device.
func (r *Registry) Local() Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.local.snapshot()
}

// LocalID returns the local device identifier.
func (r *Registry) LocalID() string {
	return r.local.id
}

// RegisterModel validates a model document and registers it under its title.
// Registering a name that already exists is a no-op that returns the existing
// model's ID.
func (r *Registry) RegisterModel(doc json.RawMessage) (string, error) {
	name, err := schema.Title(doc)
	if err != nil {
		return "", &ValidationError{Err: err}
	}
	if err := topic.ValidateModelName(name); err != nil {
		return "", &ValidationError{Model: name, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.models[name]; ok {
		return existing.ID, nil
	}

	if err := r.validator.ValidateModel(doc); err != nil {
		return "", &ValidationError{Model: name, Err: err}
	}

	m := &Model{
		ID:       uuid.NewString(),
		Name:     name,
		Content:  slices.Clone(doc),
		DeviceID: r.local.id,
	}
	r.models[name] = m
	r.order = append(r.order, name)
	r.local.addModel(name)
	return m.ID, nil
}

// FindModel returns a copy of the named model.
func (r *Registry) FindModel(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[name]
	if !ok {
		return nil, false
	}
	return m.clone(), true
}

// HasModel reports whether the named model is registered locally.
func (r *Registry) HasModel(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.models[name]
	return ok
}

// Models returns copies of all local models in registration order.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Model, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.models[name].clone())
	}
	return result
}

// ModelCount returns the number of registered models.
func (r *Registry) ModelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// SetState replaces the locally held state of a model.
func (r *Registry) SetState(name string, state json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	m.State = slices.Clone(state)
	return nil
}

// SetLocalHasState updates the local device's has-state set for a model.
func (r *Registry) SetLocalHasState(name string, present bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[name]; !ok {
		return fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	r.local.setHasState(name, present)
	return nil
}

// UpsertRemoteDevice records that a remote device participates in a model.
// An unknown ID creates a new entry; a known ID gains the model name.
// The name is refreshed when non-empty.
func (r *Registry) UpsertRemoteDevice(id, name, modelName string) Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.remotes[id]
	if !ok {
		entry = newDeviceEntry(id, name)
		r.remotes[id] = entry
	} else if name != "" {
		entry.name = name
	}
	entry.addModel(modelName)
	return entry.snapshot()
}

// SetHasState adds or removes a model from a remote device's has-state set.
// It reports whether the device is known; unknown devices are left alone.
func (r *Registry) SetHasState(deviceID, modelName string, present bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.remotes[deviceID]
	if !ok {
		return false
	}
	entry.setHasState(modelName, present)
	return true
}

// RemoveDevice deletes a remote device and returns the removed entry.
func (r *Registry) RemoveDevice(id string) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.remotes[id]
	if !ok {
		return Device{}, false
	}
	delete(r.remotes, id)
	return entry.snapshot(), true
}

// RemoteDevice returns a copy of a remote device.
func (r *Registry) RemoteDevice(id string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.remotes[id]
	if !ok {
		return Device{}, false
	}
	return entry.snapshot(), true
}

// RemoteCount returns the number of known remote devices.
func (r *Registry) RemoteCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.remotes)
}

// DevicesForModel returns the remote devices participating in a model,
// sorted by ID. With requireHasState only devices holding state for the model
// are returned.
func (r *Registry) DevicesForModel(name string, requireHasState bool) []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Device
	for _, entry := range r.remotes {
		set := entry.models
		if requireHasState {
			set = entry.hasState
		}
		if _, ok := set[name]; ok {
			result = append(result, entry.snapshot())
		}
	}
	slices.SortFunc(result, func(a, b Device) int {
		return strings.Compare(a.ID, b.ID)
	})
	return result
}
