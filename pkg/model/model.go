package model

import (
	"encoding/json"
	"slices"
)

// Model is a locally registered, schema-described unit of application state.
type Model struct {
	// ID is a unique identifier assigned at registration.
	ID string

	// Name is the model name and its topic key.
	Name string

	// Content is the model document as registered.
	Content json.RawMessage

	// DeviceID is the identifier of the owning (local) device.
	DeviceID string

	// State is the locally held state value. Empty until set.
	State json.RawMessage
}

// clone returns a deep copy so registry internals never leak.
func (m *Model) clone() *Model {
	c := *m
	c.Content = slices.Clone(m.Content)
	c.State = slices.Clone(m.State)
	return &c
}
