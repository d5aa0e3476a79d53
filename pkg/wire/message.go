package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rtsm-protocol/rtsm-go/pkg/model"
)

// Message errors.
var (
	ErrMissingAction = errors.New("envelope has no action")
	ErrUnknownAction = errors.New("unknown action")
	ErrMissingData   = errors.New("envelope has no data")
	ErrMissingSender = errors.New("envelope data has no sender device")
)

// Envelope is the outer message on model topics.
type Envelope struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Validate checks the envelope header.
func (e *Envelope) Validate() error {
	if e.Action == "" {
		return ErrMissingAction
	}
	if !e.Action.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, e.Action)
	}
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return ErrMissingData
	}
	return nil
}

// DeviceData is the data of a device announcement.
type DeviceData struct {
	Device model.Device `json:"device"`
	New    bool         `json:"new"`
}

// HasStateData is the data of a has-state update.
type HasStateData struct {
	Device model.Device `json:"device"`
	Value  bool         `json:"value"`
}

// RequestStateData is the data of a state request.
type RequestStateData struct {
	Device model.Device `json:"device"`
}

// ResponseStateData is the data of a state response.
type ResponseStateData struct {
	Device model.Device    `json:"device"`
	State  json.RawMessage `json:"state"`
}

// MigrationData is the data of a migration request.
type MigrationData struct {
	Device model.Device `json:"device"`
}

// Data is implemented by every envelope data type.
type Data interface {
	// Action returns the action the data belongs to.
	Action() Action

	// Sender returns the sending device.
	Sender() model.Device
}

// Action returns ActionDevice.
func (d *DeviceData) Action() Action { return ActionDevice }

// Sender returns the sending device.
func (d *DeviceData) Sender() model.Device { return d.Device }

// Action returns ActionHasState.
func (d *HasStateData) Action() Action { return ActionHasState }

// Sender returns the sending device.
func (d *HasStateData) Sender() model.Device { return d.Device }

// Action returns ActionRequestState.
func (d *RequestStateData) Action() Action { return ActionRequestState }

// Sender returns the sending device.
func (d *RequestStateData) Sender() model.Device { return d.Device }

// Action returns ActionResponseState.
func (d *ResponseStateData) Action() Action { return ActionResponseState }

// Sender returns the sending device.
func (d *ResponseStateData) Sender() model.Device { return d.Device }

// Action returns ActionMigration.
func (d *MigrationData) Action() Action { return ActionMigration }

// Sender returns the sending device.
func (d *MigrationData) Sender() model.Device { return d.Device }

// newData returns an empty data value for an action.
func newData(a Action) (Data, error) {
	switch a {
	case ActionDevice:
		return &DeviceData{}, nil
	case ActionHasState:
		return &HasStateData{}, nil
	case ActionRequestState:
		return &RequestStateData{}, nil
	case ActionResponseState:
		return &ResponseStateData{}, nil
	case ActionMigration:
		return &MigrationData{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
}
