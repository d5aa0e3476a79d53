package wire

// Action identifies the kind of envelope.
type Action string

// Envelope actions.
const (
	// ActionDevice announces a device's participation in a model.
	ActionDevice Action = "device"

	// ActionHasState tells whether the sender holds state for a model.
	ActionHasState Action = "has-state"

	// ActionRequestState asks the addressed device for its state.
	ActionRequestState Action = "request-state"

	// ActionResponseState carries the sender's state to the addressed device.
	ActionResponseState Action = "response-state"

	// ActionMigration asks the addressed device to take over the model's work.
	ActionMigration Action = "migration"
)

// IsValid reports whether the action is known.
func (a Action) IsValid() bool {
	switch a {
	case ActionDevice, ActionHasState, ActionRequestState, ActionResponseState, ActionMigration:
		return true
	default:
		return false
	}
}

// RequiresDirectedTopic reports whether the action is only honored on the
// receiver's own directed topic.
func (a Action) RequiresDirectedTopic() bool {
	switch a {
	case ActionRequestState, ActionResponseState, ActionMigration:
		return true
	default:
		return false
	}
}

// String returns the action name.
func (a Action) String() string {
	return string(a)
}
