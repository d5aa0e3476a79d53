package log

import "time"

// MaxCapturedPayload is the number of payload bytes kept in a MessageEvent.
const MaxCapturedPayload = 1024

// Event represents a protocol log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// NodeID is the local device identifier.
	NodeID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Topic is the broker topic involved, if any.
	Topic string `cbor:"5,keyasint,omitempty"`

	// Model is the model name, for events on model topics.
	Model string `cbor:"6,keyasint,omitempty"`

	// PeerID is the remote device involved (sender or addressee).
	PeerID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"10,keyasint,omitempty"`
	Presence    *PresenceEvent    `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Drop        *DropEvent        `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an envelope on a model topic.
	CategoryMessage Category = 0
	// CategoryPresence indicates a presence payload.
	CategoryPresence Category = 1
	// CategoryState indicates a lifecycle change of the local node.
	CategoryState Category = 2
	// CategoryDrop indicates ignored inbound traffic.
	CategoryDrop Category = 3
	// CategoryError indicates a failed operation.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryPresence:
		return "PRESENCE"
	case CategoryState:
		return "STATE"
	case CategoryDrop:
		return "DROP"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures an envelope.
type MessageEvent struct {
	// Action is the envelope action.
	Action string `cbor:"1,keyasint"`

	// Size is the full payload size in bytes.
	Size int `cbor:"2,keyasint"`

	// Payload is the raw payload (may be truncated).
	Payload []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Payload was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// NewMessageEvent captures payload, truncating it to MaxCapturedPayload.
func NewMessageEvent(action string, payload []byte) *MessageEvent {
	ev := &MessageEvent{Action: action, Size: len(payload)}
	if len(payload) > MaxCapturedPayload {
		ev.Payload = append([]byte(nil), payload[:MaxCapturedPayload]...)
		ev.Truncated = true
	} else {
		ev.Payload = append([]byte(nil), payload...)
	}
	return ev
}

// PresenceEvent captures a presence payload.
type PresenceEvent struct {
	// DeviceID is the device the presence topic belongs to.
	DeviceID string `cbor:"1,keyasint"`

	// Online is the decoded presence value.
	Online bool `cbor:"2,keyasint"`

	// Retained is set for retained publications.
	Retained bool `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures lifecycle events of the local node.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a broker connection change.
	StateEntityConnection StateEntity = 0
	// StateEntityPresence indicates a presence tracker transition.
	StateEntityPresence StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityPresence:
		return "PRESENCE"
	default:
		return "UNKNOWN"
	}
}

// DropReason explains why inbound traffic was ignored.
type DropReason string

// Drop reasons.
const (
	DropMalformedTopic    DropReason = "malformed-topic"
	DropUnknownModel      DropReason = "unknown-model"
	DropMalformedEnvelope DropReason = "malformed-envelope"
	DropMisaddressed      DropReason = "misaddressed"
	DropSelf              DropReason = "self"
	DropInvalidPresence   DropReason = "invalid-presence"
)

// DropEvent captures ignored inbound traffic.
type DropEvent struct {
	// Reason is the drop classification.
	Reason DropReason `cbor:"1,keyasint"`

	// Detail is a human-readable explanation (e.g. the decode error).
	Detail string `cbor:"2,keyasint,omitempty"`

	// Size is the dropped payload size.
	Size int `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures failed operations.
type ErrorEventData struct {
	// Operation is the failed transport operation (publish, subscribe, ...).
	Operation string `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`
}
