package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rtsm-protocol/rtsm-go/pkg/topic"
)

// Presence payloads.
var (
	presenceOnline  = []byte("true")
	presenceOffline = []byte("false")
)

// ErrInvalidPresence is returned for presence payloads other than "true",
// "false" or empty.
var ErrInvalidPresence = errors.New("invalid presence payload")

// Encode wraps data in an envelope and encodes it.
func Encode(data Data) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s data: %w", data.Action(), err)
	}
	return json.Marshal(&Envelope{Action: data.Action(), Data: raw})
}

// DecodeEnvelope decodes and validates the envelope header.
func DecodeEnvelope(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	return &env, nil
}

// Decode decodes an envelope and its action-specific data.
// The returned Data is one of the *XxxData types of this package.
func Decode(payload []byte) (*Envelope, Data, error) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		return nil, nil, err
	}

	data, err := newData(env.Action)
	if err != nil {
		return nil, nil, err
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s data: %w", env.Action, err)
	}
	id := data.Sender().ID
	if id == "" {
		return nil, nil, fmt.Errorf("invalid %s data: %w", env.Action, ErrMissingSender)
	}
	// The sender ID becomes a topic segment of replies and presence.
	if err := topic.ValidateSegment(id); err != nil {
		return nil, nil, fmt.Errorf("invalid %s sender: %w", env.Action, err)
	}
	return env, data, nil
}

// EncodePresence returns the retained presence payload. Going offline is an
// empty payload, which also clears the broker's retained message.
func EncodePresence(online bool) []byte {
	if online {
		return bytes.Clone(presenceOnline)
	}
	return []byte{}
}

// DecodePresence interprets a presence payload.
func DecodePresence(payload []byte) (bool, error) {
	p := bytes.TrimSpace(payload)
	switch {
	case bytes.Equal(p, presenceOnline):
		return true, nil
	case len(p) == 0, bytes.Equal(p, presenceOffline):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidPresence, payload)
	}
}
