package topic

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Separator splits topic segments.
	Separator = "/"

	// PresenceRoot is the main segment of presence topics.
	PresenceRoot = "online"

	// SingleLevelWildcard matches exactly one segment in a subscription filter.
	SingleLevelWildcard = "+"

	// MultiLevelWildcard matches any number of trailing segments.
	MultiLevelWildcard = "#"
)

// Topic errors.
var (
	ErrEmptySegment    = errors.New("empty topic segment")
	ErrInvalidSegment  = errors.New("invalid character in topic segment")
	ErrTooManySegments = errors.New("too many topic segments")
	ErrReservedName    = errors.New("reserved model name")
)

// Topic is a decoded topic: the main segment and an optional target device.
type Topic struct {
	// Main is the model name, or PresenceRoot for presence topics.
	Main string

	// Target is the addressed device ID. Empty for shared topics.
	Target string
}

// Shared returns the broadcast topic of a model.
func Shared(model string) Topic {
	return Topic{Main: model}
}

// Directed returns the topic addressing deviceID within a model's namespace.
func Directed(model, deviceID string) Topic {
	return Topic{Main: model, Target: deviceID}
}

// Presence returns the presence topic of a device.
func Presence(deviceID string) Topic {
	return Topic{Main: PresenceRoot, Target: deviceID}
}

// PresenceFilter returns the subscription filter matching every presence topic.
func PresenceFilter() string {
	return PresenceRoot + Separator + SingleLevelWildcard
}

// String encodes the topic.
func (t Topic) String() string {
	if t.Target == "" {
		return t.Main
	}
	return t.Main + Separator + t.Target
}

// IsPresence reports whether the topic belongs to the presence sub-protocol.
func (t Topic) IsPresence() bool {
	return t.Main == PresenceRoot
}

// IsDirected reports whether the topic addresses a single device.
func (t Topic) IsDirected() bool {
	return t.Target != ""
}

// Parse decodes a topic name. It accepts one or two non-empty segments.
func Parse(name string) (Topic, error) {
	parts := strings.Split(name, Separator)
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return Topic{}, ErrEmptySegment
		}
		return Topic{Main: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Topic{}, ErrEmptySegment
		}
		return Topic{Main: parts[0], Target: parts[1]}, nil
	default:
		return Topic{}, fmt.Errorf("%w: %q", ErrTooManySegments, name)
	}
}

// ValidateSegment checks that s can be used as a single topic segment.
func ValidateSegment(s string) error {
	if s == "" {
		return ErrEmptySegment
	}
	if strings.ContainsAny(s, Separator+SingleLevelWildcard+MultiLevelWildcard+"\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidSegment, s)
	}
	return nil
}

// ValidateModelName checks that name can be used as a model topic key.
// The presence root is reserved.
func ValidateModelName(name string) error {
	if err := ValidateSegment(name); err != nil {
		return err
	}
	if name == PresenceRoot {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	return nil
}

// Match reports whether topic name matches a subscription filter.
// Both "+" and a trailing "#" are supported.
func Match(filter, name string) bool {
	fp := strings.Split(filter, Separator)
	np := strings.Split(name, Separator)

	for i, f := range fp {
		if f == MultiLevelWildcard {
			return i == len(fp)-1
		}
		if i >= len(np) {
			return false
		}
		if f != SingleLevelWildcard && f != np[i] {
			return false
		}
	}
	return len(fp) == len(np)
}
