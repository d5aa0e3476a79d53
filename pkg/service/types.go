package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rtsm-protocol/rtsm-go/pkg/log"
	"github.com/rtsm-protocol/rtsm-go/pkg/metrics"
	"github.com/rtsm-protocol/rtsm-go/pkg/model"
	"github.com/rtsm-protocol/rtsm-go/pkg/schema"
	"github.com/rtsm-protocol/rtsm-go/pkg/transport"
)

// Service errors.
var (
	ErrNoModels          = errors.New("no models registered")
	ErrAlreadyIntroduced = errors.New("node already introduced")
	ErrNotIntroduced     = errors.New("node not introduced")
	ErrClosed            = errors.New("node closed")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// NodeState represents the node lifecycle state.
type NodeState uint8

const (
	// StateIdle - node created, models may be registered.
	StateIdle NodeState = iota

	// StateIntroducing - Introduce is connecting and announcing.
	StateIntroducing

	// StateRunning - node is online and dispatching.
	StateRunning

	// StateClosing - Close is retracting presence and disconnecting.
	StateClosing

	// StateClosed - node has stopped and cannot be reused.
	StateClosed
)

// String returns the state name.
func (s NodeState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateIntroducing:
		return "INTRODUCING"
	case StateRunning:
		return "RUNNING"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Node.
type Config struct {
	// Name is the display name announced for the local device.
	Name string

	// Broker is the broker URL (default: transport.DefaultBroker).
	Broker string

	// Port overrides the broker URL port when non-zero.
	Port int

	// QoS is used for every publish and subscribe (default: 2).
	QoS byte

	// CleanSession requests a clean broker session.
	CleanSession bool

	// InboxSize is the capacity of the inbound message queue. When it is
	// full the transport's delivery callback blocks until the dispatch
	// goroutine catches up. Deliveries are ordered, so a blocked callback
	// also holds back the acknowledgements of the client's own QoS 1/2
	// publications; a reply published from the dispatch goroutine then
	// waits at most ReplyTimeout before dispatch resumes draining.
	// Messages are never dropped for lack of room.
	InboxSize int

	// ReplyTimeout bounds publications made from the dispatch goroutine,
	// such as the directed reply to a new device.
	ReplyTimeout time.Duration

	// Validator checks model documents and received state.
	// If nil, schema.NewJSONSchemaValidator is used.
	Validator schema.Validator

	// Handlers receive protocol events. Nil hooks are ignored.
	Handlers Handlers

	// Metrics records protocol counters. If nil, metrics are disabled.
	Metrics *metrics.Collector

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures every envelope and presence change.
	// If nil, protocol capture is disabled.
	ProtocolLogger log.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Broker:       transport.DefaultBroker,
		QoS:          transport.DefaultQoS,
		CleanSession: true,
		InboxSize:    1024,
		ReplyTimeout: 10 * time.Second,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.QoS > 2 {
		return fmt.Errorf("%w: qos %d", ErrInvalidConfig, c.QoS)
	}
	if c.InboxSize <= 0 {
		return fmt.Errorf("%w: inbox size %d", ErrInvalidConfig, c.InboxSize)
	}
	if c.ReplyTimeout <= 0 {
		return fmt.Errorf("%w: reply timeout %s", ErrInvalidConfig, c.ReplyTimeout)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// DeviceJoined is emitted when a remote device announces itself as new on a
// model shared with this node.
type DeviceJoined struct {
	ModelName string
	Device    model.Device
}

// DeviceLeft is emitted when a known remote device goes offline.
type DeviceLeft struct {
	Device model.Device
}

// StateRequested is emitted when a remote device asks for this node's state.
type StateRequested struct {
	ModelName string
	Device    model.Device
}

// StateReceived is emitted when a remote device sends its state.
// Valid reports whether the state conforms to the local model's state schema;
// the state is delivered either way.
type StateReceived struct {
	ModelName string
	Device    model.Device
	State     json.RawMessage
	Valid     bool
}

// MigrationRequested is emitted when a remote device asks this node to take
// over a model's workload.
type MigrationRequested struct {
	ModelName string
	Device    model.Device
}

// Handlers holds the application callbacks. They are called synchronously
// on the dispatch goroutine.
type Handlers struct {
	OnDeviceJoined       func(DeviceJoined)
	OnDeviceLeft         func(DeviceLeft)
	OnStateRequested     func(StateRequested)
	OnStateReceived      func(StateReceived)
	OnMigrationRequested func(MigrationRequested)
}

// withDefaults replaces nil hooks with no-ops.
func (h Handlers) withDefaults() Handlers {
	if h.OnDeviceJoined == nil {
		h.OnDeviceJoined = func(DeviceJoined) {}
	}
	if h.OnDeviceLeft == nil {
		h.OnDeviceLeft = func(DeviceLeft) {}
	}
	if h.OnStateRequested == nil {
		h.OnStateRequested = func(StateRequested) {}
	}
	if h.OnStateReceived == nil {
		h.OnStateReceived = func(StateReceived) {}
	}
	if h.OnMigrationRequested == nil {
		h.OnMigrationRequested = func(MigrationRequested) {}
	}
	return h
}
