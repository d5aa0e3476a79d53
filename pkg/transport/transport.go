package transport

import (
	"context"
	"errors"
	"fmt"
)

// Default connection parameters.
const (
	// DefaultBroker is the broker URL used when none is configured.
	DefaultBroker = "tcp://localhost:1883"

	// DefaultPort is the standard unencrypted MQTT port.
	DefaultPort = 1883

	// DefaultQoS is exactly-once delivery.
	DefaultQoS byte = 2
)

// Transport errors.
var (
	// ErrTransport is wrapped by every *Error.
	ErrTransport = errors.New("transport error")

	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrInvalidQoS       = errors.New("invalid QoS")
	ErrEmptyClientID    = errors.New("empty client id")
)

// Error describes a failed transport operation.
type Error struct {
	// Op is the operation name: connect, publish, subscribe, unsubscribe or disconnect.
	Op string

	// Topic is the topic involved, empty for connect and disconnect.
	Topic string

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport: %s %q: %v", e.Op, e.Topic, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransport.
func (e *Error) Is(target error) bool { return target == ErrTransport }

func opError(op, topic string, err error) error {
	return &Error{Op: op, Topic: topic, Err: err}
}

// ConnectionState is the lifecycle state of a client.
type ConnectionState int

const (
	// StateDisconnected indicates no connection.
	StateDisconnected ConnectionState = iota

	// StateConnecting indicates connection in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateClosing indicates graceful close in progress.
	StateClosing
)

// String returns the connection state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Will is the message the broker publishes when the client disappears
// without a clean disconnect.
type Will struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// ConnectOptions configures a broker connection.
type ConnectOptions struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	// Empty selects DefaultBroker.
	Broker string

	// Port overrides the URL port when non-zero.
	Port int

	// ClientID identifies the session at the broker.
	ClientID string

	// Clean requests a clean session.
	Clean bool

	// Will is registered with the broker when non-nil.
	Will *Will
}

// PublishOptions controls a single publication.
type PublishOptions struct {
	QoS    byte
	Retain bool
}

// SubscribeOptions controls a subscription.
type SubscribeOptions struct {
	QoS byte
}

// Message is an inbound publication.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// MessageHandler receives inbound messages. It is called from the
// transport's delivery goroutine and should return promptly.
type MessageHandler func(Message)

// Client is a connection to a publish/subscribe broker.
// Implemented by MQTTClient and the clients of MemoryBroker.
type Client interface {
	// Connect opens the broker session and registers the will.
	Connect(ctx context.Context, opts ConnectOptions) error

	// Publish sends payload on topic.
	Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error

	// Subscribe adds a subscription. Matching messages are delivered to the
	// handler set with OnMessage.
	Subscribe(ctx context.Context, topic string, opts SubscribeOptions) error

	// Unsubscribe removes a subscription.
	Unsubscribe(ctx context.Context, topic string) error

	// OnMessage sets the handler for inbound messages. Must be called
	// before Connect.
	OnMessage(handler MessageHandler)

	// Disconnect closes the session cleanly. The will is not published.
	Disconnect(ctx context.Context) error
}

func validQoS(qos byte) error {
	if qos > 2 {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	return nil
}

// Compile-time interface satisfaction checks.
var (
	_ Client = (*MQTTClient)(nil)
	_ Client = (*MemoryClient)(nil)
)
