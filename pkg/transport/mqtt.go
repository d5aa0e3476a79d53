package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures an MQTTClient.
type MQTTConfig struct {
	// ConnectTimeout bounds the network dial and CONNECT handshake.
	ConnectTimeout time.Duration

	// KeepAlive is the MQTT keep-alive interval.
	KeepAlive time.Duration

	// DisconnectQuiesce is how long Disconnect waits for in-flight work.
	DisconnectQuiesce time.Duration

	// OnConnectionLost is called when the broker connection drops
	// unexpectedly. Optional.
	OnConnectionLost func(error)

	// Logger is used for connection diagnostics. If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultMQTTConfig returns the default client configuration.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		ConnectTimeout:    10 * time.Second,
		KeepAlive:         30 * time.Second,
		DisconnectQuiesce: 250 * time.Millisecond,
	}
}

// MQTTClient is a Client backed by the Eclipse Paho MQTT client.
//
// Automatic reconnection is disabled: a lost connection fires the broker-side
// will and the node has to be introduced again.
type MQTTClient struct {
	config MQTTConfig

	mu      sync.RWMutex
	client  mqtt.Client
	handler MessageHandler
	state   ConnectionState
}

// NewMQTTClient creates an unconnected MQTT client.
func NewMQTTClient(config MQTTConfig) *MQTTClient {
	return &MQTTClient{config: config}
}

// BrokerURL normalizes a broker address. A bare host gets the tcp scheme and
// a non-zero port replaces the URL port.
func BrokerURL(broker string, port int) (string, error) {
	if broker == "" {
		broker = DefaultBroker
	}
	u, err := url.Parse(broker)
	if err != nil || u.Host == "" {
		// "localhost:1883" parses with scheme "localhost"; retry with a scheme.
		u, err = url.Parse("tcp://" + broker)
		if err != nil {
			return "", fmt.Errorf("invalid broker %q: %w", broker, err)
		}
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid broker %q: missing host", broker)
	}
	if port != 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	} else if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(DefaultPort))
	}
	return u.String(), nil
}

// State returns the current connection state.
func (c *MQTTClient) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// OnMessage sets the inbound message handler.
func (c *MQTTClient) OnMessage(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Connect opens the broker session.
func (c *MQTTClient) Connect(ctx context.Context, opts ConnectOptions) error {
	if opts.ClientID == "" {
		return opError("connect", "", ErrEmptyClientID)
	}
	broker, err := BrokerURL(opts.Broker, opts.Port)
	if err != nil {
		return opError("connect", "", err)
	}
	if opts.Will != nil {
		if err := validQoS(opts.Will.QoS); err != nil {
			return opError("connect", opts.Will.Topic, err)
		}
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return opError("connect", "", ErrAlreadyConnected)
	}
	client := mqtt.NewClient(c.clientOptions(broker, opts))
	c.client = client
	c.state = StateConnecting
	c.mu.Unlock()

	c.debugLog("connecting", "broker", broker, "client_id", opts.ClientID)
	if err := wait(ctx, client.Connect()); err != nil {
		c.setState(StateDisconnected)
		return opError("connect", "", err)
	}
	c.setState(StateConnected)
	c.debugLog("connected", "broker", broker)
	return nil
}

func (c *MQTTClient) clientOptions(broker string, opts ConnectOptions) *mqtt.ClientOptions {
	o := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(opts.ClientID).
		SetCleanSession(opts.Clean).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		// In-order delivery: a blocking handler stalls the whole inbound
		// path, acks included. Consumers bound their publish waits.
		SetOrderMatters(true).
		SetDefaultPublishHandler(c.deliver).
		SetConnectionLostHandler(c.connectionLost)
	if c.config.ConnectTimeout > 0 {
		o.SetConnectTimeout(c.config.ConnectTimeout)
	}
	if c.config.KeepAlive > 0 {
		o.SetKeepAlive(c.config.KeepAlive)
	}
	if w := opts.Will; w != nil {
		o.SetBinaryWill(w.Topic, w.Payload, w.QoS, w.Retain)
	}
	return o
}

// Publish sends payload on topic and waits for the QoS handshake.
func (c *MQTTClient) Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error {
	if err := validQoS(opts.QoS); err != nil {
		return opError("publish", topic, err)
	}
	client, err := c.connected()
	if err != nil {
		return opError("publish", topic, err)
	}
	if err := wait(ctx, client.Publish(topic, opts.QoS, opts.Retain, payload)); err != nil {
		return opError("publish", topic, err)
	}
	return nil
}

// Subscribe adds a subscription routed to the OnMessage handler.
func (c *MQTTClient) Subscribe(ctx context.Context, topic string, opts SubscribeOptions) error {
	if err := validQoS(opts.QoS); err != nil {
		return opError("subscribe", topic, err)
	}
	client, err := c.connected()
	if err != nil {
		return opError("subscribe", topic, err)
	}
	// A nil callback routes matches to the default publish handler.
	if err := wait(ctx, client.Subscribe(topic, opts.QoS, nil)); err != nil {
		return opError("subscribe", topic, err)
	}
	return nil
}

// Unsubscribe removes a subscription.
func (c *MQTTClient) Unsubscribe(ctx context.Context, topic string) error {
	client, err := c.connected()
	if err != nil {
		return opError("unsubscribe", topic, err)
	}
	if err := wait(ctx, client.Unsubscribe(topic)); err != nil {
		return opError("unsubscribe", topic, err)
	}
	return nil
}

// Disconnect closes the session cleanly, which suppresses the will.
func (c *MQTTClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return opError("disconnect", "", ErrNotConnected)
	}
	client := c.client
	c.state = StateClosing
	c.mu.Unlock()

	quiesce := c.config.DisconnectQuiesce
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < quiesce {
			quiesce = max(remaining, 0)
		}
	}
	client.Disconnect(uint(quiesce.Milliseconds()))

	c.setState(StateDisconnected)
	c.debugLog("disconnected")
	return nil
}

func (c *MQTTClient) connected() (mqtt.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected {
		return nil, ErrNotConnected
	}
	return c.client, nil
}

func (c *MQTTClient) deliver(_ mqtt.Client, m mqtt.Message) {
	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return
	}
	handler(Message{Topic: m.Topic(), Payload: m.Payload(), Retained: m.Retained()})
}

func (c *MQTTClient) connectionLost(_ mqtt.Client, err error) {
	c.setState(StateDisconnected)
	if c.config.Logger != nil {
		c.config.Logger.Warn("broker connection lost", "error", err)
	}
	if c.config.OnConnectionLost != nil {
		c.config.OnConnectionLost(err)
	}
}

func (c *MQTTClient) setState(s ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *MQTTClient) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}

// wait blocks until the token completes or ctx is done.
func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
