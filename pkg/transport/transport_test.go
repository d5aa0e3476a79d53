package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWrapsTransport(t *testing.T) {
	cause := errors.New("broker gone")
	err := fmt.Errorf("introduce: %w", opError("subscribe", "chat", cause))

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "subscribe", te.Op)
	assert.Equal(t, "chat", te.Topic)
	assert.Contains(t, te.Error(), `subscribe "chat"`)
}

func TestErrorWithoutTopic(t *testing.T) {
	err := opError("connect", "", ErrEmptyClientID)
	assert.Equal(t, "transport: connect: empty client id", err.Error())
}

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateClosing, "CLOSING"},
		{ConnectionState(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		broker string
		port   int
		want   string
	}{
		{"", 0, "tcp://localhost:1883"},
		{"tcp://broker.local:1884", 0, "tcp://broker.local:1884"},
		{"tcp://broker.local", 0, "tcp://broker.local:1883"},
		{"broker.local", 0, "tcp://broker.local:1883"},
		{"localhost:1885", 0, "tcp://localhost:1885"},
		{"tcp://broker.local:1884", 8883, "tcp://broker.local:8883"},
		{"ssl://secure.example:8883", 0, "ssl://secure.example:8883"},
	}
	for _, tt := range tests {
		t.Run(tt.broker, func(t *testing.T) {
			got, err := BrokerURL(tt.broker, tt.port)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMQTTClientRequiresConnection(t *testing.T) {
	c := NewMQTTClient(DefaultMQTTConfig())
	ctx := context.Background()

	assert.Equal(t, StateDisconnected, c.State())
	assert.ErrorIs(t, c.Publish(ctx, "chat", []byte("x"), PublishOptions{QoS: 1}), ErrNotConnected)
	assert.ErrorIs(t, c.Subscribe(ctx, "chat", SubscribeOptions{QoS: 1}), ErrNotConnected)
	assert.ErrorIs(t, c.Unsubscribe(ctx, "chat"), ErrNotConnected)
	assert.ErrorIs(t, c.Disconnect(ctx), ErrNotConnected)
}

func TestMQTTClientValidatesOptions(t *testing.T) {
	c := NewMQTTClient(DefaultMQTTConfig())
	ctx := context.Background()

	err := c.Connect(ctx, ConnectOptions{})
	assert.ErrorIs(t, err, ErrEmptyClientID)

	err = c.Connect(ctx, ConnectOptions{ClientID: "a", Will: &Will{Topic: "online/a", QoS: 3}})
	assert.ErrorIs(t, err, ErrInvalidQoS)

	err = c.Publish(ctx, "chat", nil, PublishOptions{QoS: 7})
	assert.ErrorIs(t, err, ErrInvalidQoS)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestMQTTClientConnectionLost(t *testing.T) {
	var lost error
	cfg := DefaultMQTTConfig()
	cfg.OnConnectionLost = func(err error) { lost = err }
	c := NewMQTTClient(cfg)
	c.setState(StateConnected)

	c.connectionLost(nil, errors.New("EOF"))

	assert.Equal(t, StateDisconnected, c.State())
	assert.EqualError(t, lost, "EOF")
}
