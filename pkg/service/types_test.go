package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtsm-protocol/rtsm-go/pkg/transport"
)

func TestNodeStateString(t *testing.T) {
	tests := []struct {
		state NodeState
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateIntroducing, "INTRODUCING"},
		{StateRunning, "RUNNING"},
		{StateClosing, "CLOSING"},
		{StateClosed, "CLOSED"},
		{NodeState(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, transport.DefaultBroker, cfg.Broker)
	assert.Equal(t, byte(2), cfg.QoS)
	assert.True(t, cfg.CleanSession)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"qos", func(c *Config) { c.QoS = 3 }},
		{"inbox", func(c *Config) { c.InboxSize = 0 }},
		{"reply timeout", func(c *Config) { c.ReplyTimeout = 0 }},
		{"port", func(c *Config) { c.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestHandlersWithDefaults(t *testing.T) {
	h := Handlers{}.withDefaults()
	assert.NotPanics(t, func() {
		h.OnDeviceJoined(DeviceJoined{})
		h.OnDeviceLeft(DeviceLeft{})
		h.OnStateRequested(StateRequested{})
		h.OnStateReceived(StateReceived{})
		h.OnMigrationRequested(MigrationRequested{})
	})

	called := false
	h = Handlers{OnDeviceLeft: func(DeviceLeft) { called = true }}.withDefaults()
	h.OnDeviceLeft(DeviceLeft{})
	assert.True(t, called)
}

func TestNewRejectsInvalidInput(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := DefaultConfig()
	cfg.QoS = 9
	_, err = New(transport.NewMemoryBroker().NewClient(), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
