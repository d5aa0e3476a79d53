package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rtsm-protocol/rtsm-go/pkg/model"
	"github.com/rtsm-protocol/rtsm-go/pkg/topic"
	"github.com/rtsm-protocol/rtsm-go/pkg/transport"
	"github.com/rtsm-protocol/rtsm-go/pkg/wire"
)

// ErrAlreadyOnline is returned by GoOnline after the first successful call.
var ErrAlreadyOnline = errors.New("presence already online")

// State is the local presence state.
type State uint8

const (
	// StateOffline is the initial state, and the state after Retract.
	StateOffline State = iota

	// StateOnline is entered once the presence announcement succeeded.
	StateOnline
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOffline:
		return "OFFLINE"
	case StateOnline:
		return "ONLINE"
	default:
		return "UNKNOWN"
	}
}

// Outcome classifies a handled presence payload.
type Outcome uint8

const (
	// OutcomeSelf means the payload was about the local device and ignored.
	OutcomeSelf Outcome = iota

	// OutcomeOnline means the device reported itself alive. Nothing changes;
	// devices become known through model announcements.
	OutcomeOnline

	// OutcomeLeft means a known device went away and was removed.
	OutcomeLeft

	// OutcomeUnknown means an unknown device went away.
	OutcomeUnknown
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSelf:
		return "self"
	case OutcomeOnline:
		return "online"
	case OutcomeLeft:
		return "left"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// DeviceRemover removes remote devices. Implemented by *model.Registry.
type DeviceRemover interface {
	RemoveDevice(id string) (model.Device, bool)
}

// Config configures a Tracker.
type Config struct {
	// QoS is used for the will, the presence publication and the subscription.
	QoS byte

	// OnLeft is called once for every known device whose presence turns false.
	OnLeft func(model.Device)

	// Logger is used for debug output. If nil, logging is disabled.
	Logger *slog.Logger
}

// Tracker manages the presence of the local device and interprets the
// presence of others.
type Tracker struct {
	localID string
	client  transport.Client
	devices DeviceRemover
	config  Config

	mu    sync.Mutex
	state State
}

// NewTracker creates an offline tracker for localID.
func NewTracker(localID string, client transport.Client, devices DeviceRemover, config Config) *Tracker {
	if config.OnLeft == nil {
		config.OnLeft = func(model.Device) {}
	}
	return &Tracker{
		localID: localID,
		client:  client,
		devices: devices,
		config:  config,
	}
}

// State returns the current local presence state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Will returns the last-will to register on the broker connection: a
// retained empty payload on the local presence topic.
func (t *Tracker) Will() *transport.Will {
	return &transport.Will{
		Topic:   topic.Presence(t.localID).String(),
		Payload: wire.EncodePresence(false),
		QoS:     t.config.QoS,
		Retain:  true,
	}
}

// GoOnline announces the local device: it publishes retained "true" on
// online/{id}, subscribes to online/+ and unsubscribes online/{id}.
// The state moves to StateOnline only if all three steps succeed.
func (t *Tracker) GoOnline(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateOnline {
		return ErrAlreadyOnline
	}

	own := topic.Presence(t.localID).String()
	if err := t.client.Publish(ctx, own, wire.EncodePresence(true), transport.PublishOptions{QoS: t.config.QoS, Retain: true}); err != nil {
		return fmt.Errorf("publish presence: %w", err)
	}
	if err := t.client.Subscribe(ctx, topic.PresenceFilter(), transport.SubscribeOptions{QoS: t.config.QoS}); err != nil {
		return fmt.Errorf("subscribe presence: %w", err)
	}
	// The wildcard still matches our own topic; Handle ignores it.
	if err := t.client.Unsubscribe(ctx, own); err != nil {
		return fmt.Errorf("unsubscribe own presence: %w", err)
	}

	t.state = StateOnline
	t.debugLog("presence online", "device_id", t.localID)
	return nil
}

// Retract publishes the retained empty payload on online/{id}, as the
// broker would on an unexpected disconnect. It does nothing when offline.
func (t *Tracker) Retract(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateOnline {
		return nil
	}
	own := topic.Presence(t.localID).String()
	if err := t.client.Publish(ctx, own, wire.EncodePresence(false), transport.PublishOptions{QoS: t.config.QoS, Retain: true}); err != nil {
		return fmt.Errorf("retract presence: %w", err)
	}
	t.state = StateOffline
	t.debugLog("presence retracted", "device_id", t.localID)
	return nil
}

// Withdraw publishes the retained empty payload on online/{id} whatever the
// current state. It undoes a partial GoOnline, or an announcement made before
// presence, on a connection that will be closed cleanly.
func (t *Tracker) Withdraw(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	own := topic.Presence(t.localID).String()
	if err := t.client.Publish(ctx, own, wire.EncodePresence(false), transport.PublishOptions{QoS: t.config.QoS, Retain: true}); err != nil {
		return fmt.Errorf("withdraw presence: %w", err)
	}
	t.state = StateOffline
	t.debugLog("presence withdrawn", "device_id", t.localID)
	return nil
}

// Handle interprets a presence payload published on online/{deviceID}.
// A false presence removes the device and calls OnLeft exactly once per
// removal.
func (t *Tracker) Handle(deviceID string, payload []byte) (Outcome, error) {
	if deviceID == t.localID {
		return OutcomeSelf, nil
	}

	online, err := wire.DecodePresence(payload)
	if err != nil {
		return OutcomeUnknown, err
	}
	if online {
		return OutcomeOnline, nil
	}

	dev, ok := t.devices.RemoveDevice(deviceID)
	if !ok {
		return OutcomeUnknown, nil
	}
	t.debugLog("device left", "device_id", deviceID)
	t.config.OnLeft(dev)
	return OutcomeLeft, nil
}

func (t *Tracker) debugLog(msg string, args ...any) {
	if t.config.Logger != nil {
		t.config.Logger.Debug(msg, args...)
	}
}
