package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rtsm-protocol/rtsm-go/pkg/log"
	"github.com/rtsm-protocol/rtsm-go/pkg/metrics"
	"github.com/rtsm-protocol/rtsm-go/pkg/model"
	"github.com/rtsm-protocol/rtsm-go/pkg/presence"
	"github.com/rtsm-protocol/rtsm-go/pkg/schema"
	"github.com/rtsm-protocol/rtsm-go/pkg/topic"
	"github.com/rtsm-protocol/rtsm-go/pkg/transport"
	"github.com/rtsm-protocol/rtsm-go/pkg/wire"
)

// Node is one RTSM participant: a local device with its models, connected
// to a broker.
type Node struct {
	mu sync.RWMutex

	config   Config
	id       string
	state    NodeState
	client   transport.Client
	registry *model.Registry
	presence *presence.Tracker
	handlers Handlers

	// Serializes inbound dispatch with Introduce.
	dispatchMu sync.Mutex

	// Inbound queue fed by the transport callback.
	inbox chan transport.Message

	// Dispatch goroutine lifetime.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	validator      schema.Validator
	logger         *slog.Logger
	protocolLogger log.Logger
	metrics        *metrics.Collector
}

// New creates an idle node with a fresh device ID.
func New(client transport.Client, config Config) (*Node, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil transport client", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Validator == nil {
		config.Validator = schema.NewJSONSchemaValidator()
	}
	if config.Broker == "" {
		config.Broker = transport.DefaultBroker
	}

	n := &Node{
		config:         config,
		id:             uuid.NewString(),
		state:          StateIdle,
		client:         client,
		handlers:       config.Handlers.withDefaults(),
		inbox:          make(chan transport.Message, config.InboxSize),
		validator:      config.Validator,
		logger:         config.Logger,
		protocolLogger: config.ProtocolLogger,
		metrics:        config.Metrics,
	}
	n.registry = model.NewRegistry(n.id, config.Name, config.Validator)
	n.presence = presence.NewTracker(n.id, client, n.registry, presence.Config{
		QoS:    config.QoS,
		OnLeft: n.deviceLeft,
		Logger: config.Logger,
	})
	return n, nil
}

// ID returns the local device ID.
func (n *Node) ID() string {
	return n.id
}

// State returns the current lifecycle state.
func (n *Node) State() NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// PresenceState returns the local presence state.
func (n *Node) PresenceState() presence.State {
	return n.presence.State()
}

// Device returns a copy of the local device.
func (n *Node) Device() model.Device {
	return n.registry.Local()
}

// Model returns a copy of a local model.
func (n *Node) Model(name string) (*model.Model, bool) {
	return n.registry.FindModel(name)
}

// Models returns copies of the local models in registration order.
func (n *Node) Models() []*model.Model {
	return n.registry.Models()
}

// RemoteDevice returns a copy of a known remote device.
func (n *Node) RemoteDevice(id string) (model.Device, bool) {
	return n.registry.RemoteDevice(id)
}

// Devices returns the remote devices participating in a local model.
// With requireHasState only devices holding state for it are returned.
func (n *Node) Devices(modelName string, requireHasState bool) ([]model.Device, error) {
	if !n.registry.HasModel(modelName) {
		return nil, fmt.Errorf("%w: %q", model.ErrModelNotFound, modelName)
	}
	return n.registry.DevicesForModel(modelName, requireHasState), nil
}

// RegisterModel adds a local model from its JSON document and returns its ID.
// Registering a name twice returns the existing ID. Models must be registered
// before Introduce.
func (n *Node) RegisterModel(doc json.RawMessage) (string, error) {
	if n.State() != StateIdle {
		return "", ErrAlreadyIntroduced
	}
	id, err := n.registry.RegisterModel(doc)
	if err != nil {
		return "", err
	}
	n.metrics.SetLocalModels(n.registry.ModelCount())
	return id, nil
}

// Introduce connects to the broker and announces the node.
//
// For every model, in registration order, it subscribes {model}/{id},
// publishes a new-device announcement on {model} and subscribes {model}.
// It then publishes presence. A peer that announces itself between our
// announcement and the shared subscription is missed until it announces
// again.
//
// Introduce fails with ErrNoModels, without any transport call, when no
// model is registered. A transport failure is returned as is; the node
// disconnects and returns to StateIdle so the caller may try again.
func (n *Node) Introduce(ctx context.Context) error {
	n.dispatchMu.Lock()
	defer n.dispatchMu.Unlock()

	n.mu.Lock()
	switch n.state {
	case StateIdle:
	case StateClosing, StateClosed:
		n.mu.Unlock()
		return ErrClosed
	default:
		n.mu.Unlock()
		return ErrAlreadyIntroduced
	}
	if n.registry.ModelCount() == 0 {
		n.mu.Unlock()
		return ErrNoModels
	}
	n.state = StateIntroducing
	n.mu.Unlock()

	n.client.OnMessage(n.enqueue)

	err := n.client.Connect(ctx, transport.ConnectOptions{
		Broker:   n.config.Broker,
		Port:     n.config.Port,
		ClientID: n.id,
		Clean:    n.config.CleanSession,
		Will:     n.presence.Will(),
	})
	if err != nil {
		n.transportFailed("connect", "", err)
		n.setState(StateIdle)
		return fmt.Errorf("connect: %w", err)
	}
	n.logState(log.StateEntityConnection, transport.StateDisconnected.String(), transport.StateConnected.String(), "")
	n.startDispatch()

	if err := n.announceAll(ctx); err != nil {
		n.abortIntroduce()
		return err
	}

	if err := n.presence.GoOnline(ctx); err != nil {
		n.transportFailed("presence", topic.Presence(n.id).String(), err)
		n.abortIntroduce()
		return err
	}
	n.logState(log.StateEntityPresence, presence.StateOffline.String(), presence.StateOnline.String(), "introduce")

	n.setState(StateRunning)
	n.debugLog("node introduced", "id", n.id, "models", n.registry.ModelCount())
	return nil
}

func (n *Node) announceAll(ctx context.Context) error {
	for _, m := range n.registry.Models() {
		directed := topic.Directed(m.Name, n.id).String()
		if err := n.subscribe(ctx, directed); err != nil {
			return fmt.Errorf("announce %s: %w", m.Name, err)
		}
		announcement := &wire.DeviceData{Device: n.registry.Local(), New: true}
		if err := n.publish(ctx, m.Name, topic.Shared(m.Name), announcement); err != nil {
			return fmt.Errorf("announce %s: %w", m.Name, err)
		}
		if err := n.subscribe(ctx, topic.Shared(m.Name).String()); err != nil {
			return fmt.Errorf("announce %s: %w", m.Name, err)
		}
	}
	return nil
}

// abortIntroduce undoes a partially successful Introduce. Peers may already
// have registered the node from its announcements, and the clean disconnect
// suppresses the will, so presence is withdrawn explicitly first.
func (n *Node) abortIntroduce() {
	n.stopDispatch(false)
	ctx, cancel := context.WithTimeout(context.Background(), n.config.ReplyTimeout)
	defer cancel()
	if err := n.presence.Withdraw(ctx); err != nil {
		n.transportFailed("presence", topic.Presence(n.id).String(), err)
	}
	if err := n.client.Disconnect(ctx); err != nil {
		n.debugLog("disconnect after failed introduce", "error", err)
	}
	n.setState(StateIdle)
}

// Close retracts the node's presence and disconnects. The retraction is
// published explicitly because a clean disconnect suppresses the will.
// Close must not be called from a handler.
func (n *Node) Close(ctx context.Context) error {
	n.mu.Lock()
	switch n.state {
	case StateRunning:
	case StateIdle:
		n.state = StateClosed
		n.mu.Unlock()
		return nil
	case StateClosing, StateClosed:
		n.mu.Unlock()
		return nil
	default:
		n.mu.Unlock()
		return ErrNotIntroduced
	}
	n.state = StateClosing
	n.mu.Unlock()

	var errs []error
	if err := n.presence.Retract(ctx); err != nil {
		n.transportFailed("presence", topic.Presence(n.id).String(), err)
		errs = append(errs, err)
	} else {
		n.logState(log.StateEntityPresence, presence.StateOnline.String(), presence.StateOffline.String(), "close")
	}
	if err := n.client.Disconnect(ctx); err != nil {
		n.transportFailed("disconnect", "", err)
		errs = append(errs, fmt.Errorf("disconnect: %w", err))
	} else {
		n.logState(log.StateEntityConnection, transport.StateConnected.String(), transport.StateDisconnected.String(), "close")
	}

	n.stopDispatch(true)
	n.setState(StateClosed)
	n.debugLog("node closed", "id", n.id)
	return errors.Join(errs...)
}

func (n *Node) setState(s NodeState) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

func (n *Node) requireRunning() error {
	switch n.State() {
	case StateRunning:
		return nil
	case StateClosing, StateClosed:
		return ErrClosed
	default:
		return ErrNotIntroduced
	}
}

// debugLog logs a debug message if logging is enabled.
func (n *Node) debugLog(msg string, args ...any) {
	if n.logger != nil {
		n.logger.Debug(msg, args...)
	}
}
