package service

import (
	"context"
	"slices"
	"time"

	"github.com/rtsm-protocol/rtsm-go/pkg/log"
	"github.com/rtsm-protocol/rtsm-go/pkg/model"
	"github.com/rtsm-protocol/rtsm-go/pkg/presence"
	"github.com/rtsm-protocol/rtsm-go/pkg/topic"
	"github.com/rtsm-protocol/rtsm-go/pkg/transport"
	"github.com/rtsm-protocol/rtsm-go/pkg/wire"
)

// enqueue is the transport callback. It blocks while the inbox is full.
func (n *Node) enqueue(msg transport.Message) {
	n.mu.RLock()
	ctx := n.ctx
	n.mu.RUnlock()

	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}
	select {
	case n.inbox <- msg:
	case <-done:
	}
}

func (n *Node) startDispatch() {
	ctx, cancel := context.WithCancel(context.Background())
	n.mu.Lock()
	n.ctx, n.cancel = ctx, cancel
	n.mu.Unlock()

	n.wg.Add(1)
	go n.run(ctx)
}

// stopDispatch cancels the dispatch goroutine. With wait it also blocks
// until the goroutine has returned; callers holding dispatchMu must not wait.
func (n *Node) stopDispatch(wait bool) {
	n.mu.Lock()
	cancel := n.cancel
	n.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if wait {
		n.wg.Wait()
	}
}

func (n *Node) run(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.inbox:
			n.dispatchMu.Lock()
			if ctx.Err() != nil {
				n.dispatchMu.Unlock()
				return
			}
			n.dispatch(msg.Topic, msg.Payload)
			n.dispatchMu.Unlock()
		}
	}
}

// HandleMessage processes one inbound message synchronously. It is the entry
// point used by the dispatch goroutine and is exported for embedding the node
// behind a custom transport loop.
func (n *Node) HandleMessage(topicName string, payload []byte) {
	n.dispatchMu.Lock()
	defer n.dispatchMu.Unlock()
	n.dispatch(topicName, payload)
}

// dispatch must be called with dispatchMu held.
func (n *Node) dispatch(topicName string, payload []byte) {
	start := time.Now()

	t, err := topic.Parse(topicName)
	if err != nil {
		n.drop(topicName, topic.Topic{}, "", log.DropMalformedTopic, err.Error(), len(payload))
		return
	}
	if t.IsPresence() {
		n.handlePresence(topicName, t.Target, payload)
		return
	}

	m, ok := n.registry.FindModel(t.Main)
	if !ok {
		n.drop(topicName, t, "", log.DropUnknownModel, "", len(payload))
		return
	}

	env, data, err := wire.Decode(payload)
	if err != nil {
		n.drop(topicName, t, "", log.DropMalformedEnvelope, err.Error(), len(payload))
		return
	}
	sender := data.Sender()
	if sender.ID == n.id {
		n.drop(topicName, t, sender.ID, log.DropSelf, string(env.Action), len(payload))
		return
	}
	if env.Action.RequiresDirectedTopic() && t.Target != n.id {
		n.drop(topicName, t, sender.ID, log.DropMisaddressed, string(env.Action), len(payload))
		return
	}

	n.logMessage(log.DirectionIn, topicName, m.Name, sender.ID, string(env.Action), payload)

	switch d := data.(type) {
	case *wire.DeviceData:
		n.handleDevice(m, d)
	case *wire.HasStateData:
		n.handleHasState(m, d)
	case *wire.RequestStateData:
		n.handlers.OnStateRequested(StateRequested{ModelName: m.Name, Device: d.Device})
	case *wire.ResponseStateData:
		n.handleResponseState(m, d)
	case *wire.MigrationData:
		n.handlers.OnMigrationRequested(MigrationRequested{ModelName: m.Name, Device: d.Device})
	}

	n.metrics.RecordReceived(string(env.Action), time.Since(start))
}

func (n *Node) handleDevice(m *model.Model, d *wire.DeviceData) {
	dev := n.registry.UpsertRemoteDevice(d.Device.ID, d.Device.Name, m.Name)
	if slices.Contains(d.Device.HasState, m.Name) {
		n.registry.SetHasState(dev.ID, m.Name, true)
		dev, _ = n.registry.RemoteDevice(dev.ID)
	}
	n.metrics.SetRemoteDevices(n.registry.RemoteCount())
	n.debugLog("device announced", "model", m.Name, "device_id", dev.ID, "new", d.New)

	if !d.New {
		return
	}

	ctx, cancel := n.replyContext()
	defer cancel()
	reply := &wire.DeviceData{Device: n.registry.Local(), New: false}
	if err := n.publish(ctx, m.Name, topic.Directed(m.Name, dev.ID), reply); err != nil {
		n.debugLog("device reply failed", "model", m.Name, "device_id", dev.ID, "error", err)
	}
	n.handlers.OnDeviceJoined(DeviceJoined{ModelName: m.Name, Device: dev})
}

func (n *Node) handleHasState(m *model.Model, d *wire.HasStateData) {
	if !n.registry.SetHasState(d.Device.ID, m.Name, d.Value) {
		n.debugLog("has-state from unknown device", "model", m.Name, "device_id", d.Device.ID)
	}
}

func (n *Node) handleResponseState(m *model.Model, d *wire.ResponseStateData) {
	valid := n.validator.Validate(m.Content, d.State)
	if !valid {
		n.debugLog("received state does not match schema", "model", m.Name, "device_id", d.Device.ID)
	}
	n.handlers.OnStateReceived(StateReceived{
		ModelName: m.Name,
		Device:    d.Device,
		State:     d.State,
		Valid:     valid,
	})
}

func (n *Node) handlePresence(topicName, deviceID string, payload []byte) {
	outcome, err := n.presence.Handle(deviceID, payload)
	if err != nil {
		n.drop(topicName, topic.Presence(deviceID), deviceID, log.DropInvalidPresence, err.Error(), len(payload))
		return
	}
	if outcome == presence.OutcomeSelf {
		n.drop(topicName, topic.Presence(deviceID), deviceID, log.DropSelf, "presence", len(payload))
		return
	}

	n.logProtocol(log.Event{
		Direction: log.DirectionIn,
		Category:  log.CategoryPresence,
		Topic:     topicName,
		PeerID:    deviceID,
		Presence:  &log.PresenceEvent{DeviceID: deviceID, Online: outcome == presence.OutcomeOnline},
	})
	n.metrics.RecordPresence(outcome.String())
}

// deviceLeft is the presence tracker's OnLeft hook. It runs on the dispatch
// goroutine.
func (n *Node) deviceLeft(dev model.Device) {
	n.metrics.SetRemoteDevices(n.registry.RemoteCount())
	n.debugLog("device left", "device_id", dev.ID)
	n.handlers.OnDeviceLeft(DeviceLeft{Device: dev})
}

func (n *Node) replyContext() (context.Context, context.CancelFunc) {
	n.mu.RLock()
	base := n.ctx
	n.mu.RUnlock()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, n.config.ReplyTimeout)
}
