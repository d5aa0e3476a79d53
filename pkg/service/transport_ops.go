package service

import (
	"context"
	"time"

	"github.com/rtsm-protocol/rtsm-go/pkg/log"
	"github.com/rtsm-protocol/rtsm-go/pkg/topic"
	"github.com/rtsm-protocol/rtsm-go/pkg/transport"
	"github.com/rtsm-protocol/rtsm-go/pkg/wire"
)

// publish encodes data and sends it on t with the configured QoS.
func (n *Node) publish(ctx context.Context, modelName string, t topic.Topic, data wire.Data) error {
	payload, err := wire.Encode(data)
	if err != nil {
		return err
	}
	name := t.String()
	if err := n.client.Publish(ctx, name, payload, transport.PublishOptions{QoS: n.config.QoS}); err != nil {
		n.transportFailed("publish", name, err)
		return err
	}
	n.metrics.RecordPublished(string(data.Action()))
	n.logMessage(log.DirectionOut, name, modelName, t.Target, string(data.Action()), payload)
	return nil
}

func (n *Node) subscribe(ctx context.Context, name string) error {
	if err := n.client.Subscribe(ctx, name, transport.SubscribeOptions{QoS: n.config.QoS}); err != nil {
		n.transportFailed("subscribe", name, err)
		return err
	}
	n.debugLog("subscribed", "topic", name)
	return nil
}

// transportFailed records a failed transport operation.
func (n *Node) transportFailed(op, topicName string, err error) {
	n.metrics.RecordTransportError(op)
	n.debugLog("transport operation failed", "op", op, "topic", topicName, "error", err)
	n.logProtocol(log.Event{
		Direction: log.DirectionOut,
		Category:  log.CategoryError,
		Topic:     topicName,
		Error:     &log.ErrorEventData{Operation: op, Message: err.Error()},
	})
}

// drop records ignored inbound traffic.
func (n *Node) drop(topicName string, t topic.Topic, peerID string, reason log.DropReason, detail string, size int) {
	n.metrics.RecordDropped(string(reason))
	n.debugLog("message dropped", "topic", topicName, "reason", reason, "detail", detail)
	modelName := t.Main
	if t.IsPresence() {
		modelName = ""
	}
	n.logProtocol(log.Event{
		Direction: log.DirectionIn,
		Category:  log.CategoryDrop,
		Topic:     topicName,
		Model:     modelName,
		PeerID:    peerID,
		Drop:      &log.DropEvent{Reason: reason, Detail: detail, Size: size},
	})
}

func (n *Node) logMessage(dir log.Direction, topicName, modelName, peerID, action string, payload []byte) {
	n.logProtocol(log.Event{
		Direction: dir,
		Category:  log.CategoryMessage,
		Topic:     topicName,
		Model:     modelName,
		PeerID:    peerID,
		Message:   log.NewMessageEvent(action, payload),
	})
}

func (n *Node) logState(entity log.StateEntity, oldState, newState, reason string) {
	n.logProtocol(log.Event{
		Direction: log.DirectionOut,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (n *Node) logProtocol(event log.Event) {
	if n.protocolLogger == nil {
		return
	}
	event.Timestamp = time.Now()
	event.NodeID = n.id
	n.protocolLogger.Log(event)
}
