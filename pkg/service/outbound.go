package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rtsm-protocol/rtsm-go/pkg/model"
	"github.com/rtsm-protocol/rtsm-go/pkg/topic"
	"github.com/rtsm-protocol/rtsm-go/pkg/wire"
)

// SetState replaces the locally held state of a model. The state is sent to
// peers only through SendState.
func (n *Node) SetState(modelName string, state json.RawMessage) error {
	return n.registry.SetState(modelName, state)
}

// SendState publishes the local state of a model to one device on
// {model}/{deviceID}.
func (n *Node) SendState(ctx context.Context, modelName, deviceID string) error {
	m, err := n.outboundModel(modelName)
	if err != nil {
		return err
	}
	data := &wire.ResponseStateData{Device: n.registry.Local(), State: m.State}
	return n.publish(ctx, m.Name, topic.Directed(m.Name, deviceID), data)
}

// RequestState asks one device for its state of a model.
func (n *Node) RequestState(ctx context.Context, modelName, deviceID string) error {
	m, err := n.outboundModel(modelName)
	if err != nil {
		return err
	}
	data := &wire.RequestStateData{Device: n.registry.Local()}
	return n.publish(ctx, m.Name, topic.Directed(m.Name, deviceID), data)
}

// RequestMigration asks one device to take over a model.
func (n *Node) RequestMigration(ctx context.Context, modelName, deviceID string) error {
	m, err := n.outboundModel(modelName)
	if err != nil {
		return err
	}
	data := &wire.MigrationData{Device: n.registry.Local()}
	return n.publish(ctx, m.Name, topic.Directed(m.Name, deviceID), data)
}

// AnnounceHasState records whether this node holds valid state for a model
// and broadcasts the change on {model}.
func (n *Node) AnnounceHasState(ctx context.Context, modelName string, value bool) error {
	m, err := n.outboundModel(modelName)
	if err != nil {
		return err
	}
	if err := n.registry.SetLocalHasState(m.Name, value); err != nil {
		return err
	}
	data := &wire.HasStateData{Device: n.registry.Local(), Value: value}
	return n.publish(ctx, m.Name, topic.Shared(m.Name), data)
}

func (n *Node) outboundModel(name string) (*model.Model, error) {
	m, ok := n.registry.FindModel(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrModelNotFound, name)
	}
	if err := n.requireRunning(); err != nil {
		return nil, err
	}
	return m, nil
}
