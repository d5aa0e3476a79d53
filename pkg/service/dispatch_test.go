package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rtsm-protocol/rtsm-go/pkg/log"
	"github.com/rtsm-protocol/rtsm-go/pkg/transport"
	"github.com/rtsm-protocol/rtsm-go/pkg/transport/mocks"
	"github.com/rtsm-protocol/rtsm-go/pkg/wire"
)

func TestHandleNewDeviceRepliesAndJoins(t *testing.T) {
	client := mocks.NewMockClient(t)
	rec := &recorder{}
	b := newTestNode(t, client, rec, nil, chatDoc)

	client.On("Publish", mock.Anything, "chat/A", mock.MatchedBy(func(p []byte) bool {
		d, ok := decodeData(p).(*wire.DeviceData)
		return ok && d.Device.ID == b.ID() && !d.New && d.Device.Name == "test-node" &&
			len(d.Device.Models) == 1 && d.Device.Models[0] == "chat"
	}), transport.PublishOptions{QoS: 2}).Return(nil).Once()

	b.HandleMessage("chat", envelope(t, &wire.DeviceData{Device: peer("A", "chat"), New: true}))

	dev, ok := b.RemoteDevice("A")
	require.True(t, ok)
	assert.Equal(t, []string{"chat"}, dev.Models)
	assert.Equal(t, "peer A", dev.Name)

	joined, _, _, _, _ := rec.counts()
	require.Equal(t, 1, joined)
	assert.Equal(t, "chat", rec.joined[0].ModelName)
	assert.Equal(t, "A", rec.joined[0].Device.ID)
}

func TestHandleDeviceReplyDoesNotJoin(t *testing.T) {
	client := mocks.NewMockClient(t)
	rec := &recorder{}
	a := newTestNode(t, client, rec, nil, chatDoc, todoDoc)

	a.HandleMessage("chat/"+a.ID(), envelope(t, &wire.DeviceData{Device: peer("B", "chat", "todo")}))
	a.HandleMessage("todo", envelope(t, &wire.DeviceData{Device: peer("B", "chat", "todo")}))
	a.HandleMessage("chat", envelope(t, &wire.DeviceData{Device: peer("B")}))

	dev, ok := a.RemoteDevice("B")
	require.True(t, ok)
	assert.Equal(t, []string{"chat", "todo"}, dev.Models)

	devices, err := a.Devices("chat", false)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	joined, _, _, _, _ := rec.counts()
	assert.Equal(t, 0, joined)
}

func TestHandleDeviceAnnouncedHasState(t *testing.T) {
	a := newTestNode(t, mocks.NewMockClient(t), nil, nil, chatDoc)

	dev := peer("B", "chat")
	dev.HasState = []string{"chat"}
	a.HandleMessage("chat", envelope(t, &wire.DeviceData{Device: dev}))

	holders, err := a.Devices("chat", true)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, "B", holders[0].ID)
}

func TestHandleHasState(t *testing.T) {
	a := newTestNode(t, mocks.NewMockClient(t), nil, nil, chatDoc)

	// Unknown device: no-op.
	a.HandleMessage("chat", envelope(t, &wire.HasStateData{Device: peer("B"), Value: true}))
	_, ok := a.RemoteDevice("B")
	assert.False(t, ok)

	a.HandleMessage("chat", envelope(t, &wire.DeviceData{Device: peer("B", "chat")}))

	// Removing a never-held model changes nothing.
	a.HandleMessage("chat", envelope(t, &wire.HasStateData{Device: peer("B"), Value: false}))
	dev, _ := a.RemoteDevice("B")
	assert.Empty(t, dev.HasState)
	assert.Equal(t, []string{"chat"}, dev.Models)

	a.HandleMessage("chat", envelope(t, &wire.HasStateData{Device: peer("B"), Value: true}))
	dev, _ = a.RemoteDevice("B")
	assert.Equal(t, []string{"chat"}, dev.HasState)

	a.HandleMessage("chat", envelope(t, &wire.HasStateData{Device: peer("B"), Value: false}))
	dev, _ = a.RemoteDevice("B")
	assert.Empty(t, dev.HasState)
}

func TestHandleRequestStateRequiresDirectedTopic(t *testing.T) {
	rec := &recorder{}
	events := &eventLog{}
	a := newTestNode(t, mocks.NewMockClient(t), rec, events, chatDoc)
	req := envelope(t, &wire.RequestStateData{Device: peer("B")})

	a.HandleMessage("chat", req)
	a.HandleMessage("chat/someone-else", req)
	a.HandleMessage("chat/"+a.ID(), req)

	_, _, requested, _, _ := rec.counts()
	require.Equal(t, 1, requested)
	assert.Equal(t, StateRequested{ModelName: "chat", Device: peer("B")}, rec.requested[0])
	assert.Equal(t, []log.DropReason{log.DropMisaddressed, log.DropMisaddressed}, events.drops())
}

func TestHandleResponseStateValidity(t *testing.T) {
	rec := &recorder{}
	a := newTestNode(t, mocks.NewMockClient(t), rec, nil, chatDoc)
	directed := "chat/" + a.ID()

	good := json.RawMessage(`{"messages": ["hi"]}`)
	bad := json.RawMessage(`{"messages": "hi"}`)

	a.HandleMessage(directed, envelope(t, &wire.ResponseStateData{Device: peer("B"), State: good}))
	a.HandleMessage(directed, envelope(t, &wire.ResponseStateData{Device: peer("B"), State: bad}))
	// Mis-addressed responses are ignored.
	a.HandleMessage("chat/C", envelope(t, &wire.ResponseStateData{Device: peer("B"), State: good}))
	a.HandleMessage("chat", envelope(t, &wire.ResponseStateData{Device: peer("B"), State: good}))

	_, _, _, received, _ := rec.counts()
	require.Equal(t, 2, received)
	assert.True(t, rec.received[0].Valid)
	assert.JSONEq(t, string(good), string(rec.received[0].State))
	assert.False(t, rec.received[1].Valid)
	assert.JSONEq(t, string(bad), string(rec.received[1].State))
	assert.Equal(t, "B", rec.received[1].Device.ID)
}

func TestHandleMigration(t *testing.T) {
	rec := &recorder{}
	a := newTestNode(t, mocks.NewMockClient(t), rec, nil, chatDoc)

	a.HandleMessage("chat/"+a.ID(), envelope(t, &wire.MigrationData{Device: peer("B")}))
	a.HandleMessage("chat", envelope(t, &wire.MigrationData{Device: peer("B")}))

	_, _, _, _, migration := rec.counts()
	require.Equal(t, 1, migration)
	assert.Equal(t, "chat", rec.migration[0].ModelName)
}

func TestHandleDropsAnomalies(t *testing.T) {
	rec := &recorder{}
	events := &eventLog{}
	// No expectations: a reply to any of these would fail the test.
	a := newTestNode(t, mocks.NewMockClient(t), rec, events, chatDoc)
	self := a.Device()

	a.HandleMessage("chat/x/y", []byte(`{}`))
	a.HandleMessage("todo", envelope(t, &wire.DeviceData{Device: peer("B"), New: true}))
	a.HandleMessage("chat", []byte(`not json`))
	a.HandleMessage("chat", []byte(`{"action": "dance", "data": {}}`))
	a.HandleMessage("chat", envelope(t, &wire.DeviceData{Device: self, New: true}))
	a.HandleMessage("online/B", []byte("maybe"))

	assert.Equal(t, []log.DropReason{
		log.DropMalformedTopic,
		log.DropUnknownModel,
		log.DropMalformedEnvelope,
		log.DropMalformedEnvelope,
		log.DropSelf,
		log.DropInvalidPresence,
	}, events.drops())

	joined, left, requested, received, migration := rec.counts()
	assert.Zero(t, joined+left+requested+received+migration)
	_, ok := a.RemoteDevice("B")
	assert.False(t, ok)
}

func TestHandleDropsSenderIDThatIsNotATopicSegment(t *testing.T) {
	rec := &recorder{}
	events := &eventLog{}
	// No expectations: a reply to chat/x/y would fail the test.
	a := newTestNode(t, mocks.NewMockClient(t), rec, events, chatDoc)

	for _, id := range []string{"x/y", "x+", "#"} {
		a.HandleMessage("chat", envelope(t, &wire.DeviceData{Device: peer(id, "chat"), New: true}))
		_, ok := a.RemoteDevice(id)
		assert.False(t, ok, "device %q registered", id)
	}

	assert.Equal(t, []log.DropReason{
		log.DropMalformedEnvelope,
		log.DropMalformedEnvelope,
		log.DropMalformedEnvelope,
	}, events.drops())
	joined, _, _, _, _ := rec.counts()
	assert.Zero(t, joined)
}

func TestHandlePresenceRetractionFiresOnce(t *testing.T) {
	rec := &recorder{}
	a := newTestNode(t, mocks.NewMockClient(t), rec, nil, chatDoc)

	a.HandleMessage("chat", envelope(t, &wire.DeviceData{Device: peer("B", "chat")}))
	a.HandleMessage("online/B", []byte("true"))
	_, ok := a.RemoteDevice("B")
	require.True(t, ok)

	a.HandleMessage("online/B", []byte{})
	a.HandleMessage("online/B", []byte{})
	a.HandleMessage("online/"+a.ID(), []byte{})

	_, left, _, _, _ := rec.counts()
	require.Equal(t, 1, left)
	assert.Equal(t, "B", rec.left[0].Device.ID)
	assert.Equal(t, []string{"chat"}, rec.left[0].Device.Models)

	_, ok = a.RemoteDevice("B")
	assert.False(t, ok)
}

func TestProtocolLogRecordsMessages(t *testing.T) {
	client := mocks.NewMockClient(t)
	events := &eventLog{}
	b := newTestNode(t, client, nil, events, chatDoc)

	client.EXPECT().Publish(mock.Anything, "chat/A", mock.Anything, mock.Anything).Return(nil).Once()
	b.HandleMessage("chat", envelope(t, &wire.DeviceData{Device: peer("A", "chat"), New: true}))

	require.Len(t, events.events, 2)
	in, out := events.events[0], events.events[1]

	assert.Equal(t, log.DirectionIn, in.Direction)
	assert.Equal(t, log.CategoryMessage, in.Category)
	assert.Equal(t, "chat", in.Topic)
	assert.Equal(t, "A", in.PeerID)
	assert.Equal(t, "device", in.Message.Action)
	assert.Equal(t, b.ID(), in.NodeID)

	assert.Equal(t, log.DirectionOut, out.Direction)
	assert.Equal(t, "chat/A", out.Topic)
	assert.Equal(t, "A", out.PeerID)
	assert.Equal(t, "chat", out.Model)
}

func TestReplyFailureStillJoins(t *testing.T) {
	client := mocks.NewMockClient(t)
	rec := &recorder{}
	events := &eventLog{}
	b := newTestNode(t, client, rec, events, chatDoc)

	client.EXPECT().Publish(mock.Anything, "chat/A", mock.Anything, mock.Anything).
		Return(&transport.Error{Op: "publish", Topic: "chat/A", Err: context.DeadlineExceeded}).Once()
	b.HandleMessage("chat", envelope(t, &wire.DeviceData{Device: peer("A", "chat"), New: true}))

	joined, _, _, _, _ := rec.counts()
	assert.Equal(t, 1, joined)

	var errs int
	for _, ev := range events.events {
		if ev.Error != nil {
			errs++
			assert.Equal(t, "publish", ev.Error.Operation)
		}
	}
	assert.Equal(t, 1, errs)
}
