package service

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtsm-protocol/rtsm-go/pkg/log"
	"github.com/rtsm-protocol/rtsm-go/pkg/model"
	"github.com/rtsm-protocol/rtsm-go/pkg/transport"
	"github.com/rtsm-protocol/rtsm-go/pkg/wire"
)

const chatDoc = `{
  "info": {"title": "chat", "version": "1.0.0"},
  "state": {
    "type": "object",
    "required": ["messages"],
    "properties": {"messages": {"type": "array", "items": {"type": "string"}}}
  }
}`

const todoDoc = `{"info": {"title": "todo"}}`

// eventLog records protocol events.
type eventLog struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *eventLog) Log(ev log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) drops() []log.DropReason {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []log.DropReason
	for _, ev := range l.events {
		if ev.Drop != nil {
			out = append(out, ev.Drop.Reason)
		}
	}
	return out
}

// recorder collects handler invocations.
type recorder struct {
	mu        sync.Mutex
	joined    []DeviceJoined
	left      []DeviceLeft
	requested []StateRequested
	received  []StateReceived
	migration []MigrationRequested
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnDeviceJoined: func(ev DeviceJoined) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.joined = append(r.joined, ev)
		},
		OnDeviceLeft: func(ev DeviceLeft) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.left = append(r.left, ev)
		},
		OnStateRequested: func(ev StateRequested) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.requested = append(r.requested, ev)
		},
		OnStateReceived: func(ev StateReceived) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.received = append(r.received, ev)
		},
		OnMigrationRequested: func(ev MigrationRequested) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.migration = append(r.migration, ev)
		},
	}
}

func (r *recorder) counts() (joined, left, requested, received, migration int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.joined), len(r.left), len(r.requested), len(r.received), len(r.migration)
}

func newTestNode(t *testing.T, client transport.Client, rec *recorder, logger log.Logger, docs ...string) *Node {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Name = "test-node"
	cfg.ProtocolLogger = logger
	if rec != nil {
		cfg.Handlers = rec.handlers()
	}
	n, err := New(client, cfg)
	require.NoError(t, err)
	for _, doc := range docs {
		_, err := n.RegisterModel(json.RawMessage(doc))
		require.NoError(t, err)
	}
	return n
}

func envelope(t *testing.T, data wire.Data) []byte {
	t.Helper()
	payload, err := wire.Encode(data)
	require.NoError(t, err)
	return payload
}

func peer(id string, models ...string) model.Device {
	return model.Device{ID: id, Name: "peer " + id, Models: models}
}

func decodeData(payload []byte) wire.Data {
	_, data, err := wire.Decode(payload)
	if err != nil {
		return nil
	}
	return data
}
