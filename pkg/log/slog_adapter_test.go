package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newBufferAdapter() (*SlogAdapter, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogAdapter(slog.New(handler)), &buf
}

func TestSlogAdapterMessage(t *testing.T) {
	adapter, buf := newBufferAdapter()

	adapter.Log(Event{
		Timestamp: time.Now(),
		NodeID:    "node-1",
		Direction: DirectionOut,
		Category:  CategoryMessage,
		Topic:     "chat/peer",
		Model:     "chat",
		PeerID:    "peer",
		Message:   NewMessageEvent("migration", []byte(`{}`)),
	})

	out := buf.String()
	for _, want := range []string{"node_id=node-1", "direction=OUT", "category=MESSAGE", "topic=chat/peer", "model=chat", "peer_id=peer", "action=migration"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestSlogAdapterDropAndError(t *testing.T) {
	adapter, buf := newBufferAdapter()

	adapter.Log(Event{
		Category: CategoryDrop,
		Drop:     &DropEvent{Reason: DropMisaddressed, Detail: "target other"},
	})
	adapter.Log(Event{
		Category: CategoryError,
		Error:    &ErrorEventData{Operation: "subscribe", Message: "timeout"},
	})
	adapter.Log(Event{
		Category:    CategoryState,
		StateChange: &StateChangeEvent{Entity: StateEntityPresence, OldState: "OFFLINE", NewState: "ONLINE", Reason: "introduce"},
	})

	out := buf.String()
	for _, want := range []string{"drop_reason=misaddressed", `detail="target other"`, "operation=subscribe", "error_msg=timeout", "entity=PRESENCE", "new_state=ONLINE", "reason=introduce"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	NewSlogAdapter(slog.New(handler)).Log(Event{NodeID: "node-1"})
	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}
