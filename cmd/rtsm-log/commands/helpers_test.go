package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rtsm-protocol/rtsm-go/pkg/log"
)

const (
	nodeA = "aaaaaaaa-0000-4000-8000-000000000001"
	peerB = "bbbbbbbb-0000-4000-8000-000000000002"
	peerC = "cccccccc-0000-4000-8000-000000000003"
)

var baseTime = time.Date(2026, 10, 1, 10, 15, 32, 123456000, time.UTC)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.rlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

// sampleEvents returns one event of each kind, as a node talking to two
// peers would produce.
func sampleEvents() []log.Event {
	return []log.Event{
		{
			Timestamp: baseTime,
			NodeID:    nodeA,
			Direction: log.DirectionOut,
			Category:  log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityConnection,
				OldState: "IDLE",
				NewState: "RUNNING",
			},
		},
		{
			Timestamp: baseTime.Add(time.Second),
			NodeID:    nodeA,
			Direction: log.DirectionIn,
			Category:  log.CategoryMessage,
			Topic:     "chat",
			Model:     "chat",
			PeerID:    peerB,
			Message:   log.NewMessageEvent("device", []byte(`{"action":"device","data":{"new":true}}`)),
		},
		{
			Timestamp: baseTime.Add(2 * time.Second),
			NodeID:    nodeA,
			Direction: log.DirectionOut,
			Category:  log.CategoryMessage,
			Topic:     "chat/" + peerB,
			Model:     "chat",
			PeerID:    peerB,
			Message:   log.NewMessageEvent("request-state", []byte(`{"action":"request-state","data":{}}`)),
		},
		{
			Timestamp: baseTime.Add(3 * time.Second),
			NodeID:    nodeA,
			Direction: log.DirectionIn,
			Category:  log.CategoryPresence,
			Topic:     "online/" + peerC,
			Presence:  &log.PresenceEvent{DeviceID: peerC, Online: true, Retained: true},
		},
		{
			Timestamp: baseTime.Add(4 * time.Second),
			NodeID:    nodeA,
			Direction: log.DirectionIn,
			Category:  log.CategoryDrop,
			Topic:     "todo",
			Drop:      &log.DropEvent{Reason: log.DropUnknownModel, Size: 12},
		},
		{
			Timestamp: baseTime.Add(5 * time.Second),
			NodeID:    nodeA,
			Direction: log.DirectionOut,
			Category:  log.CategoryError,
			Topic:     "chat",
			Error:     &log.ErrorEventData{Operation: "publish", Message: "not connected"},
		},
	}
}
