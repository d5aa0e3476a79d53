package log

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// mockLogger records events for testing
type mockLogger struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockLogger) Log(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func TestMultiLoggerCallsAll(t *testing.T) {
	mock1 := &mockLogger{}
	mock2 := &mockLogger{}
	mock3 := &mockLogger{}

	multi := NewMultiLogger(mock1, mock2, mock3)

	multi.Log(Event{
		Timestamp: time.Now(),
		NodeID:    "node-123",
		Direction: DirectionIn,
		Category:  CategoryMessage,
	})

	for i, mock := range []*mockLogger{mock1, mock2, mock3} {
		if len(mock.events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(mock.events))
			continue
		}
		if mock.events[0].NodeID != "node-123" {
			t.Errorf("logger %d: NodeID = %q, want %q", i, mock.events[0].NodeID, "node-123")
		}
	}
}

func TestMultiLoggerEmptyList(t *testing.T) {
	multi := NewMultiLogger()
	multi.Log(Event{Timestamp: time.Now(), NodeID: "node-123"})
}

func TestMultiLoggerSkipsNilAndFlattens(t *testing.T) {
	inner1 := &mockLogger{}
	inner2 := &mockLogger{}
	outer := &mockLogger{}

	multi := NewMultiLogger(nil, NoopLogger{}, NewMultiLogger(inner1, inner2), outer)
	if multi.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", multi.Len())
	}

	multi.Log(Event{NodeID: "node"})
	for i, m := range []*mockLogger{inner1, inner2, outer} {
		if len(m.events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(m.events))
		}
	}
}

type closingLogger struct {
	mockLogger
	closed bool
	err    error
}

func (c *closingLogger) Close() error {
	c.closed = true
	return c.err
}

func TestMultiLoggerClose(t *testing.T) {
	ok := &closingLogger{}
	failing := &closingLogger{err: errors.New("disk full")}
	plain := &mockLogger{}

	err := NewMultiLogger(ok, plain, failing).Close()
	if !errors.Is(err, failing.err) {
		t.Errorf("Close() = %v, want %v", err, failing.err)
	}
	if !ok.closed || !failing.closed {
		t.Error("every closer should be closed")
	}
}
