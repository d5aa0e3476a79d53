package log

// Logger receives protocol events from a node. A nil Logger disables
// capture.
type Logger interface {
	// Log records one event. It is called on the node's dispatch goroutine
	// and from outbound calls, so it must be safe for concurrent use and
	// must not block.
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
)
