package log

import (
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLoggerConfig configures a FileLogger.
type FileLoggerConfig struct {
	// MaxSize rotates the file once it reaches this many bytes. The previous
	// file is kept as path + ".1", replacing an older one. Zero disables
	// rotation.
	MaxSize int64

	// SyncEachEvent flushes every event to stable storage. Error events are
	// always synced so the cause of a crash survives it.
	SyncEachEvent bool
}

// FileLogger writes protocol events to an .rlog file as a CBOR sequence.
// It is safe for concurrent use.
type FileLogger struct {
	mu     sync.Mutex
	path   string
	config FileLoggerConfig

	file    *os.File
	counter *countingWriter
	encoder *cbor.Encoder
	closed  bool

	// Events that could not be encoded or written.
	failed int
}

// NewFileLogger opens path for appending, creating it with mode 0644.
func NewFileLogger(path string) (*FileLogger, error) {
	return NewFileLoggerWithConfig(path, FileLoggerConfig{})
}

// NewFileLoggerWithConfig opens path for appending with rotation and sync
// settings.
func NewFileLoggerWithConfig(path string, config FileLoggerConfig) (*FileLogger, error) {
	if config.MaxSize < 0 {
		return nil, fmt.Errorf("protocol log %s: negative max size %d", path, config.MaxSize)
	}
	l := &FileLogger{path: path, config: config}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open protocol log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat protocol log: %w", err)
	}
	l.file = f
	l.counter = &countingWriter{w: f, n: info.Size()}
	l.encoder = NewEncoder(l.counter)
	return nil
}

// Log appends an event. Failures are counted, never returned, so logging
// cannot disrupt dispatch.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if l.config.MaxSize > 0 && l.counter.n >= l.config.MaxSize {
		if err := l.rotate(); err != nil {
			l.failed++
			return
		}
	}
	if err := l.encoder.Encode(event); err != nil {
		l.failed++
		return
	}
	if l.config.SyncEachEvent || event.Category == CategoryError {
		_ = l.file.Sync()
	}
}

// rotate must be called with l.mu held.
func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return err
	}
	return l.open()
}

// Path returns the file events are written to.
func (l *FileLogger) Path() string { return l.path }

// Failed returns the number of events that could not be written.
func (l *FileLogger) Failed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}

// Sync flushes written events to stable storage.
func (l *FileLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.file.Sync()
}

// Close syncs and closes the file. It is safe to call Close multiple times;
// later Log calls are ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	syncErr := l.file.Sync()
	if err := l.file.Close(); err != nil {
		return err
	}
	return syncErr
}

type countingWriter struct {
	w interface{ Write([]byte) (int, error) }
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

var _ Logger = (*FileLogger)(nil)
