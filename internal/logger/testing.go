package logger

import (
	"bytes"
	"sync"
	"time"
)

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestLogger is a Logger that records output for assertions in tests.
type TestLogger struct {
	Logger
	out *syncBuffer
}

// NewTestLogger returns a debug-level logger whose output can be read back
// with Output.
func NewTestLogger() *TestLogger {
	out := &syncBuffer{}
	return &TestLogger{
		Logger: NewSlogLogger(out, LogLevelDebug, time.UTC),
		out:    out,
	}
}

// Output returns everything logged so far.
func (l *TestLogger) Output() string {
	return l.out.String()
}
