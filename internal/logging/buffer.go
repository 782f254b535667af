package logging

import (
	"strings"
	"sync"
)

// DefaultBufferLines is the number of log lines kept for /logs
const DefaultBufferLines = 1000

// Buffer captures the most recent log lines in memory
type Buffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

// NewBuffer creates a buffer that keeps the last max lines
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultBufferLines
	}
	return &Buffer{max: max, lines: make([]string, 0, max)}
}

// Write implements io.Writer. Each call is stored as one line
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, strings.TrimRight(string(p), "\n"))
	if len(b.lines) > b.max {
		b.lines = append([]string(nil), b.lines[len(b.lines)-b.max:]...)
	}
	return len(p), nil
}

// Lines returns a copy of the buffered lines, oldest first
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}
