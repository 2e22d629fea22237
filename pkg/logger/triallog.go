package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// TrialLog is the append-only text sink each search worker writes its
// trial records to. The line formats written through it are a wire
// contract: the post-run recovery pass re-parses them, so they stay
// plain text rather than structured slog output.
type TrialLog struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewTrialLog wraps an arbitrary writer, typically for tests.
func NewTrialLog(w io.Writer) *TrialLog {
	return &TrialLog{w: w}
}

// OpenTrialLog opens (or creates) an append-only trial log file.
func OpenTrialLog(path string) (*TrialLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trial log %s: %w", path, err)
	}
	return &TrialLog{w: f, c: f}, nil
}

// Printf appends one formatted line. A trailing newline is added.
func (l *TrialLog) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format+"\n", args...)
}

// Close closes the underlying file, if any.
func (l *TrialLog) Close() error {
	if l == nil || l.c == nil {
		return nil
	}
	return l.c.Close()
}
