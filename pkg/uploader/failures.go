package uploader

import (
	"fmt"
	"os"
	"sync"
)

// FailureSink is the append-only failure log shared by all concurrent
// tasks. Writes are serialized so lines from different tasks never
// interleave. The file is opened for append and never truncated, so
// failures accumulate across runs until cleared externally.
type FailureSink struct {
	mu sync.Mutex
	f  *os.File
}

// OpenFailureSink opens the failure log at path, creating it if absent.
func OpenFailureSink(path string) (*FailureSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening failure log %s: %w", path, err)
	}

	return &FailureSink{f: f}, nil
}

// Record appends one line for a failed upload: "<path> | <detail>".
func (s *FailureSink) Record(path, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.f, "%s | %s\n", path, detail); err != nil {
		return fmt.Errorf("appending to failure log: %w", err)
	}

	return nil
}

// Close closes the underlying log file.
func (s *FailureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.f.Close()
}
