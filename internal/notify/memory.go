package notify

import (
	"context"
	"sync"

	"github.com/mdmirror/mdmirror/internal/hackmd"
)

// Memory records notifications for inspection in tests.
type Memory struct {
	mu        sync.RWMutex
	summaries []hackmd.RunSummary
	closed    bool
}

// NewMemory returns an empty in-memory notifier.
func NewMemory() *Memory {
	return &Memory{}
}

// Notify records the summary.
func (m *Memory) Notify(_ context.Context, summary hackmd.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, summary)
	return nil
}

// Close marks the notifier closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Summaries returns the recorded notifications.
func (m *Memory) Summaries() []hackmd.RunSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]hackmd.RunSummary, len(m.summaries))
	copy(out, m.summaries)
	return out
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
