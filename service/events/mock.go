package events

import (
	"context"
	"sync"
)

// MockPublisher is an in-memory Publisher for tests. It records every
// published event and can be configured to fail.
type MockPublisher struct {
	mu        sync.Mutex
	Published []*WalletEvent
	Err       error
	closed    bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishEvent(ctx context.Context, event *WalletEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Published = append(m.Published, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns a snapshot of everything published so far.
func (m *MockPublisher) Events() []*WalletEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*WalletEvent, len(m.Published))
	copy(out, m.Published)
	return out
}
