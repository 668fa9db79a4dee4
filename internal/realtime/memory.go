package realtime

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultBufferSize is the per-subscriber queue length
const DefaultBufferSize = 64

type memorySubscriber struct {
	ch chan Change
}

// MemoryBus is an in-process Bus. A subscriber whose queue is full misses the change
// rather than blocking the publisher.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[*memorySubscriber]struct{}
	bufferSize  int
	logger      *slog.Logger
}

// NewMemoryBus creates an empty in-process bus
func NewMemoryBus(logger *slog.Logger) *MemoryBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBus{
		subscribers: make(map[string]map[*memorySubscriber]struct{}),
		bufferSize:  DefaultBufferSize,
		logger:      logger,
	}
}

// Publish implements Bus.
func (b *MemoryBus) Publish(ctx context.Context, change Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers[change.SessionID] {
		select {
		case sub.ch <- change:
		default:
			b.logger.Warn("dropping change for slow subscriber",
				"session_id", change.SessionID, "change_id", change.ID)
		}
	}
	return nil
}

// Subscribe implements Bus.
func (b *MemoryBus) Subscribe(ctx context.Context, sessionID string) (*Subscription, error) {
	sub := &memorySubscriber{ch: make(chan Change, b.bufferSize)}

	b.mu.Lock()
	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = make(map[*memorySubscriber]struct{})
	}
	b.subscribers[sessionID][sub] = struct{}{}
	b.mu.Unlock()

	return newSubscription(sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers[sessionID], sub)
		if len(b.subscribers[sessionID]) == 0 {
			delete(b.subscribers, sessionID)
		}
		close(sub.ch)
	}), nil
}

// SubscriberCount returns the number of live subscriptions for a session
func (b *MemoryBus) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[sessionID])
}

// Ensure MemoryBus implements Bus
var _ Bus = (*MemoryBus)(nil)
