package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix namespaces session channels in Redis
const DefaultChannelPrefix = "studysync:session:"

// RedisBus is a Bus backed by Redis pub/sub, for deployments with more than one API process
type RedisBus struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisBus connects to Redis at addr and verifies the connection
func NewRedisBus(ctx context.Context, addr, prefix string, logger *slog.Logger) (*RedisBus, error) {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisBus{client: client, prefix: prefix, logger: logger}, nil
}

// Channel returns the Redis channel carrying a session's changes
func (b *RedisBus) Channel(sessionID string) string {
	return b.prefix + sessionID
}

// Publish implements Bus.
func (b *RedisBus) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, b.Channel(change.SessionID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Subscribe implements Bus.
func (b *RedisBus) Subscribe(ctx context.Context, sessionID string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.Channel(sessionID))
	// Ждём подтверждения подписки, чтобы не потерять первые события
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to session %s: %w", sessionID, err)
	}

	out := make(chan Change, DefaultBufferSize)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				b.logger.Warn("skipping malformed change", "session_id", sessionID, "error", err)
				continue
			}
			select {
			case out <- change:
			case <-done:
				return
			default:
				b.logger.Warn("dropping change for slow subscriber",
					"session_id", sessionID, "change_id", change.ID)
			}
		}
	}()

	return newSubscription(out, func() {
		close(done)
		if err := pubsub.Close(); err != nil {
			b.logger.Warn("failed to close redis subscription", "session_id", sessionID, "error", err)
		}
	}), nil
}

// Close releases the Redis connection pool
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// Ensure RedisBus implements Bus
var _ Bus = (*RedisBus)(nil)
