// Package notify delivers short messages to learners. The service is constructed once
// and passed to the components that need it.
package notify

import (
	"context"
	"log/slog"
)

// Notifier sends a message to a user
type Notifier interface {
	Notify(ctx context.Context, userID string, message string) error
}

// Nop discards every message
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(ctx context.Context, userID string, message string) error {
	return nil
}

// Log writes messages to a structured logger instead of delivering them
type Log struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l Log) Notify(ctx context.Context, userID string, message string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "user_id", userID, "message", message)
	return nil
}

var (
	_ Notifier = Nop{}
	_ Notifier = Log{}
)
