package notify

import (
	"context"
	"sync"
)

// Message is a notification captured by Recorder
type Message struct {
	UserID string
	Text   string
}

// Recorder keeps every message it is asked to send, for tests
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// Notify implements Notifier.
func (r *Recorder) Notify(ctx context.Context, userID string, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, Message{UserID: userID, Text: message})
	return nil
}

// Messages returns a copy of the recorded messages
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

var _ Notifier = (*Recorder)(nil)
