// Package realtime fans out row-level changes to clients subscribed to a practice session.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// ChangeType is the kind of row mutation being broadcast
type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// Tables whose rows are broadcast
const (
	TableSessions     = "practice_sessions"
	TableParticipants = "participants"
)

// Change is one row-level event for a session
type Change struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"sessionId"`
	Table      string          `json:"table"`
	Type       ChangeType      `json:"type"`
	Record     json.RawMessage `json:"record,omitempty"`
	CommitTime time.Time       `json:"commitTime"`
}

// NewChange builds a change carrying record as its JSON payload
func NewChange(sessionID, table string, typ ChangeType, record any, at time.Time) (Change, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return Change{}, fmt.Errorf("failed to marshal %s record: %w", table, err)
	}
	return Change{
		ID:         shortuuid.New(),
		SessionID:  sessionID,
		Table:      table,
		Type:       typ,
		Record:     payload,
		CommitTime: at,
	}, nil
}

// Bus is a publish/subscribe channel keyed by session id
type Bus interface {
	// Publish delivers the change to every current subscriber of change.SessionID.
	Publish(ctx context.Context, change Change) error
	// Subscribe starts receiving changes for a session until the subscription is closed.
	Subscribe(ctx context.Context, sessionID string) (*Subscription, error)
}

// Subscription receives changes for one session. Close it to unsubscribe.
type Subscription struct {
	C <-chan Change

	once    sync.Once
	closeFn func()
}

func newSubscription(c <-chan Change, closeFn func()) *Subscription {
	return &Subscription{C: c, closeFn: closeFn}
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.closeFn)
}
