package practice

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/studysync/internal/realtime"
)

// broadcaster pushes row changes to the bus. Delivery is best effort:
// the stored row is the source of truth and a failed publish is only logged.
type broadcaster struct {
	bus    realtime.Bus
	logger *slog.Logger
}

func (b broadcaster) publish(ctx context.Context, sessionID, table string, typ realtime.ChangeType, record any, at time.Time) {
	if b.bus == nil {
		return
	}
	change, err := realtime.NewChange(sessionID, table, typ, record, at)
	if err == nil {
		err = b.bus.Publish(ctx, change)
	}
	if err != nil {
		b.logger.WarnContext(ctx, "failed to publish change",
			"session_id", sessionID, "table", table, "type", typ, "error", err)
	}
}

// membership identifies a participant row that no longer exists
type membership struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}
