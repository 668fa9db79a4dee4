package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/studysync/internal/realtime"
)

// GET /api/v1/sessions/:id/events streams session changes as server-sent events
// until the client disconnects.
func (s *Server) sessionEvents(c echo.Context) error {
	ctx := c.Request().Context()
	session, err := s.coordinator.GetSession(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if s.bus == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "realtime updates are disabled")
	}

	sub, err := s.bus.Subscribe(ctx, session.SessionID)
	if err != nil {
		return err
	}
	defer sub.Close()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case change, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := writeEvent(w, change); err != nil {
				s.logger.DebugContext(ctx, "event stream closed", "session_id", session.SessionID, "error", err)
				return nil
			}
			w.Flush()
		}
	}
}

func writeEvent(w *echo.Response, change realtime.Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", change.ID, change.Table, data)
	return err
}
