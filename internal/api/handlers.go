package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/example/studysync/internal/apperr"
	"github.com/example/studysync/internal/excel"
	"github.com/example/studysync/pkg/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type addItemRequest struct {
	ItemID   string          `json:"itemId"`
	ItemKind models.ItemKind `json:"itemKind"`
}

type reviewRequest struct {
	Quality *int `json:"quality"`
}

type createSessionRequest struct {
	MaxParticipants int `json:"maxParticipants"`
}

type joinSessionRequest struct {
	SessionCode string `json:"sessionCode"`
	DisplayName string `json:"displayName"`
}

type answerRequest struct {
	Delta *int `json:"delta"`
}

type answerResponse struct {
	ParticipantID string `json:"participantId"`
	Score         int    `json:"score"`
}

// bind decodes the request body, reporting malformed input as a validation error
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.Invalid("malformed request body")
	}
	return nil
}

// POST /api/v1/items
func (s *Server) addItem(c echo.Context) error {
	var req addItemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, created, err := s.study.AddItem(c.Request().Context(), userID(c), req.ItemID, req.ItemKind)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, item)
}

// POST /api/v1/items/:id/review
func (s *Server) reviewItem(c echo.Context) error {
	var req reviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Quality == nil {
		return apperr.Invalid("quality is required")
	}
	item, err := s.study.Review(c.Request().Context(), userID(c), c.Param("id"), *req.Quality)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item.SchedulingState)
}

// GET /api/v1/items/due
func (s *Server) dueItems(c echo.Context) error {
	items, err := s.study.DueItems(c.Request().Context(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// GET /api/v1/items/next?limit=N
func (s *Server) nextItems(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apperr.Invalid("limit must be a non-negative integer")
		}
		limit = n
	}
	items, err := s.study.NextItems(c.Request().Context(), userID(c), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// GET /api/v1/items/stats
func (s *Server) studyStats(c echo.Context) error {
	stats, err := s.study.Stats(c.Request().Context(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// POST /api/v1/sessions
func (s *Server) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := s.coordinator.CreateSession(c.Request().Context(), userID(c), req.MaxParticipants)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, session)
}

// GET /api/v1/sessions/:id
func (s *Server) getSession(c echo.Context) error {
	session, err := s.coordinator.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// POST /api/v1/sessions/join
func (s *Server) joinSession(c echo.Context) error {
	user := userID(c)
	if !s.joinLimiter.Allow(user) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many join attempts, slow down")
	}
	var req joinSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	participant, err := s.coordinator.JoinSession(c.Request().Context(), req.SessionCode, user, req.DisplayName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, participant)
}

// POST /api/v1/sessions/:id/leave
func (s *Server) leaveSession(c echo.Context) error {
	if err := s.coordinator.LeaveSession(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// POST /api/v1/sessions/:id/end
func (s *Server) endSession(c echo.Context) error {
	if _, err := s.coordinator.EndSession(c.Request().Context(), c.Param("id"), userID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// POST /api/v1/sessions/:id/answers
func (s *Server) recordAnswer(c echo.Context) error {
	var req answerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Delta == nil {
		return apperr.Invalid("delta is required")
	}
	p, err := s.tracker.ApplyAnswer(c.Request().Context(), c.Param("id"), userID(c), *req.Delta)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, answerResponse{ParticipantID: p.ParticipantID, Score: p.Score})
}

// GET /api/v1/sessions/:id/leaderboard
func (s *Server) leaderboard(c echo.Context) error {
	entries, err := s.tracker.Leaderboard(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

// GET /api/v1/sessions/:id/leaderboard.xlsx
func (s *Server) exportLeaderboard(c echo.Context) error {
	ctx := c.Request().Context()
	session, err := s.coordinator.GetSession(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	entries, err := s.tracker.Leaderboard(ctx, session.SessionID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := excel.WriteLeaderboard(&buf, session, entries); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "leaderboard-"+session.SessionCode+".xlsx"))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
