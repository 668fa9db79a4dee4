package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/studysync/internal/apperr"
	"github.com/example/studysync/internal/clock"
	"github.com/example/studysync/internal/database"
	"github.com/example/studysync/internal/practice"
	"github.com/example/studysync/internal/realtime"
	"github.com/example/studysync/internal/study"
	"github.com/example/studysync/pkg/models"
)

type testEnv struct {
	server *Server
	study  *study.Service
	clock  *clock.Fixed
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(context.Background(), database.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &clock.Fixed{T: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)}
	bus := realtime.NewMemoryBus(nil)
	store := database.NewPracticeStore(db)
	studySvc := study.NewService(database.NewReviewItemRepository(db), c, nil)

	server := NewServer(Deps{
		Study:       studySvc,
		Coordinator: practice.NewCoordinator(store, bus, nil, practice.WithClock(c)),
		Tracker:     practice.NewTracker(store, bus, practice.WithClock(c)),
		Bus:         bus,
		JoinLimiter: NewRateLimiter(100, 100),
	})
	return &testEnv{server: server, study: studySvc, clock: c}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRequiresUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/items/due", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReviewFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _, err := env.study.AddItem(ctx, "alice", "card-1", models.ItemKindFlashcard)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/items/due", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.ReviewItem](t, rec), 1)

	rec = env.do(t, http.MethodPost, "/api/v1/items/card-1/review", "alice", map[string]int{"quality": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := decode[models.SchedulingState](t, rec)
	assert.Equal(t, 1, state.RepetitionCount)
	assert.Equal(t, 1, state.IntervalDays)
	require.NotNil(t, state.LastReviewedAt)

	rec = env.do(t, http.MethodGet, "/api/v1/items/stats", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[models.StudyStats](t, rec)
	assert.Equal(t, 1, stats.TotalItems)
	assert.Equal(t, 0, stats.DueToday)
	assert.Equal(t, 1, stats.ReviewedToday)

	rec = env.do(t, http.MethodGet, "/api/v1/items/next?limit=5", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.ReviewItem](t, rec))
}

func TestAddItem(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/items", "alice", map[string]string{"itemId": "q-1", "itemKind": "question"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[models.ReviewItem](t, rec)
	assert.Equal(t, "alice", item.OwnerID)
	assert.Equal(t, models.ItemKindQuestion, item.ItemKind)
	assert.Equal(t, models.DefaultEasinessFactor, item.EasinessFactor)

	rec = env.do(t, http.MethodPost, "/api/v1/items", "alice", map[string]string{"itemId": "q-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/items", "bob", map[string]string{"itemId": "q-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/items", "alice", map[string]string{"itemId": "q-2", "itemKind": "essay"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewErrors(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.study.AddItem(context.Background(), "alice", "card-1", "")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/items/card-1/review", "alice", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperr.KindValidation), decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/v1/items/card-1/review", "mallory", map[string]int{"quality": 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/items/next?limit=-1", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", "host", map[string]int{"maxParticipants": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decode[models.PracticeSession](t, rec)
	assert.Len(t, session.SessionCode, 6)

	join := func(user string) *httptest.ResponseRecorder {
		return env.do(t, http.MethodPost, "/api/v1/sessions/join", user,
			map[string]string{"sessionCode": strings.ToLower(session.SessionCode), "displayName": user})
	}
	rec = join("user1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, decode[models.Participant](t, rec).Score)
	env.clock.Advance(time.Second)
	require.Equal(t, http.StatusOK, join("user2").Code)

	rec = join("user3")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(apperr.KindCapacity), decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+session.SessionID+"/answers", "user1", map[string]int{"delta": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[answerResponse](t, rec).Score)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+session.SessionID+"/leaderboard", "user2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[[]models.LeaderboardEntry](t, rec)
	require.Len(t, board, 2)
	assert.Equal(t, "user1", board[0].UserID)
	assert.Equal(t, 5, board[0].Score)
	assert.Equal(t, "user2", board[1].UserID)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+session.SessionID+"/end", "user1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+session.SessionID+"/leave", "user2", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+session.SessionID+"/end", "host", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+session.SessionID, "host", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.PracticeSession](t, rec).IsActive)

	rec = join("user4")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnswerForUnknownParticipant(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/nope/answers", "user1", map[string]int{"delta": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/nope/answers", "user1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.server.joinLimiter = NewRateLimiter(0.001, 1)

	body := map[string]string{"sessionCode": "AAAAAA"}
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/sessions/join", "u", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodPost, "/api/v1/sessions/join", "u", body).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/sessions/join", "other", body).Code)
}

func TestExportLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/sessions", "host", map[string]int{"maxParticipants": 3})
	session := decode[models.PracticeSession](t, rec)
	rec = env.do(t, http.MethodPost, "/api/v1/sessions/join", "alice",
		map[string]string{"sessionCode": session.SessionCode, "displayName": "Alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+session.SessionID+"/leaderboard.xlsx", "host", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), session.SessionCode)

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Alice", rows[3][1])

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/missing/leaderboard.xlsx", "host", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionEvents(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server)
	defer ts.Close()

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", "host", map[string]int{"maxParticipants": 3})
	session := decode[models.PracticeSession](t, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/sessions/"+session.SessionID+"/events", nil)
	require.NoError(t, err)
	req.Header.Set(UserIDHeader, "watcher")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// подписка создана до ответа, поэтому событие не потеряется
	rec = env.do(t, http.MethodPost, "/api/v1/sessions/join", "alice",
		map[string]string{"sessionCode": session.SessionCode, "displayName": "Alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" && len(lines) > 0 {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id: "))
	assert.Equal(t, "event: "+realtime.TableParticipants, lines[1])

	var change realtime.Change
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[2], "data: ")), &change))
	assert.Equal(t, realtime.Insert, change.Type)
	assert.Equal(t, session.SessionID, change.SessionID)
}

func TestSessionEventsUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/sessions/missing/events", "watcher", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
