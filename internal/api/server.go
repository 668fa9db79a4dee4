// Package api exposes study and practice operations over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/example/studysync/internal/realtime"
	"github.com/example/studysync/pkg/models"
)

// UserIDHeader carries the caller's identity, set by the authenticating proxy
const UserIDHeader = "X-User-Id"

// StudyService is the review item API
type StudyService interface {
	AddItem(ctx context.Context, ownerID, itemID string, kind models.ItemKind) (*models.ReviewItem, bool, error)
	Review(ctx context.Context, ownerID, itemID string, quality int) (*models.ReviewItem, error)
	DueItems(ctx context.Context, ownerID string) ([]models.ReviewItem, error)
	NextItems(ctx context.Context, ownerID string, limit int) ([]models.ReviewItem, error)
	Stats(ctx context.Context, ownerID string) (models.StudyStats, error)
}

// SessionCoordinator is the practice session lifecycle API
type SessionCoordinator interface {
	CreateSession(ctx context.Context, hostUserID string, maxParticipants int) (*models.PracticeSession, error)
	GetSession(ctx context.Context, sessionID string) (*models.PracticeSession, error)
	JoinSession(ctx context.Context, code, userID, displayName string) (*models.Participant, error)
	LeaveSession(ctx context.Context, sessionID, userID string) error
	EndSession(ctx context.Context, sessionID, callerUserID string) (*models.PracticeSession, error)
}

// ScoreTracker is the scoring API
type ScoreTracker interface {
	ApplyAnswer(ctx context.Context, sessionID, userID string, delta int) (*models.Participant, error)
	Leaderboard(ctx context.Context, sessionID string) ([]models.LeaderboardEntry, error)
}

// Deps are the services the server routes to
type Deps struct {
	Study       StudyService
	Coordinator SessionCoordinator
	Tracker     ScoreTracker
	Bus         realtime.Bus
	JoinLimiter *RateLimiter
	Logger      *slog.Logger
}

// Server is the HTTP front end
type Server struct {
	echo        *echo.Echo
	study       StudyService
	coordinator SessionCoordinator
	tracker     ScoreTracker
	bus         realtime.Bus
	joinLimiter *RateLimiter
	logger      *slog.Logger

	heartbeat time.Duration
}

// NewServer creates the server and registers its routes
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := deps.JoinLimiter
	if limiter == nil {
		limiter = NewRateLimiter(1, 5)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:        e,
		study:       deps.Study,
		coordinator: deps.Coordinator,
		tracker:     deps.Tracker,
		bus:         deps.Bus,
		joinLimiter: limiter,
		logger:      logger,
		heartbeat:   15 * time.Second,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	v1 := s.echo.Group("/api/v1", requireUser)

	v1.POST("/items", s.addItem)
	v1.POST("/items/:id/review", s.reviewItem)
	v1.GET("/items/due", s.dueItems)
	v1.GET("/items/next", s.nextItems)
	v1.GET("/items/stats", s.studyStats)

	v1.POST("/sessions", s.createSession)
	v1.POST("/sessions/join", s.joinSession)
	v1.GET("/sessions/:id", s.getSession)
	v1.POST("/sessions/:id/leave", s.leaveSession)
	v1.POST("/sessions/:id/end", s.endSession)
	v1.POST("/sessions/:id/answers", s.recordAnswer)
	v1.GET("/sessions/:id/leaderboard", s.leaderboard)
	v1.GET("/sessions/:id/leaderboard.xlsx", s.exportLeaderboard)
	v1.GET("/sessions/:id/events", s.sessionEvents)
}

// ServeHTTP lets the server be used as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requireUser rejects API requests without a caller identity
func requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get(UserIDHeader) == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing "+UserIDHeader+" header")
		}
		return next(c)
	}
}

func userID(c echo.Context) string {
	return c.Request().Header.Get(UserIDHeader)
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.DebugContext(c.Request().Context(), "request",
				"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	})
}
