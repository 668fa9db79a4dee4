package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/studysync/internal/apperr"
	"github.com/example/studysync/internal/clock"
	"github.com/example/studysync/internal/database"
	"github.com/example/studysync/internal/notify"
	"github.com/example/studysync/internal/realtime"
	"github.com/example/studysync/internal/sessioncode"
	"github.com/example/studysync/pkg/models"
)

// maxCreateAttempts bounds retries when a freshly allocated code loses a race
// with a concurrent CreateSession
const maxCreateAttempts = 3

// Coordinator manages the lifecycle of practice sessions and their membership
type Coordinator struct {
	store     Store
	allocator *sessioncode.Allocator
	notifier  notify.Notifier
	clock     clock.Clock
	logger    *slog.Logger
	events    broadcaster
}

// Option customizes a Coordinator or Tracker
type Option func(*options)

type options struct {
	clock     clock.Clock
	allocator *sessioncode.Allocator
	logger    *slog.Logger
}

// WithClock overrides the time source
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithAllocator overrides the session code allocator
func WithAllocator(a *sessioncode.Allocator) Option {
	return func(o *options) { o.allocator = a }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		clock:     clock.System{},
		allocator: sessioncode.NewAllocator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewCoordinator creates a coordinator. bus and notifier may be nil.
func NewCoordinator(store Store, bus realtime.Bus, notifier notify.Notifier, opts ...Option) *Coordinator {
	o := buildOptions(opts)
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Coordinator{
		store:     store,
		allocator: o.allocator,
		notifier:  notifier,
		clock:     o.clock,
		logger:    o.logger,
		events:    broadcaster{bus: bus, logger: o.logger},
	}
}

// CreateSession opens a new active session hosted by hostUserID
func (c *Coordinator) CreateSession(ctx context.Context, hostUserID string, maxParticipants int) (*models.PracticeSession, error) {
	if strings.TrimSpace(hostUserID) == "" {
		return nil, apperr.Invalid("host user id is required")
	}
	if maxParticipants <= 0 {
		return nil, apperr.Invalid("maxParticipants must be positive, got %d", maxParticipants)
	}

	for attempt := 1; ; attempt++ {
		codes, err := c.store.ListActiveSessionCodes(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load active codes: %w", err)
		}
		active := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			active[sessioncode.Normalize(code)] = struct{}{}
		}

		code, err := c.allocator.Allocate(active)
		if err != nil {
			return nil, err
		}

		session := &models.PracticeSession{
			SessionID:       uuid.NewString(),
			SessionCode:     code,
			HostUserID:      hostUserID,
			IsActive:        true,
			MaxParticipants: maxParticipants,
			CreatedAt:       c.clock.Now(),
		}
		err = c.store.CreateSession(ctx, session)
		if errors.Is(err, database.ErrDuplicate) && attempt < maxCreateAttempts {
			c.logger.DebugContext(ctx, "session code taken concurrently, retrying", "code", code, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}

		c.logger.InfoContext(ctx, "session created",
			"session_id", session.SessionID, "code", code, "host", hostUserID, "max_participants", maxParticipants)
		c.events.publish(ctx, session.SessionID, realtime.TableSessions, realtime.Insert, session, session.CreatedAt)
		return session, nil
	}
}

// GetSession returns a session by id
func (c *Coordinator) GetSession(ctx context.Context, sessionID string) (*models.PracticeSession, error) {
	session, err := c.store.GetSession(ctx, sessionID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// JoinSession adds userID to the active session holding code. Joining again returns
// the existing participant unchanged, even when the session has since filled up.
// Capacity is checked before the insert without a reservation, so concurrent joins
// may overshoot MaxParticipants slightly.
func (c *Coordinator) JoinSession(ctx context.Context, code, userID, displayName string) (*models.Participant, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Invalid("user id is required")
	}
	code = sessioncode.Normalize(code)
	if !sessioncode.Valid(code) {
		return nil, apperr.ErrSessionNotFound
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = userID
	}

	session, err := c.store.GetActiveSessionByCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	existing, err := c.findParticipant(ctx, session.SessionID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	count, err := c.store.CountParticipants(ctx, session.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	if count >= session.MaxParticipants {
		return nil, apperr.ErrSessionFull
	}

	now := c.clock.Now()
	participant := &models.Participant{
		ParticipantID: uuid.NewString(),
		SessionID:     session.SessionID,
		UserID:        userID,
		DisplayName:   displayName,
		Score:         0,
		JoinedAt:      now,
		LastActiveAt:  now,
	}
	err = c.store.CreateParticipant(ctx, participant)
	if errors.Is(err, database.ErrDuplicate) {
		// Параллельный join того же пользователя успел раньше
		existing, err = c.findParticipant(ctx, session.SessionID, userID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("participant %s vanished after duplicate join", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add participant: %w", err)
	}

	c.logger.InfoContext(ctx, "participant joined",
		"session_id", session.SessionID, "user_id", userID, "participants", count+1)
	c.events.publish(ctx, session.SessionID, realtime.TableParticipants, realtime.Insert, participant, now)
	return participant, nil
}

// findParticipant returns nil without error when the user has not joined
func (c *Coordinator) findParticipant(ctx context.Context, sessionID, userID string) (*models.Participant, error) {
	p, err := c.store.GetParticipant(ctx, sessionID, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// LeaveSession removes userID from the session. Leaving a session one is not in succeeds.
func (c *Coordinator) LeaveSession(ctx context.Context, sessionID, userID string) error {
	deleted, err := c.store.DeleteParticipant(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	if !deleted {
		return nil
	}

	c.logger.InfoContext(ctx, "participant left", "session_id", sessionID, "user_id", userID)
	c.events.publish(ctx, sessionID, realtime.TableParticipants, realtime.Delete,
		membership{SessionID: sessionID, UserID: userID}, c.clock.Now())
	return nil
}

// EndSession deactivates the session. Only the host may end it; participant rows are kept
// so scores remain readable afterwards. Ending an ended session is a no-op.
func (c *Coordinator) EndSession(ctx context.Context, sessionID, callerUserID string) (*models.PracticeSession, error) {
	session, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.HostUserID != callerUserID {
		return nil, apperr.ErrUnauthorized
	}
	if !session.IsActive {
		return session, nil
	}
	return c.end(ctx, session, "ended by host")
}

func (c *Coordinator) end(ctx context.Context, session *models.PracticeSession, reason string) (*models.PracticeSession, error) {
	now := c.clock.Now()
	ended, err := c.store.EndSession(ctx, session.SessionID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	updated, err := c.GetSession(ctx, session.SessionID)
	if err != nil {
		return nil, err
	}
	if !ended {
		return updated, nil
	}

	c.logger.InfoContext(ctx, "session ended", "session_id", session.SessionID, "reason", reason)
	c.events.publish(ctx, session.SessionID, realtime.TableSessions, realtime.Update, updated, now)
	c.notifyEnded(ctx, updated)
	return updated, nil
}

// notifyEnded tells every participant the session is over. Failures are logged.
func (c *Coordinator) notifyEnded(ctx context.Context, session *models.PracticeSession) {
	participants, err := c.store.ListParticipants(ctx, session.SessionID)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to list participants for notification", "session_id", session.SessionID, "error", err)
		return
	}
	for _, p := range participants {
		msg := fmt.Sprintf("Practice session %s has ended. Your score: %d", session.SessionCode, p.Score)
		if err := c.notifier.Notify(ctx, p.UserID, msg); err != nil {
			c.logger.WarnContext(ctx, "failed to notify participant",
				"session_id", session.SessionID, "user_id", p.UserID, "error", err)
		}
	}
}

// SweepAbandoned ends active sessions with no activity for at least idleFor.
// Activity is the session's creation or any participant's last answer or join.
// Returns the number of sessions ended.
func (c *Coordinator) SweepAbandoned(ctx context.Context, idleFor time.Duration) (int, error) {
	if idleFor <= 0 {
		return 0, apperr.Invalid("idle timeout must be positive, got %s", idleFor)
	}
	sessions, err := c.store.ListActiveSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active sessions: %w", err)
	}

	now := c.clock.Now()
	swept := 0
	for i := range sessions {
		session := &sessions[i]
		participants, err := c.store.ListParticipants(ctx, session.SessionID)
		if err != nil {
			return swept, fmt.Errorf("failed to list participants: %w", err)
		}
		if now.Sub(lastActivity(session, participants)) < idleFor {
			continue
		}
		if _, err := c.end(ctx, session, "abandoned"); err != nil {
			return swept, err
		}
		swept++
	}
	if swept > 0 {
		c.logger.InfoContext(ctx, "abandoned sessions swept", "count", swept, "idle_for", idleFor)
	}
	return swept, nil
}

func lastActivity(session *models.PracticeSession, participants []models.Participant) time.Time {
	last := session.CreatedAt
	for _, p := range participants {
		if p.LastActiveAt.After(last) {
			last = p.LastActiveAt
		}
	}
	return last
}
