package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/studysync/internal/apperr"
	"github.com/example/studysync/internal/clock"
	"github.com/example/studysync/internal/database"
	"github.com/example/studysync/internal/realtime"
	"github.com/example/studysync/pkg/models"
)

// PresenceWindow is how long after their last answer a participant is shown as active
const PresenceWindow = 30 * time.Second

// Tracker records answers and ranks participants
type Tracker struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
	events broadcaster
}

// NewTracker creates a tracker. bus may be nil.
func NewTracker(store Store, bus realtime.Bus, opts ...Option) *Tracker {
	o := buildOptions(opts)
	return &Tracker{
		store:  store,
		clock:  o.clock,
		logger: o.logger,
		events: broadcaster{bus: bus, logger: o.logger},
	}
}

// ApplyAnswer adds delta to the participant's score and marks them active
func (t *Tracker) ApplyAnswer(ctx context.Context, sessionID, userID string, delta int) (*models.Participant, error) {
	now := t.clock.Now()
	p, err := t.store.AddScore(ctx, sessionID, userID, delta, now)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply answer: %w", err)
	}

	t.logger.DebugContext(ctx, "answer recorded",
		"session_id", sessionID, "user_id", userID, "delta", delta, "score", p.Score)
	t.events.publish(ctx, sessionID, realtime.TableParticipants, realtime.Update, p, now)
	return p, nil
}

// Leaderboard returns the session's participants ranked by score
func (t *Tracker) Leaderboard(ctx context.Context, sessionID string) ([]models.LeaderboardEntry, error) {
	if _, err := t.store.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	participants, err := t.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return RankParticipants(participants, t.clock.Now()), nil
}

// IsActive reports whether p answered within PresenceWindow of now
func IsActive(p models.Participant, now time.Time) bool {
	return now.Sub(p.LastActiveAt) < PresenceWindow
}

// RankParticipants orders participants by score descending, then earlier join,
// then participant id, and numbers them from 1. The input is not modified.
func RankParticipants(participants []models.Participant, now time.Time) []models.LeaderboardEntry {
	sorted := make([]models.Participant, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ParticipantID < b.ParticipantID
	})

	entries := make([]models.LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		entries[i] = models.LeaderboardEntry{
			Participant: p,
			Rank:        i + 1,
			Active:      IsActive(p, now),
		}
	}
	return entries
}
