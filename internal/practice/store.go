// Package practice coordinates live practice sessions: joining by code, scoring answers
// and ranking participants.
package practice

import (
	"context"
	"time"

	"github.com/example/studysync/internal/database"
	"github.com/example/studysync/pkg/models"
)

// Store persists sessions and participants. Missing rows are reported as
// database.ErrNotFound and unique conflicts as database.ErrDuplicate.
type Store interface {
	CreateSession(ctx context.Context, session *models.PracticeSession) error
	GetSession(ctx context.Context, sessionID string) (*models.PracticeSession, error)
	GetActiveSessionByCode(ctx context.Context, code string) (*models.PracticeSession, error)
	ListActiveSessionCodes(ctx context.Context) ([]string, error)
	ListActiveSessions(ctx context.Context) ([]models.PracticeSession, error)
	EndSession(ctx context.Context, sessionID string, at time.Time) (bool, error)

	CreateParticipant(ctx context.Context, p *models.Participant) error
	GetParticipant(ctx context.Context, sessionID, userID string) (*models.Participant, error)
	CountParticipants(ctx context.Context, sessionID string) (int, error)
	ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error)
	DeleteParticipant(ctx context.Context, sessionID, userID string) (bool, error)
	AddScore(ctx context.Context, sessionID, userID string, delta int, at time.Time) (*models.Participant, error)
}

var _ Store = (*database.PracticeStore)(nil)
