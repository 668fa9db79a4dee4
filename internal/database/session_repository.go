package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"

	"github.com/example/studysync/pkg/models"
)

const sessionColumns = `session_id, session_code, host_user_id, is_active, max_participants, created_at, ended_at`

// SessionRepository handles database operations for practice sessions
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new repository instance
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession inserts a session. Returns ErrDuplicate when another active session holds the code.
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.PracticeSession) error {
	query := r.db.Rebind(`
		INSERT INTO practice_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		session.SessionID,
		session.SessionCode,
		session.HostUserID,
		session.IsActive,
		session.MaxParticipants,
		session.CreatedAt,
		session.EndedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicate, "session code %s", session.SessionCode)
		}
		return errors.Wrap(err, "failed to create session")
	}
	return nil
}

// GetSession returns a session by id
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*models.PracticeSession, error) {
	var session models.PracticeSession
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM practice_sessions WHERE session_id = ?`)
	if err := r.db.GetContext(ctx, &session, query, sessionID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "session %s", sessionID)
		}
		return nil, errors.Wrap(err, "failed to get session")
	}
	return &session, nil
}

// GetActiveSessionByCode returns the active session holding a canonical code
func (r *SessionRepository) GetActiveSessionByCode(ctx context.Context, code string) (*models.PracticeSession, error) {
	var session models.PracticeSession
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM practice_sessions WHERE session_code = ? AND is_active = ?`)
	if err := r.db.GetContext(ctx, &session, query, code, true); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "active session with code %s", code)
		}
		return nil, errors.Wrap(err, "failed to get session by code")
	}
	return &session, nil
}

// ListActiveSessionCodes returns the codes currently held by active sessions
func (r *SessionRepository) ListActiveSessionCodes(ctx context.Context) ([]string, error) {
	codes := []string{}
	query := r.db.Rebind(`SELECT session_code FROM practice_sessions WHERE is_active = ?`)
	if err := r.db.SelectContext(ctx, &codes, query, true); err != nil {
		return nil, errors.Wrap(err, "failed to list active session codes")
	}
	return codes, nil
}

// ListActiveSessions returns every active session, oldest first
func (r *SessionRepository) ListActiveSessions(ctx context.Context) ([]models.PracticeSession, error) {
	sessions := []models.PracticeSession{}
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM practice_sessions WHERE is_active = ? ORDER BY created_at, session_id`)
	if err := r.db.SelectContext(ctx, &sessions, query, true); err != nil {
		return nil, errors.Wrap(err, "failed to list active sessions")
	}
	return sessions, nil
}

// EndSession marks an active session as ended. Reports false if it was already ended.
func (r *SessionRepository) EndSession(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	query := r.db.Rebind(`
		UPDATE practice_sessions SET is_active = ?, ended_at = ?
		WHERE session_id = ? AND is_active = ?`)
	result, err := r.db.ExecContext(ctx, query, false, at, sessionID, true)
	if err != nil {
		return false, errors.Wrap(err, "failed to end session")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows > 0, nil
}
