package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/studysync/pkg/models"
)

const participantColumns = `participant_id, session_id, user_id, display_name, score, joined_at, last_active_at`

// ParticipantRepository handles database operations for session participants
type ParticipantRepository struct {
	db *DB
}

// NewParticipantRepository creates a new repository instance
func NewParticipantRepository(db *DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// CreateParticipant inserts a participant. Returns ErrDuplicate if the user already joined the session.
func (r *ParticipantRepository) CreateParticipant(ctx context.Context, p *models.Participant) error {
	query := r.db.Rebind(`
		INSERT INTO participants (` + participantColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		p.ParticipantID,
		p.SessionID,
		p.UserID,
		p.DisplayName,
		p.Score,
		p.JoinedAt,
		p.LastActiveAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicate, "participant %s in session %s", p.UserID, p.SessionID)
		}
		return errors.Wrap(err, "failed to create participant")
	}
	return nil
}

// GetParticipant returns the participant row of a user in a session
func (r *ParticipantRepository) GetParticipant(ctx context.Context, sessionID, userID string) (*models.Participant, error) {
	return getParticipant(ctx, r.db.DB, sessionID, userID)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getParticipant(ctx context.Context, q queryer, sessionID, userID string) (*models.Participant, error) {
	var p models.Participant
	query := q.Rebind(`SELECT ` + participantColumns + ` FROM participants WHERE session_id = ? AND user_id = ?`)
	if err := sqlx.GetContext(ctx, q, &p, query, sessionID, userID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "participant %s in session %s", userID, sessionID)
		}
		return nil, errors.Wrap(err, "failed to get participant")
	}
	return &p, nil
}

// CountParticipants returns the number of participants in a session
func (r *ParticipantRepository) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM participants WHERE session_id = ?`)
	if err := r.db.GetContext(ctx, &count, query, sessionID); err != nil {
		return 0, errors.Wrap(err, "failed to count participants")
	}
	return count, nil
}

// ListParticipants returns the participants of a session in join order
func (r *ParticipantRepository) ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error) {
	participants := []models.Participant{}
	query := r.db.Rebind(`SELECT ` + participantColumns + ` FROM participants WHERE session_id = ? ORDER BY joined_at, participant_id`)
	if err := r.db.SelectContext(ctx, &participants, query, sessionID); err != nil {
		return nil, errors.Wrap(err, "failed to list participants")
	}
	return participants, nil
}

// DeleteParticipant removes a user from a session. Reports whether a row was deleted.
func (r *ParticipantRepository) DeleteParticipant(ctx context.Context, sessionID, userID string) (bool, error) {
	query := r.db.Rebind(`DELETE FROM participants WHERE session_id = ? AND user_id = ?`)
	result, err := r.db.ExecContext(ctx, query, sessionID, userID)
	if err != nil {
		return false, errors.Wrap(err, "failed to delete participant")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows > 0, nil
}

// AddScore atomically adds delta to a participant's score, touches last_active_at
// and returns the updated row.
func (r *ParticipantRepository) AddScore(ctx context.Context, sessionID, userID string, delta int, at time.Time) (*models.Participant, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := tx.Rebind(`
		UPDATE participants SET score = score + ?, last_active_at = ?
		WHERE session_id = ? AND user_id = ?`)
	result, err := tx.ExecContext(ctx, query, delta, at, sessionID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update score")
	}
	if err := expectRows(result, "participant "+userID+" in session "+sessionID); err != nil {
		return nil, err
	}

	p, err := getParticipant(ctx, tx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit score update")
	}
	return p, nil
}
