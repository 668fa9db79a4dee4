package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"

	"github.com/example/studysync/pkg/models"
)

const reviewItemColumns = `item_id, owner_id, item_kind, repetition_count, easiness_factor,
	interval_days, next_review_date, last_reviewed_at, created_at, updated_at`

// ReviewItemRepository handles database operations for review items
type ReviewItemRepository struct {
	db *DB
}

// NewReviewItemRepository creates a new repository instance
func NewReviewItemRepository(db *DB) *ReviewItemRepository {
	return &ReviewItemRepository{db: db}
}

// CreateItem inserts a new review item. Returns ErrDuplicate if the id is taken.
func (r *ReviewItemRepository) CreateItem(ctx context.Context, item *models.ReviewItem) error {
	query := r.db.Rebind(`
		INSERT INTO review_items (` + reviewItemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		item.ItemID,
		item.OwnerID,
		item.ItemKind,
		item.RepetitionCount,
		item.EasinessFactor,
		item.IntervalDays,
		item.NextReviewDate,
		item.LastReviewedAt,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicate, "review item %s", item.ItemID)
		}
		return errors.Wrap(err, "failed to create review item")
	}
	return nil
}

// Get returns a review item by id
func (r *ReviewItemRepository) Get(ctx context.Context, itemID string) (*models.ReviewItem, error) {
	var item models.ReviewItem
	query := r.db.Rebind(`SELECT ` + reviewItemColumns + ` FROM review_items WHERE item_id = ?`)
	if err := r.db.GetContext(ctx, &item, query, itemID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "review item %s", itemID)
		}
		return nil, errors.Wrap(err, "failed to get review item")
	}
	return &item, nil
}

// ListByOwner returns every item of an owner ordered by id.
// Due filtering happens in the caller so that time comparisons do not depend on the dialect.
func (r *ReviewItemRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ReviewItem, error) {
	items := []models.ReviewItem{}
	query := r.db.Rebind(`SELECT ` + reviewItemColumns + ` FROM review_items WHERE owner_id = ? ORDER BY item_id`)
	if err := r.db.SelectContext(ctx, &items, query, ownerID); err != nil {
		return nil, errors.Wrap(err, "failed to list review items")
	}
	return items, nil
}

// ListOwners returns the distinct owners that have at least one item
func (r *ReviewItemRepository) ListOwners(ctx context.Context) ([]string, error) {
	owners := []string{}
	if err := r.db.SelectContext(ctx, &owners, `SELECT DISTINCT owner_id FROM review_items ORDER BY owner_id`); err != nil {
		return nil, errors.Wrap(err, "failed to list owners")
	}
	return owners, nil
}

// UpdateSchedule persists the scheduling state of an item
func (r *ReviewItemRepository) UpdateSchedule(ctx context.Context, itemID string, state models.SchedulingState, at time.Time) error {
	query := r.db.Rebind(`
		UPDATE review_items SET
			repetition_count = ?,
			easiness_factor = ?,
			interval_days = ?,
			next_review_date = ?,
			last_reviewed_at = ?,
			updated_at = ?
		WHERE item_id = ?`)
	result, err := r.db.ExecContext(ctx, query,
		state.RepetitionCount,
		state.EasinessFactor,
		state.IntervalDays,
		state.NextReviewDate,
		state.LastReviewedAt,
		at,
		itemID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update review item")
	}
	return expectRows(result, "review item "+itemID)
}

// Delete removes a review item
func (r *ReviewItemRepository) Delete(ctx context.Context, itemID string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM review_items WHERE item_id = ?`), itemID)
	if err != nil {
		return errors.Wrap(err, "failed to delete review item")
	}
	return expectRows(result, "review item "+itemID)
}

// expectRows returns ErrNotFound when a statement touched no rows
func expectRows(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrap(ErrNotFound, what)
	}
	return nil
}
