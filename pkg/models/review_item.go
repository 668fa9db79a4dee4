package models

import "time"

// ItemKind is the kind of content a review item schedules
type ItemKind string

const (
	ItemKindFlashcard ItemKind = "flashcard"
	ItemKindQuestion  ItemKind = "question"
)

// Scheduling defaults shared by new items and empty statistics
const (
	DefaultEasinessFactor = 2.5
	MinEasinessFactor     = 1.3
)

// SchedulingState is the SM-2 state of a single review item
type SchedulingState struct {
	RepetitionCount int        `json:"repetitionCount" db:"repetition_count"`
	EasinessFactor  float64    `json:"easinessFactor" db:"easiness_factor"`
	IntervalDays    int        `json:"intervalDays" db:"interval_days"`
	NextReviewDate  time.Time  `json:"nextReviewDate" db:"next_review_date"`
	LastReviewedAt  *time.Time `json:"lastReviewedAt" db:"last_reviewed_at"`
}

// ReviewItem tracks a learner's schedule for one flashcard or question
type ReviewItem struct {
	ItemID   string   `json:"itemId" db:"item_id"`
	OwnerID  string   `json:"ownerId" db:"owner_id"`
	ItemKind ItemKind `json:"itemKind" db:"item_kind"`
	SchedulingState
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// NewSchedulingState returns the state of a freshly created item, due on the given day
func NewSchedulingState(due time.Time) SchedulingState {
	return SchedulingState{
		EasinessFactor: DefaultEasinessFactor,
		NextReviewDate: due,
	}
}
