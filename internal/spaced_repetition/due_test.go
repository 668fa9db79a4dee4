package spaced_repetition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/studysync/pkg/models"
)

func item(id string, due time.Time, ef float64, reps int, reviewed *time.Time) models.ReviewItem {
	return models.ReviewItem{
		ItemID:  id,
		OwnerID: "owner-1",
		SchedulingState: models.SchedulingState{
			RepetitionCount: reps,
			EasinessFactor:  ef,
			NextReviewDate:  due,
			LastReviewedAt:  reviewed,
		},
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestDueItems(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	items := []models.ReviewItem{
		item("past", today.AddDate(0, 0, -3), 2.5, 1, nil),
		item("future", today.AddDate(0, 0, 1), 2.5, 1, nil),
		item("today", today, 2.5, 1, nil),
		item("exact", now, 2.5, 1, nil),
	}

	due := DueItems(items, now)

	ids := make([]string, 0, len(due))
	for _, it := range due {
		ids = append(ids, it.ItemID)
	}
	assert.Equal(t, []string{"past", "today", "exact"}, ids)
}

func TestDueItemsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	items := []models.ReviewItem{
		item("a", now.Add(-time.Hour), 2.5, 0, nil),
		item("b", now.Add(time.Hour), 2.5, 0, nil),
	}

	first := DueItems(items, now)
	second := DueItems(items, now)

	assert.Equal(t, first, second)
	assert.Len(t, items, 2)
}

func TestStatsEmpty(t *testing.T) {
	sm := NewSM2()

	stats := sm.Stats(nil, time.Now())

	assert.Equal(t, models.StudyStats{
		TotalItems:      0,
		DueToday:        0,
		ReviewedToday:   0,
		AverageEasiness: 2.5,
		MasteredItems:   0,
	}, stats)
}

func TestStats(t *testing.T) {
	sm := NewSM2()
	now := time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	items := []models.ReviewItem{
		item("due-mastered", today, 2.0, 6, timePtr(today.Add(8*time.Hour))),
		item("reviewed-yesterday", today.AddDate(0, 0, 4), 3.0, 2, timePtr(today.Add(-time.Minute))),
		item("midnight", today.AddDate(0, 0, 1), 2.5, 5, timePtr(today)),
		item("new", today, 2.5, 0, nil),
	}

	stats := sm.Stats(items, now)

	assert.Equal(t, 4, stats.TotalItems)
	assert.Equal(t, 2, stats.DueToday)
	assert.Equal(t, 2, stats.ReviewedToday)
	assert.Equal(t, 2, stats.MasteredItems)
	assert.InDelta(t, 2.5, stats.AverageEasiness, 1e-9)
}

func TestNextItemsOrdering(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	reviewed := timePtr(now.AddDate(0, 0, -10))
	items := []models.ReviewItem{
		item("easy-overdue", now.AddDate(0, 0, -5), 2.8, 3, reviewed),
		item("hard", now.AddDate(0, 0, -1), 1.5, 3, reviewed),
		item("new-b", now, 2.5, 0, nil),
		item("easy-recent", now.AddDate(0, 0, -1), 2.8, 3, reviewed),
		item("not-due", now.AddDate(0, 0, 2), 1.3, 3, reviewed),
		item("new-a", now, 2.5, 0, nil),
	}

	got := NextItems(items, now, 0)

	ids := make([]string, 0, len(got))
	for _, it := range got {
		ids = append(ids, it.ItemID)
	}
	assert.Equal(t, []string{"new-a", "new-b", "hard", "easy-overdue", "easy-recent"}, ids)

	limited := NextItems(items, now, 2)
	assert.Len(t, limited, 2)
	assert.Equal(t, "new-a", limited[0].ItemID)
}
