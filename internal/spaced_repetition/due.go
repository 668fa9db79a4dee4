package spaced_repetition

import (
	"sort"
	"time"

	"github.com/example/studysync/internal/clock"
	"github.com/example/studysync/pkg/models"
)

// IsDue reports whether an item's review date has arrived. Same-day reviews are due.
func IsDue(item models.ReviewItem, now time.Time) bool {
	return !item.NextReviewDate.After(now)
}

// DueItems returns the items due at now, in input order
func DueItems(items []models.ReviewItem, now time.Time) []models.ReviewItem {
	due := make([]models.ReviewItem, 0, len(items))
	for _, item := range items {
		if IsDue(item, now) {
			due = append(due, item)
		}
	}
	return due
}

// Stats summarizes a collection of review items as of now
func (sm *SM2) Stats(items []models.ReviewItem, now time.Time) models.StudyStats {
	stats := models.StudyStats{
		TotalItems:      len(items),
		AverageEasiness: models.DefaultEasinessFactor,
	}
	if len(items) == 0 {
		return stats
	}

	dayStart := clock.StartOfDay(now)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var efSum float64
	for _, item := range items {
		efSum += item.EasinessFactor
		if IsDue(item, now) {
			stats.DueToday++
		}
		if r := item.LastReviewedAt; r != nil && !r.Before(dayStart) && r.Before(dayEnd) {
			stats.ReviewedToday++
		}
		if sm.IsMastered(item.SchedulingState) {
			stats.MasteredItems++
		}
	}
	stats.AverageEasiness = efSum / float64(len(items))
	return stats
}

// NextItems returns up to limit due items in study order:
// never-reviewed items first, then harder items (lower EF), then the most overdue.
// A non-positive limit returns every due item.
func NextItems(items []models.ReviewItem, now time.Time, limit int) []models.ReviewItem {
	due := DueItems(items, now)

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		aNew, bNew := a.LastReviewedAt == nil, b.LastReviewedAt == nil
		if aNew != bNew {
			return aNew
		}
		if a.EasinessFactor != b.EasinessFactor {
			return a.EasinessFactor < b.EasinessFactor
		}
		if !a.NextReviewDate.Equal(b.NextReviewDate) {
			return a.NextReviewDate.Before(b.NextReviewDate)
		}
		return a.ItemID < b.ItemID
	})

	if limit > 0 && len(due) > limit {
		return due[:limit]
	}
	return due
}
