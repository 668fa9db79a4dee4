package spaced_repetition

import (
	"math"
	"time"

	"github.com/example/studysync/internal/clock"
	"github.com/example/studysync/pkg/models"
)

// SM2 implements the SuperMemo-2 algorithm for spaced repetition
type SM2 struct {
	// Ответы с качеством не ниже порога считаются успешными
	PassThreshold int
	// Интервалы для первых успешных повторений, в днях
	LearningSteps []int
	// Число успешных повторений, после которого элемент считается выученным
	MasteryRepetitions int
}

// NewSM2 creates an SM2 with the classic SuperMemo settings
func NewSM2() *SM2 {
	return &SM2{
		PassThreshold:      3,
		LearningSteps:      []int{1, 6},
		MasteryRepetitions: 5,
	}
}

// QualityResponse represents the quality of response in SM-2
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// ClampQuality forces a rating into the 0..5 range
func ClampQuality(quality int) QualityResponse {
	if quality < int(QualityBlackout) {
		return QualityBlackout
	}
	if quality > int(QualityPerfect) {
		return QualityPerfect
	}
	return QualityResponse(quality)
}

// NextEasinessFactor applies the SM-2 easiness update, floored at 1.3
func NextEasinessFactor(ef float64, quality QualityResponse) float64 {
	miss := 5.0 - float64(quality)
	newEF := ef + (0.1 - miss*(0.08+miss*0.02))
	if newEF < models.MinEasinessFactor {
		newEF = models.MinEasinessFactor // Не опускаем ниже 1.3
	}
	return newEF
}

// Review returns the scheduling state after one review at the given time.
// Out-of-range qualities are clamped. The input state is not modified.
func (sm *SM2) Review(state models.SchedulingState, quality int, now time.Time) models.SchedulingState {
	q := ClampQuality(quality)
	next := state
	next.EasinessFactor = NextEasinessFactor(state.EasinessFactor, q)

	if int(q) >= sm.PassThreshold {
		next.RepetitionCount = state.RepetitionCount + 1
		if next.RepetitionCount <= len(sm.LearningSteps) {
			next.IntervalDays = sm.LearningSteps[next.RepetitionCount-1]
		} else {
			next.IntervalDays = int(math.Round(float64(state.IntervalDays) * next.EasinessFactor))
		}
	} else {
		// Неудачный ответ всегда перезапускает обучение
		next.RepetitionCount = 0
		next.IntervalDays = 1
	}

	reviewedAt := now
	next.LastReviewedAt = &reviewedAt
	next.NextReviewDate = clock.StartOfDay(now).AddDate(0, 0, next.IntervalDays)
	return next
}

// IsMastered reports whether an item has enough successful repetitions to count as retained
func (sm *SM2) IsMastered(state models.SchedulingState) bool {
	return state.RepetitionCount >= sm.MasteryRepetitions
}

// CalculateQuality maps answer accuracy (0.0 - 1.0) onto a 0..5 rating
func (sm *SM2) CalculateQuality(accuracy float64) QualityResponse {
	if accuracy <= 0 {
		return QualityBlackout
	}
	return ClampQuality(int(math.Round(accuracy * 5)))
}
