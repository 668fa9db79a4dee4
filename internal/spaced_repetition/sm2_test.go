package spaced_repetition

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studysync/pkg/models"
)

var reviewTime = time.Date(2025, 6, 15, 15, 30, 0, 0, time.UTC)

func freshState() models.SchedulingState {
	return models.NewSchedulingState(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
}

func TestClampQuality(t *testing.T) {
	tests := []struct {
		in   int
		want QualityResponse
	}{
		{in: -7, want: QualityBlackout},
		{in: 0, want: QualityBlackout},
		{in: 3, want: QualityCorrectDifficult},
		{in: 5, want: QualityPerfect},
		{in: 42, want: QualityPerfect},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampQuality(tt.in), "quality %d", tt.in)
	}
}

func TestNextEasinessFactor(t *testing.T) {
	assert.InDelta(t, 2.6, NextEasinessFactor(2.5, QualityPerfect), 1e-9)
	assert.InDelta(t, 2.5, NextEasinessFactor(2.5, QualityCorrectHesitation), 1e-9)
	assert.InDelta(t, 2.36, NextEasinessFactor(2.5, QualityCorrectDifficult), 1e-9)
	assert.Equal(t, models.MinEasinessFactor, NextEasinessFactor(1.3, QualityBlackout))
}

func TestEasinessFactorMonotonicInQuality(t *testing.T) {
	prev := math.Inf(-1)
	for q := QualityBlackout; q <= QualityPerfect; q++ {
		ef := NextEasinessFactor(2.0, q)
		assert.GreaterOrEqual(t, ef, prev, "quality %d", q)
		prev = ef
	}
}

func TestReviewKeepsEasinessFloor(t *testing.T) {
	sm := NewSM2()
	for _, ef := range []float64{1.3, 1.4, 2.5, 3.1} {
		for q := -1; q <= 6; q++ {
			state := freshState()
			state.EasinessFactor = ef
			state.RepetitionCount = 4
			state.IntervalDays = 20

			got := sm.Review(state, q, reviewTime)
			assert.GreaterOrEqual(t, got.EasinessFactor, models.MinEasinessFactor, "ef=%v q=%d", ef, q)
		}
	}
}

func TestReviewFailureResets(t *testing.T) {
	sm := NewSM2()
	for q := 0; q < 3; q++ {
		state := freshState()
		state.RepetitionCount = 7
		state.IntervalDays = 120
		state.EasinessFactor = 2.8

		got := sm.Review(state, q, reviewTime)

		assert.Equal(t, 0, got.RepetitionCount, "quality %d", q)
		assert.Equal(t, 1, got.IntervalDays, "quality %d", q)
		assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), got.NextReviewDate)
	}
}

func TestReviewPerfectSequence(t *testing.T) {
	sm := NewSM2()
	state := freshState()

	first := sm.Review(state, 5, reviewTime)
	second := sm.Review(first, 5, reviewTime.AddDate(0, 0, 1))
	third := sm.Review(second, 5, reviewTime.AddDate(0, 0, 7))

	assert.Equal(t, 1, first.IntervalDays)
	assert.Equal(t, 6, second.IntervalDays)
	assert.Equal(t, int(math.Round(6*third.EasinessFactor)), third.IntervalDays)
	assert.Equal(t, 17, third.IntervalDays)
	assert.Equal(t, 3, third.RepetitionCount)
}

func TestReviewSetsDates(t *testing.T) {
	sm := NewSM2()
	state := freshState()
	state.RepetitionCount = 2
	state.IntervalDays = 6

	got := sm.Review(state, 4, reviewTime)

	require.NotNil(t, got.LastReviewedAt)
	assert.Equal(t, reviewTime, *got.LastReviewedAt)
	assert.Equal(t, 15, got.IntervalDays)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), got.NextReviewDate)
}

func TestReviewDoesNotMutateInput(t *testing.T) {
	sm := NewSM2()
	state := freshState()

	_ = sm.Review(state, 5, reviewTime)

	assert.Equal(t, freshState(), state)
}

func TestReviewClampsQuality(t *testing.T) {
	sm := NewSM2()
	state := freshState()

	assert.Equal(t, sm.Review(state, 5, reviewTime), sm.Review(state, 99, reviewTime))
	assert.Equal(t, sm.Review(state, 0, reviewTime), sm.Review(state, -3, reviewTime))
}

func TestCalculateQuality(t *testing.T) {
	sm := NewSM2()
	assert.Equal(t, QualityBlackout, sm.CalculateQuality(0))
	assert.Equal(t, QualityCorrectDifficult, sm.CalculateQuality(0.6))
	assert.Equal(t, QualityPerfect, sm.CalculateQuality(1.2))
}
