package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedAdvance(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Fixed{T: start}

	assert.Equal(t, start, c.Now())
	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	in := time.Date(2025, 3, 1, 23, 59, 59, 0, loc)

	got := StartOfDay(in)

	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}
