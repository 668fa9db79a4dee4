// Package clock supplies the current time to scheduling decisions.
package clock

import "time"

// Clock returns the current wall-clock time
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock
type System struct{}

// Now returns time.Now()
func (System) Now() time.Time {
	return time.Now()
}

// Fixed always returns the same instant. Set T to move it.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant
func (f *Fixed) Now() time.Time {
	return f.T
}

// Advance moves the fixed clock forward by d
func (f *Fixed) Advance(d time.Duration) {
	f.T = f.T.Add(d)
}

// StartOfDay returns local midnight of the day containing t
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
