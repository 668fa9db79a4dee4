package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studysync/internal/clock"
	"github.com/example/studysync/internal/notify"
)

type fakeDue struct {
	counts map[string]int
	err    error
}

func (f fakeDue) DueCounts(ctx context.Context) (map[string]int, error) {
	return f.counts, f.err
}

type fakeSweeper struct {
	mu      sync.Mutex
	calls   int
	idleFor time.Duration
}

func (f *fakeSweeper) SweepAbandoned(ctx context.Context, idleFor time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.idleFor = idleFor
	return 1, nil
}

func (f *fakeSweeper) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func at(hour int) *clock.Fixed {
	return &clock.Fixed{T: time.Date(2025, 6, 15, hour, 15, 0, 0, time.UTC)}
}

func TestSendRemindersWithinHours(t *testing.T) {
	rec := &notify.Recorder{}
	due := fakeDue{counts: map[string]int{"alice": 3}}
	s := New(DefaultConfig(), due, nil, rec, at(9), nil)

	sent, err := s.SendReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	messages := rec.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "alice", messages[0].UserID)
	assert.Contains(t, messages[0].Text, "3 item(s)")
}

func TestSendRemindersNotificationHours(t *testing.T) {
	tests := []struct {
		hour int
		want int
	}{
		{hour: 3, want: 0},
		{hour: 4, want: 1},
		{hour: 18, want: 1},
		{hour: 19, want: 0},
	}
	for _, tt := range tests {
		rec := &notify.Recorder{}
		s := New(DefaultConfig(), fakeDue{counts: map[string]int{"bob": 1}}, nil, rec, at(tt.hour), nil)

		sent, err := s.SendReminders(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tt.want, sent, "hour %d", tt.hour)
		assert.Len(t, rec.Messages(), tt.want, "hour %d", tt.hour)
	}
}

func TestSendRemindersErrors(t *testing.T) {
	s := New(DefaultConfig(), fakeDue{err: errors.New("db down")}, nil, nil, at(9), nil)
	_, err := s.SendReminders(context.Background())
	assert.Error(t, err)

	rec := &notify.Recorder{Err: errors.New("blocked")}
	s = New(DefaultConfig(), fakeDue{counts: map[string]int{"alice": 1}}, nil, rec, at(9), nil)
	sent, err := s.SendReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestSweepUsesIdleTimeout(t *testing.T) {
	sweeper := &fakeSweeper{}
	cfg := DefaultConfig()
	cfg.SessionIdleTimeout = 45 * time.Minute
	s := New(cfg, nil, sweeper, nil, nil, nil)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 45*time.Minute, sweeper.idleFor)

	sent, err := s.SendReminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestStartRunsJobs(t *testing.T) {
	sweeper := &fakeSweeper{}
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Hour
	s := New(cfg, nil, sweeper, nil, nil, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return sweeper.Calls() > 0 }, 2*time.Second, 10*time.Millisecond)
}
