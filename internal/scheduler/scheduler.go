package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/studysync/internal/clock"
	"github.com/example/studysync/internal/notify"
)

// Константы для настроек уведомлений по умолчанию
const (
	DefaultNotificationStartHour = 4
	DefaultNotificationEndHour   = 18
	DefaultReminderInterval      = time.Hour
	DefaultSweepInterval         = 10 * time.Minute
	DefaultSessionIdleTimeout    = 2 * time.Hour
)

// jobTimeout bounds a single run of any job
const jobTimeout = 5 * time.Minute

// DueCounter reports how many items each owner has due
type DueCounter interface {
	DueCounts(ctx context.Context) (map[string]int, error)
}

// Sweeper ends practice sessions that have been idle for too long
type Sweeper interface {
	SweepAbandoned(ctx context.Context, idleFor time.Duration) (int, error)
}

// Config holds job timing
type Config struct {
	NotificationStartHour int
	NotificationEndHour   int
	ReminderInterval      time.Duration
	SweepInterval         time.Duration
	SessionIdleTimeout    time.Duration
	Location              *time.Location
}

// DefaultConfig returns the default job timing
func DefaultConfig() Config {
	return Config{
		NotificationStartHour: DefaultNotificationStartHour,
		NotificationEndHour:   DefaultNotificationEndHour,
		ReminderInterval:      DefaultReminderInterval,
		SweepInterval:         DefaultSweepInterval,
		SessionIdleTimeout:    DefaultSessionIdleTimeout,
		Location:              time.UTC,
	}
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       Config
	due       DueCounter
	sweeper   Sweeper
	notifier  notify.Notifier
	clock     clock.Clock
	logger    *slog.Logger
}

// New creates a new scheduler instance. due or sweeper may be nil to disable that job.
func New(cfg Config, due DueCounter, sweeper Sweeper, notifier notify.Notifier, c clock.Clock, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if c == nil {
		c = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(cfg.Location),
		cfg:       cfg,
		due:       due,
		sweeper:   sweeper,
		notifier:  notifier,
		clock:     c,
		logger:    logger,
	}
}

// Start registers the jobs and runs them in the background until Stop.
// ctx is the parent of every job run.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.due != nil && s.cfg.ReminderInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.ReminderInterval).SingletonMode().Do(s.runJob, ctx, "reminders", s.SendReminders); err != nil {
			return fmt.Errorf("failed to schedule reminders: %w", err)
		}
	}
	if s.sweeper != nil && s.cfg.SweepInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.SweepInterval).SingletonMode().Do(s.runJob, ctx, "sweep", s.Sweep); err != nil {
			return fmt.Errorf("failed to schedule sweep: %w", err)
		}
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "jobs", len(s.scheduler.Jobs()))
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runJob(ctx context.Context, name string, job func(context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	n, err := job(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled job failed", "job", name, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "scheduled job finished", "job", name, "affected", n)
}

// withinNotificationHours reports whether reminders may be sent at t
func (s *Scheduler) withinNotificationHours(t time.Time) bool {
	hour := t.In(s.cfg.Location).Hour()
	return hour >= s.cfg.NotificationStartHour && hour <= s.cfg.NotificationEndHour
}

// SendReminders notifies every owner with due items. Outside notification hours
// it does nothing. Returns the number of reminders delivered.
func (s *Scheduler) SendReminders(ctx context.Context) (int, error) {
	if s.due == nil {
		return 0, nil
	}
	now := s.clock.Now()
	if !s.withinNotificationHours(now) {
		s.logger.DebugContext(ctx, "outside notification hours, skipping reminders",
			"hour", now.In(s.cfg.Location).Hour(),
			"start", s.cfg.NotificationStartHour, "end", s.cfg.NotificationEndHour)
		return 0, nil
	}

	counts, err := s.due.DueCounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get due counts: %w", err)
	}

	sent := 0
	for owner, count := range counts {
		msg := fmt.Sprintf("You have %d item(s) due for review.", count)
		if err := s.notifier.Notify(ctx, owner, msg); err != nil {
			s.logger.WarnContext(ctx, "failed to send reminder", "user_id", owner, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Sweep ends abandoned practice sessions once
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	if s.sweeper == nil {
		return 0, nil
	}
	return s.sweeper.SweepAbandoned(ctx, s.cfg.SessionIdleTimeout)
}
