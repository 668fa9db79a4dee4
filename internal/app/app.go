// Package app assembles the service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/example/studysync/internal/api"
	"github.com/example/studysync/internal/bot"
	"github.com/example/studysync/internal/clock"
	"github.com/example/studysync/internal/config"
	"github.com/example/studysync/internal/database"
	"github.com/example/studysync/internal/excel"
	"github.com/example/studysync/internal/notify"
	"github.com/example/studysync/internal/practice"
	"github.com/example/studysync/internal/realtime"
	"github.com/example/studysync/internal/scheduler"
	"github.com/example/studysync/internal/study"
)

const shutdownTimeout = 5 * time.Second

// App owns every long-lived component of the process
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	db       *database.DB
	bus      realtime.Bus
	closeBus func() error
	notifier notify.Notifier
	telegram *tgbotapi.BotAPI

	Study       *study.Service
	Coordinator *practice.Coordinator
	Tracker     *practice.Tracker
}

// New connects to the database and message bus and builds the services
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.Open(ctx, database.Dialect(cfg.DBType), cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	logger.Info("database ready", "type", cfg.DBType)

	a := &App{cfg: cfg, logger: logger, db: db, closeBus: func() error { return nil }}

	if cfg.RedisAddr != "" {
		bus, err := realtime.NewRedisBus(ctx, cfg.RedisAddr, cfg.RedisChannelPrefix, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.bus, a.closeBus = bus, bus.Close
		logger.Info("using redis change bus", "addr", cfg.RedisAddr)
	} else {
		a.bus = realtime.NewMemoryBus(logger)
	}

	if cfg.TelegramBotToken != "" {
		tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create telegram client: %w", err)
		}
		logger.Info("authorized on telegram", "account", tgAPI.Self.UserName)
		a.telegram = tgAPI
		a.notifier = notify.NewTelegram(tgAPI, logger)
	} else {
		a.notifier = notify.Log{Logger: logger}
	}

	c := clock.System{}
	store := database.NewPracticeStore(db)
	a.Study = study.NewService(database.NewReviewItemRepository(db), c, logger)
	a.Coordinator = practice.NewCoordinator(store, a.bus, a.notifier, practice.WithClock(c), practice.WithLogger(logger))
	a.Tracker = practice.NewTracker(store, a.bus, practice.WithClock(c), practice.WithLogger(logger))
	return a, nil
}

// Run serves HTTP and runs the background jobs until ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	server := api.NewServer(api.Deps{
		Study:       a.Study,
		Coordinator: a.Coordinator,
		Tracker:     a.Tracker,
		Bus:         a.bus,
		JoinLimiter: api.NewRateLimiter(a.cfg.JoinRatePerSecond, a.cfg.JoinRateBurst),
		Logger:      a.logger,
	})

	jobs := scheduler.New(scheduler.Config{
		NotificationStartHour: a.cfg.NotificationStartHour,
		NotificationEndHour:   a.cfg.NotificationEndHour,
		ReminderInterval:      scheduler.DefaultReminderInterval,
		SweepInterval:         a.cfg.SweepInterval,
		SessionIdleTimeout:    a.cfg.SessionIdleTimeout,
		Location:              time.Local,
	}, a.Study, a.Coordinator, a.notifier, nil, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	if a.telegram != nil {
		tgBot := bot.New(a.telegram, a.Study, a.Coordinator, a.Tracker, bot.DefaultConfig(), a.logger)
		g.Go(func() error { return tgBot.Run(ctx) })
	}
	g.Go(func() error {
		if err := server.Start(a.cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := jobs.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		jobs.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		a.logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// ImportItems loads review items from a spreadsheet. Rows without an owner get defaultOwner.
func (a *App) ImportItems(ctx context.Context, path, defaultOwner string) (*excel.ImportResult, error) {
	cfg := excel.DefaultImportConfig()
	cfg.FilePath = path
	cfg.DefaultOwner = defaultOwner
	return excel.ImportItems(ctx, a.Study, cfg)
}

// Sweep ends abandoned sessions once
func (a *App) Sweep(ctx context.Context) (int, error) {
	return a.Coordinator.SweepAbandoned(ctx, a.cfg.SessionIdleTimeout)
}

// Close releases the bus and the database
func (a *App) Close() error {
	return errors.Join(a.closeBus(), a.db.Close())
}
