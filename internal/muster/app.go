package muster

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/muster/internal/core/config"
	"github.com/colonyops/muster/internal/core/eventbus"
	"github.com/colonyops/muster/internal/core/notify"
	"github.com/colonyops/muster/internal/data/db"
	"github.com/colonyops/muster/internal/data/stores"
	"github.com/colonyops/muster/internal/muster/commander"
	"github.com/colonyops/muster/internal/muster/sweep"
	"github.com/colonyops/muster/internal/platform/console"
	"github.com/colonyops/muster/internal/scheduler"
	"github.com/colonyops/muster/internal/store/opfile"
)

const eventBufferSize = 256

// App is the central entry point for all muster operations. Commands
// consume App instead of cherry-picking raw dependencies.
type App struct {
	Config *config.Config
	DB     *db.DB

	Manager    *OperationManager
	Autostart  *Autostart
	Scheduler  *scheduler.Scheduler
	Commanders *Commanders
	Requests   *Requests

	Store         *opfile.Store
	KV            *stores.KVStore
	Feedback      *stores.FeedbackStore
	Notifications *stores.NotifyStore
	Console       *console.Platform
	Feed          *console.Feed
	Bus           *eventbus.EventBus

	logger zerolog.Logger
	busWG  sync.WaitGroup
}

// NewApp wires every service on top of an open database. Console output is
// written to out.
func NewApp(cfg *config.Config, database *db.DB, out io.Writer, logger zerolog.Logger) *App {
	kvStore := stores.NewKVStore(database)
	bus := eventbus.New(eventBufferSize)

	store := opfile.New(cfg.LiveDir(), cfg.TemplateDir(), logger,
		opfile.WithLockRetry(cfg.Store.LockAttempts, cfg.Store.LockDelay))

	var consoleOpts []console.Option
	if cfg.Console.Width > 0 {
		consoleOpts = append(consoleOpts, console.WithWidth(cfg.Console.Width))
	}
	platform := console.New(kvStore, out, logger, consoleOpts...)
	feed := console.NewFeed(kvStore, logger)

	sched := scheduler.New(stores.NewJobStore(database), logger)
	auto := NewAutostart(sched, cfg.Autostart, bus, logger)
	manager := NewOperationManager(store, NewRegistry(), platform, auto, bus, cfg.Operations, logger)

	feedbackStore := stores.NewFeedbackStore(database)
	requests := NewRequests(kvStore)
	commanders := NewCommanders(manager, commander.Deps{
		Platform: platform,
		Feed:     feed,
		Feedback: feedbackStore,
		Bus:      bus,
		Config:   cfg.Commander,
		Logger:   logger,
	}, requests, logger)

	return &App{
		Config:        cfg,
		DB:            database,
		Manager:       manager,
		Autostart:     auto,
		Scheduler:     sched,
		Commanders:    commanders,
		Requests:      requests,
		Store:         store,
		KV:            kvStore,
		Feedback:      feedbackStore,
		Notifications: stores.NewNotifyStore(database),
		Console:       platform,
		Feed:          feed,
		Bus:           bus,
		logger:        logger.With().Str("component", "app").Logger(),
	}
}

// Start registers the event subscribers and dispatches events until ctx is
// cancelled. Call Stop after cancelling to wait for the dispatcher.
func (a *App) Start(ctx context.Context) {
	eventbus.RegisterDebugLogger(a.Bus, a.logger)
	eventbus.NewNotificationRouter(a.Bus).Register()

	a.Bus.SubscribeNotificationPublished(func(p eventbus.NotificationPublishedPayload) {
		_, err := a.Notifications.Save(context.Background(), notify.Notification{
			Level:     p.Level,
			Message:   p.Message,
			CreatedAt: time.Now(),
		})
		if err != nil {
			a.logger.Warn().Err(err).Msg("persist notification")
		}
	})

	a.busWG.Add(1)
	go func() {
		defer a.busWG.Done()
		a.Bus.Start(ctx)
	}()
}

// Stop waits for the event dispatcher started by Start.
func (a *App) Stop() {
	a.busWG.Wait()
}

// Load reads every live record into the registry without touching the
// platform. One-shot commands call it before acting on an operation.
func (a *App) Load(ctx context.Context) int {
	return a.Manager.LoadAll(ctx)
}

// Serve runs the bot until ctx is cancelled: it boots the registry, arms
// autostart jobs, follows changes made by other processes and drains the
// commander request queue.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watcher, err := opfile.NewWatcher(a.Store.LiveDir(), a.logger)
	if err != nil {
		return fmt.Errorf("watch operations: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	loaded, res := a.Manager.Boot(ctx)
	a.logger.Info().
		Int("loaded", loaded).
		Int("refreshed", res.Refreshed).
		Int("pruned", res.Pruned).
		Int("failed", res.Failed).
		Msg("operations booted")

	a.Autostart.OnFire(a.Commanders.OnAutostart)

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	schedErr := make(chan error, 1)
	run(func() { schedErr <- a.Scheduler.Run(ctx) })
	run(func() { a.Manager.Watch(ctx, watcher.Changes()) })
	run(func() { a.Commanders.Serve(ctx, a.Config.Commander.PollInterval) })
	run(func() {
		sweep.Start(ctx, a.Config.Operations.RefreshInterval,
			sweep.Task{Name: "refresh", Run: func(ctx context.Context) error {
				res := a.Manager.RefreshAll(ctx)
				if res.Failed > 0 {
					return fmt.Errorf("%d announcements failed to refresh", res.Failed)
				}
				return nil
			}},
			sweep.Task{Name: "kv-expired", Run: a.KV.SweepExpired},
		)
	})

	a.logger.Info().Msg("serving")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-schedErr:
	}
	cancel()

	wg.Wait()
	a.Commanders.Wait()
	a.logger.Info().Msg("stopped")

	return runErr
}
