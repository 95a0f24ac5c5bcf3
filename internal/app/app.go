// Package app wires the notification scheduler, the autonomous engine and
// their collaborators from configuration. Both the API server and the
// control CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/albapepper/execassist/internal/assistant"
	"github.com/albapepper/execassist/internal/channel"
	"github.com/albapepper/execassist/internal/config"
	"github.com/albapepper/execassist/internal/engine"
	"github.com/albapepper/execassist/internal/llm"
	"github.com/albapepper/execassist/internal/lock"
	"github.com/albapepper/execassist/internal/metrics"
	"github.com/albapepper/execassist/internal/notifications"
	"github.com/albapepper/execassist/internal/store"
)

// App holds the wired components.
type App struct {
	Store      *store.Store
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Locker     lock.Locker
	Channel    *channel.Multi
	Dispatcher *notifications.Dispatcher
	Scheduler  *notifications.Scheduler
	Engine     *engine.Engine
	Processors engine.Processors
	LLM        *llm.Client

	closers []func() error
}

// New builds every component on top of q. Nothing is started.
func New(ctx context.Context, cfg *config.Config, q store.Querier, logger *slog.Logger) (*App, error) {
	a := &App{
		Store:    store.New(q),
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)
	clock := clockwork.NewRealClock()

	// Scan and cycle locks: shared across replicas when Redis is configured
	if cfg.RedisURL != "" {
		r, err := lock.NewRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.Locker = r
		a.closers = append(a.closers, r.Close)
		logger.Info("Using Redis locks")
	} else {
		a.Locker = lock.NewLocal()
	}

	email := channel.NewEmail("", cfg.SendGridAPIKey, cfg.NotifyFromEmail, logger)
	slack := channel.NewSlack("", cfg.SlackBotToken, logger)
	a.Channel = channel.NewMulti(email, slack)
	logger.Info("Notification channels",
		"email", email.IsConfigured(),
		"slack", slack.IsConfigured())

	a.Dispatcher = notifications.NewDispatcher(notifications.DispatcherDeps{
		Store:       a.Store,
		Ledger:      a.Store,
		Channel:     a.Channel,
		Clock:       clock,
		Location:    cfg.DigestLocation,
		DigestTimes: cfg.DigestTimes,
		SendTimeout: cfg.SendTimeout,
		Metrics:     a.Metrics,
		Logger:      logger.With("component", "dispatcher"),
	})

	a.Scheduler = notifications.NewScheduler(notifications.SchedulerConfig{
		Enabled:        cfg.NotificationsEnabled,
		UrgentInterval: cfg.UrgentScanInterval,
		DigestInterval: cfg.DigestScanInterval,
	}, a.Store, a.Dispatcher, a.Locker, a.Metrics, logger.With("component", "scheduler"))

	if cfg.AnthropicAPIKey != "" {
		a.LLM = llm.New("", cfg.AnthropicAPIKey, cfg.AnthropicModel, logger)
	}
	var summarizer assistant.Summarizer
	if a.LLM != nil {
		summarizer = a.LLM
	}

	// Every processor sends through the channels, so none run while
	// notifications are disabled. Cycles still tick and retune.
	if cfg.NotificationsEnabled {
		procLogger := logger.With("component", "assistant")
		a.Processors = engine.Processors{
			Calendar:      assistant.NewCalendarManager(a.Store, a.Channel, summarizer, clock, cfg.DigestLocation, procLogger),
			Tasks:         assistant.NewTaskManager(a.Store, a.Channel, clock, cfg.DigestLocation, procLogger),
			Notifications: assistant.NotificationProcessor(a.Scheduler),
		}
	} else {
		logger.Info("Engine processors disabled (NOTIFICATIONS_ENABLED=false)")
	}
	a.Engine = engine.New(engine.Config{
		Interval: cfg.EngineInterval,
		Bounds:   engine.Bounds{Min: cfg.EngineMinInterval, Max: cfg.EngineMaxInterval},
	}, a.Store, a.Processors, a.Locker, clock, a.Metrics, logger.With("component", "engine"))

	return a, nil
}

// Close stops both timers and releases external connections.
func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(a.Engine.Stop())
	keep(a.Scheduler.Stop())
	for _, c := range a.closers {
		keep(c())
	}
	return firstErr
}
