// Package engine runs the autonomous assistant loop: on a self-tuning
// interval it walks every user and hands them to the calendar, task and
// notification processors their preferences enable.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/albapepper/execassist/internal/lock"
	"github.com/albapepper/execassist/internal/metrics"
	"github.com/albapepper/execassist/internal/models"
)

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

const (
	DefaultInterval = 15 * time.Minute
	jobName         = "autonomous-engine"
	cycleLockName   = "engine:cycle"
	cycleLockTTL    = 2 * time.Hour
)

// ErrCycleBusy is returned by RunNow when another replica holds the cycle
// lock.
var ErrCycleBusy = errors.New("engine cycle already running")

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// Processor handles one user during a cycle.
type Processor interface {
	Process(ctx context.Context, user models.User) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, user models.User) error

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, user models.User) error { return f(ctx, user) }

// UserSource lists the users a cycle visits.
type UserSource interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
}

// Processors are the per-user steps of a cycle. Nil entries are skipped.
type Processors struct {
	Calendar      Processor // when autoManageCalendar
	Tasks         Processor // when autoManageTasks
	Notifications Processor // when autoProcessNotifications
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Config holds the engine's interval settings.
type Config struct {
	Interval time.Duration
	Bounds   Bounds
}

// CycleReport describes one completed cycle.
type CycleReport struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"durationNs"`
	Users      int           `json:"users"`
	Paused     int           `json:"paused"`
	Errors     int           `json:"errors"`
	IntervalMs int64         `json:"intervalMs"` // after adjustment
}

// Status is reported on the admin API.
type Status struct {
	Running          bool         `json:"running"`
	LastRun          *time.Time   `json:"lastRun"`
	IntervalMs       int64        `json:"intervalMs"`
	NextScheduledRun *time.Time   `json:"nextScheduledRun"`
	Cycles           int64        `json:"cycles"`
	LastCycle        *CycleReport `json:"lastCycle,omitempty"`
}

// Engine is the autonomous loop. It starts stopped.
type Engine struct {
	users   UserSource
	procs   Processors
	bounds  Bounds
	locker  lock.Locker
	clock   clockwork.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger

	// cycleMu serializes cycles, scheduled or manual.
	cycleMu sync.Mutex

	mu        sync.Mutex
	interval  time.Duration
	cron      gocron.Scheduler // nil while stopped
	job       gocron.Job
	runCtx    context.Context
	lastRun   time.Time
	cycles    int64
	lastCycle *CycleReport
}

// New creates an engine. A zero Config uses a 15 minute interval within
// DefaultBounds; an out-of-bounds interval is clamped. Nil clock, locker and
// logger get defaults.
func New(cfg Config, users UserSource, procs Processors, locker lock.Locker, clock clockwork.Clock, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if cfg.Bounds.Min <= 0 || cfg.Bounds.Max < cfg.Bounds.Min {
		cfg.Bounds = DefaultBounds
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		users:    users,
		procs:    procs,
		bounds:   cfg.Bounds,
		locker:   locker,
		clock:    clock,
		metrics:  m,
		logger:   logger,
		interval: cfg.Bounds.clamp(cfg.Interval),
	}
	m.EngineInterval(e.interval)
	return e
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start schedules cycles every interval. Cycles run with ctx. Starting a
// running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cron != nil {
		return nil
	}

	cron, err := gocron.NewScheduler(
		gocron.WithClock(e.clock),
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(e.logger),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	e.runCtx = ctx
	def, task, opts := e.jobDefinition(e.interval)
	job, err := cron.NewJob(def, task, opts...)
	if err != nil {
		_ = cron.Shutdown()
		return fmt.Errorf("register engine job: %w", err)
	}
	cron.Start()
	e.cron, e.job = cron, job

	e.logger.Info("Autonomous engine started", "interval", e.interval)
	return nil
}

// Stop cancels the timer. A cycle already in progress runs to completion.
// Safe to call when stopped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	cron := e.cron
	e.cron, e.job = nil, nil
	e.mu.Unlock()

	if cron == nil {
		return nil
	}
	if err := cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	e.logger.Info("Autonomous engine stopped")
	return nil
}

// Running reports whether the timer is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cron != nil
}

// Interval returns the current interval.
func (e *Engine) Interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

// SetInterval validates minutes against the bounds, replaces the running
// timer and returns the new status.
func (e *Engine) SetInterval(minutes int) (Status, error) {
	d := time.Duration(minutes) * time.Minute
	if !e.bounds.Contains(d) {
		return e.Status(), fmt.Errorf("%w: %d minutes not in [%v, %v]",
			ErrIntervalOutOfRange, minutes, e.bounds.Min, e.bounds.Max)
	}
	if err := e.applyInterval(d); err != nil {
		return e.Status(), err
	}
	e.logger.Info("Engine interval set", "interval", d)
	return e.Status(), nil
}

// Status returns a snapshot of the run state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		Running:    e.cron != nil,
		IntervalMs: e.interval.Milliseconds(),
		Cycles:     e.cycles,
		LastCycle:  e.lastCycle,
	}
	if !e.lastRun.IsZero() {
		last := e.lastRun
		st.LastRun = &last
	}
	if e.job != nil {
		if next, err := e.job.NextRun(); err == nil && !next.IsZero() {
			st.NextScheduledRun = &next
		}
	}
	return st
}

// ---------------------------------------------------------------------------
// Cycles
// ---------------------------------------------------------------------------

// RunNow runs one cycle immediately whether or not the timer is active. It
// waits for an in-process cycle to finish first.
func (e *Engine) RunNow(ctx context.Context) (CycleReport, error) {
	return e.runCycle(ctx)
}

func (e *Engine) tick() {
	e.mu.Lock()
	ctx := e.runCtx
	e.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if _, err := e.runCycle(ctx); err != nil && !errors.Is(err, ErrCycleBusy) {
		e.logger.Error("Engine cycle failed", "error", err)
	}
}

func (e *Engine) runCycle(ctx context.Context) (CycleReport, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	release, ok, err := e.locker.TryLock(ctx, cycleLockName, cycleLockTTL)
	if err != nil {
		return CycleReport{}, fmt.Errorf("acquire cycle lock: %w", err)
	}
	if !ok {
		e.logger.Debug("Engine cycle running elsewhere")
		return CycleReport{}, ErrCycleBusy
	}
	defer release()

	start := e.clock.Now()
	report := CycleReport{ID: uuid.NewString(), StartedAt: start}
	log := e.logger.With("cycle_id", report.ID)

	users, err := e.users.GetAllUsers(ctx)
	if err != nil {
		report.Errors++
		e.metrics.EngineCycle(e.clock.Since(start), report.Errors)
		return report, fmt.Errorf("load users: %w", err)
	}

	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		report.Users++
		if u.Preferences.AIPaused {
			report.Paused++
			continue
		}
		report.Errors += e.processUser(ctx, log, u)
	}

	report.Duration = e.clock.Since(start)
	interval := e.Interval()
	ratio := float64(report.Duration) / float64(interval)
	next := NextInterval(interval, ratio, len(users), e.bounds)
	if next != interval {
		if err := e.applyInterval(next); err != nil {
			log.Warn("Failed to adjust engine interval", "error", err)
		} else {
			log.Info("Engine interval adjusted", "from", interval, "to", next, "ratio", ratio)
		}
	}
	report.IntervalMs = e.Interval().Milliseconds()

	e.mu.Lock()
	e.lastRun = start
	e.cycles++
	e.lastCycle = &report
	e.mu.Unlock()

	e.metrics.EngineCycle(report.Duration, report.Errors)
	log.Info("Engine cycle complete",
		"users", report.Users, "paused", report.Paused, "errors", report.Errors,
		"duration", report.Duration.Round(time.Millisecond))
	return report, nil
}

// processUser runs each enabled processor for u and returns how many failed.
func (e *Engine) processUser(ctx context.Context, log *slog.Logger, u models.User) int {
	steps := []struct {
		name    string
		enabled bool
		proc    Processor
	}{
		{"calendar", u.Preferences.AutoManageCalendar, e.procs.Calendar},
		{"tasks", u.Preferences.AutoManageTasks, e.procs.Tasks},
		{"notifications", u.Preferences.AutoProcessNotifications, e.procs.Notifications},
	}

	failed := 0
	for _, s := range steps {
		if !s.enabled || s.proc == nil {
			continue
		}
		if err := safeProcess(ctx, s.proc, u); err != nil {
			failed++
			log.Warn("Engine processor failed", "processor", s.name, "user_id", u.ID, "error", err)
		}
	}
	return failed
}

// safeProcess converts a processor panic into an error.
func safeProcess(ctx context.Context, p Processor, u models.User) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Process(ctx, u)
}

// applyInterval stores d and reschedules the running job.
func (e *Engine) applyInterval(d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.interval = d
	e.metrics.EngineInterval(d)
	if e.cron == nil {
		return nil
	}
	def, task, opts := e.jobDefinition(d)
	job, err := e.cron.Update(e.job.ID(), def, task, opts...)
	if err != nil {
		return fmt.Errorf("reschedule engine job: %w", err)
	}
	e.job = job
	return nil
}

func (e *Engine) jobDefinition(d time.Duration) (gocron.JobDefinition, gocron.Task, []gocron.JobOption) {
	return gocron.DurationJob(d),
		gocron.NewTask(e.tick),
		[]gocron.JobOption{
			gocron.WithName(jobName),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}
}
