package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/albapepper/execassist/internal/lock"
	"github.com/albapepper/execassist/internal/metrics"
	"github.com/albapepper/execassist/internal/models"
)

// SchedulerConfig controls the two recurring scans.
type SchedulerConfig struct {
	Enabled        bool
	UrgentInterval time.Duration
	DigestInterval time.Duration
	// GCEvery runs dedupe garbage collection on every Nth digest scan.
	GCEvery int
}

// DefaultSchedulerConfig returns production defaults: urgent every 5
// minutes, digest every minute, GC every 60th digest scan.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:        true,
		UrgentInterval: defaultUrgentInterval,
		DigestInterval: defaultDigestInterval,
		GCEvery:        defaultGCEvery,
	}
}

// ScanRun is the last completed run of a scan.
type ScanRun struct {
	At     time.Time  `json:"at"`
	Result ScanResult `json:"result"`
}

// SchedulerStatus is reported on the admin API.
type SchedulerStatus struct {
	Enabled          bool     `json:"enabled"`
	Running          bool     `json:"running"`
	UrgentIntervalMs int64    `json:"urgentIntervalMs"`
	DigestIntervalMs int64    `json:"digestIntervalMs"`
	DigestTimes      []string `json:"digestTimes"`
	DedupeEntries    int      `json:"dedupeEntries"`
	LastUrgentScan   *ScanRun `json:"lastUrgentScan,omitempty"`
	LastDigestScan   *ScanRun `json:"lastDigestScan,omitempty"`
}

// Scheduler owns the urgent and digest timers. Both start stopped.
type Scheduler struct {
	cfg      SchedulerConfig
	store    Store
	dispatch *Dispatcher
	locker   lock.Locker
	clock    clockwork.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger

	disabledOnce sync.Once

	mu          sync.Mutex
	cron        gocron.Scheduler // nil while stopped
	digestTicks int
	lastUrgent  *ScanRun
	lastDigest  *ScanRun
}

// NewScheduler wires a scheduler around a dispatcher. A nil locker uses an
// in-process lock.
func NewScheduler(cfg SchedulerConfig, store Store, dispatch *Dispatcher, locker lock.Locker, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.UrgentInterval <= 0 {
		cfg.UrgentInterval = def.UrgentInterval
	}
	if cfg.DigestInterval <= 0 {
		cfg.DigestInterval = def.DigestInterval
	}
	if cfg.GCEvery <= 0 {
		cfg.GCEvery = def.GCEvery
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		dispatch: dispatch,
		locker:   locker,
		clock:    dispatch.clock,
		metrics:  m,
		logger:   logger,
	}
}

// Start registers both timers. Scans run with ctx, so cancelling it aborts
// in-flight work. Starting a running scheduler is a no-op, and so is starting
// one whose notifications are disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.disabled("start") {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	cron, err := gocron.NewScheduler(
		gocron.WithClock(s.clock),
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(s.logger),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	jobs := []struct {
		name     string
		interval time.Duration
		run      func()
	}{
		{"urgent-scan", s.cfg.UrgentInterval, func() { s.RunUrgentScan(ctx) }},
		{"digest-scan", s.cfg.DigestInterval, func() { s.RunDigestScan(ctx) }},
	}
	for _, j := range jobs {
		_, err := cron.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(j.run),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = cron.Shutdown()
			return fmt.Errorf("register %s: %w", j.name, err)
		}
	}

	cron.Start()
	s.cron = cron
	s.logger.Info("Notification scheduler started",
		"urgent_interval", s.cfg.UrgentInterval,
		"digest_interval", s.cfg.DigestInterval,
		"digest_times", s.digestTimeStrings())
	return nil
}

// Stop clears both timers. Safe to call when not running.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cron := s.cron
	s.cron = nil
	s.mu.Unlock()

	if cron == nil {
		return nil
	}
	if err := cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	s.logger.Info("Notification scheduler stopped")
	return nil
}

// Enabled reports whether notifications may be sent at all.
func (s *Scheduler) Enabled() bool {
	return s.cfg.Enabled
}

// disabled logs the first time a disabled scheduler is asked to do work.
func (s *Scheduler) disabled(op string) bool {
	if s.cfg.Enabled {
		return false
	}
	s.disabledOnce.Do(func() {
		s.logger.Info("Notification scheduler disabled (NOTIFICATIONS_ENABLED=false)")
	})
	s.logger.Debug("Notifications disabled, skipping", "op", op)
	return true
}

// Running reports whether the timers are registered.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Status returns a snapshot for the admin API.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{
		Enabled:          s.cfg.Enabled,
		Running:          s.cron != nil,
		UrgentIntervalMs: s.cfg.UrgentInterval.Milliseconds(),
		DigestIntervalMs: s.cfg.DigestInterval.Milliseconds(),
		DigestTimes:      s.digestTimeStrings(),
		DedupeEntries:    s.dispatch.dedupe.Len(),
		LastUrgentScan:   s.lastUrgent,
		LastDigestScan:   s.lastDigest,
	}
}

// ---------------------------------------------------------------------------
// Scans
// ---------------------------------------------------------------------------

// RunUrgentScan checks every open task, meeting and lead of every user.
// One user's failure never aborts the scan. A disabled scheduler sends
// nothing.
func (s *Scheduler) RunUrgentScan(ctx context.Context) ScanResult {
	if s.disabled("urgent-scan") {
		return ScanResult{}
	}
	release, ok := s.acquire(ctx, urgentScanLockName)
	if !ok {
		return ScanResult{}
	}
	defer release()

	start := s.clock.Now()
	var res ScanResult

	users, err := s.store.GetAllUsers(ctx)
	if err != nil {
		s.logger.Error("Urgent scan: failed to load users", "error", err)
		return res
	}
	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		res.add(s.ScanUser(ctx, u))
	}

	res.Duration = s.clock.Since(start)
	s.finish("urgent", &s.lastUrgent, start, res)
	return res
}

// ScanUser runs the urgent dispatchers for one user.
func (s *Scheduler) ScanUser(ctx context.Context, user models.User) ScanResult {
	if s.disabled("scan-user") {
		return ScanResult{}
	}
	res := ScanResult{Users: 1}

	tasks, err := s.store.GetTasksByUserID(ctx, user.ID)
	if err != nil {
		s.logger.Warn("Urgent scan: failed to load tasks", "user_id", user.ID, "error", err)
	}
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		res.tally(s.dispatch.task(ctx, user, t))
	}

	events, err := s.store.GetEventsByUserID(ctx, user.ID)
	if err != nil {
		s.logger.Warn("Urgent scan: failed to load events", "user_id", user.ID, "error", err)
	}
	for _, e := range events {
		res.tally(s.dispatch.meeting(ctx, user, e))
	}

	leads, err := s.store.GetLeadsByUserID(ctx, user.ID)
	if err != nil {
		s.logger.Warn("Urgent scan: failed to load leads", "user_id", user.ID, "error", err)
	}
	for _, l := range leads {
		res.tally(s.dispatch.lead(ctx, user, l))
	}
	return res
}

// RunDigestScan sends digests to users inside a digest window and, every
// GCEvery-th call, garbage-collects the dedupe store.
func (s *Scheduler) RunDigestScan(ctx context.Context) ScanResult {
	if s.disabled("digest-scan") {
		return ScanResult{}
	}
	s.mu.Lock()
	s.digestTicks++
	gc := s.digestTicks%s.cfg.GCEvery == 0
	s.mu.Unlock()

	if gc {
		dedupe := s.dispatch.dedupe
		removed := dedupe.GarbageCollect(s.clock.Now())
		s.metrics.DedupeEntries(dedupe.Len())
		s.logger.Debug("Dedupe store garbage collected", "removed", removed, "remaining", dedupe.Len())
	}

	release, ok := s.acquire(ctx, digestScanLockName)
	if !ok {
		return ScanResult{}
	}
	defer release()

	start := s.clock.Now()
	var res ScanResult

	users, err := s.store.GetAllUsers(ctx)
	if err != nil {
		s.logger.Error("Digest scan: failed to load users", "error", err)
		return res
	}
	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		res.Users++
		res.tally(s.dispatch.digest(ctx, u, false))
	}

	res.Duration = s.clock.Since(start)
	s.finish("digest", &s.lastDigest, start, res)
	return res
}

func (s *Scheduler) acquire(ctx context.Context, name string) (func(), bool) {
	release, ok, err := s.locker.TryLock(ctx, name, scanLockTTL)
	if err != nil {
		s.logger.Warn("Scan lock unavailable", "scan", name, "error", err)
		return nil, false
	}
	if !ok {
		s.logger.Debug("Scan already running elsewhere", "scan", name)
		return nil, false
	}
	return release, true
}

func (s *Scheduler) finish(scan string, last **ScanRun, at time.Time, res ScanResult) {
	s.mu.Lock()
	*last = &ScanRun{At: at, Result: res}
	s.mu.Unlock()

	s.metrics.Scan(scan, res.Duration)
	s.metrics.DedupeEntries(s.dispatch.dedupe.Len())
	if res.Sent+res.Failed > 0 {
		s.logger.Info("Scan complete",
			"scan", scan, "users", res.Users, "sent", res.Sent,
			"suppressed", res.Suppressed, "failed", res.Failed,
			"duration", res.Duration.Round(time.Millisecond))
	}
}

func (s *Scheduler) digestTimeStrings() []string {
	out := make([]string, 0, len(s.dispatch.digestTimes))
	for _, t := range s.dispatch.digestTimes {
		out = append(out, t.String())
	}
	return out
}

func (r *ScanResult) tally(o outcome) {
	switch o {
	case outcomeSent:
		r.Sent++
	case outcomeSkipped:
		r.Skipped++
	case outcomeSuppressed:
		r.Suppressed++
	case outcomeFailed:
		r.Failed++
	}
}
