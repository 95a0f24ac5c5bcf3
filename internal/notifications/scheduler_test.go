package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/execassist/internal/lock"
	"github.com/albapepper/execassist/internal/metrics"
	"github.com/albapepper/execassist/internal/models"
)

func newTestScheduler(h *harness, cfg SchedulerConfig, locker lock.Locker) *Scheduler {
	return NewScheduler(cfg, h.store, h.d, locker, nil, nil)
}

func TestUrgentScan_TaskAndMeeting(t *testing.T) {
	ctx := context.Background()
	u := testUser(1)
	h := newHarness(t, t0, u)
	h.store.tasks[1] = []models.Task{{ID: 1, UserID: 1, Title: "T", Priority: models.PriorityHigh}}
	h.store.events[1] = []models.Event{{ID: 2, UserID: 1, Title: "M", StartTime: t0.Add(10 * time.Minute)}}
	s := newTestScheduler(h, DefaultSchedulerConfig(), nil)

	res := s.RunUrgentScan(ctx)
	assert.Equal(t, 1, res.Users)
	assert.Equal(t, 2, res.Sent)
	assert.ElementsMatch(t, []string{KindTask, KindMeeting}, h.channel.kinds())

	res = s.RunUrgentScan(ctx)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 2, res.Suppressed)
	assert.Equal(t, 2, h.channel.count())

	st := s.Status()
	require.NotNil(t, st.LastUrgentScan)
	assert.Equal(t, 2, st.LastUrgentScan.Result.Suppressed)
	assert.Equal(t, 2, st.DedupeEntries)
}

func TestUrgentScan_CompletedTasksSkipped(t *testing.T) {
	u := testUser(1)
	h := newHarness(t, t0, u)
	h.store.tasks[1] = []models.Task{{ID: 1, UserID: 1, Title: "T", Priority: models.PriorityHigh, Completed: true}}
	s := newTestScheduler(h, DefaultSchedulerConfig(), nil)

	res := s.RunUrgentScan(context.Background())
	assert.Zero(t, res.Sent)
	assert.Zero(t, h.channel.count())
}

func TestUrgentScan_UserFailureIsIsolated(t *testing.T) {
	u1, u2 := testUser(1), testUser(2)
	h := newHarness(t, t0, u1, u2)
	h.store.failUsers[1] = true
	h.store.tasks[2] = []models.Task{{ID: 5, UserID: 2, Title: "T", Priority: models.PriorityHigh}}
	s := newTestScheduler(h, DefaultSchedulerConfig(), nil)

	res := s.RunUrgentScan(context.Background())
	assert.Equal(t, 2, res.Users)
	assert.Equal(t, 1, res.Sent)
	require.Equal(t, 1, h.channel.count())
	assert.Equal(t, int64(2), h.channel.sent[0].UserID)
}

func TestUrgentScan_UsersLoadFailure(t *testing.T) {
	h := newHarness(t, t0)
	h.store.usersErr = errors.New("db down")
	s := newTestScheduler(h, DefaultSchedulerConfig(), nil)

	res := s.RunUrgentScan(context.Background())
	assert.Equal(t, ScanResult{}, res)
}

func TestUrgentScan_LockHeld(t *testing.T) {
	ctx := context.Background()
	u := testUser(1)
	h := newHarness(t, t0, u)
	h.store.tasks[1] = []models.Task{{ID: 1, UserID: 1, Title: "T", Priority: models.PriorityHigh}}
	locker := lock.NewLocal()
	s := newTestScheduler(h, DefaultSchedulerConfig(), locker)

	release, ok, err := locker.TryLock(ctx, urgentScanLockName, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	s.RunUrgentScan(ctx)
	assert.Zero(t, h.channel.count())

	release()
	s.RunUrgentScan(ctx)
	assert.Equal(t, 1, h.channel.count())
}

func TestDigestScan(t *testing.T) {
	ctx := context.Background()
	u1, u2 := testUser(1), testUser(2)
	h := newHarness(t, digestMorning, u1, u2)
	h.store.tasks[1] = []models.Task{{ID: 1, UserID: 1, Title: "T", DueDate: ptr(digestMorning.Add(time.Hour))}}
	s := newTestScheduler(h, DefaultSchedulerConfig(), nil)

	res := s.RunDigestScan(ctx)
	assert.Equal(t, 2, res.Users)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Skipped, "user 2 has nothing to report")

	res = s.RunDigestScan(ctx)
	assert.Equal(t, 2, res.Suppressed)
	assert.Equal(t, 1, h.channel.count())
}

func TestDigestScan_GarbageCollectsEveryNthTick(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, t0)
	cfg := DefaultSchedulerConfig()
	cfg.GCEvery = 3
	s := newTestScheduler(h, cfg, nil)

	h.d.Dedupe().Record("old", t0.Add(-48*time.Hour))

	s.RunDigestScan(ctx)
	s.RunDigestScan(ctx)
	assert.Equal(t, 1, h.d.Dedupe().Len())

	s.RunDigestScan(ctx)
	assert.Equal(t, 0, h.d.Dedupe().Len())
}

func TestScheduler_StartStop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, t0)
	s := newTestScheduler(h, DefaultSchedulerConfig(), nil)

	assert.False(t, s.Running())
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.Running())
	require.NoError(t, s.Start(ctx), "second start is a no-op")
	assert.True(t, s.Status().Running)

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
	require.NoError(t, s.Stop(), "stop when stopped")

	require.NoError(t, s.Start(ctx), "restart after stop")
	assert.True(t, s.Running())
	require.NoError(t, s.Stop())
}

func TestScheduler_Disabled(t *testing.T) {
	h := newHarness(t, t0)
	cfg := DefaultSchedulerConfig()
	cfg.Enabled = false
	s := newTestScheduler(h, cfg, nil)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.Running())
	assert.False(t, s.Status().Enabled)
}

func TestScheduler_DisabledSendsNothing(t *testing.T) {
	ctx := context.Background()
	u := testUser(1)
	h := newHarness(t, digestMorning, u)
	h.store.tasks[1] = []models.Task{{ID: 1, UserID: 1, Title: "T", Priority: models.PriorityHigh, DueDate: ptr(digestMorning.Add(time.Hour))}}
	h.store.events[1] = []models.Event{{ID: 2, UserID: 1, Title: "M", StartTime: digestMorning.Add(10 * time.Minute)}}
	cfg := DefaultSchedulerConfig()
	cfg.Enabled = false
	s := newTestScheduler(h, cfg, nil)

	assert.False(t, s.Enabled())
	assert.Equal(t, ScanResult{}, s.ScanUser(ctx, u))
	assert.Equal(t, ScanResult{}, s.RunUrgentScan(ctx))
	assert.Equal(t, ScanResult{}, s.RunDigestScan(ctx))
	assert.Zero(t, h.channel.count())
	assert.Nil(t, s.Status().LastUrgentScan)
	assert.Nil(t, s.Status().LastDigestScan)
}

func TestScheduler_Status(t *testing.T) {
	h := newHarness(t, t0)
	s := newTestScheduler(h, DefaultSchedulerConfig(), nil)

	st := s.Status()
	assert.Equal(t, int64(300000), st.UrgentIntervalMs)
	assert.Equal(t, int64(60000), st.DigestIntervalMs)
	assert.Equal(t, []string{"07:00", "12:00", "17:00"}, st.DigestTimes)
	assert.Nil(t, st.LastDigestScan)
}

func TestDispatch_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	u := testUser(1)
	h := newHarness(t, t0, u)
	h.d.metrics = m
	task := models.Task{ID: 1, UserID: 1, Title: "T", Priority: models.PriorityHigh}

	h.d.NotifyTask(ctx, u, task)
	h.d.NotifyTask(ctx, u, task)

	n, err := testutil.GatherAndCount(reg, "execassist_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "sent and suppressed series")
}
