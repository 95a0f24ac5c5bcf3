package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (p *fakePurger) PurgeNotificationLog(_ context.Context, before time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, before)
	return 3, p.err
}

func (p *fakePurger) calls() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Time(nil), p.cutoffs...)
}

func TestPurgeLedger(t *testing.T) {
	cutoff := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	p := &fakePurger{}
	assert.Equal(t, int64(3), PurgeLedger(context.Background(), p, cutoff, slog.Default()))
	assert.Equal(t, []time.Time{cutoff}, p.calls())

	p.err = errors.New("db down")
	assert.Zero(t, PurgeLedger(context.Background(), p, cutoff, slog.Default()))
}

func TestStart_PurgesOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	p := &fakePurger{}
	cfg := Config{LedgerPurgeInterval: time.Hour, LedgerRetention: 30 * 24 * time.Hour}

	done := make(chan struct{})
	go func() {
		Start(ctx, p, cfg, clock, slog.Default())
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return len(p.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, clock.Now().Add(-cfg.LedgerRetention), p.calls()[0])

	cancel()
	<-done
}
