package notifications

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/patrickmn/go-cache"
)

// DedupeStore remembers when each notification key was last sent so that
// scans do not repeat themselves inside a cooldown window.
//
// The map itself is policy free: callers pass the cooldown. Entries are
// process local and are dropped by GarbageCollect once older than 24 hours.
//
// Check-then-record must be atomic with respect to concurrent scans, and the
// send that sits between them blocks on the network. Reserve performs the
// check and marks the key in flight under one lock; Record or Release ends
// the reservation.
type DedupeStore struct {
	mu       sync.Mutex
	entries  *cache.Cache
	inflight map[string]struct{}
	clock    clockwork.Clock
}

// NewDedupeStore creates an empty store. A nil clock uses the real clock.
func NewDedupeStore(clock clockwork.Clock) *DedupeStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DedupeStore{
		// Expiry is driven by GarbageCollect with the injected clock, not by
		// the cache janitor.
		entries:  cache.New(cache.NoExpiration, 0),
		inflight: make(map[string]struct{}),
		clock:    clock,
	}
}

// ShouldSuppress reports whether key was recorded less than cooldown ago.
func (d *DedupeStore) ShouldSuppress(key string, cooldown time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressedLocked(key, cooldown)
}

// Record upserts the send time for key and ends any reservation on it.
func (d *DedupeStore) Record(key string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries.Set(key, at, cache.NoExpiration)
	delete(d.inflight, key)
}

// Reserve claims key for a send. It returns false when the key is inside its
// cooldown or another caller already holds it.
func (d *DedupeStore) Reserve(key string, cooldown time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[key]; busy {
		return false
	}
	if d.suppressedLocked(key, cooldown) {
		return false
	}
	d.inflight[key] = struct{}{}
	return true
}

// Release drops a reservation without recording a send, so the next scan
// retries the key.
func (d *DedupeStore) Release(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, key)
}

// LastSent returns the recorded send time for key.
func (d *DedupeStore) LastSent(key string) (time.Time, bool) {
	v, ok := d.entries.Get(key)
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

// GarbageCollect removes entries recorded more than 24 hours before now and
// returns how many were removed.
func (d *DedupeStore) GarbageCollect(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, item := range d.entries.Items() {
		at, ok := item.Object.(time.Time)
		if !ok || now.Sub(at) > dedupeRetention {
			d.entries.Delete(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of remembered keys.
func (d *DedupeStore) Len() int {
	return d.entries.ItemCount()
}

func (d *DedupeStore) suppressedLocked(key string, cooldown time.Duration) bool {
	v, ok := d.entries.Get(key)
	if !ok {
		return false
	}
	at := v.(time.Time)
	return d.clock.Now().Sub(at) < cooldown
}
