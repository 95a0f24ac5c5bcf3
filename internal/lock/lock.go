// Package lock provides named, expiring locks that keep a scan or engine
// cycle from running twice at once, within one process or across replicas.
package lock

import (
	"context"
	"sync"
	"time"
)

// Locker acquires named locks. TryLock never blocks waiting for a holder: ok
// is false when the lock is taken. release is non-nil only when ok is true.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// Local is an in-process Locker. The ttl is ignored; holders always release.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

// TryLock implements Locker.
func (l *Local) TryLock(_ context.Context, name string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[name]; taken {
		return nil, false, nil
	}
	l.held[name] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
	}, true, nil
}
