// Package guard keeps decision cycles single-flight and deduplicates repeated triggers.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrLockHeld is returned when another cycle holds the lock.
var ErrLockHeld = errors.New("lock is held by another cycle")

// Locker grants exclusive ownership of a key. The returned unlock func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]time.Time),
		nowFn: time.Now,
	}
}

// Acquire takes key until unlock is called or ttl expires. A zero ttl never expires.
func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if expiresAt, ok := l.held[key]; ok && (expiresAt.IsZero() || now.Before(expiresAt)) {
		return nil, ErrLockHeld
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	l.held[key] = expiresAt

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()

			// a newer holder may own the key after ttl expiry
			if current, ok := l.held[key]; ok && current.Equal(expiresAt) {
				delete(l.held, key)
			}
		})
	}

	return unlock, nil
}
