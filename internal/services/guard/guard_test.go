package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	locker := NewLocalLocker()

	unlock, err := locker.Acquire(context.Background(), "cycle", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), "cycle", time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)

	_, err = locker.Acquire(context.Background(), "other", time.Minute)
	require.NoError(t, err)

	unlock()
	unlock()

	_, err = locker.Acquire(context.Background(), "cycle", time.Minute)
	require.NoError(t, err)
}

func TestLocalLocker_ExpiredLockIsReplaced(t *testing.T) {
	locker := NewLocalLocker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.nowFn = func() time.Time { return now }

	staleUnlock, err := locker.Acquire(context.Background(), "cycle", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = locker.Acquire(context.Background(), "cycle", time.Minute)
	require.NoError(t, err)

	// the expired holder must not release the new holder's lock
	staleUnlock()
	_, err = locker.Acquire(context.Background(), "cycle", time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)
}

func TestLocalLocker_SingleWinnerUnderContention(t *testing.T) {
	locker := NewLocalLocker()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.Acquire(context.Background(), "cycle", 0); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestCooldown(t *testing.T) {
	c := NewCooldown(10 * time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.nowFn = func() time.Time { return now }

	active, _ := c.Active("BUY_BASE")
	assert.False(t, active)

	c.Record("BUY_BASE")

	now = now.Add(4 * time.Minute)
	active, remaining := c.Active("BUY_BASE")
	assert.True(t, active)
	assert.Equal(t, 6*time.Minute, remaining)

	active, _ = c.Active("SELL_BASE")
	assert.False(t, active)

	now = now.Add(6 * time.Minute)
	active, _ = c.Active("BUY_BASE")
	assert.False(t, active)
}

func TestCooldown_Disabled(t *testing.T) {
	c := NewCooldown(0)
	c.Record("BUY_BASE")

	active, _ := c.Active("BUY_BASE")
	assert.False(t, active)

	var nilCooldown *Cooldown
	active, _ = nilCooldown.Active("BUY_BASE")
	assert.False(t, active)
	nilCooldown.Record("BUY_BASE")
}
