package guard

import (
	"sync"
	"time"
)

// Cooldown suppresses repeating the same action within ttl. A zero ttl disables it.
type Cooldown struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	ttl   time.Duration
	nowFn func() time.Time
}

// NewCooldown creates a cooldown window of ttl.
func NewCooldown(ttl time.Duration) *Cooldown {
	return &Cooldown{
		seen:  make(map[string]time.Time),
		ttl:   ttl,
		nowFn: time.Now,
	}
}

// Active reports whether key executed within the window, without recording anything.
func (c *Cooldown) Active(key string) (bool, time.Duration) {
	if c == nil || c.ttl <= 0 {
		return false, 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.seen[key]
	if !ok {
		return false, 0
	}
	elapsed := c.nowFn().Sub(last)
	if elapsed >= c.ttl {
		return false, 0
	}
	return true, c.ttl - elapsed
}

// Record marks key as executed now and drops expired entries.
func (c *Cooldown) Record(key string) {
	if c == nil || c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	for k, ts := range c.seen {
		if now.Sub(ts) >= c.ttl {
			delete(c.seen, k)
		}
	}
	c.seen[key] = now
}
