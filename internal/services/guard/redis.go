package guard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const unlockTimeout = 5 * time.Second

// unlockLua deletes the key only when it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisLocker is a Locker shared by every agent instance pointed at the same Redis.
type RedisLocker struct {
	l        *zap.Logger
	rdb      *redis.Client
	prefix   string
	unlockSc *redis.Script
}

// NewRedisLocker connects to addr and verifies the connection.
func NewRedisLocker(ctx context.Context, l *zap.Logger, addr, password string, db int, prefix string) (*RedisLocker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "ping redis %s", addr)
	}

	return &RedisLocker{
		l:        l,
		rdb:      rdb,
		prefix:   prefix,
		unlockSc: redis.NewScript(unlockLua),
	}, nil
}

// Acquire sets the lock key with SETNX and a ttl.
func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := r.prefix + "lock:" + key

	ok, err := r.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "acquire lock %s", key)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			// the caller's context may already be cancelled
			unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
			defer cancel()

			if err := r.unlockSc.Run(unlockCtx, r.rdb, []string{lk}, token).Err(); err != nil {
				r.l.Warn("failed to release redis lock", zap.String("key", lk), zap.Error(err))
			}
		})
	}

	return unlock, nil
}

// Close closes the redis connection.
func (r *RedisLocker) Close() error {
	return r.rdb.Close()
}
