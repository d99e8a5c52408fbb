package storage

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"pimsync_api/internal/syncerr"
)

var (
	refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLock shares the import mutex between processes; the key expiry is the lock TTL.
type RedisLock struct {
	rdb *goredis.Client
	key string
}

func NewRedisLock(rdb *goredis.Client, key string) *RedisLock {
	return &RedisLock{rdb: rdb, key: key}
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, syncerr.Store("redis-ping", "redis ping failed", err)
	}
	return rdb, nil
}

func (l *RedisLock) Acquire(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, owner, ttl).Result()
	if err != nil {
		return false, syncerr.Store("lock-acquire", "redis lock acquire failed", err)
	}
	return ok, nil
}

func (l *RedisLock) Refresh(ctx context.Context, owner string, ttl time.Duration) error {
	err := refreshScript.Run(ctx, l.rdb, []string{l.key}, owner, ttl.Milliseconds()).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return syncerr.Store("lock-refresh", "redis lock refresh failed", err)
	}
	return nil
}

func (l *RedisLock) Release(ctx context.Context, owner string) error {
	err := releaseScript.Run(ctx, l.rdb, []string{l.key}, owner).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return syncerr.Store("lock-release", "redis lock release failed", err)
	}
	return nil
}

func (l *RedisLock) Active(ctx context.Context) (bool, error) {
	n, err := l.rdb.Exists(ctx, l.key).Result()
	if err != nil {
		return false, syncerr.Store("lock-check", "redis lock check failed", err)
	}
	return n > 0, nil
}
