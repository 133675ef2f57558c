package migrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRunLocked is returned when another run of the same pass holds the lock.
var ErrRunLocked = errors.New("migration pass is already running")

// Locker serialises runs of the same pass across processes.
type Locker interface {
	// Acquire takes key for ttl. The returned release func is safe to call
	// once the run is over, even after the lock expired.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// releaseScript deletes the key only while it still holds our token, so a
// run that outlived its TTL cannot free somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker { return &RedisLocker{rdb: rdb} }

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunLocked, key)
	}
	return func() {
		// The run's context may already be canceled; releasing must still happen.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(relCtx, l.rdb, []string{key}, token).Err()
	}, nil
}

func lockKey(pass string) string { return "lock:catalog_migration:" + pass }
