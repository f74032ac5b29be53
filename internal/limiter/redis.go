package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// keys live a little longer than the window they count so a clock skewed
// reader never sees a vanished counter mid-day
const keyTTL = 48 * time.Hour

type redisClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Decr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
}

// RedisLimiter caps sends per owner per UTC calendar day with an atomic
// fixed-window counter. INCR-then-check closes the read-then-decide race of
// a plain count query: two concurrent dispatches can no longer both slip
// under the cap.
type RedisLimiter struct {
	rdb redisClient
	now func() time.Time

	mu       sync.Mutex
	reserved map[string]string
}

func NewRedisLimiter(rdb redisClient) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, now: time.Now, reserved: make(map[string]string)}
}

// Reserve atomically takes one slot of the owner's daily quota. It returns
// false when the cap is already reached; the failed increment is rolled back
// so rejected attempts do not eat into the window.
func (l *RedisLimiter) Reserve(ctx context.Context, ownerID string, limit int) (bool, error) {
	key := l.key(ownerID)

	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment usage counter: %w", err)
	}

	if n == 1 {
		if err := l.rdb.Expire(ctx, key, keyTTL).Err(); err != nil {
			return false, fmt.Errorf("failed to expire usage counter: %w", err)
		}
	}

	if n > int64(limit) {
		if err := l.rdb.Decr(ctx, key).Err(); err != nil {
			return false, fmt.Errorf("failed to roll back usage counter: %w", err)
		}
		return false, nil
	}

	l.mu.Lock()
	l.reserved[ownerID] = key
	l.mu.Unlock()

	return true, nil
}

// Release refunds one reserved slot after a failed dispatch, so only
// successful sends consume quota. The refund targets the key the reservation
// was taken against, so a send failing after UTC midnight never drives the
// fresh day's counter negative.
func (l *RedisLimiter) Release(ctx context.Context, ownerID string) error {
	l.mu.Lock()
	key, ok := l.reserved[ownerID]
	l.mu.Unlock()
	if !ok {
		key = l.key(ownerID)
	}

	if err := l.rdb.Decr(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release usage counter: %w", err)
	}

	return nil
}

func (l *RedisLimiter) key(ownerID string) string {
	return fmt.Sprintf("exitpal:usage:%s:%s", ownerID, l.now().UTC().Format("20060102"))
}
