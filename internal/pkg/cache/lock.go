package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/commercelab/settlement/internal/settlement/domain"
	"github.com/commercelab/settlement/internal/settlement/ports"
)

// Redis-backed exclusive lock for split rows. Acquisition is bounded: the
// lock is polled until maxWait elapses, then the caller gets a LOCK_CONFLICT
// error instead of blocking indefinitely. The lock value is a random token so
// only the owner's release deletes the key.
type redisSplitLocker struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	maxWait time.Duration
	retry   time.Duration
}

var _ ports.SplitLocker = (*redisSplitLocker)(nil)

// releaseScript deletes the key only if it still holds the owner's token,
// so a lock that expired and was re-acquired is never released by the
// previous owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisSplitLocker returns a SplitLocker serializing cancellations per
// order item. The TTL bounds how long a crashed holder can wedge an item.
func NewRedisSplitLocker(client *redis.Client) ports.SplitLocker {
	return &redisSplitLocker{
		client:  client,
		prefix:  "settlement:split-lock:",
		ttl:     30 * time.Second,
		maxWait: 3 * time.Second,
		retry:   50 * time.Millisecond,
	}
}

func (l *redisSplitLocker) Acquire(ctx context.Context, orderItemID string) (func(ctx context.Context) error, error) {
	key := l.prefix + orderItemID
	token := uuid.NewString()

	deadline := time.Now().Add(l.maxWait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func(ctx context.Context) error {
				return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
			}
			return release, nil
		}
		if time.Now().After(deadline) {
			return nil, domain.E(domain.CodeLockConflict, "another cancellation holds the lock for this order item")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}
