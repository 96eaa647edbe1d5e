package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLeaseTTL  = 10 * time.Second
	defaultWait      = 5 * time.Second
	defaultRetryStep = 25 * time.Millisecond
)

// releaseIfOwner deletes the key only while it still holds our token so an expired lease cannot
// release a lock that another holder has since acquired.
var releaseIfOwner = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX leases.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	step   time.Duration
	token  func() string
}

// RedisOption customises RedisLocker.
type RedisOption func(*RedisLocker)

// WithLeaseTTL bounds how long a crashed holder can block others.
func WithLeaseTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithWait bounds how long Acquire polls for a busy key.
func WithWait(wait time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if wait > 0 {
			l.wait = wait
		}
	}
}

// NewRedisLocker constructs a RedisLocker on client.
func NewRedisLocker(client redis.UniversalClient, opts ...RedisOption) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("locks: redis client is required")
	}
	l := &RedisLocker{
		client: client,
		ttl:    defaultLeaseTTL,
		wait:   defaultWait,
		step:   defaultRetryStep,
		token:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Acquire polls SET NX until the key is free, the wait budget elapses or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	token := l.token()
	deadline := time.Now().Add(l.wait)
	ticker := time.NewTicker(l.step)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("locks: acquire %s: %w", key, err)
		}
		if ok {
			return l.release(key, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(key, token string) Release {
	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			err = releaseIfOwner.Run(ctx, l.client, []string{key}, token).Err()
			if errors.Is(err, redis.Nil) {
				err = nil
			}
		})
		return err
	}
}

// Ping verifies the Redis connection for readiness probes.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
