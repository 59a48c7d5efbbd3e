package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nrednav/cuid2"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL is the expiration time of Redis lock keys. Held locks are
// refreshed at half this interval.
const DefaultRedisTTL = 30 * time.Second

// Only the holder of the token may delete or extend the key.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Redis is a lock based on a Redis key set with SET NX. The key expires if the
// holder stops refreshing it.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// RedisOption configures a Redis lock.
type RedisOption func(*Redis)

// WithRedisPrefix sets the prefix of lock keys.
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithRedisTTL sets the expiration time of lock keys.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithRedisRetry sets how often acquisition is retried while the lock is held
// by someone else.
func WithRedisRetry(d time.Duration) RedisOption {
	return func(r *Redis) {
		r.retry = d
	}
}

// NewRedis returns a Redis lock that uses client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "sqlmgr:lock:",
		ttl:    DefaultRedisTTL,
		retry:  defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Acquire obtains the lock for key.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	rkey := r.prefix + key
	token := cuid2.Generate()

	for {
		ok, err := r.client.SetNX(ctx, rkey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed acquiring lock '%s': %w", key, err)
		}
		if ok {
			break
		}

		if werr := wait(ctx, r.retry); werr != nil {
			return nil, fmt.Errorf("failed acquiring lock '%s': %w", key, werr)
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.refresh(rkey, token, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			_ = releaseScript.Run(context.Background(), r.client, []string{rkey}, token).Err()
		})
	}

	return release, nil
}

// refresh extends the expiration of the key until stop is closed.
func (r *Redis) refresh(rkey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := r.ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = refreshScript.Run(context.Background(), r.client,
				[]string{rkey}, token, r.ttl.Milliseconds()).Err()
		}
	}
}
