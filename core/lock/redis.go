package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "reconcile:lock:"

// Redis leases keys through redislock so every API instance shares one arena.
type Redis struct {
	client *redis.Client
	locker *redislock.Client
	mode   Mode
	ttl    time.Duration
	wait   time.Duration
}

// NewRedis connects to cfg.RedisAddr and verifies it with a PING.
func NewRedis(cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{
		client: client,
		locker: redislock.New(client),
		mode:   cfg.Mode,
		ttl:    cfg.ttl(),
		wait:   cfg.wait(),
	}, nil
}

// Acquire obtains the lease. Block mode retries with a linear backoff until the
// wait budget is spent.
func (r *Redis) Acquire(ctx context.Context, key string) (Lease, error) {
	opts := &redislock.Options{}
	if r.mode == ModeBlock {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
		opts.RetryStrategy = redislock.LinearBackoff(100 * time.Millisecond)
	}

	l, err := r.locker.Obtain(ctx, redisKeyPrefix+key, r.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLocked
	}
	if err != nil {
		if r.mode == ModeBlock && errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to obtain redis lock: %w", err)
	}
	return newRedisLease(l, r.ttl), nil
}

// Close releases the underlying Redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// refresher extends a held lease.
type refresher interface {
	Refresh(ctx context.Context, ttl time.Duration, opt *redislock.Options) error
}

// keepAlive extends the lease every ttl/3 until stop is closed or a refresh fails.
// A failed refresh means the key expired or was taken over; the commit guards
// still reject a second claim of the same records.
func keepAlive(l refresher, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), ttl/3)
			err := l.Refresh(ctx, ttl, nil)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

type redisLease struct {
	lock *redislock.Lock
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newRedisLease(l *redislock.Lock, ttl time.Duration) *redisLease {
	lease := &redisLease{lock: l, stop: make(chan struct{}), done: make(chan struct{})}
	go keepAlive(l, ttl, lease.stop, lease.done)
	return lease
}

func (l *redisLease) Release(ctx context.Context) error {
	l.once.Do(func() { close(l.stop) })
	<-l.done

	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
