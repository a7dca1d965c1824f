// Package lock provides single-flight leases keyed by reconciliation scope.
//
// Two drivers are available:
//
//   - memory: an in-process arena of active keys. Suitable for a single API instance.
//   - redis: a TTL lease backed by bsm/redislock, shared by every instance pointing at
//     the same Redis.
//
// Both honour the configured Mode. In fail_fast mode a held key returns ErrLocked
// immediately; in block mode Acquire waits up to WaitSeconds (or until the context ends).
//
// # Usage
//
//	locker, err := lock.New(cfg.Lock)
//	lease, err := locker.Acquire(ctx, scope.Key())
//	if errors.Is(err, lock.ErrLocked) {
//	    // another run holds the scope
//	}
//	defer lease.Release(context.Background())
package lock
