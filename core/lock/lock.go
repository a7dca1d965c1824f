package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrLocked is returned when the key is held by someone else.
var ErrLocked = errors.New("lock: key is held")

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive leases per key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// New builds the Locker selected by cfg.Driver.
func New(cfg Config) (Locker, error) {
	if cfg.Mode != ModeFailFast && cfg.Mode != ModeBlock {
		return nil, fmt.Errorf("unsupported lock mode %q", cfg.Mode)
	}

	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg), nil
	case "redis":
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported lock driver %q", cfg.Driver)
	}
}
