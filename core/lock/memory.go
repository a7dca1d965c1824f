package lock

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process arena of held keys.
type Memory struct {
	mode Mode
	wait time.Duration

	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewMemory creates an empty arena.
func NewMemory(cfg Config) *Memory {
	return &Memory{
		mode: cfg.Mode,
		wait: cfg.wait(),
		held: make(map[string]chan struct{}),
	}
}

// Acquire takes the key or, depending on the mode, fails or waits.
func (m *Memory) Acquire(ctx context.Context, key string) (Lease, error) {
	var deadline <-chan time.Time
	if m.mode == ModeBlock {
		timer := time.NewTimer(m.wait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		m.mu.Lock()
		released, busy := m.held[key]
		if !busy {
			ch := make(chan struct{})
			m.held[key] = ch
			m.mu.Unlock()
			return &memoryLease{arena: m, key: key, ch: ch}, nil
		}
		m.mu.Unlock()

		if m.mode != ModeBlock {
			return nil, ErrLocked
		}

		select {
		case <-released:
		case <-deadline:
			return nil, ErrLocked
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Held reports whether key is currently leased.
func (m *Memory) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[key]
	return ok
}

type memoryLease struct {
	arena *Memory
	key   string
	ch    chan struct{}
	once  sync.Once
}

func (l *memoryLease) Release(context.Context) error {
	l.once.Do(func() {
		l.arena.mu.Lock()
		if l.arena.held[l.key] == l.ch {
			delete(l.arena.held, l.key)
		}
		l.arena.mu.Unlock()
		close(l.ch)
	})
	return nil
}
