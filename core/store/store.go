package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-reconciler/core/reconcile"

	"gorm.io/gorm"
)

// Store wraps the GORM handle shared by every feature.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source. Used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// DB exposes the underlying handle for schema inspection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates every table the store owns.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&SaleRow{},
		&SettlementRow{},
		&MatchGroupRow{},
		&DivergenceRow{},
		&RunRow{},
		&TerminalRow{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reconcile.ErrNotFound
	}
	return &reconcile.PersistenceError{Op: op, Err: err}
}
