package divergence

import (
	"context"
	"strings"
	"time"

	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Repository is the persistence the resolver needs.
type Repository interface {
	GetDivergence(ctx context.Context, id string) (reconcile.Divergence, error)
	ListDivergences(ctx context.Context, f store.DivergenceFilter) ([]reconcile.Divergence, error)
	TransitionDivergence(ctx context.Context, d reconcile.Divergence) error
	CreateDivergence(ctx context.Context, d reconcile.Divergence) error
	AdjustmentTotal(ctx context.Context, scope reconcile.Scope) (decimal.Decimal, error)
}

// defaultLimit caps list results when the caller sends no limit.
const defaultLimit = 100

// Service resolves divergences.
type Service struct {
	repo    Repository
	logger  *zap.Logger
	builder *reconcile.Builder
	now     func() time.Time
}

// NewService creates a resolver. now may be nil.
func NewService(repo Repository, logger *zap.Logger, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:    repo,
		logger:  logger,
		builder: &reconcile.Builder{Now: now},
		now:     now,
	}
}

// Get returns a divergence by id.
func (s *Service) Get(ctx context.Context, id string) (reconcile.Divergence, error) {
	return s.repo.GetDivergence(ctx, id)
}

// List returns divergences matching q, newest first.
func (s *Service) List(ctx context.Context, q ListQuery) ([]reconcile.Divergence, error) {
	limit := q.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	return s.repo.ListDivergences(ctx, store.DivergenceFilter{
		Status:     reconcile.DivergenceStatus(q.Status),
		Kind:       reconcile.DivergenceKind(q.Kind),
		TerminalID: q.Terminal,
		Period:     q.Period,
		Query:      q.Q,
		Limit:      limit,
		Offset:     q.Offset,
	})
}

// Resolve moves a pending divergence to resolved or justified. A divergence that
// is no longer pending, or that another caller resolves first, yields a ConflictError.
func (s *Service) Resolve(ctx context.Context, id string, req ResolveRequest) (reconcile.Divergence, error) {
	d, err := s.repo.GetDivergence(ctx, id)
	if err != nil {
		return reconcile.Divergence{}, err
	}

	next, err := reconcile.Resolve(d, reconcile.Resolution{
		Kind:            reconcile.ResolutionKind(req.Kind),
		Motive:          req.Motive,
		AdjustmentValue: req.AdjustmentValue,
	}, s.now())
	if err != nil {
		return d, err
	}

	if err := s.repo.TransitionDivergence(ctx, next); err != nil {
		return d, err
	}

	s.logger.Info("Divergence resolved",
		zap.String("divergence_id", next.ID),
		zap.String("kind", string(next.Resolution.Kind)),
		zap.String("status", string(next.Status)),
		zap.String("effect", next.FinancialEffect().String()),
	)
	return next, nil
}

// Supersede records a pending correction of a resolved or justified divergence.
// The superseded divergence is left as it is.
func (s *Service) Supersede(ctx context.Context, id string, req SupersedeRequest) (reconcile.Divergence, error) {
	prev, err := s.repo.GetDivergence(ctx, id)
	if err != nil {
		return reconcile.Divergence{}, err
	}
	if !prev.Status.Terminal() {
		return reconcile.Divergence{}, &reconcile.ConflictError{Resource: "divergence", ID: prev.ID, Reason: "still pending, resolve it instead"}
	}

	next := s.builder.Supersede(prev, strings.TrimSpace(req.Description))
	if err := s.repo.CreateDivergence(ctx, next); err != nil {
		return reconcile.Divergence{}, err
	}

	s.logger.Info("Divergence superseded",
		zap.String("divergence_id", next.ID),
		zap.String("supersedes_id", prev.ID),
	)
	return next, nil
}

// AdjustmentTotal sums the manual adjustments booked for a scope.
func (s *Service) AdjustmentTotal(ctx context.Context, scope reconcile.Scope) (decimal.Decimal, error) {
	if scope.TerminalID == "" || scope.Period == "" {
		return decimal.Zero, &reconcile.ValidationError{Field: "terminal", Message: "terminal and period required"}
	}
	return s.repo.AdjustmentTotal(ctx, scope)
}
