package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-reconciler/core/lock"
	"payment-reconciler/core/logger"
	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxRunError bounds the error message stored on a run.
const maxRunError = 1000

// Repository is the persistence the coordinator needs.
type Repository interface {
	UnmatchedSales(ctx context.Context, scope reconcile.Scope) ([]reconcile.SaleRecord, error)
	UnmatchedSettlements(ctx context.Context, scope reconcile.Scope) ([]reconcile.SettlementRecord, error)
	Commit(ctx context.Context, in store.CommitInput) (*store.CommitResult, error)
	SaveRun(ctx context.Context, run reconcile.ReconciliationRun) error
	GetRun(ctx context.Context, id string) (reconcile.ReconciliationRun, error)
	ListRuns(ctx context.Context, scope reconcile.Scope) ([]reconcile.ReconciliationRun, error)
	RunGroups(ctx context.Context, runID string) ([]reconcile.MatchGroup, error)
}

// Options tune the coordinator.
type Options struct {
	// Defaults is used when a caller does not send a MatchConfig.
	Defaults reconcile.MatchConfig
	// Review, when set, flags matched groups outside these stricter tolerances.
	Review *reconcile.MatchConfig
	// NewID generates run, group and divergence ids. Defaults to uuid.NewString.
	NewID func() string
	// Now is the clock. Defaults to time.Now in UTC.
	Now func() time.Time
}

// Plan is the outcome of a run before anything is written.
type Plan struct {
	Run         reconcile.ReconciliationRun `json:"run"`
	Groups      []reconcile.MatchGroup      `json:"groups"`
	Divergences []reconcile.Divergence      `json:"divergences"`
}

// Coordinator orchestrates reconciliation runs.
type Coordinator struct {
	repo    Repository
	locker  lock.Locker
	archive *Archive
	logger  *zap.Logger
	opts    Options
	active  *Registry
}

// NewCoordinator creates a coordinator. archive may be nil.
func NewCoordinator(repo Repository, locker lock.Locker, archive *Archive, logger *zap.Logger, opts Options) *Coordinator {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Coordinator{
		repo:    repo,
		locker:  locker,
		archive: archive,
		logger:  logger,
		opts:    opts,
		active:  NewRegistry(opts.Now),
	}
}

// Plan loads, matches and builds divergences for scope without writing anything
// and without taking the scope lock.
func (c *Coordinator) Plan(ctx context.Context, scope reconcile.Scope, cfg *reconcile.MatchConfig) (*Plan, error) {
	run, err := c.newRun(scope, cfg)
	if err != nil {
		return nil, err
	}
	return c.plan(ctx, run, func(reconcile.RunStatus) {})
}

// Run reconciles scope and commits the result atomically. On failure the returned
// run carries status failed or cancelled and nothing but the run record was written.
func (c *Coordinator) Run(ctx context.Context, scope reconcile.Scope, cfg *reconcile.MatchConfig) (reconcile.ReconciliationRun, error) {
	run, err := c.newRun(scope, cfg)
	if err != nil {
		return reconcile.ReconciliationRun{}, err
	}

	l := logger.WithScope(c.logger, scope.TerminalID, scope.Period).With(zap.String("run_id", run.ID))

	lease, err := c.locker.Acquire(ctx, scope.Key())
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return run, &reconcile.ConflictError{Resource: "scope", ID: scope.Key(), Reason: "a run is already in progress"}
		}
		return run, fmt.Errorf("acquire scope lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			l.Warn("Failed to release scope lock", zap.Error(err))
		}
	}()

	l.Info("Reconciliation run started")
	c.active.start(run)
	defer c.active.finish(run.ID)

	phase := func(s reconcile.RunStatus) {
		l.Debug("Run phase", zap.String("phase", string(s)))
		c.active.set(run.ID, s)
	}

	plan, err := c.plan(ctx, run, phase)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return c.fail(ctx, l, run, err)
	}

	// Past this point the commit runs to completion or rolls back, whatever the caller does.
	phase(reconcile.RunPersisting)
	persistCtx := context.WithoutCancel(ctx)

	res, err := c.repo.Commit(persistCtx, store.CommitInput{
		Run:         plan.Run,
		Groups:      plan.Groups,
		Divergences: plan.Divergences,
	})
	if err != nil {
		return c.fail(persistCtx, l, plan.Run, err)
	}

	if c.archive != nil {
		snap := Snapshot{Run: res.Run, Groups: plan.Groups, Divergences: res.Divergences}
		if err := c.archive.Put(persistCtx, snap); err != nil {
			l.Warn("Failed to archive run", zap.Error(err))
		}
	}

	counts := res.Run.Counts
	l.Info("Reconciliation run completed",
		zap.Int("matched_simple", counts.MatchedSimple),
		zap.Int("matched_grouped", counts.MatchedGrouped),
		zap.Int("divergences_created", counts.DivergencesCreated),
		zap.Int("divergences_closed", counts.DivergencesClosed),
	)
	return res.Run, nil
}

// plan runs load -> match -> build for run.
func (c *Coordinator) plan(ctx context.Context, run reconcile.ReconciliationRun, phase func(reconcile.RunStatus)) (*Plan, error) {
	scope := run.Scope()
	phase(reconcile.RunLoading)

	var sales []reconcile.SaleRecord
	var settlements []reconcile.SettlementRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sales, err = c.repo.UnmatchedSales(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		settlements, err = c.repo.UnmatchedSettlements(gctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matcher := &reconcile.Matcher{NewID: c.opts.NewID, OnPhase: phase}
	result, err := matcher.Match(sales, settlements, run.Config)
	if err != nil {
		return nil, err
	}

	builder := &reconcile.Builder{NewID: c.opts.NewID, Now: c.opts.Now}
	divs := builder.Build(result.LeftoverSales, result.LeftoverSettlements, run.ID)
	if c.opts.Review != nil {
		divs = append(divs, builder.Review(result.Groups, *c.opts.Review, scope, run.ID)...)
	}

	run.Counts = reconcile.OutcomeCounts{
		MatchedSimple:      result.SimpleCount(),
		MatchedGrouped:     result.GroupedCount(),
		DivergencesCreated: len(divs),
		SalesLoaded:        len(sales),
		SettlementsLoaded:  len(settlements),
	}
	return &Plan{Run: run, Groups: result.Groups, Divergences: divs}, nil
}

// fail records run as failed, or cancelled when ctx ended, and returns cause.
func (c *Coordinator) fail(ctx context.Context, l *zap.Logger, run reconcile.ReconciliationRun, cause error) (reconcile.ReconciliationRun, error) {
	run.Status = reconcile.RunFailed
	if ctx.Err() != nil || errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		run.Status = reconcile.RunCancelled
	}
	run.Error = cause.Error()
	if len(run.Error) > maxRunError {
		run.Error = run.Error[:maxRunError]
	}
	run.FinishedAt = c.opts.Now()

	if run.Status == reconcile.RunCancelled {
		l.Info("Reconciliation run cancelled", zap.Error(cause))
	} else {
		l.Error("Reconciliation run failed",
			zap.Error(cause),
			zap.Bool("conflict", reconcile.IsConflict(cause)),
			zap.Bool("persistence", reconcile.IsPersistence(cause)),
		)
	}

	if err := c.repo.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		l.Error("Failed to record run outcome", zap.Error(err))
	}
	return run, cause
}

func (c *Coordinator) newRun(scope reconcile.Scope, cfg *reconcile.MatchConfig) (reconcile.ReconciliationRun, error) {
	scope.TerminalID = strings.TrimSpace(scope.TerminalID)
	scope.Period = strings.TrimSpace(scope.Period)
	if scope.TerminalID == "" {
		return reconcile.ReconciliationRun{}, &reconcile.ValidationError{Field: "terminal_id", Message: "terminal id required"}
	}
	if scope.Period == "" {
		return reconcile.ReconciliationRun{}, &reconcile.ValidationError{Field: "period", Message: "period required"}
	}

	config := c.opts.Defaults
	if cfg != nil {
		config = *cfg
	}
	if err := config.Validate(); err != nil {
		return reconcile.ReconciliationRun{}, err
	}

	return reconcile.ReconciliationRun{
		ID:         c.opts.NewID(),
		TerminalID: scope.TerminalID,
		Period:     scope.Period,
		Config:     config,
		Status:     reconcile.RunLoading,
		StartedAt:  c.opts.Now(),
	}, nil
}

// Defaults returns the MatchConfig used when a caller sends none.
func (c *Coordinator) Defaults() reconcile.MatchConfig {
	return c.opts.Defaults
}

// Active lists in-flight runs.
func (c *Coordinator) Active() []Progress {
	return c.active.Active()
}

// Get returns a run with its match groups.
func (c *Coordinator) Get(ctx context.Context, id string) (reconcile.ReconciliationRun, []reconcile.MatchGroup, error) {
	run, err := c.repo.GetRun(ctx, id)
	if err != nil {
		return reconcile.ReconciliationRun{}, nil, err
	}
	groups, err := c.repo.RunGroups(ctx, id)
	if err != nil {
		return reconcile.ReconciliationRun{}, nil, err
	}
	return run, groups, nil
}

// History lists the runs of a scope, newest first.
func (c *Coordinator) History(ctx context.Context, scope reconcile.Scope) ([]reconcile.ReconciliationRun, error) {
	return c.repo.ListRuns(ctx, scope)
}

// ArchivedKeys lists the object keys of the snapshots archived for a scope.
func (c *Coordinator) ArchivedKeys(ctx context.Context, scope reconcile.Scope) ([]string, error) {
	if c.archive == nil {
		return nil, fmt.Errorf("run archive disabled: %w", reconcile.ErrNotFound)
	}
	if scope.TerminalID == "" || scope.Period == "" {
		return nil, &reconcile.ValidationError{Field: "terminal_id", Message: "terminal_id and period required"}
	}
	keys, err := c.archive.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// Archived downloads the archived snapshot of a run.
func (c *Coordinator) Archived(ctx context.Context, id string) (*Snapshot, error) {
	if c.archive == nil {
		return nil, fmt.Errorf("run archive disabled: %w", reconcile.ErrNotFound)
	}
	run, err := c.repo.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.archive.Get(ctx, run)
}
