package reconciliation

import (
	"context"
	"strings"
	"testing"
	"time"

	"payment-reconciler/core/database"
	"payment-reconciler/core/lock"
	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/storage/mocks"
	"payment-reconciler/core/store"

	"github.com/minio/minio-go/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testScope = reconcile.Scope{TerminalID: "T1", Period: "2024-01"}

func clock() time.Time {
	return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func testSale(id string, d int, net string) reconcile.SaleRecord {
	amount := decimal.RequireFromString(net)
	return reconcile.SaleRecord{
		ID: id, TerminalID: testScope.TerminalID, Period: testScope.Period,
		Date: day(d), GrossAmount: amount, NetAmount: amount, PaymentMethod: "credit",
	}
}

func testSettlement(id string, d int, amount string) reconcile.SettlementRecord {
	return reconcile.SettlementRecord{
		ID: id, TerminalID: testScope.TerminalID, Period: testScope.Period,
		Date: day(d), Amount: decimal.RequireFromString(amount),
	}
}

func testConfig() reconcile.MatchConfig {
	cfg := reconcile.DefaultMatchConfig()
	cfg.ValueTolerance = decimal.RequireFromString("0.50")
	return cfg
}

// setupStore seeds one simple match (s1/st1), one grouped match (s2,s3,s4/st2)
// and two leftovers (s5, st3).
func setupStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	s := store.New(db).WithClock(clock)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.UpsertSales(ctx, []reconcile.SaleRecord{
		testSale("s1", 10, "150.00"),
		testSale("s2", 10, "30.00"),
		testSale("s3", 10, "40.00"),
		testSale("s4", 10, "29.50"),
		testSale("s5", 15, "12.00"),
	}))
	require.NoError(t, s.UpsertSettlements(ctx, []reconcile.SettlementRecord{
		testSettlement("st1", 11, "150.00"),
		testSettlement("st2", 10, "99.50"),
		testSettlement("st3", 20, "55.00"),
	}))
	return s
}

func newTestCoordinator(repo Repository, locker lock.Locker, archive *Archive, logger *zap.Logger) *Coordinator {
	return NewCoordinator(repo, locker, archive, logger, Options{Defaults: testConfig(), Now: clock})
}

func failFast() *lock.Memory {
	return lock.NewMemory(lock.Config{Mode: lock.ModeFailFast})
}

func TestCoordinator_Run(t *testing.T) {
	st := setupStore(t)
	locker := failFast()
	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, "archive", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "runs/T1/2024-01/") && strings.HasSuffix(key, ".json")
	}), mock.Anything, mock.Anything, mock.Anything).Return(minio.UploadInfo{}, nil)

	c := newTestCoordinator(st, locker, NewArchive(client, "archive", "runs"), zap.NewNop())
	ctx := context.Background()

	run, err := c.Run(ctx, testScope, nil)
	require.NoError(t, err)

	assert.Equal(t, reconcile.RunCompleted, run.Status)
	assert.Equal(t, reconcile.OutcomeCounts{
		MatchedSimple:      1,
		MatchedGrouped:     1,
		DivergencesCreated: 2,
		SalesLoaded:        5,
		SettlementsLoaded:  3,
	}, run.Counts)
	assert.True(t, run.Config.ValueTolerance.Equal(decimal.RequireFromString("0.50")))
	assert.Equal(t, clock(), run.FinishedAt)

	s1, err := st.GetSale(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusMatched, s1.Status)
	s3, err := st.GetSale(ctx, "s3")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusGrouped, s3.Status)
	s5, err := st.GetSale(ctx, "s5")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusUnmatched, s5.Status)

	divs, err := st.ListDivergences(ctx, store.DivergenceFilter{TerminalID: "T1", Status: reconcile.DivergencePending})
	require.NoError(t, err)
	assert.Len(t, divs, 2)

	saved, groups, err := c.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, reconcile.RunCompleted, saved.Status)
	assert.Len(t, groups, 2)

	assert.False(t, locker.Held(testScope.Key()))
	assert.Empty(t, c.Active())
	client.AssertExpectations(t)
}

func TestCoordinator_Rerun(t *testing.T) {
	st := setupStore(t)
	c := newTestCoordinator(st, failFast(), nil, zap.NewNop())
	ctx := context.Background()

	_, err := c.Run(ctx, testScope, nil)
	require.NoError(t, err)

	// Same leftovers again: nothing new is matched or duplicated
	second, err := c.Run(ctx, testScope, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Counts.SalesLoaded)
	assert.Equal(t, 1, second.Counts.SettlementsLoaded)
	assert.Equal(t, 0, second.Counts.MatchedSimple)
	assert.Equal(t, 0, second.Counts.DivergencesCreated)

	// A late settlement for s5 closes its divergence
	require.NoError(t, st.UpsertSettlements(ctx, []reconcile.SettlementRecord{testSettlement("st4", 16, "12.00")}))
	third, err := c.Run(ctx, testScope, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Counts.MatchedSimple)
	assert.Equal(t, 1, third.Counts.DivergencesClosed)
	assert.Equal(t, 0, third.Counts.DivergencesCreated)

	pending, err := st.ListDivergences(ctx, store.DivergenceFilter{Status: reconcile.DivergencePending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "st3", pending[0].SettlementID)

	closed, err := st.ListDivergences(ctx, store.DivergenceFilter{Status: reconcile.DivergenceResolved})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	require.NotNil(t, closed[0].Resolution)
	assert.Equal(t, reconcile.ResolutionExclusion, closed[0].Resolution.Kind)
	assert.Equal(t, "matched by run "+third.ID, closed[0].Resolution.Motive)

	runs, err := c.History(ctx, testScope)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestCoordinator_LockedScope(t *testing.T) {
	st := setupStore(t)
	locker := failFast()
	c := newTestCoordinator(st, locker, nil, zap.NewNop())
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, testScope.Key())
	require.NoError(t, err)
	defer lease.Release(ctx)

	_, err = c.Run(ctx, testScope, nil)
	require.Error(t, err)
	assert.True(t, reconcile.IsConflict(err))

	runs, err := c.History(ctx, testScope)
	require.NoError(t, err)
	assert.Empty(t, runs)

	s1, err := st.GetSale(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusUnmatched, s1.Status)
}

func TestCoordinator_CancelledBeforeCommit(t *testing.T) {
	st := setupStore(t)
	locker := failFast()
	c := newTestCoordinator(st, locker, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := c.Run(ctx, testScope, nil)
	require.Error(t, err)
	assert.Equal(t, reconcile.RunCancelled, run.Status)

	bg := context.Background()
	saved, err := st.GetRun(bg, run.ID)
	require.NoError(t, err)
	assert.Equal(t, reconcile.RunCancelled, saved.Status)

	s1, err := st.GetSale(bg, "s1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusUnmatched, s1.Status)

	divs, err := st.ListDivergences(bg, store.DivergenceFilter{})
	require.NoError(t, err)
	assert.Empty(t, divs)
	assert.False(t, locker.Held(testScope.Key()))
}

type failingRepo struct {
	*store.Store
}

func (r *failingRepo) Commit(context.Context, store.CommitInput) (*store.CommitResult, error) {
	return nil, &reconcile.PersistenceError{Op: "commit run", Err: assert.AnError}
}

func TestCoordinator_PersistenceFailure(t *testing.T) {
	st := setupStore(t)
	c := newTestCoordinator(&failingRepo{Store: st}, failFast(), nil, zap.NewNop())
	ctx := context.Background()

	run, err := c.Run(ctx, testScope, nil)
	require.Error(t, err)
	assert.True(t, reconcile.IsPersistence(err))
	assert.Equal(t, reconcile.RunFailed, run.Status)

	saved, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, reconcile.RunFailed, saved.Status)
	assert.NotEmpty(t, saved.Error)

	groups, err := st.RunGroups(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

type blockingRepo struct {
	*store.Store
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRepo) Commit(ctx context.Context, in store.CommitInput) (*store.CommitResult, error) {
	if in.Run.TerminalID == testScope.TerminalID {
		close(r.entered)
		<-r.release
	}
	return r.Store.Commit(ctx, in)
}

func TestCoordinator_ProgressAndSingleFlight(t *testing.T) {
	repo := &blockingRepo{Store: setupStore(t), entered: make(chan struct{}), release: make(chan struct{})}
	c := newTestCoordinator(repo, failFast(), nil, zap.NewNop())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(ctx, testScope, nil)
		done <- err
	}()
	<-repo.entered

	active := c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, reconcile.RunPersisting, active[0].Phase)
	assert.Equal(t, "T1", active[0].TerminalID)

	// Same scope is refused while the first run is in flight
	_, err := c.Run(ctx, testScope, nil)
	assert.True(t, reconcile.IsConflict(err))

	// Another terminal is independent
	other, err := c.Run(ctx, reconcile.Scope{TerminalID: "T2", Period: "2024-01"}, nil)
	require.NoError(t, err)
	assert.Equal(t, reconcile.RunCompleted, other.Status)
	assert.Equal(t, reconcile.OutcomeCounts{}, other.Counts)

	close(repo.release)
	require.NoError(t, <-done)
	assert.Empty(t, c.Active())
}

func TestCoordinator_Plan(t *testing.T) {
	st := setupStore(t)
	c := newTestCoordinator(st, failFast(), nil, zap.NewNop())
	ctx := context.Background()

	cfg := testConfig()
	cfg.GroupingEnabled = false

	plan, err := c.Plan(ctx, testScope, &cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Run.Counts.MatchedSimple)
	assert.Equal(t, 0, plan.Run.Counts.MatchedGrouped)
	assert.Len(t, plan.Groups, 1)
	assert.Len(t, plan.Divergences, 6)
	assert.False(t, plan.Run.Config.GroupingEnabled)

	runs, err := c.History(ctx, testScope)
	require.NoError(t, err)
	assert.Empty(t, runs)

	s1, err := st.GetSale(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusUnmatched, s1.Status)
}

func TestCoordinator_Review(t *testing.T) {
	st := setupStore(t)
	strict := reconcile.MatchConfig{ValueTolerance: decimal.Zero, DayTolerance: 0, MaxGroupSize: 1}
	c := NewCoordinator(st, failFast(), nil, zap.NewNop(), Options{Defaults: testConfig(), Review: &strict, Now: clock})
	ctx := context.Background()

	run, err := c.Run(ctx, testScope, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, run.Counts.DivergencesCreated)

	flagged, err := st.ListDivergences(ctx, store.DivergenceFilter{Kind: reconcile.DivergenceDateMismatch})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "st1", flagged[0].SettlementID)
	assert.Equal(t, "s1", flagged[0].SaleID)
}

func TestCoordinator_ArchiveFailureIsLogged(t *testing.T) {
	st := setupStore(t)
	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, "archive", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, assert.AnError)

	core, logs := observer.New(zap.InfoLevel)
	c := newTestCoordinator(st, failFast(), NewArchive(client, "archive", "runs"), zap.New(core))

	run, err := c.Run(context.Background(), testScope, nil)
	require.NoError(t, err)
	assert.Equal(t, reconcile.RunCompleted, run.Status)
	assert.Equal(t, 1, logs.FilterMessage("Failed to archive run").Len())
}

func TestCoordinator_ArchivedKeys(t *testing.T) {
	client := new(mocks.Client)
	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "runs/T1/2024-01/r1.json"}
	ch <- minio.ObjectInfo{Key: "runs/T1/2024-01/r2.json"}
	close(ch)
	client.On("ListObjects", mock.Anything, "archive", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))

	c := newTestCoordinator(setupStore(t), failFast(), NewArchive(client, "archive", "runs"), zap.NewNop())
	ctx := context.Background()

	keys, err := c.ArchivedKeys(ctx, testScope)
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/T1/2024-01/r1.json", "runs/T1/2024-01/r2.json"}, keys)

	_, err = c.ArchivedKeys(ctx, reconcile.Scope{TerminalID: "T1"})
	assert.True(t, reconcile.IsValidation(err))

	disabled := newTestCoordinator(setupStore(t), failFast(), nil, zap.NewNop())
	_, err = disabled.ArchivedKeys(ctx, testScope)
	assert.ErrorIs(t, err, reconcile.ErrNotFound)
}

func TestCoordinator_InvalidInput(t *testing.T) {
	c := newTestCoordinator(setupStore(t), failFast(), nil, zap.NewNop())
	ctx := context.Background()

	_, err := c.Run(ctx, reconcile.Scope{Period: "2024-01"}, nil)
	var ve *reconcile.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "terminal_id", ve.Field)

	bad := testConfig()
	bad.ValueTolerance = decimal.RequireFromString("-1")
	_, err = c.Plan(ctx, testScope, &bad)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "value_tolerance", ve.Field)

	_, err = c.Archived(ctx, "missing")
	assert.ErrorIs(t, err, reconcile.ErrNotFound)
}
