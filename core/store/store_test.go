package store

import (
	"context"
	"testing"
	"time"

	"payment-reconciler/core/database"
	"payment-reconciler/core/reconcile"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScope = reconcile.Scope{TerminalID: "T1", Period: "2024-01"}

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	s := New(db).WithClock(func() time.Time {
		return time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	})
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func testSale(id string, d int, net string) reconcile.SaleRecord {
	amount := decimal.RequireFromString(net)
	return reconcile.SaleRecord{
		ID: id, TerminalID: testScope.TerminalID, Period: testScope.Period,
		Date: day(d), GrossAmount: amount, NetAmount: amount, PaymentMethod: "debit",
	}
}

func testSettlement(id string, d int, amount string) reconcile.SettlementRecord {
	return reconcile.SettlementRecord{
		ID: id, TerminalID: testScope.TerminalID, Period: testScope.Period,
		Date: day(d), Amount: decimal.RequireFromString(amount),
	}
}

func TestStore_UpsertAndLoad(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSales(ctx, []reconcile.SaleRecord{
		testSale("s2", 11, "20.00"),
		testSale("s1", 10, "150.00"),
	}))
	require.NoError(t, s.UpsertSettlements(ctx, []reconcile.SettlementRecord{testSettlement("st1", 11, "150.00")}))

	// Re-sending an identical record is a no-op
	require.NoError(t, s.UpsertSales(ctx, []reconcile.SaleRecord{testSale("s2", 11, "20.00")}))

	sales, err := s.UnmatchedSales(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "s1", sales[0].ID)
	assert.True(t, sales[0].Date.Equal(day(10)))
	assert.Equal(t, "20", sales[1].NetAmount.String())
	assert.Equal(t, reconcile.StatusUnmatched, sales[1].Status)

	settlements, err := s.UnmatchedSettlements(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	assert.True(t, settlements[0].Amount.Equal(decimal.NewFromInt(150)))

	other, err := s.UnmatchedSales(ctx, reconcile.Scope{TerminalID: "T1", Period: "2024-02"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_UpsertRejectsChangedRecords(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSales(ctx, []reconcile.SaleRecord{testSale("s1", 10, "150.00")}))
	require.NoError(t, s.UpsertSettlements(ctx, []reconcile.SettlementRecord{testSettlement("st1", 11, "80.00")}))

	moved := testSale("s1", 10, "40.00")
	moved.Period = "2024-02"
	newRef := testSale("s1", 10, "150.00")
	newRef.ExternalReference = "NSU 9"
	otherDay := testSettlement("st1", 12, "80.00")

	tests := []struct {
		name string
		run  func() error
	}{
		{name: "Sale amount and period", run: func() error { return s.UpsertSales(ctx, []reconcile.SaleRecord{moved}) }},
		{name: "Sale reference", run: func() error { return s.UpsertSales(ctx, []reconcile.SaleRecord{newRef}) }},
		{name: "Settlement date", run: func() error { return s.UpsertSettlements(ctx, []reconcile.SettlementRecord{otherDay}) }},
		{name: "Batch with one changed sale", run: func() error {
			return s.UpsertSales(ctx, []reconcile.SaleRecord{testSale("s9", 10, "5.00"), moved})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var ce *reconcile.ConflictError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, ce.Reason, "immutable")
		})
	}

	sale, err := s.GetSale(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "150", sale.NetAmount.String())
	assert.Equal(t, "2024-01", sale.Period)

	st, err := s.GetSettlement(ctx, "st1")
	require.NoError(t, err)
	assert.True(t, st.Date.Equal(day(11)))

	// The batch rolled back, so s9 was never written
	_, err = s.GetSale(ctx, "s9")
	assert.ErrorIs(t, err, reconcile.ErrNotFound)
}

func TestStore_LeftoverKeepsSingleDivergence(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	commitScenario(t, s)

	// s2 is a leftover with a pending divergence; moving it to another period is refused
	moved := testSale("s2", 12, "40.00")
	moved.Period = "2024-02"
	err := s.UpsertSales(ctx, []reconcile.SaleRecord{moved})
	assert.True(t, reconcile.IsConflict(err))

	other, err := s.UnmatchedSales(ctx, reconcile.Scope{TerminalID: "T1", Period: "2024-02"})
	require.NoError(t, err)
	assert.Empty(t, other)

	pending, err := s.ListDivergences(ctx, DivergenceFilter{Status: reconcile.DivergencePending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "s2", pending[0].SaleID)
	assert.Equal(t, "9.9", pending[0].ExpectedValue.String())
}

func commitScenario(t *testing.T, s *Store) *CommitResult {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.UpsertSales(ctx, []reconcile.SaleRecord{testSale("s1", 10, "150.00"), testSale("s2", 12, "9.90")}))
	require.NoError(t, s.UpsertSettlements(ctx, []reconcile.SettlementRecord{testSettlement("st1", 11, "150.00")}))

	run := reconcile.ReconciliationRun{
		ID: "run-1", TerminalID: "T1", Period: "2024-01",
		Config: reconcile.DefaultMatchConfig(), Status: reconcile.RunPersisting,
		StartedAt: day(31),
	}
	run.Counts.MatchedSimple = 1

	result, err := s.Commit(ctx, CommitInput{
		Run: run,
		Groups: []reconcile.MatchGroup{{
			ID: "g1", SaleIDs: []string{"s1"}, SettlementID: "st1", Kind: reconcile.MatchSimple,
			SalesTotal: decimal.NewFromInt(150), SettlementAmount: decimal.NewFromInt(150), ValueDelta: decimal.Zero, DayDelta: 1,
		}},
		Divergences: []reconcile.Divergence{{
			ID: "d1", RunID: "run-1", TerminalID: "T1", Period: "2024-01",
			Kind: reconcile.DivergenceSaleWithoutSettlement, Description: "sale s2 of 9.90 has no matching settlement",
			ExpectedValue: decimal.RequireFromString("9.90"), FoundValue: decimal.Zero,
			Status: reconcile.DivergencePending, SaleID: "s2", CreatedAt: day(31),
		}},
	})
	require.NoError(t, err)
	return result
}

func TestStore_Commit(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	result := commitScenario(t, s)
	assert.Equal(t, reconcile.RunCompleted, result.Run.Status)
	assert.Equal(t, 1, result.Run.Counts.DivergencesCreated)
	assert.Len(t, result.Divergences, 1)

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.RunCompleted, run.Status)
	assert.Equal(t, 1, run.Counts.MatchedSimple)
	assert.Equal(t, 5, run.Config.MaxGroupSize)
	assert.False(t, run.FinishedAt.IsZero())

	sales, err := s.UnmatchedSales(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "s2", sales[0].ID)

	matched, err := s.GetSale(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusMatched, matched.Status)

	groups, err := s.RunGroups(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"s1"}, groups[0].SaleIDs)

	// A matched record is never overwritten by ingestion
	err = s.UpsertSales(ctx, []reconcile.SaleRecord{testSale("s1", 10, "1.00")})
	assert.True(t, reconcile.IsConflict(err))
}

func TestStore_CommitConflictRollsBack(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	commitScenario(t, s)

	// s1 is already matched, so a second claim must abort without side effects
	_, err := s.Commit(ctx, CommitInput{
		Run: reconcile.ReconciliationRun{ID: "run-2", TerminalID: "T1", Period: "2024-01", StartedAt: day(31)},
		Groups: []reconcile.MatchGroup{
			{ID: "g2", SaleIDs: []string{"s2"}, SettlementID: "st1", Kind: reconcile.MatchSimple},
		},
	})
	require.Error(t, err)
	assert.True(t, reconcile.IsConflict(err))

	_, err = s.GetRun(ctx, "run-2")
	assert.ErrorIs(t, err, reconcile.ErrNotFound)

	groups, err := s.RunGroups(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, groups)

	sale, err := s.GetSale(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusUnmatched, sale.Status)
}

func TestStore_RerunHygiene(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	commitScenario(t, s)

	// A rerun that still cannot match s2 must not duplicate its pending divergence
	dup := reconcile.Divergence{
		ID: "d-dup", RunID: "run-2", TerminalID: "T1", Period: "2024-01",
		Kind: reconcile.DivergenceSaleWithoutSettlement, Status: reconcile.DivergencePending,
		SaleID: "s2", CreatedAt: day(31),
	}
	result, err := s.Commit(ctx, CommitInput{
		Run:         reconcile.ReconciliationRun{ID: "run-2", TerminalID: "T1", Period: "2024-01", StartedAt: day(31)},
		Divergences: []reconcile.Divergence{dup},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Divergences)
	assert.Equal(t, 0, result.Run.Counts.DivergencesCreated)

	// A late settlement matches s2; its pending divergence is closed in the same commit
	require.NoError(t, s.UpsertSettlements(ctx, []reconcile.SettlementRecord{testSettlement("st2", 13, "9.90")}))
	result, err = s.Commit(ctx, CommitInput{
		Run: reconcile.ReconciliationRun{ID: "run-3", TerminalID: "T1", Period: "2024-01", StartedAt: day(31)},
		Groups: []reconcile.MatchGroup{
			{ID: "g3", SaleIDs: []string{"s2"}, SettlementID: "st2", Kind: reconcile.MatchSimple},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Run.Counts.DivergencesClosed)

	d, err := s.GetDivergence(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.DivergenceResolved, d.Status)
	require.NotNil(t, d.Resolution)
	assert.Equal(t, reconcile.ResolutionExclusion, d.Resolution.Kind)
	assert.Equal(t, "matched by run run-3", d.Resolution.Motive)
	assert.Equal(t, "run-3", d.ClosedByRunID)
	assert.True(t, d.FinancialEffect().IsZero())

	samples, err := s.DivergenceSamples(ctx, StatsFilter{})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.True(t, samples[0].ClosedByRun)

	// s2 is matched now, so a correction of its closed divergence is refused
	err = s.CreateDivergence(ctx, reconcile.Divergence{
		ID: "d-fix", TerminalID: "T1", Period: "2024-01", Kind: reconcile.DivergenceSaleWithoutSettlement,
		Status: reconcile.DivergencePending, SaleID: "s2", SupersedesID: "d1", CreatedAt: day(31),
	})
	var ce *reconcile.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "sale", ce.Resource)
	_, err = s.GetDivergence(ctx, "d-fix")
	assert.ErrorIs(t, err, reconcile.ErrNotFound)
}

func TestStore_TransitionDivergence(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	commitScenario(t, s)

	d, err := s.GetDivergence(ctx, "d1")
	require.NoError(t, err)

	adj := decimal.RequireFromString("-9.90")
	resolved, err := reconcile.Resolve(d, reconcile.Resolution{
		Kind: reconcile.ResolutionManualAdjustment, Motive: "written off", AdjustmentValue: &adj,
	}, day(31))
	require.NoError(t, err)
	require.NoError(t, s.TransitionDivergence(ctx, resolved))

	stored, err := s.GetDivergence(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, reconcile.DivergenceResolved, stored.Status)
	assert.Equal(t, "-9.9", stored.FinancialEffect().String())
	assert.True(t, stored.Resolution.ResolvedAt.Equal(day(31)))

	// The optimistic guard rejects a second writer that read the row as pending
	err = s.TransitionDivergence(ctx, resolved)
	assert.True(t, reconcile.IsConflict(err))

	err = s.TransitionDivergence(ctx, reconcile.Divergence{ID: "missing"})
	assert.ErrorIs(t, err, reconcile.ErrNotFound)

	total, err := s.AdjustmentTotal(ctx, testScope)
	require.NoError(t, err)
	assert.Equal(t, "-9.9", total.String())
}

func TestStore_ListDivergences(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	commitScenario(t, s)

	require.NoError(t, s.CreateDivergence(ctx, reconcile.Divergence{
		ID: "d2", TerminalID: "T2", Period: "2024-01", Kind: reconcile.DivergenceSettlementWithoutSale,
		Description: "settlement st9 of 70.00 has no matching sale", Status: reconcile.DivergencePending,
		SettlementID: "st9", CreatedAt: day(31).Add(time.Hour),
	}))

	tests := []struct {
		name   string
		filter DivergenceFilter
		want   []string
	}{
		{"All newest first", DivergenceFilter{}, []string{"d2", "d1"}},
		{"By terminal", DivergenceFilter{TerminalID: "T1"}, []string{"d1"}},
		{"By kind", DivergenceFilter{Kind: reconcile.DivergenceSettlementWithoutSale}, []string{"d2"}},
		{"Free text is case-insensitive", DivergenceFilter{Query: "SALE S2"}, []string{"d1"}},
		{"By status", DivergenceFilter{Status: reconcile.DivergenceJustified}, []string{}},
		{"Limit", DivergenceFilter{Limit: 1}, []string{"d2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			divs, err := s.ListDivergences(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(divs))
			for _, d := range divs {
				ids = append(ids, d.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_SaveRun(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	run := reconcile.ReconciliationRun{
		ID: "run-f", TerminalID: "T1", Period: "2024-01", Status: reconcile.RunFailed,
		Error: "no changes made, retry", StartedAt: day(31), FinishedAt: day(31),
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "run-f")
	require.NoError(t, err)
	assert.Equal(t, reconcile.RunFailed, got.Status)
	assert.Equal(t, "no changes made, retry", got.Error)

	runs, err := s.ListRuns(ctx, testScope)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStore_Statistics(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	commitScenario(t, s)
	require.NoError(t, s.UpsertTerminal(ctx, "T1", "cielo"))
	require.NoError(t, s.UpsertTerminal(ctx, "T1", "stone"))

	tallies, err := s.RecordTallies(ctx, StatsFilter{TerminalIDs: []string{"T1"}})
	require.NoError(t, err)
	counts := map[reconcile.MatchStatus]int64{}
	for _, tl := range tallies {
		counts[tl.Status] += tl.Count
	}
	assert.Equal(t, int64(2), counts[reconcile.StatusMatched])
	assert.Equal(t, int64(1), counts[reconcile.StatusUnmatched])

	samples, err := s.DivergenceSamples(ctx, StatsFilter{})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, reconcile.DivergencePending, samples[0].Status)

	none, err := s.RecordTallies(ctx, StatsFilter{From: day(20), To: day(25)})
	require.NoError(t, err)
	assert.Empty(t, none)

	processors, err := s.Processors(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"T1": "stone"}, processors)
}
