package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingDivergence() Divergence {
	return Divergence{
		ID:            "d1",
		TerminalID:    testTerminal,
		Period:        testPeriod,
		Kind:          DivergenceSaleWithoutSettlement,
		ExpectedValue: decimal.RequireFromString("150"),
		FoundValue:    decimal.Zero,
		Status:        DivergencePending,
	}
}

func value(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestResolve(t *testing.T) {
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		res        Resolution
		wantStatus DivergenceStatus
		wantField  string
		wantEffect string
	}{
		{
			name:       "Justification",
			res:        Resolution{Kind: ResolutionJustification, Motive: "chargeback in progress"},
			wantStatus: DivergenceJustified,
			wantEffect: "0",
		},
		{
			name:       "Manual adjustment",
			res:        Resolution{Kind: ResolutionManualAdjustment, Motive: "fee correction", AdjustmentValue: value("-2.35")},
			wantStatus: DivergenceResolved,
			wantEffect: "-2.35",
		},
		{
			name:       "Exclusion",
			res:        Resolution{Kind: ResolutionExclusion, Motive: "duplicate import"},
			wantStatus: DivergenceResolved,
			wantEffect: "0",
		},
		{
			name:      "Missing motive",
			res:       Resolution{Kind: ResolutionJustification, Motive: "   "},
			wantField: "motive",
		},
		{
			name:      "Zero adjustment",
			res:       Resolution{Kind: ResolutionManualAdjustment, Motive: "fee", AdjustmentValue: value("0")},
			wantField: "adjustment_value",
		},
		{
			name:      "Missing adjustment",
			res:       Resolution{Kind: ResolutionManualAdjustment, Motive: "fee"},
			wantField: "adjustment_value",
		},
		{
			name:      "Adjustment on exclusion",
			res:       Resolution{Kind: ResolutionExclusion, Motive: "dup", AdjustmentValue: value("1")},
			wantField: "adjustment_value",
		},
		{
			name:      "Unknown kind",
			res:       Resolution{Kind: "write_off", Motive: "x"},
			wantField: "kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := pendingDivergence()
			got, err := Resolve(d, tt.res, now)

			if tt.wantField != "" {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.wantField, ve.Field)
				assert.Equal(t, DivergencePending, got.Status)
				assert.Nil(t, got.Resolution)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			require.NotNil(t, got.Resolution)
			assert.Equal(t, now, got.Resolution.ResolvedAt)
			assert.Equal(t, tt.wantEffect, got.FinancialEffect().String())
			assert.Equal(t, DivergencePending, d.Status)
		})
	}
}

func TestResolve_Twice(t *testing.T) {
	now := time.Now().UTC()
	res := Resolution{Kind: ResolutionJustification, Motive: "known delay"}

	first, err := Resolve(pendingDivergence(), res, now)
	require.NoError(t, err)

	second, err := Resolve(first, Resolution{Kind: ResolutionExclusion, Motive: "retry"}, now.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Equal(t, DivergenceJustified, second.Status)
	assert.Equal(t, "known delay", second.Resolution.Motive)
}

func TestResolve_ConflictBeforeValidation(t *testing.T) {
	d := pendingDivergence()
	d.Status = DivergenceResolved

	_, err := Resolve(d, Resolution{Kind: ResolutionManualAdjustment, Motive: ""}, time.Now())
	assert.True(t, IsConflict(err))
	assert.False(t, IsValidation(err))
}

func TestResolutionKind_TargetStatus(t *testing.T) {
	for kind, want := range map[ResolutionKind]DivergenceStatus{
		ResolutionJustification:    DivergenceJustified,
		ResolutionManualAdjustment: DivergenceResolved,
		ResolutionExclusion:        DivergenceResolved,
	} {
		got, err := kind.TargetStatus()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.True(t, got.Terminal())
	}
	assert.False(t, DivergencePending.Terminal())
}
