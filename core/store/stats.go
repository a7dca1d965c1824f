package store

import (
	"context"
	"time"

	"payment-reconciler/core/reconcile"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatsFilter selects the records and divergences behind a statistics report.
// Records are filtered by their date, divergences by their creation time.
type StatsFilter struct {
	TerminalIDs []string
	From        time.Time
	To          time.Time
}

// RecordTally counts records of one terminal in one match status.
type RecordTally struct {
	TerminalID string
	Status     reconcile.MatchStatus
	Count      int64
}

// DivergenceSample is the slice of a divergence the statistics need.
type DivergenceSample struct {
	TerminalID      string
	Kind            reconcile.DivergenceKind
	Status          reconcile.DivergenceStatus
	CreatedAt       time.Time
	ResolvedAt      *time.Time
	AdjustmentValue decimal.NullDecimal
	// ClosedByRun marks divergences a later run closed by matching the record.
	ClosedByRun bool
}

// RecordTallies counts sales and settlements per terminal and status.
func (s *Store) RecordTallies(ctx context.Context, f StatsFilter) ([]RecordTally, error) {
	var out []RecordTally
	for _, model := range []any{&SaleRow{}, &SettlementRow{}} {
		var tallies []RecordTally
		q := applyStatsFilter(s.db.WithContext(ctx).Model(model), f, "date")
		err := q.Select("terminal_id, status, COUNT(*) AS count").
			Group("terminal_id, status").
			Scan(&tallies).Error
		if err != nil {
			return nil, persistence("count records", err)
		}
		out = append(out, tallies...)
	}
	return out, nil
}

// DivergenceSamples loads the divergences in scope.
func (s *Store) DivergenceSamples(ctx context.Context, f StatsFilter) ([]DivergenceSample, error) {
	var rows []DivergenceRow
	q := applyStatsFilter(s.db.WithContext(ctx).Model(&DivergenceRow{}), f, "created_at")
	err := q.Select("terminal_id", "kind", "status", "created_at", "resolved_at", "adjustment_value", "closed_by_run_id").
		Find(&rows).Error
	if err != nil {
		return nil, persistence("load divergences", err)
	}

	out := make([]DivergenceSample, 0, len(rows))
	for _, r := range rows {
		out = append(out, DivergenceSample{
			TerminalID:      r.TerminalID,
			Kind:            reconcile.DivergenceKind(r.Kind),
			Status:          reconcile.DivergenceStatus(r.Status),
			CreatedAt:       r.CreatedAt,
			ResolvedAt:      r.ResolvedAt,
			AdjustmentValue: r.AdjustmentValue,
			ClosedByRun:     r.ClosedByRunID != "",
		})
	}
	return out, nil
}

func applyStatsFilter(q *gorm.DB, f StatsFilter, dateColumn string) *gorm.DB {
	if len(f.TerminalIDs) > 0 {
		q = q.Where("terminal_id IN ?", f.TerminalIDs)
	}
	if !f.From.IsZero() {
		q = q.Where(dateColumn+" >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where(dateColumn+" < ?", f.To)
	}
	return q
}
