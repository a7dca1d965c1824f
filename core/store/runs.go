package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"payment-reconciler/core/reconcile"

	"gorm.io/gorm"
)

// CommitInput is everything a run writes.
type CommitInput struct {
	Run         reconcile.ReconciliationRun
	Groups      []reconcile.MatchGroup
	Divergences []reconcile.Divergence
}

// CommitResult is what Commit actually wrote.
type CommitResult struct {
	// Run is the completed run with final counts.
	Run reconcile.ReconciliationRun
	// Divergences are the rows inserted, after dropping duplicates of
	// divergences already pending for the same record.
	Divergences []reconcile.Divergence
}

// Commit writes a run in a single transaction. Groups claim their records with a
// "status = unmatched" guard; a record claimed by someone else aborts the commit
// with a ConflictError. Pending without-counterpart divergences of newly matched
// records are closed with an exclusao resolution. Nothing is written on error.
func (s *Store) Commit(ctx context.Context, in CommitInput) (*CommitResult, error) {
	run := in.Run
	now := s.now()
	var created []reconcile.Divergence

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var matchedSales, matchedSettlements []string

		for _, g := range in.Groups {
			row := groupToRow(g, run, now)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("insert match group %s: %w", g.ID, err)
			}

			status := reconcile.StatusMatched
			if g.Kind == reconcile.MatchGrouped {
				status = reconcile.StatusGrouped
			}

			res := tx.Model(&SaleRow{}).
				Where("id IN ? AND terminal_id = ? AND period = ? AND status = ?", g.SaleIDs, run.TerminalID, run.Period, reconcile.StatusUnmatched).
				Updates(map[string]any{"status": string(status), "match_group_id": g.ID, "updated_at": now})
			if res.Error != nil {
				return fmt.Errorf("claim sales for group %s: %w", g.ID, res.Error)
			}
			if res.RowsAffected != int64(len(g.SaleIDs)) {
				return &reconcile.ConflictError{Resource: "sale", ID: strings.Join(g.SaleIDs, ","), Reason: "no longer unmatched"}
			}

			res = tx.Model(&SettlementRow{}).
				Where("id = ? AND terminal_id = ? AND period = ? AND status = ?", g.SettlementID, run.TerminalID, run.Period, reconcile.StatusUnmatched).
				Updates(map[string]any{"status": string(status), "match_group_id": g.ID, "updated_at": now})
			if res.Error != nil {
				return fmt.Errorf("claim settlement for group %s: %w", g.ID, res.Error)
			}
			if res.RowsAffected != 1 {
				return &reconcile.ConflictError{Resource: "settlement", ID: g.SettlementID, Reason: "no longer unmatched"}
			}

			matchedSales = append(matchedSales, g.SaleIDs...)
			matchedSettlements = append(matchedSettlements, g.SettlementID)
		}

		closed, err := closeMatched(tx, run.ID, matchedSales, matchedSettlements, now)
		if err != nil {
			return err
		}

		created, err = insertDivergences(tx, run.Scope(), in.Divergences)
		if err != nil {
			return err
		}

		run.Status = reconcile.RunCompleted
		run.FinishedAt = now
		run.Counts.DivergencesCreated = len(created)
		run.Counts.DivergencesClosed = closed
		runRow := runToRow(run)
		if err := tx.Create(&runRow).Error; err != nil {
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("commit run", err)
	}

	return &CommitResult{Run: run, Divergences: created}, nil
}

// closeMatched resolves earlier pending divergences whose record this run matched.
func closeMatched(tx *gorm.DB, runID string, saleIDs, settlementIDs []string, now time.Time) (int, error) {
	updates := map[string]any{
		"status":           string(reconcile.DivergenceResolved),
		"resolution_kind":  string(reconcile.ResolutionExclusion),
		"motive":           "matched by run " + runID,
		"resolved_at":      now,
		"closed_by_run_id": runID,
	}

	closed := 0
	if len(saleIDs) > 0 {
		res := tx.Model(&DivergenceRow{}).
			Where("status = ? AND kind = ? AND sale_id IN ?", reconcile.DivergencePending, reconcile.DivergenceSaleWithoutSettlement, saleIDs).
			Updates(updates)
		if res.Error != nil {
			return 0, fmt.Errorf("close sale divergences: %w", res.Error)
		}
		closed += int(res.RowsAffected)
	}
	if len(settlementIDs) > 0 {
		res := tx.Model(&DivergenceRow{}).
			Where("status = ? AND kind = ? AND settlement_id IN ?", reconcile.DivergencePending, reconcile.DivergenceSettlementWithoutSale, settlementIDs).
			Updates(updates)
		if res.Error != nil {
			return 0, fmt.Errorf("close settlement divergences: %w", res.Error)
		}
		closed += int(res.RowsAffected)
	}
	return closed, nil
}

// insertDivergences writes the divergences whose record has no pending divergence
// of the same kind yet, and returns the ones written.
func insertDivergences(tx *gorm.DB, scope reconcile.Scope, divs []reconcile.Divergence) ([]reconcile.Divergence, error) {
	if len(divs) == 0 {
		return []reconcile.Divergence{}, nil
	}

	var existing []DivergenceRow
	err := tx.Select("kind", "sale_id", "settlement_id").
		Where("terminal_id = ? AND period = ? AND status = ?", scope.TerminalID, scope.Period, reconcile.DivergencePending).
		Find(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("load pending divergences: %w", err)
	}

	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[dedupeKey(e.Kind, e.SaleID, e.SettlementID)] = true
	}

	out := make([]reconcile.Divergence, 0, len(divs))
	rows := make([]DivergenceRow, 0, len(divs))
	for _, d := range divs {
		key := dedupeKey(string(d.Kind), d.SaleID, d.SettlementID)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
		rows = append(rows, divergenceToRow(d))
	}

	if len(rows) > 0 {
		if err := tx.CreateInBatches(&rows, 100).Error; err != nil {
			return nil, fmt.Errorf("insert divergences: %w", err)
		}
	}
	return out, nil
}

func dedupeKey(kind, saleID, settlementID string) string {
	return kind + "|" + saleID + "|" + settlementID
}

// SaveRun upserts a run outside any commit. It records failed and cancelled runs.
func (s *Store) SaveRun(ctx context.Context, run reconcile.ReconciliationRun) error {
	row := runToRow(run)
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return persistence("save run", err)
	}
	return nil
}

// GetRun fetches a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (reconcile.ReconciliationRun, error) {
	var row RunRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return reconcile.ReconciliationRun{}, persistence("get run", err)
	}
	return row.toDomain(), nil
}

// ListRuns returns the runs of a scope, newest first.
func (s *Store) ListRuns(ctx context.Context, scope reconcile.Scope) ([]reconcile.ReconciliationRun, error) {
	var rows []RunRow
	err := s.db.WithContext(ctx).
		Where("terminal_id = ? AND period = ?", scope.TerminalID, scope.Period).
		Order("started_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, persistence("list runs", err)
	}

	out := make([]reconcile.ReconciliationRun, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// RunGroups returns the match groups a run committed.
func (s *Store) RunGroups(ctx context.Context, runID string) ([]reconcile.MatchGroup, error) {
	var rows []MatchGroupRow
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, persistence("list match groups", err)
	}

	out := make([]reconcile.MatchGroup, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
