package store

import (
	"context"
	"fmt"
	"strings"

	"payment-reconciler/core/reconcile"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DivergenceFilter narrows ListDivergences. Zero fields do not filter.
type DivergenceFilter struct {
	Status     reconcile.DivergenceStatus
	Kind       reconcile.DivergenceKind
	TerminalID string
	Period     string
	// Query is a case-insensitive substring of the description.
	Query  string
	Limit  int
	Offset int
}

// ListDivergences returns divergences newest first.
func (s *Store) ListDivergences(ctx context.Context, f DivergenceFilter) ([]reconcile.Divergence, error) {
	q := s.db.WithContext(ctx).Model(&DivergenceRow{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.TerminalID != "" {
		q = q.Where("terminal_id = ?", f.TerminalID)
	}
	if f.Period != "" {
		q = q.Where("period = ?", f.Period)
	}
	if text := strings.TrimSpace(f.Query); text != "" {
		q = q.Where("LOWER(description) LIKE ?", "%"+strings.ToLower(text)+"%")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []DivergenceRow
	if err := q.Order("created_at DESC, id").Find(&rows).Error; err != nil {
		return nil, persistence("list divergences", err)
	}

	out := make([]reconcile.Divergence, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetDivergence fetches a divergence by id.
func (s *Store) GetDivergence(ctx context.Context, id string) (reconcile.Divergence, error) {
	var row DivergenceRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return reconcile.Divergence{}, persistence("get divergence", err)
	}
	return row.toDomain(), nil
}

// TransitionDivergence stores d's new status and resolution, provided the stored
// row is still pending. Losing the race returns a ConflictError.
func (s *Store) TransitionDivergence(ctx context.Context, d reconcile.Divergence) error {
	row := divergenceToRow(d)
	updates := map[string]any{
		"status":           row.Status,
		"resolution_kind":  row.ResolutionKind,
		"motive":           row.Motive,
		"adjustment_value": row.AdjustmentValue,
		"resolved_at":      row.ResolvedAt,
	}

	res := s.db.WithContext(ctx).Model(&DivergenceRow{}).
		Where("id = ? AND status = ?", d.ID, reconcile.DivergencePending).
		Updates(updates)
	if res.Error != nil {
		return persistence("resolve divergence", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&DivergenceRow{}).Where("id = ?", d.ID).Count(&count).Error; err != nil {
		return persistence("resolve divergence", err)
	}
	if count == 0 {
		return reconcile.ErrNotFound
	}
	return &reconcile.ConflictError{Resource: "divergence", ID: d.ID, Reason: "already resolved"}
}

// CreateDivergence inserts a single divergence, used for corrections. It fails
// with a ConflictError when a pending divergence of the same kind already covers
// the record, or when a without-counterpart divergence points at a record that a
// run has matched since.
func (s *Store) CreateDivergence(ctx context.Context, d reconcile.Divergence) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending int64
		err := tx.Model(&DivergenceRow{}).
			Where("status = ? AND kind = ? AND sale_id = ? AND settlement_id = ?", reconcile.DivergencePending, d.Kind, d.SaleID, d.SettlementID).
			Count(&pending).Error
		if err != nil {
			return fmt.Errorf("check pending divergences: %w", err)
		}
		if pending > 0 {
			return &reconcile.ConflictError{Resource: "divergence", ID: d.SupersedesID, Reason: "a pending divergence already covers this record"}
		}

		if err := requireUnmatched(tx, d); err != nil {
			return err
		}

		row := divergenceToRow(d)
		return tx.Create(&row).Error
	})
	return classify("create divergence", err)
}

// requireUnmatched checks that the record behind a without-counterpart divergence
// is still unmatched. Records unknown to the store are not checked.
func requireUnmatched(tx *gorm.DB, d reconcile.Divergence) error {
	var (
		model    any
		resource string
		id       string
	)
	switch d.Kind {
	case reconcile.DivergenceSaleWithoutSettlement:
		model, resource, id = &SaleRow{}, "sale", d.SaleID
	case reconcile.DivergenceSettlementWithoutSale:
		model, resource, id = &SettlementRow{}, "settlement", d.SettlementID
	default:
		return nil
	}

	var statuses []string
	if err := tx.Model(model).Where("id = ?", id).Pluck("status", &statuses).Error; err != nil {
		return fmt.Errorf("check %s status: %w", resource, err)
	}
	if len(statuses) > 0 && statuses[0] != string(reconcile.StatusUnmatched) {
		return &reconcile.ConflictError{Resource: resource, ID: id, Reason: "already " + statuses[0]}
	}
	return nil
}

// AdjustmentTotal sums the manual adjustments booked for a scope.
func (s *Store) AdjustmentTotal(ctx context.Context, scope reconcile.Scope) (decimal.Decimal, error) {
	var values []decimal.NullDecimal
	err := s.db.WithContext(ctx).Model(&DivergenceRow{}).
		Where("terminal_id = ? AND period = ? AND resolution_kind = ?", scope.TerminalID, scope.Period, reconcile.ResolutionManualAdjustment).
		Pluck("adjustment_value", &values).Error
	if err != nil {
		return decimal.Zero, persistence("sum adjustments", err)
	}

	total := decimal.Zero
	for _, v := range values {
		if v.Valid {
			total = total.Add(v.Decimal)
		}
	}
	return total, nil
}
