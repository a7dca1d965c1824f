package store

import (
	"context"
	"errors"

	"payment-reconciler/core/reconcile"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertSales inserts sales by id in one transaction. Records are immutable:
// re-sending a stored sale with identical fields is a no-op, while any change to
// it fails the whole batch with a ConflictError.
func (s *Store) UpsertSales(ctx context.Context, sales []reconcile.SaleRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, sale := range sales {
			row := saleToRow(sale)
			row.Status = string(reconcile.StatusUnmatched)

			var existing SaleRow
			err := tx.Where("id = ?", sale.ID).Take(&existing).Error
			switch {
			case err == nil:
				if !existing.sameAs(row) {
					return &reconcile.ConflictError{Resource: "sale", ID: sale.ID, Reason: changedReason(existing.Status)}
				}
				continue
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}

			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return classify("upsert sales", err)
}

// UpsertSettlements is UpsertSales for settlements.
func (s *Store) UpsertSettlements(ctx context.Context, settlements []reconcile.SettlementRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, st := range settlements {
			row := settlementToRow(st)
			row.Status = string(reconcile.StatusUnmatched)

			var existing SettlementRow
			err := tx.Where("id = ?", st.ID).Take(&existing).Error
			switch {
			case err == nil:
				if !existing.sameAs(row) {
					return &reconcile.ConflictError{Resource: "settlement", ID: st.ID, Reason: changedReason(existing.Status)}
				}
				continue
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}

			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return classify("upsert settlements", err)
}

func changedReason(status string) string {
	if status != string(reconcile.StatusUnmatched) {
		return "already " + status
	}
	return "records are immutable once ingested"
}

// sameAs reports whether r carries the same ingested fields as other.
func (r SaleRow) sameAs(other SaleRow) bool {
	return r.TerminalID == other.TerminalID &&
		r.Period == other.Period &&
		r.Date.Equal(other.Date) &&
		r.GrossAmount.Equal(other.GrossAmount) &&
		r.NetAmount.Equal(other.NetAmount) &&
		r.PaymentMethod == other.PaymentMethod &&
		r.ExternalReference == other.ExternalReference &&
		r.Description == other.Description
}

func (r SettlementRow) sameAs(other SettlementRow) bool {
	return r.TerminalID == other.TerminalID &&
		r.Period == other.Period &&
		r.Date.Equal(other.Date) &&
		r.Amount.Equal(other.Amount) &&
		r.ExternalReference == other.ExternalReference &&
		r.Description == other.Description
}

// UnmatchedSales loads the scope's unmatched sales ordered by date, then id.
func (s *Store) UnmatchedSales(ctx context.Context, scope reconcile.Scope) ([]reconcile.SaleRecord, error) {
	var rows []SaleRow
	err := s.db.WithContext(ctx).
		Where("terminal_id = ? AND period = ? AND status = ?", scope.TerminalID, scope.Period, reconcile.StatusUnmatched).
		Order("date, id").
		Find(&rows).Error
	if err != nil {
		return nil, persistence("load sales", err)
	}

	out := make([]reconcile.SaleRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// UnmatchedSettlements loads the scope's unmatched settlements ordered by date, then id.
func (s *Store) UnmatchedSettlements(ctx context.Context, scope reconcile.Scope) ([]reconcile.SettlementRecord, error) {
	var rows []SettlementRow
	err := s.db.WithContext(ctx).
		Where("terminal_id = ? AND period = ? AND status = ?", scope.TerminalID, scope.Period, reconcile.StatusUnmatched).
		Order("date, id").
		Find(&rows).Error
	if err != nil {
		return nil, persistence("load settlements", err)
	}

	out := make([]reconcile.SettlementRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetSale fetches one sale by id.
func (s *Store) GetSale(ctx context.Context, id string) (reconcile.SaleRecord, error) {
	var row SaleRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return reconcile.SaleRecord{}, persistence("get sale", err)
	}
	return row.toDomain(), nil
}

// GetSettlement fetches one settlement by id.
func (s *Store) GetSettlement(ctx context.Context, id string) (reconcile.SettlementRecord, error) {
	var row SettlementRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return reconcile.SettlementRecord{}, persistence("get settlement", err)
	}
	return row.toDomain(), nil
}

// classify leaves domain errors as they are and wraps everything else.
func classify(op string, err error) error {
	if err == nil || reconcile.IsConflict(err) || reconcile.IsValidation(err) || errors.Is(err, reconcile.ErrNotFound) {
		return err
	}
	return &reconcile.PersistenceError{Op: op, Err: err}
}
