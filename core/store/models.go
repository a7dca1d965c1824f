package store

import (
	"time"

	"payment-reconciler/core/reconcile"

	"github.com/shopspring/decimal"
)

// SaleRow is the sales table.
type SaleRow struct {
	ID                string          `gorm:"primaryKey;size:64"`
	TerminalID        string          `gorm:"size:64;not null;index:idx_sales_scope,priority:1"`
	Period            string          `gorm:"size:32;not null;index:idx_sales_scope,priority:2"`
	Date              time.Time       `gorm:"not null;index"`
	GrossAmount       decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	NetAmount         decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	PaymentMethod     string          `gorm:"size:32"`
	ExternalReference string          `gorm:"size:128"`
	Description       string          `gorm:"size:512"`
	Status            string          `gorm:"size:16;not null;index:idx_sales_scope,priority:3"`
	MatchGroupID      string          `gorm:"size:64"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName overrides the table name.
func (SaleRow) TableName() string { return "sales" }

// SettlementRow is the settlements table.
type SettlementRow struct {
	ID                string          `gorm:"primaryKey;size:64"`
	TerminalID        string          `gorm:"size:64;not null;index:idx_settlements_scope,priority:1"`
	Period            string          `gorm:"size:32;not null;index:idx_settlements_scope,priority:2"`
	Date              time.Time       `gorm:"not null;index"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	ExternalReference string          `gorm:"size:128"`
	Description       string          `gorm:"size:512"`
	Status            string          `gorm:"size:16;not null;index:idx_settlements_scope,priority:3"`
	MatchGroupID      string          `gorm:"size:64"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName overrides the table name.
func (SettlementRow) TableName() string { return "settlements" }

// MatchGroupRow is the match_groups table.
type MatchGroupRow struct {
	ID               string          `gorm:"primaryKey;size:64"`
	RunID            string          `gorm:"size:64;not null;index"`
	TerminalID       string          `gorm:"size:64;not null"`
	Period           string          `gorm:"size:32;not null"`
	SettlementID     string          `gorm:"size:64;not null;index"`
	SaleIDs          []string        `gorm:"serializer:json;type:text"`
	Kind             string          `gorm:"size:16;not null"`
	SalesTotal       decimal.Decimal `gorm:"type:decimal(20,4)"`
	SettlementAmount decimal.Decimal `gorm:"type:decimal(20,4)"`
	ValueDelta       decimal.Decimal `gorm:"type:decimal(20,4)"`
	DayDelta         int
	CreatedAt        time.Time
}

// TableName overrides the table name.
func (MatchGroupRow) TableName() string { return "match_groups" }

// DivergenceRow is the divergences table.
type DivergenceRow struct {
	ID              string              `gorm:"primaryKey;size:64"`
	RunID           string              `gorm:"size:64;index"`
	TerminalID      string              `gorm:"size:64;not null;index:idx_divergences_scope,priority:1"`
	Period          string              `gorm:"size:32;not null;index:idx_divergences_scope,priority:2"`
	Kind            string              `gorm:"size:32;not null"`
	Description     string              `gorm:"size:1024"`
	ExpectedValue   decimal.Decimal     `gorm:"type:decimal(20,4)"`
	FoundValue      decimal.Decimal     `gorm:"type:decimal(20,4)"`
	Status          string              `gorm:"size:16;not null;index"`
	ResolutionKind  string              `gorm:"size:32"`
	Motive          string              `gorm:"size:1024"`
	AdjustmentValue decimal.NullDecimal `gorm:"type:decimal(20,4)"`
	ResolvedAt      *time.Time
	SaleID          string `gorm:"size:64;index"`
	SettlementID    string `gorm:"size:64;index"`
	SupersedesID    string `gorm:"size:64;index"`
	ClosedByRunID   string `gorm:"size:64"`
	CreatedAt       time.Time
}

// TableName overrides the table name.
func (DivergenceRow) TableName() string { return "divergences" }

// RunRow is the reconciliation_runs table.
type RunRow struct {
	ID         string                  `gorm:"primaryKey;size:64"`
	TerminalID string                  `gorm:"size:64;not null;index:idx_runs_scope,priority:1"`
	Period     string                  `gorm:"size:32;not null;index:idx_runs_scope,priority:2"`
	Config     reconcile.MatchConfig   `gorm:"serializer:json;type:text"`
	Status     string                  `gorm:"size:24;not null"`
	Counts     reconcile.OutcomeCounts `gorm:"serializer:json;type:text"`
	Error      string                  `gorm:"size:1024"`
	StartedAt  time.Time
	FinishedAt *time.Time
}

// TableName overrides the table name.
func (RunRow) TableName() string { return "reconciliation_runs" }

// TerminalRow maps a terminal to its payment processor.
type TerminalRow struct {
	TerminalID string `gorm:"primaryKey;size:64"`
	Processor  string `gorm:"size:64;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides the table name.
func (TerminalRow) TableName() string { return "terminals" }

// Tables lists every table the store owns with the columns the schema check expects.
func Tables() map[string][]string {
	return map[string][]string{
		"sales":               {"id", "terminal_id", "period", "date", "gross_amount", "net_amount", "status", "match_group_id"},
		"settlements":         {"id", "terminal_id", "period", "date", "amount", "status", "match_group_id"},
		"match_groups":        {"id", "run_id", "settlement_id", "sale_ids", "kind", "value_delta", "day_delta"},
		"divergences":         {"id", "run_id", "terminal_id", "period", "kind", "status", "resolution_kind", "motive", "adjustment_value", "resolved_at", "supersedes_id", "closed_by_run_id"},
		"reconciliation_runs": {"id", "terminal_id", "period", "config", "status", "counts", "error", "started_at", "finished_at"},
		"terminals":           {"terminal_id", "processor"},
	}
}

func saleToRow(s reconcile.SaleRecord) SaleRow {
	status := s.Status
	if status == "" {
		status = reconcile.StatusUnmatched
	}
	return SaleRow{
		ID:                s.ID,
		TerminalID:        s.TerminalID,
		Period:            s.Period,
		Date:              s.Date,
		GrossAmount:       s.GrossAmount,
		NetAmount:         s.NetAmount,
		PaymentMethod:     s.PaymentMethod,
		ExternalReference: s.ExternalReference,
		Description:       s.Description,
		Status:            string(status),
	}
}

func (r SaleRow) toDomain() reconcile.SaleRecord {
	return reconcile.SaleRecord{
		ID:                r.ID,
		TerminalID:        r.TerminalID,
		Period:            r.Period,
		Date:              r.Date.UTC(),
		GrossAmount:       r.GrossAmount,
		NetAmount:         r.NetAmount,
		PaymentMethod:     r.PaymentMethod,
		ExternalReference: r.ExternalReference,
		Description:       r.Description,
		Status:            reconcile.MatchStatus(r.Status),
	}
}

func settlementToRow(s reconcile.SettlementRecord) SettlementRow {
	status := s.Status
	if status == "" {
		status = reconcile.StatusUnmatched
	}
	return SettlementRow{
		ID:                s.ID,
		TerminalID:        s.TerminalID,
		Period:            s.Period,
		Date:              s.Date,
		Amount:            s.Amount,
		ExternalReference: s.ExternalReference,
		Description:       s.Description,
		Status:            string(status),
	}
}

func (r SettlementRow) toDomain() reconcile.SettlementRecord {
	return reconcile.SettlementRecord{
		ID:                r.ID,
		TerminalID:        r.TerminalID,
		Period:            r.Period,
		Date:              r.Date.UTC(),
		Amount:            r.Amount,
		ExternalReference: r.ExternalReference,
		Description:       r.Description,
		Status:            reconcile.MatchStatus(r.Status),
	}
}

func groupToRow(g reconcile.MatchGroup, run reconcile.ReconciliationRun, now time.Time) MatchGroupRow {
	return MatchGroupRow{
		ID:               g.ID,
		RunID:            run.ID,
		TerminalID:       run.TerminalID,
		Period:           run.Period,
		SettlementID:     g.SettlementID,
		SaleIDs:          g.SaleIDs,
		Kind:             string(g.Kind),
		SalesTotal:       g.SalesTotal,
		SettlementAmount: g.SettlementAmount,
		ValueDelta:       g.ValueDelta,
		DayDelta:         g.DayDelta,
		CreatedAt:        now,
	}
}

func (r MatchGroupRow) toDomain() reconcile.MatchGroup {
	return reconcile.MatchGroup{
		ID:               r.ID,
		RunID:            r.RunID,
		SaleIDs:          r.SaleIDs,
		SettlementID:     r.SettlementID,
		Kind:             reconcile.MatchKind(r.Kind),
		SalesTotal:       r.SalesTotal,
		SettlementAmount: r.SettlementAmount,
		ValueDelta:       r.ValueDelta,
		DayDelta:         r.DayDelta,
	}
}

func divergenceToRow(d reconcile.Divergence) DivergenceRow {
	row := DivergenceRow{
		ID:            d.ID,
		RunID:         d.RunID,
		TerminalID:    d.TerminalID,
		Period:        d.Period,
		Kind:          string(d.Kind),
		Description:   d.Description,
		ExpectedValue: d.ExpectedValue,
		FoundValue:    d.FoundValue,
		Status:        string(d.Status),
		SaleID:        d.SaleID,
		SettlementID:  d.SettlementID,
		SupersedesID:  d.SupersedesID,
		ClosedByRunID: d.ClosedByRunID,
		CreatedAt:     d.CreatedAt,
	}
	if r := d.Resolution; r != nil {
		row.ResolutionKind = string(r.Kind)
		row.Motive = r.Motive
		if r.AdjustmentValue != nil {
			row.AdjustmentValue = decimal.NewNullDecimal(*r.AdjustmentValue)
		}
		resolvedAt := r.ResolvedAt
		row.ResolvedAt = &resolvedAt
	}
	return row
}

func (r DivergenceRow) toDomain() reconcile.Divergence {
	d := reconcile.Divergence{
		ID:            r.ID,
		RunID:         r.RunID,
		TerminalID:    r.TerminalID,
		Period:        r.Period,
		Kind:          reconcile.DivergenceKind(r.Kind),
		Description:   r.Description,
		ExpectedValue: r.ExpectedValue,
		FoundValue:    r.FoundValue,
		Status:        reconcile.DivergenceStatus(r.Status),
		SaleID:        r.SaleID,
		SettlementID:  r.SettlementID,
		SupersedesID:  r.SupersedesID,
		ClosedByRunID: r.ClosedByRunID,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.ResolutionKind != "" {
		res := &reconcile.Resolution{
			Kind:   reconcile.ResolutionKind(r.ResolutionKind),
			Motive: r.Motive,
		}
		if r.AdjustmentValue.Valid {
			v := r.AdjustmentValue.Decimal
			res.AdjustmentValue = &v
		}
		if r.ResolvedAt != nil {
			res.ResolvedAt = r.ResolvedAt.UTC()
		}
		d.Resolution = res
	}
	return d
}

func runToRow(r reconcile.ReconciliationRun) RunRow {
	row := RunRow{
		ID:         r.ID,
		TerminalID: r.TerminalID,
		Period:     r.Period,
		Config:     r.Config,
		Status:     string(r.Status),
		Counts:     r.Counts,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		row.FinishedAt = &finished
	}
	return row
}

func (r RunRow) toDomain() reconcile.ReconciliationRun {
	run := reconcile.ReconciliationRun{
		ID:         r.ID,
		TerminalID: r.TerminalID,
		Period:     r.Period,
		Config:     r.Config,
		Status:     reconcile.RunStatus(r.Status),
		Counts:     r.Counts,
		Error:      r.Error,
		StartedAt:  r.StartedAt.UTC(),
	}
	if r.FinishedAt != nil {
		run.FinishedAt = r.FinishedAt.UTC()
	}
	return run
}
