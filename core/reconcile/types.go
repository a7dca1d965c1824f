package reconcile

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus tracks whether a record has been consumed by a MatchGroup.
type MatchStatus string

const (
	// StatusUnmatched is the initial status of every record.
	StatusUnmatched MatchStatus = "unmatched"
	// StatusMatched marks a record consumed by a simple (1:1) group.
	StatusMatched MatchStatus = "matched"
	// StatusGrouped marks a record consumed by a grouped (N:1) group.
	StatusGrouped MatchStatus = "grouped"
)

// Scope identifies one reconciliation unit: a terminal and a period label
// (for example "2024-01"). The period is assigned at ingestion time.
type Scope struct {
	TerminalID string `json:"terminal_id"`
	Period     string `json:"period"`
}

// Key returns a stable string key for maps and lock names.
func (s Scope) Key() string {
	return s.TerminalID + "|" + s.Period
}

// SaleRecord is one POS/terminal transaction awaiting settlement.
type SaleRecord struct {
	// ID is the unique identifier of the sale.
	ID string `json:"id"`

	// TerminalID is the terminal that captured the sale.
	TerminalID string `json:"terminal_id"`

	// Period is the reconciliation period the sale belongs to.
	Period string `json:"period"`

	// Date is the calendar date of the sale (midnight UTC).
	Date time.Time `json:"date"`

	// GrossAmount is the amount charged to the customer.
	GrossAmount decimal.Decimal `json:"gross_amount"`

	// NetAmount is the amount expected from the processor after fees.
	NetAmount decimal.Decimal `json:"net_amount"`

	// PaymentMethod is the capture method (credit, debit, pix...).
	PaymentMethod string `json:"payment_method"`

	// ExternalReference is the processor reference (NSU, authorization code).
	ExternalReference string `json:"external_reference,omitempty"`

	// Description is free text copied from the POS export.
	Description string `json:"description,omitempty"`

	// Status is the match status, mutated only by a committed run.
	Status MatchStatus `json:"status"`
}

// Scope returns the scope the sale belongs to.
func (s SaleRecord) Scope() Scope {
	return Scope{TerminalID: s.TerminalID, Period: s.Period}
}

// Validate checks the record fields.
func (s SaleRecord) Validate() error {
	if err := validateIdentity(s.ID, s.TerminalID, s.Period, s.Date); err != nil {
		return err
	}
	if s.NetAmount.GreaterThan(s.GrossAmount) {
		return &ValidationError{Field: "net_amount", Message: "net amount must not exceed gross amount"}
	}
	return nil
}

func (s SaleRecord) matchText() string {
	return strings.TrimSpace(s.ExternalReference + " " + s.Description)
}

// SettlementRecord is one bank/processor deposit line for a terminal.
type SettlementRecord struct {
	ID                string          `json:"id"`
	TerminalID        string          `json:"terminal_id"`
	Period            string          `json:"period"`
	Date              time.Time       `json:"date"`
	Amount            decimal.Decimal `json:"amount"`
	ExternalReference string          `json:"external_reference,omitempty"`
	Description       string          `json:"description,omitempty"`
	Status            MatchStatus     `json:"status"`
}

// Scope returns the scope the settlement belongs to.
func (s SettlementRecord) Scope() Scope {
	return Scope{TerminalID: s.TerminalID, Period: s.Period}
}

// Validate checks the record fields.
func (s SettlementRecord) Validate() error {
	return validateIdentity(s.ID, s.TerminalID, s.Period, s.Date)
}

func (s SettlementRecord) matchText() string {
	return strings.TrimSpace(s.ExternalReference + " " + s.Description)
}

func validateIdentity(id, terminalID, period string, date time.Time) error {
	switch {
	case strings.TrimSpace(id) == "":
		return &ValidationError{Field: "id", Message: "id required"}
	case strings.TrimSpace(terminalID) == "":
		return &ValidationError{Field: "terminal_id", Message: "terminal id required"}
	case strings.TrimSpace(period) == "":
		return &ValidationError{Field: "period", Message: "period required"}
	case date.IsZero():
		return &ValidationError{Field: "date", Message: "date required"}
	}
	return nil
}

// MatchKind distinguishes 1:1 from N:1 groups.
type MatchKind string

const (
	// MatchSimple is a group with exactly one sale.
	MatchSimple MatchKind = "simple"
	// MatchGrouped is a group with two or more sales.
	MatchGrouped MatchKind = "grouped"
)

// MatchGroup is the result of a successful match.
type MatchGroup struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id,omitempty"`
	SaleIDs      []string  `json:"sale_ids"`
	SettlementID string    `json:"settlement_id"`
	Kind         MatchKind `json:"kind"`

	// SalesTotal is the sum of the member sales' net amounts.
	SalesTotal decimal.Decimal `json:"sales_total"`

	// SettlementAmount is the amount of the settlement.
	SettlementAmount decimal.Decimal `json:"settlement_amount"`

	// ValueDelta is SalesTotal minus SettlementAmount.
	ValueDelta decimal.Decimal `json:"value_delta"`

	// DayDelta is the signed day distance from sale to settlement. For grouped
	// matches it is the member farthest from the settlement date.
	DayDelta int `json:"day_delta"`
}

// DivergenceKind is the closed set of discrepancy types.
type DivergenceKind string

const (
	DivergenceValueMismatch         DivergenceKind = "valueMismatch"
	DivergenceDateMismatch          DivergenceKind = "dateMismatch"
	DivergenceSaleWithoutSettlement DivergenceKind = "saleWithoutSettlement"
	DivergenceSettlementWithoutSale DivergenceKind = "settlementWithoutSale"
)

// Valid reports whether k is one of the known kinds.
func (k DivergenceKind) Valid() bool {
	switch k {
	case DivergenceValueMismatch, DivergenceDateMismatch,
		DivergenceSaleWithoutSettlement, DivergenceSettlementWithoutSale:
		return true
	}
	return false
}

// DivergenceStatus is the lifecycle state of a divergence.
type DivergenceStatus string

const (
	DivergencePending   DivergenceStatus = "pending"
	DivergenceResolved  DivergenceStatus = "resolved"
	DivergenceJustified DivergenceStatus = "justified"
)

// Valid reports whether s is one of the known statuses.
func (s DivergenceStatus) Valid() bool {
	switch s {
	case DivergencePending, DivergenceResolved, DivergenceJustified:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s DivergenceStatus) Terminal() bool {
	return s == DivergenceResolved || s == DivergenceJustified
}

// Divergence is an unresolved or resolved discrepancy. It is never deleted.
type Divergence struct {
	ID            string           `json:"id"`
	RunID         string           `json:"run_id,omitempty"`
	TerminalID    string           `json:"terminal_id"`
	Period        string           `json:"period"`
	Kind          DivergenceKind   `json:"kind"`
	Description   string           `json:"description"`
	ExpectedValue decimal.Decimal  `json:"expected_value"`
	FoundValue    decimal.Decimal  `json:"found_value"`
	Status        DivergenceStatus `json:"status"`
	Resolution    *Resolution      `json:"resolution,omitempty"`

	// SaleID and SettlementID point at the records behind the divergence.
	SaleID       string `json:"sale_id,omitempty"`
	SettlementID string `json:"settlement_id,omitempty"`

	// SupersedesID links a correction to the divergence it replaces.
	SupersedesID string `json:"supersedes_id,omitempty"`

	// ClosedByRunID is set when a later run matched the record and closed the
	// divergence itself instead of a reviewer.
	ClosedByRunID string `json:"closed_by_run_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Scope returns the scope the divergence belongs to.
func (d Divergence) Scope() Scope {
	return Scope{TerminalID: d.TerminalID, Period: d.Period}
}

// FinancialEffect is the adjustment a resolution books. Only ajuste_manual has one.
func (d Divergence) FinancialEffect() decimal.Decimal {
	if d.Resolution == nil || d.Resolution.Kind != ResolutionManualAdjustment || d.Resolution.AdjustmentValue == nil {
		return decimal.Zero
	}
	return *d.Resolution.AdjustmentValue
}

// RunStatus exposes the phase boundaries of a reconciliation run.
type RunStatus string

const (
	RunLoading         RunStatus = "loading"
	RunMatchingSimple  RunStatus = "matching-simple"
	RunMatchingGrouped RunStatus = "matching-grouped"
	RunPersisting      RunStatus = "persisting"
	RunCompleted       RunStatus = "completed"
	RunFailed          RunStatus = "failed"
	RunCancelled       RunStatus = "cancelled"
)

// OutcomeCounts summarises what a run produced.
type OutcomeCounts struct {
	// MatchedSimple counts simple (1:1) groups.
	MatchedSimple int `json:"matched_simple"`

	// MatchedGrouped counts grouped (N:1) groups.
	MatchedGrouped int `json:"matched_grouped"`

	// DivergencesCreated counts divergences written by the run.
	DivergencesCreated int `json:"divergences_created"`

	// DivergencesClosed counts earlier pending divergences closed because
	// their record was matched by this run.
	DivergencesClosed int `json:"divergences_closed"`

	// SalesLoaded and SettlementsLoaded count the unmatched input records.
	SalesLoaded       int `json:"sales_loaded"`
	SettlementsLoaded int `json:"settlements_loaded"`
}

// ReconciliationRun is one execution of the matcher for a scope.
type ReconciliationRun struct {
	ID         string        `json:"id"`
	TerminalID string        `json:"terminal_id"`
	Period     string        `json:"period"`
	Config     MatchConfig   `json:"config"`
	Status     RunStatus     `json:"status"`
	Counts     OutcomeCounts `json:"counts"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Scope returns the scope of the run.
func (r ReconciliationRun) Scope() Scope {
	return Scope{TerminalID: r.TerminalID, Period: r.Period}
}
