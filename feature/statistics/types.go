package statistics

import (
	"time"

	"payment-reconciler/core/reconcile"

	"github.com/shopspring/decimal"
)

// UnknownProcessor groups terminals with no processor on file.
const UnknownProcessor = "unknown"

// Query selects the terminals and the date range of a report. Empty
// TerminalIDs means every terminal; From and To are inclusive calendar dates.
type Query struct {
	TerminalIDs []string  `json:"terminal_ids,omitempty"`
	From        time.Time `json:"from,omitempty"`
	To          time.Time `json:"to,omitempty"`
}

// PerformanceStats is the performance report.
type PerformanceStats struct {
	Query Query `json:"query"`

	TotalRecords   int64 `json:"total_records"`
	MatchedRecords int64 `json:"matched_records"`
	// ReconciliationRate is MatchedRecords / TotalRecords, 0 when there are no records.
	ReconciliationRate float64 `json:"reconciliation_rate"`

	Divergences        int `json:"divergences"`
	PendingDivergences int `json:"pending_divergences"`
	// MeanResolutionSeconds averages resolvedAt - createdAt over divergences closed
	// by a resolution. Divergences a later run closed are left out.
	MeanResolutionSeconds float64 `json:"mean_resolution_seconds"`

	// AdjustmentTotal sums the manual adjustments booked.
	AdjustmentTotal decimal.Decimal `json:"adjustment_total"`

	ByProcessor []ProcessorStats `json:"by_processor"`
	ByKind      []KindStats      `json:"by_kind"`

	GeneratedAt time.Time `json:"generated_at"`
}

// MeanResolutionTime returns MeanResolutionSeconds as a duration.
func (s PerformanceStats) MeanResolutionTime() time.Duration {
	return time.Duration(s.MeanResolutionSeconds * float64(time.Second))
}

// ProcessorStats is the per-processor breakdown.
type ProcessorStats struct {
	Processor             string   `json:"processor"`
	Terminals             []string `json:"terminals"`
	TotalRecords          int64    `json:"total_records"`
	MatchedRecords        int64    `json:"matched_records"`
	ReconciliationRate    float64  `json:"reconciliation_rate"`
	Divergences           int      `json:"divergences"`
	PendingDivergences    int      `json:"pending_divergences"`
	MeanResolutionSeconds float64  `json:"mean_resolution_seconds"`
}

// KindStats counts divergences of one kind.
type KindStats struct {
	Kind    reconcile.DivergenceKind `json:"kind"`
	Count   int                      `json:"count"`
	Pending int                      `json:"pending"`
}
