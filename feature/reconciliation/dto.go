package reconciliation

import (
	"payment-reconciler/core/reconcile"

	"github.com/shopspring/decimal"
)

// ConfigDTO overrides the default MatchConfig field by field.
type ConfigDTO struct {
	ValueTolerance             *decimal.Decimal `json:"value_tolerance"`
	DayTolerance               *int             `json:"day_tolerance" validate:"omitempty,min=0"`
	GroupingEnabled            *bool            `json:"grouping_enabled"`
	DescriptionMatchingEnabled *bool            `json:"description_matching_enabled"`
	LearningEnabled            *bool            `json:"learning_enabled"`
	MaxGroupSize               *int             `json:"max_group_size" validate:"omitempty,min=1"`
}

// apply returns base with the fields set in d replaced.
func (d *ConfigDTO) apply(base reconcile.MatchConfig) reconcile.MatchConfig {
	if d == nil {
		return base
	}
	if d.ValueTolerance != nil {
		base.ValueTolerance = *d.ValueTolerance
	}
	if d.DayTolerance != nil {
		base.DayTolerance = *d.DayTolerance
	}
	if d.GroupingEnabled != nil {
		base.GroupingEnabled = *d.GroupingEnabled
	}
	if d.DescriptionMatchingEnabled != nil {
		base.DescriptionMatchingEnabled = *d.DescriptionMatchingEnabled
	}
	if d.LearningEnabled != nil {
		base.LearningEnabled = *d.LearningEnabled
	}
	if d.MaxGroupSize != nil {
		base.MaxGroupSize = *d.MaxGroupSize
	}
	return base
}

// RunRequest is the body of POST /reconciliation/runs and /reconciliation/plan.
type RunRequest struct {
	TerminalID string     `json:"terminal_id" validate:"required,max=64"`
	Period     string     `json:"period" validate:"required,max=32"`
	Config     *ConfigDTO `json:"config"`
}

// Scope returns the requested scope.
func (r RunRequest) Scope() reconcile.Scope {
	return reconcile.Scope{TerminalID: r.TerminalID, Period: r.Period}
}

// RunResponse is a run with the groups it committed.
type RunResponse struct {
	Run    reconcile.ReconciliationRun `json:"run"`
	Groups []reconcile.MatchGroup      `json:"groups"`
}
