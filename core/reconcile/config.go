package reconcile

import "github.com/shopspring/decimal"

// MatchConfig holds run-scoped matching parameters. A copy is stored on every
// ReconciliationRun so past results can be explained.
type MatchConfig struct {
	// ValueTolerance is the maximum absolute amount difference, in currency units.
	ValueTolerance decimal.Decimal `json:"value_tolerance"`

	// DayTolerance is the maximum absolute date difference in calendar days.
	DayTolerance int `json:"day_tolerance"`

	// GroupingEnabled turns on the N:1 phase.
	GroupingEnabled bool `json:"grouping_enabled"`

	// DescriptionMatchingEnabled ranks otherwise-tied candidates by reference similarity.
	DescriptionMatchingEnabled bool `json:"description_matching_enabled"`

	// LearningEnabled is accepted and stored but has no behavioral effect.
	LearningEnabled bool `json:"learning_enabled"`

	// MaxGroupSize bounds N in N:1 grouping.
	MaxGroupSize int `json:"max_group_size"`
}

// DefaultMatchConfig returns exact-amount, next-day matching with grouping of up to five sales.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		ValueTolerance:  decimal.Zero,
		DayTolerance:    1,
		GroupingEnabled: true,
		MaxGroupSize:    5,
	}
}

// Validate checks the configuration bounds.
func (c MatchConfig) Validate() error {
	if c.ValueTolerance.IsNegative() {
		return &ValidationError{Field: "value_tolerance", Message: "value tolerance must be >= 0"}
	}
	if c.DayTolerance < 0 {
		return &ValidationError{Field: "day_tolerance", Message: "day tolerance must be >= 0"}
	}
	if c.MaxGroupSize < 1 {
		return &ValidationError{Field: "max_group_size", Message: "max group size must be >= 1"}
	}
	return nil
}

// normalized clamps out-of-range values so the matcher never loops on bad input.
func (c MatchConfig) normalized() MatchConfig {
	if c.ValueTolerance.IsNegative() {
		c.ValueTolerance = decimal.Zero
	}
	if c.DayTolerance < 0 {
		c.DayTolerance = 0
	}
	if c.MaxGroupSize < 1 {
		c.MaxGroupSize = 1
	}
	return c
}
