package config

import (
	"fmt"

	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/utils"
)

// ReconcileConfig holds the MatchConfig used when a caller does not send one.
// Tolerances are strings so "0,50" and "0.50" both parse.
type ReconcileConfig struct {
	// ValueTolerance is the maximum amount difference in currency units.
	ValueTolerance string `mapstructure:"value_tolerance" default:"0"`
	// DayTolerance is the maximum date difference in calendar days.
	DayTolerance int `mapstructure:"day_tolerance" default:"1"`
	// GroupingEnabled turns on N:1 matching.
	GroupingEnabled bool `mapstructure:"grouping_enabled" default:"true"`
	// DescriptionMatchingEnabled ranks tied candidates by reference similarity.
	DescriptionMatchingEnabled bool `mapstructure:"description_matching_enabled" default:"false"`
	// LearningEnabled is stored on runs and has no effect on matching.
	LearningEnabled bool `mapstructure:"learning_enabled" default:"false"`
	// MaxGroupSize bounds N in N:1 matching.
	MaxGroupSize int `mapstructure:"max_group_size" default:"5"`
}

// MatchConfig converts and validates the configured defaults.
func (c ReconcileConfig) MatchConfig() (reconcile.MatchConfig, error) {
	tolerance, err := utils.ParseDecimal(c.ValueTolerance)
	if err != nil {
		return reconcile.MatchConfig{}, fmt.Errorf("reconcile.value_tolerance: %w", err)
	}

	cfg := reconcile.MatchConfig{
		ValueTolerance:             tolerance,
		DayTolerance:               c.DayTolerance,
		GroupingEnabled:            c.GroupingEnabled,
		DescriptionMatchingEnabled: c.DescriptionMatchingEnabled,
		LearningEnabled:            c.LearningEnabled,
		MaxGroupSize:               c.MaxGroupSize,
	}
	if err := cfg.Validate(); err != nil {
		return reconcile.MatchConfig{}, err
	}
	return cfg, nil
}

// ReviewConfig enables the stricter review pass over matched groups.
type ReviewConfig struct {
	// Enabled turns the review pass on.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// ValueTolerance flags groups whose amount delta exceeds it.
	ValueTolerance string `mapstructure:"value_tolerance" default:"0"`
	// DayTolerance flags groups whose day delta exceeds it.
	DayTolerance int `mapstructure:"day_tolerance" default:"0"`
}

// Strict returns the review tolerances as a MatchConfig, or nil when disabled.
func (c ReviewConfig) Strict() (*reconcile.MatchConfig, error) {
	if !c.Enabled {
		return nil, nil
	}
	tolerance, err := utils.ParseDecimal(c.ValueTolerance)
	if err != nil {
		return nil, fmt.Errorf("review.value_tolerance: %w", err)
	}
	return &reconcile.MatchConfig{ValueTolerance: tolerance, DayTolerance: c.DayTolerance, MaxGroupSize: 1}, nil
}

// StatisticsConfig holds configuration for the performance report.
type StatisticsConfig struct {
	// CacheTTLSeconds keeps computed reports for this long. Zero disables caching.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" default:"60"`
}
