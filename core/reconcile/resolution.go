package reconcile

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ResolutionKind is the closed set of ways a divergence can leave pending.
type ResolutionKind string

const (
	// ResolutionJustification explains the divergence without financial adjustment.
	ResolutionJustification ResolutionKind = "justificativa"
	// ResolutionManualAdjustment books a non-zero adjustment.
	ResolutionManualAdjustment ResolutionKind = "ajuste_manual"
	// ResolutionExclusion closes the divergence with no financial effect. The
	// divergence stays in history.
	ResolutionExclusion ResolutionKind = "exclusao"
)

// TargetStatus returns the status a divergence reaches when resolved with k.
func (k ResolutionKind) TargetStatus() (DivergenceStatus, error) {
	switch k {
	case ResolutionJustification:
		return DivergenceJustified, nil
	case ResolutionManualAdjustment, ResolutionExclusion:
		return DivergenceResolved, nil
	default:
		return "", &ValidationError{Field: "kind", Message: "unknown resolution kind " + string(k)}
	}
}

// Resolution is attached to a divergence on its transition out of pending.
type Resolution struct {
	Kind            ResolutionKind   `json:"kind"`
	Motive          string           `json:"motive"`
	AdjustmentValue *decimal.Decimal `json:"adjustment_value,omitempty"`
	ResolvedAt      time.Time        `json:"resolved_at"`
}

// Validate checks the resolution fields.
func (r Resolution) Validate() error {
	if _, err := r.Kind.TargetStatus(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Motive) == "" {
		return &ValidationError{Field: "motive", Message: "motive required"}
	}

	hasValue := r.AdjustmentValue != nil && !r.AdjustmentValue.IsZero()
	switch r.Kind {
	case ResolutionManualAdjustment:
		if !hasValue {
			return &ValidationError{Field: "adjustment_value", Message: "adjustment value required"}
		}
	case ResolutionJustification, ResolutionExclusion:
		if hasValue {
			return &ValidationError{Field: "adjustment_value", Message: "adjustment value only allowed for " + string(ResolutionManualAdjustment)}
		}
	}
	return nil
}

// Resolve applies the pending -> resolved|justified transition and returns the
// updated divergence. d is not modified.
func Resolve(d Divergence, res Resolution, now time.Time) (Divergence, error) {
	if d.Status != DivergencePending {
		return d, &ConflictError{Resource: "divergence", ID: d.ID, Reason: "already resolved"}
	}
	if err := res.Validate(); err != nil {
		return d, err
	}

	status, _ := res.Kind.TargetStatus()
	res.Motive = strings.TrimSpace(res.Motive)
	res.ResolvedAt = now
	if res.Kind != ResolutionManualAdjustment {
		res.AdjustmentValue = nil
	}

	d.Status = status
	d.Resolution = &res
	return d, nil
}
