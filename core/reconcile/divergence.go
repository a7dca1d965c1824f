package reconcile

import (
	"fmt"
	"time"

	"payment-reconciler/core/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Builder converts matcher output into divergences. The zero value is ready to use.
type Builder struct {
	// NewID generates divergence identifiers. Defaults to uuid.NewString.
	NewID func() string

	// Now stamps CreatedAt. Defaults to time.Now in UTC.
	Now func() time.Time
}

// Build runs the default Builder.
func Build(leftoverSales []SaleRecord, leftoverSettlements []SettlementRecord, runID string) []Divergence {
	return (&Builder{}).Build(leftoverSales, leftoverSettlements, runID)
}

// Build turns every leftover sale into a saleWithoutSettlement divergence and every
// leftover settlement into a settlementWithoutSale divergence. All start pending.
func (b *Builder) Build(leftoverSales []SaleRecord, leftoverSettlements []SettlementRecord, runID string) []Divergence {
	now := b.now()
	out := make([]Divergence, 0, len(leftoverSales)+len(leftoverSettlements))

	for _, s := range leftoverSales {
		out = append(out, Divergence{
			ID:            b.newID(),
			RunID:         runID,
			TerminalID:    s.TerminalID,
			Period:        s.Period,
			Kind:          DivergenceSaleWithoutSettlement,
			Description:   describeSale(s),
			ExpectedValue: s.NetAmount,
			FoundValue:    decimal.Zero,
			Status:        DivergencePending,
			SaleID:        s.ID,
			CreatedAt:     now,
		})
	}

	for _, s := range leftoverSettlements {
		out = append(out, Divergence{
			ID:            b.newID(),
			RunID:         runID,
			TerminalID:    s.TerminalID,
			Period:        s.Period,
			Kind:          DivergenceSettlementWithoutSale,
			Description:   describeSettlement(s),
			ExpectedValue: decimal.Zero,
			FoundValue:    s.Amount,
			Status:        DivergencePending,
			SettlementID:  s.ID,
			CreatedAt:     now,
		})
	}

	return out
}

// Review flags matched groups whose deltas exceed a stricter tolerance than the one
// they were matched with. It backs manual review workflows; Build never calls it.
// A group over both limits yields a single valueMismatch.
func (b *Builder) Review(groups []MatchGroup, strict MatchConfig, scope Scope, runID string) []Divergence {
	now := b.now()
	var out []Divergence

	for _, g := range groups {
		var kind DivergenceKind
		switch {
		case g.ValueDelta.Abs().GreaterThan(strict.ValueTolerance):
			kind = DivergenceValueMismatch
		case utils.AbsInt(g.DayDelta) > strict.DayTolerance:
			kind = DivergenceDateMismatch
		default:
			continue
		}

		d := Divergence{
			ID:            b.newID(),
			RunID:         runID,
			TerminalID:    scope.TerminalID,
			Period:        scope.Period,
			Kind:          kind,
			Description:   describeGroup(g, kind),
			ExpectedValue: g.SalesTotal,
			FoundValue:    g.SettlementAmount,
			Status:        DivergencePending,
			SettlementID:  g.SettlementID,
			CreatedAt:     now,
		}
		if len(g.SaleIDs) == 1 {
			d.SaleID = g.SaleIDs[0]
		}
		out = append(out, d)
	}

	return out
}

// Supersede creates a pending correction of prev. prev itself is left untouched.
func (b *Builder) Supersede(prev Divergence, description string) Divergence {
	if description == "" {
		description = prev.Description
	}
	return Divergence{
		ID:            b.newID(),
		RunID:         prev.RunID,
		TerminalID:    prev.TerminalID,
		Period:        prev.Period,
		Kind:          prev.Kind,
		Description:   description,
		ExpectedValue: prev.ExpectedValue,
		FoundValue:    prev.FoundValue,
		Status:        DivergencePending,
		SaleID:        prev.SaleID,
		SettlementID:  prev.SettlementID,
		SupersedesID:  prev.ID,
		CreatedAt:     b.now(),
	}
}

func (b *Builder) newID() string {
	if b.NewID != nil {
		return b.NewID()
	}
	return uuid.NewString()
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}

func describeSale(s SaleRecord) string {
	desc := fmt.Sprintf("sale %s of %s (%s) on %s has no matching settlement",
		s.ID, s.NetAmount.StringFixed(2), s.PaymentMethod, s.Date.Format(utils.DateLayout))
	if s.ExternalReference != "" {
		desc += " [ref " + s.ExternalReference + "]"
	}
	return desc
}

func describeSettlement(s SettlementRecord) string {
	desc := fmt.Sprintf("settlement %s of %s on %s has no matching sale",
		s.ID, s.Amount.StringFixed(2), s.Date.Format(utils.DateLayout))
	if s.ExternalReference != "" {
		desc += " [ref " + s.ExternalReference + "]"
	}
	return desc
}

func describeGroup(g MatchGroup, kind DivergenceKind) string {
	if kind == DivergenceValueMismatch {
		return fmt.Sprintf("settlement %s of %s differs from sales total %s by %s",
			g.SettlementID, g.SettlementAmount.StringFixed(2), g.SalesTotal.StringFixed(2), g.ValueDelta.StringFixed(2))
	}
	return fmt.Sprintf("settlement %s arrived %d day(s) away from its sales", g.SettlementID, g.DayDelta)
}
