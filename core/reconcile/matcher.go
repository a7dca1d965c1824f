package reconcile

import (
	"sort"

	"payment-reconciler/core/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchResult is the output of one matcher pass.
type MatchResult struct {
	// Groups contains simple groups first, then grouped ones, in creation order.
	Groups []MatchGroup `json:"groups"`

	// LeftoverSales are sales no group consumed, in ascending date order.
	LeftoverSales []SaleRecord `json:"leftover_sales"`

	// LeftoverSettlements are settlements no group consumed, in ascending date/amount order.
	LeftoverSettlements []SettlementRecord `json:"leftover_settlements"`
}

// SimpleCount returns the number of simple groups.
func (r *MatchResult) SimpleCount() int {
	n := 0
	for _, g := range r.Groups {
		if g.Kind == MatchSimple {
			n++
		}
	}
	return n
}

// GroupedCount returns the number of grouped groups.
func (r *MatchResult) GroupedCount() int {
	return len(r.Groups) - r.SimpleCount()
}

// Matcher pairs sale records with settlement records inside one scope.
// The zero value is ready to use.
type Matcher struct {
	// NewID generates MatchGroup identifiers. Defaults to uuid.NewString.
	NewID func() string

	// OnPhase, if set, is called when the matcher enters a phase
	// (RunMatchingSimple, RunMatchingGrouped).
	OnPhase func(RunStatus)
}

// Match runs the default Matcher.
func Match(sales []SaleRecord, settlements []SettlementRecord, cfg MatchConfig) (*MatchResult, error) {
	return (&Matcher{}).Match(sales, settlements, cfg)
}

// candidate is a settlement (phase 1) or a sale (phase 2) under consideration.
type candidate struct {
	index      int
	id         string
	dayDelta   int
	valueDelta decimal.Decimal
	similarity float64
}

// Match pairs the records. The inputs are not modified.
func (m *Matcher) Match(sales []SaleRecord, settlements []SettlementRecord, cfg MatchConfig) (*MatchResult, error) {
	if err := CheckScope(sales, settlements); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	saleList := sortedSales(sales)
	settlementList := sortedSettlements(settlements)
	saleUsed := make([]bool, len(saleList))
	settlementUsed := make([]bool, len(settlementList))

	result := &MatchResult{
		Groups:              []MatchGroup{},
		LeftoverSales:       []SaleRecord{},
		LeftoverSettlements: []SettlementRecord{},
	}

	m.phase(RunMatchingSimple)
	for i, sale := range saleList {
		best, ok := m.bestSettlement(sale, settlementList, settlementUsed, cfg)
		if !ok {
			continue
		}
		saleUsed[i] = true
		settlementUsed[best.index] = true
		st := settlementList[best.index]
		result.Groups = append(result.Groups, MatchGroup{
			ID:               m.newID(),
			SaleIDs:          []string{sale.ID},
			SettlementID:     st.ID,
			Kind:             MatchSimple,
			SalesTotal:       sale.NetAmount,
			SettlementAmount: st.Amount,
			ValueDelta:       best.valueDelta,
			DayDelta:         best.dayDelta,
		})
	}

	if cfg.GroupingEnabled {
		m.phase(RunMatchingGrouped)
		m.matchGrouped(saleList, saleUsed, settlementList, settlementUsed, cfg, result)
	}

	for i, sale := range saleList {
		if !saleUsed[i] {
			result.LeftoverSales = append(result.LeftoverSales, sale)
		}
	}
	for j, st := range settlementList {
		if !settlementUsed[j] {
			result.LeftoverSettlements = append(result.LeftoverSettlements, st)
		}
	}

	return result, nil
}

// bestSettlement finds the settlement closest in date to sale within both tolerances.
// Tie-break: smaller |dayDelta|, smaller |valueDelta|, higher similarity (only when
// description matching is on), lowest settlement id.
func (m *Matcher) bestSettlement(sale SaleRecord, settlements []SettlementRecord, used []bool, cfg MatchConfig) (candidate, bool) {
	var best candidate
	found := false

	for j, st := range settlements {
		if used[j] {
			continue
		}
		dayDelta := utils.DaysBetween(sale.Date, st.Date)
		if dayDelta > cfg.DayTolerance {
			// Settlements are sorted by date; everything after is later still.
			break
		}
		if dayDelta < -cfg.DayTolerance {
			continue
		}
		valueDelta := sale.NetAmount.Sub(st.Amount)
		if valueDelta.Abs().GreaterThan(cfg.ValueTolerance) {
			continue
		}

		c := candidate{index: j, id: st.ID, dayDelta: dayDelta, valueDelta: valueDelta}
		if cfg.DescriptionMatchingEnabled {
			c.similarity = Similarity(sale.matchText(), st.matchText())
		}
		if !found || better(c, best, cfg.DescriptionMatchingEnabled) {
			best = c
			found = true
		}
	}

	return best, found
}

// better reports whether a ranks ahead of b.
func better(a, b candidate, useSimilarity bool) bool {
	if da, db := utils.AbsInt(a.dayDelta), utils.AbsInt(b.dayDelta); da != db {
		return da < db
	}
	if cmp := a.valueDelta.Abs().Cmp(b.valueDelta.Abs()); cmp != 0 {
		return cmp < 0
	}
	if useSimilarity && a.similarity != b.similarity {
		return a.similarity > b.similarity
	}
	return a.id < b.id
}

func (m *Matcher) newID() string {
	if m.NewID != nil {
		return m.NewID()
	}
	return uuid.NewString()
}

func (m *Matcher) phase(s RunStatus) {
	if m.OnPhase != nil {
		m.OnPhase(s)
	}
}

// CheckScope verifies that every record shares the terminal and period of the first one.
func CheckScope(sales []SaleRecord, settlements []SettlementRecord) error {
	var expected Scope
	switch {
	case len(sales) > 0:
		expected = sales[0].Scope()
	case len(settlements) > 0:
		expected = settlements[0].Scope()
	default:
		return nil
	}

	for _, s := range sales {
		if s.Scope() != expected {
			return &InvalidScopeError{Expected: expected, Found: s.Scope(), RecordID: s.ID}
		}
	}
	for _, s := range settlements {
		if s.Scope() != expected {
			return &InvalidScopeError{Expected: expected, Found: s.Scope(), RecordID: s.ID}
		}
	}
	return nil
}

// sortedSales copies sales ordered by date, then id.
func sortedSales(sales []SaleRecord) []SaleRecord {
	out := make([]SaleRecord, len(sales))
	copy(out, sales)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// sortedSettlements copies settlements ordered by date, then amount, then id.
func sortedSettlements(settlements []SettlementRecord) []SettlementRecord {
	out := make([]SettlementRecord, len(settlements))
	copy(out, settlements)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}
