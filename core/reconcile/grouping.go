package reconcile

import (
	"sort"

	"payment-reconciler/core/utils"

	"github.com/shopspring/decimal"
)

// matchGrouped is phase 2: for each settlement still open, it looks for a set of
// open sales whose net amounts add up to the settlement within tolerance.
func (m *Matcher) matchGrouped(sales []SaleRecord, saleUsed []bool, settlements []SettlementRecord, settlementUsed []bool, cfg MatchConfig, result *MatchResult) {
	for j, st := range settlements {
		if settlementUsed[j] {
			continue
		}

		pool := groupPool(st, sales, saleUsed, cfg)
		if len(pool) == 0 {
			continue
		}

		members, total, ok := accumulate(pool, sales, st.Amount, cfg)
		if !ok {
			continue
		}

		settlementUsed[j] = true
		saleIDs := make([]string, 0, len(members))
		farthest := 0
		for _, c := range members {
			saleUsed[c.index] = true
			saleIDs = append(saleIDs, c.id)
			if utils.AbsInt(c.dayDelta) > utils.AbsInt(farthest) {
				farthest = c.dayDelta
			}
		}
		sort.Strings(saleIDs)

		kind := MatchGrouped
		if len(saleIDs) == 1 {
			kind = MatchSimple
		}
		result.Groups = append(result.Groups, MatchGroup{
			ID:               m.newID(),
			SaleIDs:          saleIDs,
			SettlementID:     st.ID,
			Kind:             kind,
			SalesTotal:       total,
			SettlementAmount: st.Amount,
			ValueDelta:       total.Sub(st.Amount),
			DayDelta:         farthest,
		})
	}
}

// groupPool collects open sales dated within dayTolerance of the settlement, sorted
// by ascending net amount. Equal amounts are ordered by similarity (when enabled),
// then date, then id.
func groupPool(st SettlementRecord, sales []SaleRecord, saleUsed []bool, cfg MatchConfig) []candidate {
	var pool []candidate
	for i, sale := range sales {
		if saleUsed[i] {
			continue
		}
		dayDelta := utils.DaysBetween(sale.Date, st.Date)
		if utils.AbsInt(dayDelta) > cfg.DayTolerance {
			continue
		}
		c := candidate{index: i, id: sale.ID, dayDelta: dayDelta}
		if cfg.DescriptionMatchingEnabled {
			c.similarity = Similarity(sale.matchText(), st.matchText())
		}
		pool = append(pool, c)
	}

	sort.SliceStable(pool, func(a, b int) bool {
		sa, sb := sales[pool[a].index], sales[pool[b].index]
		if cmp := sa.NetAmount.Cmp(sb.NetAmount); cmp != 0 {
			return cmp < 0
		}
		if cfg.DescriptionMatchingEnabled && pool[a].similarity != pool[b].similarity {
			return pool[a].similarity > pool[b].similarity
		}
		if !sa.Date.Equal(sb.Date) {
			return sa.Date.Before(sb.Date)
		}
		return sa.ID < sb.ID
	})
	return pool
}

// accumulate walks the ascending pool adding sales until the running total lands in
// [target-tol, target+tol]. When the next sale would overshoot (or the group is full),
// it backtracks one step by swapping the last member for the current sale. The walk is
// linear, so a settlement costs O(n log n) including the sort.
func accumulate(pool []candidate, sales []SaleRecord, target decimal.Decimal, cfg MatchConfig) ([]candidate, decimal.Decimal, bool) {
	lo := target.Sub(cfg.ValueTolerance)
	hi := target.Add(cfg.ValueTolerance)

	chosen := make([]candidate, 0, cfg.MaxGroupSize)
	sum := decimal.Zero

	for _, c := range pool {
		amount := sales[c.index].NetAmount

		if next := sum.Add(amount); next.LessThanOrEqual(hi) && len(chosen) < cfg.MaxGroupSize {
			chosen = append(chosen, c)
			sum = next
			if sum.GreaterThanOrEqual(lo) {
				return chosen, sum, true
			}
			continue
		}

		if len(chosen) == 0 {
			break
		}
		last := chosen[len(chosen)-1]
		swapped := sum.Sub(sales[last.index].NetAmount).Add(amount)
		if swapped.GreaterThan(hi) {
			// The pool is ascending, so every later swap overshoots too.
			break
		}
		chosen[len(chosen)-1] = c
		sum = swapped
		if sum.GreaterThanOrEqual(lo) {
			return chosen, sum, true
		}
	}

	return nil, decimal.Zero, false
}
