// Package reconcile provides the payment reconciliation core: matching point-of-sale
// sale records against processor settlement records, turning what is left over into
// typed divergences, and governing how a divergence is resolved.
//
// Everything in this package is pure. It performs no I/O and holds no shared state,
// so the same inputs always produce the same MatchGroup assignments.
//
// # Architecture
//
// The package consists of three components:
//
// 1. Matcher: pairs sales with settlements inside one (terminal, period) scope.
//    Phase 1 is a greedy 1:1 search; phase 2 (optional) groups N sales into one
//    settlement using ascending-amount accumulation.
//
// 2. Builder: converts leftover records into saleWithoutSettlement and
//    settlementWithoutSale divergences, and optionally reviews matched groups
//    against a stricter tolerance (valueMismatch, dateMismatch).
//
// 3. Resolution state machine: pending -> resolved | justified. Terminal states
//    have no outgoing transitions; corrections create a new divergence.
//
// # Known limitation
//
// Phase 1 is greedy, not globally optimal. Sales are visited in ascending date order
// and each takes the best settlement still available, so an earlier sale can take a
// settlement that a later sale needed. A min-cost bipartite assignment would avoid
// this, but the tie-break order (day delta, value delta, settlement id) is relied on
// by historical reports and must not change.
//
// # Usage Example
//
//	result, err := reconcile.Match(sales, settlements, reconcile.DefaultMatchConfig())
//	if err != nil {
//	    return err // *InvalidScopeError
//	}
//	divergences := reconcile.Build(result.LeftoverSales, result.LeftoverSettlements, runID)
package reconcile
