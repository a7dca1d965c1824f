package statistics

import (
	"sort"
	"time"

	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/store"

	"github.com/shopspring/decimal"
)

// bucket accumulates the figures of one processor or of the whole report.
type bucket struct {
	terminals   map[string]struct{}
	total       int64
	matched     int64
	divergences int
	pending     int
	resolved    int
	resolveTime time.Duration
}

func newBucket() *bucket {
	return &bucket{terminals: make(map[string]struct{})}
}

func (b *bucket) addTally(t store.RecordTally) {
	b.terminals[t.TerminalID] = struct{}{}
	b.total += t.Count
	if t.Status == reconcile.StatusMatched || t.Status == reconcile.StatusGrouped {
		b.matched += t.Count
	}
}

func (b *bucket) addSample(s store.DivergenceSample) {
	b.terminals[s.TerminalID] = struct{}{}
	b.divergences++
	if s.Status == reconcile.DivergencePending {
		b.pending++
		return
	}
	// Divergences closed by a later run measure time to match, not review time.
	if s.ResolvedAt != nil && !s.ClosedByRun {
		b.resolved++
		b.resolveTime += s.ResolvedAt.Sub(s.CreatedAt)
	}
}

func (b *bucket) rate() float64 {
	if b.total == 0 {
		return 0
	}
	return float64(b.matched) / float64(b.total)
}

func (b *bucket) meanSeconds() float64 {
	if b.resolved == 0 {
		return 0
	}
	return (b.resolveTime / time.Duration(b.resolved)).Seconds()
}

// Aggregate builds the report from raw tallies and samples. processors maps
// terminal ids to processor names; terminals missing from it count as UnknownProcessor.
// Empty input yields zeroed stats.
func Aggregate(q Query, tallies []store.RecordTally, samples []store.DivergenceSample, processors map[string]string, now time.Time) PerformanceStats {
	overall := newBucket()
	perProcessor := make(map[string]*bucket)
	processorOf := func(terminalID string) *bucket {
		name := processors[terminalID]
		if name == "" {
			name = UnknownProcessor
		}
		b, ok := perProcessor[name]
		if !ok {
			b = newBucket()
			perProcessor[name] = b
		}
		return b
	}

	for _, t := range tallies {
		overall.addTally(t)
		processorOf(t.TerminalID).addTally(t)
	}

	kinds := make(map[reconcile.DivergenceKind]*KindStats)
	adjustments := decimal.Zero
	for _, s := range samples {
		overall.addSample(s)
		processorOf(s.TerminalID).addSample(s)

		k, ok := kinds[s.Kind]
		if !ok {
			k = &KindStats{Kind: s.Kind}
			kinds[s.Kind] = k
		}
		k.Count++
		if s.Status == reconcile.DivergencePending {
			k.Pending++
		}
		if s.AdjustmentValue.Valid {
			adjustments = adjustments.Add(s.AdjustmentValue.Decimal)
		}
	}

	stats := PerformanceStats{
		Query:                 q,
		TotalRecords:          overall.total,
		MatchedRecords:        overall.matched,
		ReconciliationRate:    overall.rate(),
		Divergences:           overall.divergences,
		PendingDivergences:    overall.pending,
		MeanResolutionSeconds: overall.meanSeconds(),
		AdjustmentTotal:       adjustments,
		ByProcessor:           make([]ProcessorStats, 0, len(perProcessor)),
		ByKind:                make([]KindStats, 0, len(kinds)),
		GeneratedAt:           now,
	}

	for name, b := range perProcessor {
		terminals := make([]string, 0, len(b.terminals))
		for id := range b.terminals {
			terminals = append(terminals, id)
		}
		sort.Strings(terminals)

		stats.ByProcessor = append(stats.ByProcessor, ProcessorStats{
			Processor:             name,
			Terminals:             terminals,
			TotalRecords:          b.total,
			MatchedRecords:        b.matched,
			ReconciliationRate:    b.rate(),
			Divergences:           b.divergences,
			PendingDivergences:    b.pending,
			MeanResolutionSeconds: b.meanSeconds(),
		})
	}
	sort.Slice(stats.ByProcessor, func(i, j int) bool {
		return stats.ByProcessor[i].Processor < stats.ByProcessor[j].Processor
	})

	for _, k := range kinds {
		stats.ByKind = append(stats.ByKind, *k)
	}
	sort.Slice(stats.ByKind, func(i, j int) bool {
		return stats.ByKind[i].Kind < stats.ByKind[j].Kind
	})

	return stats
}
