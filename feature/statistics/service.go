package statistics

import (
	"context"
	"sort"
	"strings"
	"time"

	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/store"
	"payment-reconciler/core/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Repository is the read-only persistence the aggregator needs.
type Repository interface {
	RecordTallies(ctx context.Context, f store.StatsFilter) ([]store.RecordTally, error)
	DivergenceSamples(ctx context.Context, f store.StatsFilter) ([]store.DivergenceSample, error)
	Processors(ctx context.Context) (map[string]string, error)
}

// Service computes performance reports.
type Service struct {
	repo   Repository
	logger *zap.Logger
	cache  *cache
	now    func() time.Time
}

// NewService creates an aggregator caching reports for ttl. now may be nil.
func NewService(repo Repository, logger *zap.Logger, ttl time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{repo: repo, logger: logger, cache: newCache(ttl, now), now: now}
}

// ParseQuery builds a Query from a comma separated terminal list and optional
// YYYY-MM-DD bounds.
func ParseQuery(terminals, from, to string) (Query, error) {
	q := Query{TerminalIDs: utils.SplitList(terminals)}

	var err error
	if from != "" {
		if q.From, err = utils.ParseDate(from); err != nil {
			return Query{}, &reconcile.ValidationError{Field: "from", Message: err.Error()}
		}
	}
	if to != "" {
		if q.To, err = utils.ParseDate(to); err != nil {
			return Query{}, &reconcile.ValidationError{Field: "to", Message: err.Error()}
		}
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return Query{}, &reconcile.ValidationError{Field: "to", Message: "to must not be before from"}
	}
	return q, nil
}

// Compute returns the report for q. An empty scope yields zeroed stats.
func (s *Service) Compute(ctx context.Context, q Query) (PerformanceStats, error) {
	q = normalize(q)
	return s.cache.getOrBuild(ctx, cacheKey(q), func(ctx context.Context) (PerformanceStats, error) {
		return s.build(ctx, q)
	})
}

// Invalidate drops cached reports.
func (s *Service) Invalidate() {
	s.cache.invalidate()
}

func (s *Service) build(ctx context.Context, q Query) (PerformanceStats, error) {
	f := store.StatsFilter{TerminalIDs: q.TerminalIDs, From: q.From}
	if !q.To.IsZero() {
		f.To = q.To.AddDate(0, 0, 1)
	}

	var (
		tallies    []store.RecordTally
		samples    []store.DivergenceSample
		processors map[string]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tallies, err = s.repo.RecordTallies(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		samples, err = s.repo.DivergenceSamples(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		processors, err = s.repo.Processors(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return PerformanceStats{}, err
	}

	stats := Aggregate(q, tallies, samples, processors, s.now())
	s.logger.Debug("Performance report computed",
		zap.Strings("terminals", q.TerminalIDs),
		zap.Int64("records", stats.TotalRecords),
		zap.Int("divergences", stats.Divergences),
	)
	return stats, nil
}

// normalize sorts and dedupes the terminal list so equal queries share a cache entry.
func normalize(q Query) Query {
	seen := make(map[string]struct{}, len(q.TerminalIDs))
	ids := make([]string, 0, len(q.TerminalIDs))
	for _, id := range q.TerminalIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		ids = nil
	}
	q.TerminalIDs = ids
	return q
}

func cacheKey(q Query) string {
	var from, to string
	if !q.From.IsZero() {
		from = q.From.Format(utils.DateLayout)
	}
	if !q.To.IsZero() {
		to = q.To.Format(utils.DateLayout)
	}
	return strings.Join(q.TerminalIDs, ",") + "|" + from + "|" + to
}
