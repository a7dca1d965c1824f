// Package statistics computes the performance report over persisted records
// and divergences. It never writes.
//
// Reports are cached per query for statistics.cache_ttl_seconds; concurrent
// requests for the same query share one computation.
//
// # Endpoints
//
//   - GET /statistics/performance?terminals=&from=&to=
package statistics
