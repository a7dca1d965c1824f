// Package reconciliation runs the matcher for one (terminal, period) scope and
// commits the outcome.
//
// A run acquires the scope lock, loads the unmatched sales and settlements,
// matches them, builds divergences for the leftovers and writes everything in
// one transaction. Cancelling the context before the commit leaves no trace
// beyond a cancelled run record; once the commit starts it is carried out to
// completion or rolled back.
//
// Committed runs are optionally archived as JSON snapshots in object storage.
//
// # Endpoints
//
//   - POST /reconciliation/runs
//   - POST /reconciliation/plan
//   - GET /reconciliation/runs?terminal_id=&period=
//   - GET /reconciliation/runs/active
//   - GET /reconciliation/runs/:id
//   - GET /reconciliation/runs/:id/archive
package reconciliation
