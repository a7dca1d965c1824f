// Package divergence is the resolution workflow for divergences.
//
// A divergence leaves pending exactly once, through Resolve. Resolved and
// justified divergences are never changed again; a correction is a new pending
// divergence that points at the one it supersedes.
//
// # Endpoints
//
//   - GET /divergences?status=&kind=&terminal=&period=&q=&limit=&offset=
//   - GET /divergences/adjustments?terminal=&period=
//   - GET /divergences/:id
//   - POST /divergences/:id/resolve
//   - POST /divergences/:id/supersede
package divergence
