// Package records is the ingestion boundary for already-parsed sale and settlement
// records, plus the terminal to processor directory used by the statistics report.
//
// Records are immutable once ingested. Re-sending a record with identical fields is
// a no-op; a record whose fields changed fails the batch with a ConflictError and
// nothing is written.
//
// # Endpoints
//
//   - POST /records/sales
//   - POST /records/settlements
//   - GET /records/sales/:id
//   - GET /records/settlements/:id
//   - PUT /records/terminals/:id
package records
