// Package store persists records, runs, match groups and divergences with GORM.
//
// It is the only package that writes reconciliation state. Two write paths matter:
//
//   - Commit applies a whole run in one transaction: match groups, record status
//     updates, divergences and the run row. Any failure rolls everything back.
//   - TransitionDivergence moves a divergence out of pending with an optimistic
//     "WHERE status = 'pending'" guard, so two concurrent resolutions cannot both win.
//
// Divergence rows are never deleted. Corrections are new rows pointing at the row
// they supersede.
package store
