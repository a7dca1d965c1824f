// Package loader provides the feature loading system.
//
// Each feature (records, reconciliation, divergence, statistics) implements the
// Feature interface and registers its own routes, so features can be developed
// and tested in isolation.
//
// # Feature Interface
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// # Manager
//
// The Manager holds the registry of available features:
//   - Register() adds a feature
//   - LoadAll() loads every enabled feature in registration order
package loader
