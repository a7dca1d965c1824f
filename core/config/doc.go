// Package config provides configuration management for the reconciliation service.
//
// It uses Viper to read environment variables, optionally seeded from a .env file
// through godotenv. Defaults come from the `default` struct tags of each section.
//
// # Configuration Structure
//
// The Config struct is divided into subsections:
//   - Server: HTTP port, API key, body limit
//   - Database: driver (mysql, postgres, sqlite) and connection details
//   - Storage: S3/MinIO credentials and the run archive switch
//   - Log: logging level and format
//   - Lock: scope lock driver (memory, redis) and contention mode
//   - Reconcile: default matching tolerances
//   - Review: optional stricter pass over matched groups
//   - Statistics: report cache TTL
//
// Environment keys follow the mapstructure path, so RECONCILE_DAY_TOLERANCE sets
// reconcile.day_tolerance.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	match, err := cfg.Reconcile.MatchConfig()
package config
