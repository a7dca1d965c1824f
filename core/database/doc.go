// Package database opens the GORM connection used by the record store.
//
// Connect supports three drivers, selected by Config.Driver:
//
//   - mysql: the production default.
//   - postgres: for deployments that already run PostgreSQL.
//   - sqlite: single-file or in-memory databases, used by tests and local runs.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns read the database catalogue so the schema
// check command can report drift between the running database and the store models.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.MissingColumns(db, "divergences", []string{"status"})
package database
