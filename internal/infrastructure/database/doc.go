// Package database provides SQLite connectivity for AquaSense Core.
//
// This package manages:
//   - Database connection with WAL mode so CRUD reads don't block the loop
//   - Embedded schema migrations (users, aquariums, devices, sensors, logs)
//   - Connection lifecycle and health checks
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive: new columns must be nullable or have defaults,
// and each .up.sql has a matching .down.sql.
package database
