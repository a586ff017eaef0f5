// Package database provides SQLite access for the device registry.
//
// This package manages:
//   - Opening the registry database with WAL mode and busy timeout
//   - Single-writer connection pooling (SQLite constraint)
//   - Connection health checks
//
// The registry database is owned by the surrounding application; the
// core reads the device list and connection settings from it once at
// startup. WAL mode keeps those reads safe while the owner writes.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Registry.Path,
//	    WALMode:     cfg.Registry.WALMode,
//	    BusyTimeout: cfg.Registry.BusyTimeout,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
package database
