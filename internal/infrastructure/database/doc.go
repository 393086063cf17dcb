// Package database opens the local SQLite file used by the connection
// journal and applies versioned schema migrations to it.
//
// The connection runs with a single writer, WAL mode when enabled and a
// busy timeout so concurrent journal writes queue rather than fail. The
// file is created with 0600 permissions.
//
// Migrations are plain SQL files named
// YYYYMMDD_HHMMSS_description.up.sql (with an optional .down.sql). Each
// consumer embeds its own files and passes them to Migrate:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, journal.Migrations()); err != nil {
//	    return err
//	}
package database
