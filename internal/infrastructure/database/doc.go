// Package database provides SQLite connectivity for UC Remote Core.
//
// The engine itself keeps no state across restarts. The only persisted
// data is the CLI's credential cache (API keys exchanged with a hub), so
// this package stays small: open with WAL and a busy timeout, apply the
// embedded migrations, answer health checks.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600 because it holds hub API keys
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
