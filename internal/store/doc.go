// Package store reads and writes the host's privacy-permission store.
//
// The store is two SQLite databases owned by the host: a per-user store
// and a machine-wide store, each with an access table. This package never
// holds a connection across calls; every read and write opens, uses and
// closes its own connection.
//
// # Read Path
//
// PermissionStore resolves a bundle's identifier and, per service, asks the
// user store and then the system store for the row's auth_value, stopping
// at the first store that has a row. auth_value 2 is granted; any other
// value or no row is not granted. Querier strategies:
//
//   - ToolQuerier: runs the sqlite3 command-line tool read-only per lookup,
//     guaranteeing a fresh read outside any connection pool.
//   - DirectQuerier: opens a read-only connection per lookup with a private
//     page cache and no idle connections, so committed writes from an
//     external writer (including WAL frames) are visible immediately.
//
// ScriptReader is an alternative reader that delegates both lookups to an
// external script with a fixed two-field JSON output.
//
// A missing or unreadable store degrades to "not granted"; it never fails
// a batch.
//
// # Write Path
//
// Writer mutates the user store only: grant is INSERT OR REPLACE of a row
// with auth_value 2, revoke deletes the matching row. Every write is
// followed by a full WAL checkpoint before returning.
//
// # Database Configuration
//
//   - Drivers: "sqlite3" (github.com/mattn/go-sqlite3) or "sqlite"
//     (modernc.org/sqlite)
//   - Reads: mode=ro, query_only, private cache, busy_timeout=2000
//   - Writes: mode=rw, busy_timeout=5000, wal_checkpoint(FULL) after commit
package store
