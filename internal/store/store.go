package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver selects the database/sql driver used for direct access.
type Driver string

const (
	// DriverCGo is github.com/mattn/go-sqlite3.
	DriverCGo Driver = "sqlite3"
	// DriverPureGo is modernc.org/sqlite.
	DriverPureGo Driver = "sqlite"
)

// Valid reports whether d names a registered driver.
func (d Driver) Valid() bool {
	return d == DriverCGo || d == DriverPureGo
}

// Scope identifies which store a path belongs to.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeSystem Scope = "system"
)

// Location is one authorization database.
type Location struct {
	Scope Scope
	Path  string
}

// Paths holds the two store locations queried in priority order.
type Paths struct {
	User   string
	System string
}

// DefaultPaths returns the standard macOS store locations.
func DefaultPaths() Paths {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "~"
	}
	return Paths{
		User:   filepath.Join(home, "Library", "Application Support", "com.apple.TCC", "TCC.db"),
		System: "/Library/Application Support/com.apple.TCC/TCC.db",
	}
}

// Locations returns the configured stores in query priority order.
func (p Paths) Locations() []Location {
	var locs []Location
	if p.User != "" {
		locs = append(locs, Location{Scope: ScopeUser, Path: p.User})
	}
	if p.System != "" {
		locs = append(locs, Location{Scope: ScopeSystem, Path: p.System})
	}
	return locs
}

var (
	// ErrStoreUnavailable is returned when a store is missing or cannot be
	// opened or read.
	ErrStoreUnavailable = errors.New("authorization store unavailable")

	// ErrQueryFailed is returned when a store opened but a lookup failed.
	ErrQueryFailed = errors.New("authorization query failed")
)

// Lookup and mutation statements against the access table.
const (
	readQuery = `SELECT auth_value FROM access WHERE service = ? AND client = ?`

	upsertStatement = `
		INSERT OR REPLACE INTO access
		(service, client, client_type, auth_value, auth_reason, auth_version, indirect_object_identifier, flags, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	deleteStatement = `
		DELETE FROM access
		WHERE service = ? AND client = ? AND client_type = ? AND indirect_object_identifier = ?
	`

	probeQuery = `SELECT COUNT(*) FROM access`
)

// readOnlyDSN builds a connection string for a fresh, uncached read.
func readOnlyDSN(driver Driver, path string) string {
	if driver == DriverPureGo {
		return "file:" + path + "?mode=ro&_pragma=query_only(1)&_pragma=busy_timeout(2000)"
	}
	return "file:" + path + "?mode=ro&cache=private&_query_only=1&_busy_timeout=2000"
}

// readWriteDSN builds a connection string for a write to an existing store.
func readWriteDSN(driver Driver, path string) string {
	if driver == DriverPureGo {
		return "file:" + path + "?mode=rw&_pragma=busy_timeout(5000)"
	}
	return "file:" + path + "?mode=rw&_busy_timeout=5000"
}

// openReadOnly opens a single-use read-only connection. The file must exist;
// a missing store is ErrStoreUnavailable rather than an empty database.
func openReadOnly(ctx context.Context, driver Driver, path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrStoreUnavailable, err)
	}
	db, err := sql.Open(string(driver), readOnlyDSN(driver, path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrStoreUnavailable, err)
	}
	// One connection, never pooled: each lookup sees the latest commit.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w: %v", path, ErrStoreUnavailable, err)
	}
	return db, nil
}

// openReadWrite opens a single-use read-write connection to an existing store.
func openReadWrite(ctx context.Context, driver Driver, path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrStoreUnavailable, err)
	}
	db, err := sql.Open(string(driver), readWriteDSN(driver, path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w: %v", path, ErrStoreUnavailable, err)
	}
	return db, nil
}
