package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// CreateFixture creates (or opens) a store at path with the access table.
// It exists for tests, local scenarios and doctor checks against a scratch
// store; the host's real stores are never created by this package.
func CreateFixture(ctx context.Context, driver Driver, path string) error {
	dsn := "file:" + path + "?mode=rwc"
	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return fmt.Errorf("failed to open fixture: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to fixture: %w", err)
	}
	if err := applyPragmas(ctx, db); err != nil {
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// SeedRecords inserts rows into a fixture store.
func SeedRecords(ctx context.Context, driver Driver, path string, records ...ir.AuthorizationRecord) error {
	db, err := openReadWrite(ctx, driver, path)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, rec := range records {
		if err := execUpsert(ctx, db, rec); err != nil {
			return fmt.Errorf("seed %s/%s: %w", rec.Service, rec.Client, err)
		}
	}
	return nil
}

// applyPragmas sets the journal configuration the host uses for its stores.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}
