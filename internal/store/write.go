package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// Writer mutates one store. It is only ever pointed at the user store.
type Writer struct {
	driver Driver
	path   string
}

// NewWriter creates a Writer for the store at path.
func NewWriter(driver Driver, path string) *Writer {
	if driver == "" {
		driver = DriverCGo
	}
	return &Writer{driver: driver, path: path}
}

// Path returns the store the writer mutates.
func (w *Writer) Path() string {
	return w.path
}

// Upsert writes rec with INSERT OR REPLACE, so repeating a grant leaves
// exactly one row. The WAL is checkpointed before returning.
func (w *Writer) Upsert(ctx context.Context, rec ir.AuthorizationRecord) error {
	db, err := openReadWrite(ctx, w.driver, w.path)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	defer db.Close()

	if err := execUpsert(ctx, db, rec); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return checkpoint(ctx, db)
}

// Delete removes the grant row for (service, client). Deleting a row that
// does not exist succeeds.
func (w *Writer) Delete(ctx context.Context, service, client string) error {
	db, err := openReadWrite(ctx, w.driver, w.path)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, deleteStatement,
		service,
		client,
		ir.ClientTypeBundleID,
		ir.IndirectObjectUnused,
	)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return checkpoint(ctx, db)
}

// CountRows returns how many rows match (service, client). Used to verify
// writes.
func (w *Writer) CountRows(ctx context.Context, service, client string) (int, error) {
	db, err := openReadOnly(ctx, w.driver, w.path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var n int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM access WHERE service = ? AND client = ?`,
		service, client,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

func execUpsert(ctx context.Context, db *sql.DB, rec ir.AuthorizationRecord) error {
	_, err := db.ExecContext(ctx, upsertStatement,
		rec.Service,
		rec.Client,
		rec.ClientType,
		rec.AuthValue,
		rec.AuthReason,
		rec.AuthVersion,
		rec.IndirectObjectIdentifier,
		rec.Flags,
		rec.LastModified,
	)
	return err
}

// checkpoint flushes the write-ahead log into the main database file.
func checkpoint(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(FULL)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}
