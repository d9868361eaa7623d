package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
)

// DefaultSQLiteTool is the command-line client used by ToolQuerier.
const DefaultSQLiteTool = "/usr/bin/sqlite3"

// Strategy selects how the read path reaches a store.
type Strategy string

const (
	StrategyTool   Strategy = "tool"
	StrategyDirect Strategy = "direct"
)

// Querier looks up one (service, client) pair in one store.
//
// AuthValue returns found=false when the store has no matching row. A store
// that is missing or cannot be opened returns ErrStoreUnavailable; a store
// that opened but failed the lookup returns ErrQueryFailed.
type Querier interface {
	AuthValue(ctx context.Context, dbPath, service, client string) (value int, found bool, err error)
	Probe(ctx context.Context, dbPath string) error
}

// DirectQuerier reads the store through database/sql, one connection per
// lookup.
type DirectQuerier struct {
	driver Driver
}

// NewDirectQuerier creates a DirectQuerier for driver (DriverCGo when empty).
func NewDirectQuerier(driver Driver) *DirectQuerier {
	if driver == "" {
		driver = DriverCGo
	}
	return &DirectQuerier{driver: driver}
}

// AuthValue implements Querier.
func (q *DirectQuerier) AuthValue(ctx context.Context, dbPath, service, client string) (int, bool, error) {
	db, err := openReadOnly(ctx, q.driver, dbPath)
	if err != nil {
		return 0, false, err
	}
	defer db.Close()

	var value int
	err = db.QueryRowContext(ctx, readQuery, service, client).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w: %v", dbPath, ErrQueryFailed, err)
	}
	return value, true, nil
}

// Probe implements Querier by counting rows of the access table.
func (q *DirectQuerier) Probe(ctx context.Context, dbPath string) error {
	db, err := openReadOnly(ctx, q.driver, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx, probeQuery).Scan(&n); err != nil {
		return fmt.Errorf("%s: %w: %v", dbPath, ErrStoreUnavailable, err)
	}
	return nil
}

// ToolQuerier reads the store by running the sqlite3 client once per lookup.
type ToolQuerier struct {
	runner hostexec.Runner
	tool   string
}

// NewToolQuerier creates a ToolQuerier using tool (DefaultSQLiteTool when
// empty).
func NewToolQuerier(runner hostexec.Runner, tool string) *ToolQuerier {
	if tool == "" {
		tool = DefaultSQLiteTool
	}
	return &ToolQuerier{runner: runner, tool: tool}
}

// AuthValue implements Querier.
func (q *ToolQuerier) AuthValue(ctx context.Context, dbPath, service, client string) (int, bool, error) {
	stmt := fmt.Sprintf("SELECT auth_value FROM access WHERE service = %s AND client = %s LIMIT 1;",
		quoteLiteral(service), quoteLiteral(client))

	res, err := q.runner.Run(ctx, q.tool, "-readonly", dbPath, stmt)
	if err != nil {
		return 0, false, classifyToolError(dbPath, err)
	}

	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return 0, false, nil
	}
	first, _, _ := strings.Cut(out, "\n")
	value, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w: unexpected output %q", dbPath, ErrQueryFailed, first)
	}
	return value, true, nil
}

// Probe implements Querier.
func (q *ToolQuerier) Probe(ctx context.Context, dbPath string) error {
	if _, err := q.runner.Run(ctx, q.tool, "-readonly", dbPath, "SELECT COUNT(*) FROM access;"); err != nil {
		var exitErr *hostexec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s: %w: %s", dbPath, ErrStoreUnavailable, exitErr.Stderr)
		}
		return fmt.Errorf("%s: %w: %v", dbPath, ErrStoreUnavailable, err)
	}
	return nil
}

// classifyToolError maps sqlite3 failures onto the store sentinels. The
// client reports unopenable files and authorization denials on stderr.
func classifyToolError(dbPath string, err error) error {
	var exitErr *hostexec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.ToLower(exitErr.Stderr)
		if strings.Contains(msg, "unable to open") ||
			strings.Contains(msg, "authorization denied") ||
			strings.Contains(msg, "no such table") {
			return fmt.Errorf("%s: %w: %s", dbPath, ErrStoreUnavailable, strings.TrimSpace(exitErr.Stderr))
		}
		return fmt.Errorf("%s: %w: %s", dbPath, ErrQueryFailed, strings.TrimSpace(exitErr.Stderr))
	}
	if errors.Is(err, hostexec.ErrTimeout) {
		return fmt.Errorf("%s: %w: %v", dbPath, ErrQueryFailed, err)
	}
	return fmt.Errorf("%s: %w: %v", dbPath, ErrStoreUnavailable, err)
}

// quoteLiteral renders s as an SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
