package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// createTestStore creates an empty access-table store in a temp dir.
func createTestStore(t *testing.T, driver Driver, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, CreateFixture(context.Background(), driver, path))
	return path
}

// createTestPaths creates a user and a system store.
func createTestPaths(t *testing.T, driver Driver) Paths {
	t.Helper()
	return Paths{
		User:   createTestStore(t, driver, "user.db"),
		System: createTestStore(t, driver, "system.db"),
	}
}

// seedAuth inserts one row with an explicit auth_value.
func seedAuth(t *testing.T, driver Driver, path string, service ir.ServiceKind, client string, authValue int) {
	t.Helper()
	rec := ir.NewGrantRecord(service, client, 1700000000)
	rec.AuthValue = authValue
	require.NoError(t, SeedRecords(context.Background(), driver, path, rec))
}

var bothServices = []ir.ServiceKind{ir.ServiceCamera, ir.ServiceMicrophone}

var drivers = []Driver{DriverCGo, DriverPureGo}
