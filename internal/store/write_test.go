package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
	"github.com/krunaldodiya/tcc-manager/internal/testutil"
)

func TestWriterGrantIsIdempotent(t *testing.T) {
	for _, driver := range drivers {
		t.Run(string(driver), func(t *testing.T) {
			path := createTestStore(t, driver, "user.db")
			w := NewWriter(driver, path)
			ctx := context.Background()

			rec := ir.NewGrantRecord(ir.ServiceCamera, fooID, 1700000000)
			require.NoError(t, w.Upsert(ctx, rec))
			rec.LastModified = 1700000100
			require.NoError(t, w.Upsert(ctx, rec))

			n, err := w.CountRows(ctx, "kTCCServiceCamera", fooID)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			value, found, err := NewDirectQuerier(driver).AuthValue(ctx, path, "kTCCServiceCamera", fooID)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, ir.AuthValueGranted, value)
		})
	}
}

func TestWriterRevokeIsIdempotent(t *testing.T) {
	for _, driver := range drivers {
		t.Run(string(driver), func(t *testing.T) {
			path := createTestStore(t, driver, "user.db")
			w := NewWriter(driver, path)
			ctx := context.Background()

			require.NoError(t, w.Upsert(ctx, ir.NewGrantRecord(ir.ServiceMicrophone, fooID, 1700000000)))
			require.NoError(t, w.Delete(ctx, "kTCCServiceMicrophone", fooID))
			require.NoError(t, w.Delete(ctx, "kTCCServiceMicrophone", fooID), "revoking twice succeeds")

			n, err := w.CountRows(ctx, "kTCCServiceMicrophone", fooID)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestWriterRevokeLeavesOtherRows(t *testing.T) {
	path := createTestStore(t, DriverCGo, "user.db")
	w := NewWriter(DriverCGo, path)
	ctx := context.Background()

	require.NoError(t, w.Upsert(ctx, ir.NewGrantRecord(ir.ServiceCamera, fooID, 1)))
	require.NoError(t, w.Upsert(ctx, ir.NewGrantRecord(ir.ServiceMicrophone, fooID, 1)))
	require.NoError(t, w.Upsert(ctx, ir.NewGrantRecord(ir.ServiceCamera, "com.example.bar", 1)))

	require.NoError(t, w.Delete(ctx, "kTCCServiceCamera", fooID))

	n, err := w.CountRows(ctx, "kTCCServiceMicrophone", fooID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = w.CountRows(ctx, "kTCCServiceCamera", "com.example.bar")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriterVisibleToToolAndDirectReads(t *testing.T) {
	path := createTestStore(t, DriverCGo, "user.db")
	w := NewWriter(DriverCGo, path)
	ctx := context.Background()

	resolver := testutil.NewMapResolver(map[string]string{fooPath: fooID})
	s := NewPermissionStore(resolver, NewDirectQuerier(DriverPureGo), Paths{User: path}, nil)

	before, err := s.Query(ctx, fooPath, bothServices)
	require.NoError(t, err)
	assert.False(t, before.Camera)

	require.NoError(t, w.Upsert(ctx, ir.NewGrantRecord(ir.ServiceCamera, fooID, 1)))

	after, err := s.Query(ctx, fooPath, bothServices)
	require.NoError(t, err)
	assert.True(t, after.Camera, "a fresh connection sees the committed write")
}

func TestWriterMissingStore(t *testing.T) {
	w := NewWriter(DriverCGo, filepath.Join(t.TempDir(), "absent.db"))
	err := w.Upsert(context.Background(), ir.NewGrantRecord(ir.ServiceCamera, fooID, 1))
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}
