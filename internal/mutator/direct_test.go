package mutator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
	"github.com/krunaldodiya/tcc-manager/internal/store"
	"github.com/krunaldodiya/tcc-manager/internal/testutil"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func directFixture(t *testing.T, driver store.Driver) (*Mutator, *store.Writer, *testutil.FakeRunner, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "TCC.db")
	require.NoError(t, store.CreateFixture(context.Background(), driver, path))

	writer := store.NewWriter(driver, path)
	runner := testutil.NewFakeRunner()
	runner.SetProgram("killall", func([]string) (hostexec.Result, error) {
		return hostexec.Result{}, nil
	})
	notifier := NewNotifier(runner, path, nil,
		WithTools("killall", "notifyutil"),
		WithNotifierClock(func() time.Time { return fixedNow }),
	)
	resolver := testutil.NewMapResolver(map[string]string{"/Applications/Foo.app": "com.example.foo"})
	m := New(resolver, NewDirectBackend(writer, func() time.Time { return fixedNow }), notifier, nil)
	return m, writer, runner, path
}

func TestDirectGrantRevokeIdempotent(t *testing.T) {
	for _, driver := range []store.Driver{store.DriverCGo, store.DriverPureGo} {
		t.Run(string(driver), func(t *testing.T) {
			m, writer, _, _ := directFixture(t, driver)
			ctx := context.Background()

			require.NoError(t, m.Grant(ctx, "/Applications/Foo.app", ir.ServiceCamera))
			require.NoError(t, m.Grant(ctx, "/Applications/Foo.app", ir.ServiceCamera))
			n, err := writer.CountRows(ctx, "kTCCServiceCamera", "com.example.foo")
			require.NoError(t, err)
			assert.Equal(t, 1, n, "granting twice leaves one row")

			require.NoError(t, m.Revoke(ctx, "/Applications/Foo.app", ir.ServiceCamera))
			require.NoError(t, m.Revoke(ctx, "/Applications/Foo.app", ir.ServiceCamera))
			n, err = writer.CountRows(ctx, "kTCCServiceCamera", "com.example.foo")
			require.NoError(t, err)
			assert.Zero(t, n, "revoking twice leaves no row")
		})
	}
}

func TestDirectGrantIsReadable(t *testing.T) {
	m, _, _, path := directFixture(t, store.DriverCGo)
	ctx := context.Background()
	require.NoError(t, m.Grant(ctx, "/Applications/Foo.app", ir.ServiceMicrophone))

	value, found, err := store.NewDirectQuerier(store.DriverCGo).AuthValue(ctx, path, "kTCCServiceMicrophone", "com.example.foo")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ir.AuthValueGranted, value)
}

func TestDirectGrantNotifies(t *testing.T) {
	m, _, runner, path := directFixture(t, store.DriverCGo)
	require.NoError(t, os.Chtimes(path, time.Unix(0, 0), time.Unix(0, 0)))

	// notifyutil is unscripted, so every post fails; the grant still succeeds
	require.NoError(t, m.Grant(context.Background(), "/Applications/Foo.app", ir.ServiceCamera))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(fixedNow), "store mtime touched")

	require.Len(t, runner.CallsTo("killall"), 1)
	assert.Equal(t, []string{StoreDaemon}, runner.CallsTo("killall")[0].Args)

	posts := runner.CallsTo("notifyutil")
	require.Len(t, posts, len(DefaultNotificationNames))
	for i, name := range DefaultNotificationNames {
		assert.Equal(t, []string{"-p", name}, posts[i].Args)
	}
}

func TestDirectMissingStore(t *testing.T) {
	writer := store.NewWriter(store.DriverCGo, filepath.Join(t.TempDir(), "missing.db"))
	m := New(testutil.NewMapResolver(map[string]string{"/Applications/Foo.app": "com.example.foo"}),
		NewDirectBackend(writer, nil), nil, nil)

	err := m.Grant(context.Background(), "/Applications/Foo.app", ir.ServiceCamera)
	require.Error(t, err)
	assert.True(t, IsMutationError(err))
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}
