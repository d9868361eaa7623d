package cli

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krunaldodiya/tcc-manager/internal/engine"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

func TestListFromStoreThenCache(t *testing.T) {
	f := newCLIFixture(t)

	resp, err := f.runJSON("list")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	result := decodeData[ListResult](t, resp)
	assert.Equal(t, "store", result.Source)
	require.Equal(t, 2, result.Count)
	assert.Equal(t, barPath, result.Apps[0].Path)
	assert.Equal(t, barID, result.Apps[0].Identifier)
	assert.True(t, result.Apps[0].Permissions.Microphone, "system store grant")
	assert.False(t, result.Apps[0].Permissions.Camera)
	assert.Equal(t, "Foo", result.Apps[1].Name)
	assert.False(t, result.Apps[1].Permissions.Camera)

	_, err = os.Stat(f.cachePath)
	require.NoError(t, err, "first load writes the cache")

	resp, err = f.runJSON("list")
	require.NoError(t, err)
	assert.Equal(t, "cache", decodeData[ListResult](t, resp).Source)
}

func TestListTextGranted(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run("list", "--granted")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Bar")
	assert.Contains(t, out, "granted")
	assert.NotContains(t, out, "Foo")
}

func TestRefreshIgnoresCache(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run("list")
	require.NoError(t, err)

	resp, err := f.runJSON("refresh")
	require.NoError(t, err)
	assert.Equal(t, "store", decodeData[ListResult](t, resp).Source)
}

func TestGrantAndRevoke(t *testing.T) {
	f := newCLIFixture(t)

	resp, err := f.runJSON("grant", "foo", "--service", "camera")
	require.NoError(t, err)
	assert.Equal(t, "op-2", resp.OpID, "op-1 is the initial load")

	out := decodeData[ToggleOutput](t, resp)
	assert.True(t, out.Granted)
	assert.True(t, out.Confirmed)
	assert.False(t, out.Reconciled)
	assert.Equal(t, fooPath, out.App.Path)
	assert.False(t, out.App.Permissions.Pending)
	assert.Equal(t, 1, f.userRows(ir.ServiceCamera, fooID))

	resp, err = f.runJSON("list")
	require.NoError(t, err)
	apps := decodeData[ListResult](t, resp).Apps
	require.Len(t, apps, 2)
	assert.True(t, apps[1].Permissions.Camera, "cache reflects the grant")

	resp, err = f.runJSON("revoke", fooPath, "-s", "camera")
	require.NoError(t, err)
	out = decodeData[ToggleOutput](t, resp)
	assert.False(t, out.Granted)
	assert.True(t, out.Confirmed)
	assert.Equal(t, 0, f.userRows(ir.ServiceCamera, fooID))
}

func TestGrantTrace(t *testing.T) {
	f := newCLIFixture(t)

	resp, err := f.runJSON("grant", "Foo.app", "-s", "microphone", "--trace")
	require.NoError(t, err)

	out := decodeData[ToggleOutput](t, resp)
	var kinds []engine.EventKind
	for _, ev := range out.Events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []engine.EventKind{
		engine.EventLoad, engine.EventDiscover, engine.EventQuery, engine.EventSettle,
		engine.EventMutate, engine.EventVerify, engine.EventSettle,
	}, kinds)
}

func TestGrantText(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run("grant", "Foo", "--service", "Camera")
	require.NoError(t, err)
	assert.Equal(t, "Foo: Camera granted\n", out)
}

func TestGrantOptimistic(t *testing.T) {
	f := newCLIFixture(t)
	f.policy = "optimistic"
	f.writeConfig("")

	resp, err := f.runJSON("grant", "Foo", "-s", "camera")
	require.NoError(t, err)
	out := decodeData[ToggleOutput](t, resp)
	assert.True(t, out.Granted)
	assert.False(t, out.Confirmed, "optimistic toggles settle without confirmation")
	assert.Equal(t, 1, f.userRows(ir.ServiceCamera, fooID))
}

func TestGrantUnknownApp(t *testing.T) {
	f := newCLIFixture(t)

	resp, err := f.runJSON("grant", "Zoom", "-s", "camera")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "UNKNOWN_APP", resp.Error.Code)
}

func TestGrantRequiresService(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run("grant", "Foo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service")

	_, err = f.run("grant", "Foo", "-s", "location")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service")
}

func TestGrantMutationFailure(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run("list")
	require.NoError(t, err)

	// the user store disappears after the list was cached
	require.NoError(t, os.Remove(f.userDB))

	resp, err := f.runJSON("grant", "Foo", "-s", "camera")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "STORE_UNAVAILABLE", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "could not grant Camera access for Foo")
}

func TestListWarnsUnavailableStore(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, os.Remove(f.systemDB))

	resp, err := f.runJSON("list")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"system store unavailable at " + f.systemDB + "; its grants read as denied"}, resp.Warnings)

	result := decodeData[ListResult](t, resp)
	require.Len(t, result.Apps, 2)
	for _, app := range result.Apps {
		assert.False(t, app.Permissions.Microphone, app.Path)
	}

	_, err = f.run("list")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(f.stderr, "Warning: system store unavailable"), f.stderr)
}

func TestListHealthyStoresHaveNoWarnings(t *testing.T) {
	f := newCLIFixture(t)

	resp, err := f.runJSON("list")
	require.NoError(t, err)
	assert.Empty(t, resp.Warnings)
	assert.Empty(t, f.stderr)
}

func TestGrantWarnsUnavailableStore(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, os.Remove(f.systemDB))

	resp, err := f.runJSON("grant", "Foo", "-s", "camera")
	require.NoError(t, err)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "system store unavailable")
}

func TestCacheCommands(t *testing.T) {
	f := newCLIFixture(t)

	resp, err := f.runJSON("cache", "show")
	require.NoError(t, err)
	show := decodeData[CacheShowResult](t, resp)
	assert.False(t, show.Valid)
	assert.Empty(t, show.Apps)

	_, err = f.run("list")
	require.NoError(t, err)

	resp, err = f.runJSON("cache", "show")
	require.NoError(t, err)
	show = decodeData[CacheShowResult](t, resp)
	assert.True(t, show.Valid)
	assert.Len(t, show.Apps, 2)
	assert.Equal(t, f.cachePath, show.Path)

	out, err := f.run("cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared")
	_, err = os.Stat(f.cachePath)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = f.run("cache", "clear")
	require.NoError(t, err, "clearing a missing cache succeeds")
}

func TestCacheSchema(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run("cache", "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Equal(t, "tcc-manager cache document", schema["title"])
}

func TestDoctorHealthy(t *testing.T) {
	f := newCLIFixture(t)

	resp, err := f.runJSON("doctor")
	require.NoError(t, err)

	report := decodeData[DoctorReport](t, resp)
	assert.True(t, report.Healthy)
	assert.Equal(t, f.configPath, report.ConfigFile)
	require.Len(t, report.Stores, 2)
	assert.True(t, report.Stores[0].Available)
	assert.Equal(t, "direct", report.Mutation)
	assert.Empty(t, report.Helper)
}

func TestDoctorReportsProblems(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, os.Remove(f.systemDB))

	resp, err := f.runJSON("doctor")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	report := decodeData[DoctorReport](t, resp)
	assert.False(t, report.Healthy)
	assert.True(t, report.Stores[0].Available)
	assert.False(t, report.Stores[1].Available)
}

func TestConfigShowAndCheck(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "strategy: direct")
	assert.Contains(t, out, "verify_delay: 0s")

	out, err = f.run("config", "check", f.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestFindApp(t *testing.T) {
	records := []ir.AppRecord{
		ir.NewAppRecord("/Applications/Zoom.app"),
		ir.NewAppRecord("/Users/me/Applications/Zoom.app"),
		ir.NewAppRecord("/Applications/Arc.app"),
	}

	got, err := findApp(records, "arc")
	require.NoError(t, err)
	assert.Equal(t, "/Applications/Arc.app", got.Path)

	got, err = findApp(records, "/Users/me/Applications/Zoom.app/")
	require.NoError(t, err)
	assert.Equal(t, "/Users/me/Applications/Zoom.app", got.Path)

	_, err = findApp(records, "Zoom")
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeUnknownApp, engine.CodeOf(err))
	assert.Contains(t, err.Error(), "matches 2 applications")

	_, err = findApp(records, "/Applications/Nope.app")
	assert.Equal(t, engine.ErrCodeUnknownApp, engine.CodeOf(err))
}
