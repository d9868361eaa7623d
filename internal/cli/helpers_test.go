package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/krunaldodiya/tcc-manager/internal/engine"
	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
	"github.com/krunaldodiya/tcc-manager/internal/store"
	"github.com/krunaldodiya/tcc-manager/internal/testutil"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const (
	fooPath = "/Applications/Foo.app"
	barPath = "/Applications/Bar.app"
	fooID   = "com.example.foo"
	barID   = "com.example.bar"

	systemPredicate = "kMDItemContentType == 'com.apple.application-bundle' && kMDItemCFBundleIdentifier != 'com.apple.*'"
)

// cliFixture runs the CLI against real SQLite stores with scripted
// discovery and identifier lookups.
type cliFixture struct {
	t          *testing.T
	runner     *testutil.FakeRunner
	configPath string
	userDB     string
	systemDB   string
	cachePath  string
	stderr     string // stderr of the last run
	policy     string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	f := &cliFixture{
		t:          t,
		runner:     testutil.NewFakeRunner(),
		configPath: filepath.Join(dir, "config.yaml"),
		userDB:     filepath.Join(dir, "user.db"),
		systemDB:   filepath.Join(dir, "system.db"),
		cachePath:  filepath.Join(dir, "cache", "apps.json"),
		policy:     "verify",
	}
	require.NoError(t, store.CreateFixture(ctx, store.DriverPureGo, f.userDB))
	require.NoError(t, store.CreateFixture(ctx, store.DriverPureGo, f.systemDB))
	require.NoError(t, store.SeedRecords(ctx, store.DriverPureGo, f.systemDB,
		ir.NewGrantRecord(ir.ServiceMicrophone, barID, 1700000000)))

	f.runner.SetOutput("", "mdfind", "-onlyin", "/Users/me/Applications",
		"kMDItemContentType == 'com.apple.application-bundle'")
	f.runner.SetOutput(fooPath+"\n"+barPath+"\n", "mdfind", "-onlyin", "/Applications", systemPredicate)

	ids := map[string]string{
		fooPath + "/Contents/Info.plist": fooID,
		barPath + "/Contents/Info.plist": barID,
	}
	f.runner.SetProgram("PlistBuddy", func(args []string) (hostexec.Result, error) {
		id, ok := ids[args[len(args)-1]]
		if !ok {
			return hostexec.Result{ExitCode: 1}, &hostexec.ExitError{Name: "PlistBuddy", Code: 1}
		}
		return hostexec.Result{Stdout: id + "\n"}, nil
	})

	f.writeConfig("")
	return f
}

// writeConfig writes the base configuration plus extra YAML appended at
// the top level.
func (f *cliFixture) writeConfig(extra string) {
	f.t.Helper()
	content := fmt.Sprintf(`store:
  strategy: direct
  driver: sqlite
  user_path: %s
  system_path: %s
mutation:
  strategy: direct
  notify: false
discovery:
  user_dir: /Users/me/Applications
  system_dir: /Applications
  mdfind_tool: mdfind
  find_tool: find
  plist_tool: PlistBuddy
sync:
  policy: %s
  verify_delay: 0s
cache:
  path: %s
logging:
  level: error
%s`, f.userDB, f.systemDB, f.policy, f.cachePath, extra)
	require.NoError(f.t, os.WriteFile(f.configPath, []byte(content), 0o644))
}

// run executes one command line and returns stdout and the error.
func (f *cliFixture) run(args ...string) (string, error) {
	f.t.Helper()
	opts := &RootOptions{
		Runner:        f.runner,
		EngineOptions: []engine.Option{engine.WithOpIDs(engine.NewSequentialGenerator("op"))},
	}
	cmd := newRootCommand(opts)

	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	stderr := &bytes.Buffer{}
	cmd.SetErr(stderr)
	defer func() { f.stderr = stderr.String() }()
	cmd.SetArgs(append([]string{"--config", f.configPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

// runJSON executes a command with --format json and decodes the response.
func (f *cliFixture) runJSON(args ...string) (CLIResponse, error) {
	f.t.Helper()
	out, err := f.run(append(args, "--format", "json")...)
	var resp CLIResponse
	if strings.TrimSpace(out) != "" {
		require.NoError(f.t, json.Unmarshal([]byte(out), &resp), out)
	}
	return resp, err
}

// decodeData re-decodes a response payload into a typed value.
func decodeData[T any](t *testing.T, resp CLIResponse) T {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (f *cliFixture) userRows(service ir.ServiceKind, client string) int {
	f.t.Helper()
	n, err := store.NewWriter(store.DriverPureGo, f.userDB).CountRows(context.Background(), service.StoreKey(), client)
	require.NoError(f.t, err)
	return n
}
