package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenariosGolden(t *testing.T) {
	paths, err := ScenarioFiles(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunSuite(t *testing.T) {
	result, err := RunSuite(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Equal(t, 6, result.TotalScenarios)
	assert.Equal(t, 6, result.Passed)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Failures)
}

func TestRunSuiteReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a_broken.yaml"), "name: broken\n")
	writeFile(t, filepath.Join(dir, "b_wrong.yaml"), `
name: wrong
description: expects a grant that never happens
setup:
  apps:
    - path: /Applications/Foo.app
      identifier: com.example.foo
flow:
  - op: load
assertions:
  - type: final_state
    table: apps
    path: /Applications/Foo.app
    expect:
      camera: true
`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	result, err := RunSuite(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalScenarios)
	assert.Zero(t, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
	assert.Equal(t, "wrong", result.Failures[1].Scenario)
	assert.Contains(t, result.Failures[1].Error, "scenario assertions failed")
}

func TestRunSuiteMissingDir(t *testing.T) {
	_, err := RunSuite(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestRunUnexpectedError(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unexpected
description: a failing grant without an expect clause fails the run
setup:
  apps:
    - path: /Applications/Foo.app
      identifier: com.example.foo
flow:
  - op: load
  - op: fail_mutations
    path: /Applications/Foo.app
    error: denied
  - op: grant
    path: /Applications/Foo.app
    service: camera
assertions:
  - type: trace_contains
    kind: mutate
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[2] grant: unexpected error")
}

func TestRunExpectMismatch(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: mismatch
description: every expect field is checked
setup:
  apps:
    - path: /Applications/Foo.app
      identifier: com.example.foo
flow:
  - op: load
    expect:
      count: 3
  - op: grant
    path: /Applications/Foo.app
    service: camera
    expect:
      error: TOGGLE_IN_FLIGHT
      confirmed: false
      granted: false
assertions:
  - type: trace_contains
    kind: settle
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected count 3, got 1")
	assert.Contains(t, result.Errors[1], `expected error "TOGGLE_IN_FLIGHT", got ""`)
	assert.Contains(t, result.Errors[2], "expected confirmed=false, got true")
	assert.Contains(t, result.Errors[3], "expected granted=false, got true")
}

func TestRunHostOperations(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: host_ops
description: host-side steps change what the next refresh sees
setup:
  apps:
    - path: /Applications/Foo.app
      identifier: com.example.foo
flow:
  - op: load
  - op: install
    path: /Applications/Baz.app
    identifier: com.example.baz
  - op: set_grant
    identifier: com.example.baz
    service: microphone
    granted: true
  - op: fail_discovery
    error: spotlight down
  - op: refresh
    expect:
      count: 1
  - op: fail_discovery
  - op: refresh
    expect:
      count: 2
  - op: set_lag
    lag: -1
  - op: revoke
    path: /Applications/Baz.app
    service: microphone
    expect:
      reconciled: true
      granted: true
  - op: clear_cache
assertions:
  - type: trace_contains
    kind: discover
    detail: DISCOVERY_UNAVAILABLE
  - type: final_state
    table: apps
    path: /Applications/Baz.app
    expect:
      microphone: true
      identifier: com.example.baz
  - type: final_state
    table: cache
    path: /Applications/Foo.app
    absent: true
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Nil(t, result.Cached)
}
