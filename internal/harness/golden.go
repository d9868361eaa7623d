package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/krunaldodiya/tcc-manager/internal/engine"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// TraceSnapshot captures a scenario's trace and final collection.
// It is serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []engine.Event
	Apps         map[string]ir.AppRecord
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonicalIndent, which
// only handles primitives, slices and maps.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":   ev.Seq,
			"op_id": ev.OpID,
			"kind":  string(ev.Kind),
		}
		if ev.Path != "" {
			m["path"] = ev.Path
		}
		if ev.Service != "" {
			m["service"] = ev.Service
		}
		if ev.Attempt != 0 {
			m["attempt"] = ev.Attempt
		}
		if ev.Count != 0 {
			m["count"] = ev.Count
		}
		if ev.Granted != nil {
			m["granted"] = *ev.Granted
		}
		if ev.Detail != "" {
			m["detail"] = ev.Detail
		}
		trace[i] = m
	}

	apps := make(map[string]any, len(s.Apps))
	for path, r := range s.Apps {
		m := map[string]any{
			"camera":     r.Permissions.Camera,
			"microphone": r.Permissions.Microphone,
			"pending":    r.Permissions.Pending,
		}
		if r.Identifier != "" {
			m["identifier"] = r.Identifier
		}
		apps[path] = m
	}

	return map[string]any{
		"scenario": s.ScenarioName,
		"trace":    trace,
		"apps":     apps,
	}
}

// Marshal returns the snapshot's golden file content.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonicalIndent(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Apps:         result.Apps,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
