package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/krunaldodiya/tcc-manager/internal/engine"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// Scenario is one engine conformance test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides engine defaults.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Setup is the host state before the flow starts.
	Setup Setup `yaml:"setup"`

	// Flow is executed in order; each step may check its own outcome.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioConfig holds engine settings. Zero values keep the defaults.
type ScenarioConfig struct {
	Policy        string `yaml:"policy,omitempty"`
	VerifyRetries int    `yaml:"verify_retries,omitempty"`
	Concurrency   int    `yaml:"concurrency,omitempty"`
}

// Setup describes the host before the flow.
type Setup struct {
	Apps []AppFixture `yaml:"apps"`
	Lag  int          `yaml:"lag,omitempty"`
}

// AppFixture is one installed bundle. An empty identifier installs a
// bundle whose identifier cannot be resolved.
type AppFixture struct {
	Path       string `yaml:"path"`
	Identifier string `yaml:"identifier"`
	Camera     bool   `yaml:"camera,omitempty"`
	Microphone bool   `yaml:"microphone,omitempty"`
}

// FlowStep is one operation.
type FlowStep struct {
	Op         string `yaml:"op"`
	Path       string `yaml:"path,omitempty"`
	Identifier string `yaml:"identifier,omitempty"`
	Service    string `yaml:"service,omitempty"`
	Granted    *bool  `yaml:"granted,omitempty"`
	Lag        *int   `yaml:"lag,omitempty"`
	Error      string `yaml:"error,omitempty"`

	// Expect checks the step's outcome. Without it any error fails the
	// scenario.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause checks one step. Unset fields are not checked.
type ExpectClause struct {
	// Error is the expected engine error code ("" for success).
	Error string `yaml:"error,omitempty"`

	// Count is the number of records returned by load or refresh.
	Count *int `yaml:"count,omitempty"`

	// Confirmed, Reconciled and Granted check a toggle result.
	Confirmed  *bool `yaml:"confirmed,omitempty"`
	Reconciled *bool `yaml:"reconciled,omitempty"`
	Granted    *bool `yaml:"granted,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind is the event kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected subsequence (trace_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Path, Service, Granted and Detail narrow event matching; Path also
	// selects the record for final_state.
	Path    string `yaml:"path,omitempty"`
	Service string `yaml:"service,omitempty"`
	Granted *bool  `yaml:"granted,omitempty"`
	Detail  string `yaml:"detail,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Table is "apps" or "cache" (final_state).
	Table string `yaml:"table,omitempty"`

	// Absent asserts the record does not exist (final_state).
	Absent bool `yaml:"absent,omitempty"`

	// Expect holds record fields: camera, microphone, pending, identifier,
	// name (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Flow operation names.
const (
	OpLoad          = "load"
	OpRefresh       = "refresh"
	OpGrant         = "grant"
	OpRevoke        = "revoke"
	OpInstall       = "install"
	OpUninstall     = "uninstall"
	OpSetGrant      = "set_grant"
	OpSetLag        = "set_lag"
	OpFailMutations = "fail_mutations"
	OpFailDiscovery = "fail_discovery"
	OpClearCache    = "clear_cache"
)

// Final state tables.
const (
	TableApps  = "apps"
	TableCache = "cache"
)

var eventKinds = map[string]bool{
	string(engine.EventLoad): true, string(engine.EventDiscover): true, string(engine.EventQuery): true,
	string(engine.EventMutate): true, string(engine.EventVerify): true, string(engine.EventRetry): true,
	string(engine.EventReconcile): true, string(engine.EventSettle): true, string(engine.EventError): true,
}

var recordFields = map[string]bool{
	"camera": true, "microphone": true, "pending": true, "identifier": true, "name": true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Config.Policy != "" {
		if _, err := engine.ParsePolicy(s.Config.Policy); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	for i, app := range s.Setup.Apps {
		if app.Path == "" {
			return fmt.Errorf("setup.apps[%d]: path is required", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *FlowStep) error {
	needService := func() error {
		if _, err := ir.ParseServiceKind(step.Service); err != nil {
			return fmt.Errorf("flow[%d]: %w", index, err)
		}
		return nil
	}

	switch step.Op {
	case OpLoad, OpRefresh, OpClearCache, OpFailDiscovery:
	case OpGrant, OpRevoke:
		if step.Path == "" {
			return fmt.Errorf("flow[%d]: path is required for %s", index, step.Op)
		}
		// an invalid service is allowed here so INVALID_SERVICE can be tested
		if step.Service == "" {
			return fmt.Errorf("flow[%d]: service is required for %s", index, step.Op)
		}
	case OpInstall:
		if step.Path == "" {
			return fmt.Errorf("flow[%d]: path is required for install", index)
		}
	case OpUninstall, OpFailMutations:
		if step.Path == "" {
			return fmt.Errorf("flow[%d]: path is required for %s", index, step.Op)
		}
	case OpSetGrant:
		if step.Identifier == "" || step.Granted == nil {
			return fmt.Errorf("flow[%d]: identifier and granted are required for set_grant", index)
		}
		return needService()
	case OpSetLag:
		if step.Lag == nil {
			return fmt.Errorf("flow[%d]: lag is required for set_lag", index)
		}
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains, AssertTraceCount:
		if !eventKinds[a.Kind] {
			return fmt.Errorf("assertions[%d]: unknown event kind %q for %s", index, a.Kind, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
		for _, k := range a.Kinds {
			if !eventKinds[k] {
				return fmt.Errorf("assertions[%d]: unknown event kind %q", index, k)
			}
		}
	case AssertFinalState:
		if a.Table != TableApps && a.Table != TableCache {
			return fmt.Errorf("assertions[%d]: table must be %q or %q", index, TableApps, TableCache)
		}
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for final_state", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for field := range a.Expect {
			if !recordFields[field] {
				return fmt.Errorf("assertions[%d]: unknown record field %q", index, field)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
