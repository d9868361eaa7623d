package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/krunaldodiya/tcc-manager/internal/cache"
	"github.com/krunaldodiya/tcc-manager/internal/engine"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
	"github.com/krunaldodiya/tcc-manager/internal/testutil"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace is every engine event in seq order.
	Trace []engine.Event `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Apps is the engine's final collection keyed by path.
	Apps map[string]ir.AppRecord `json:"apps"`

	// Cached is the persisted document keyed by path; nil when there is
	// no valid document.
	Cached map[string]ir.AppRecord `json:"cached,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.Event{},
		Errors: []string{},
		Apps:   make(map[string]ir.AppRecord),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Harness holds one scenario's engine and host.
type Harness struct {
	host     *testutil.FakeHost
	cache    *cache.Cache
	engine   *engine.Engine
	recorder *engine.Recorder
	logger   *slog.Logger
}

// Run executes a scenario and returns the result. Each run gets a fresh
// host, engine and cache directory.
//
// Execution flow:
//  1. Install setup apps and grants on a FakeHost
//  2. Build an engine with deterministic clock and op ids
//  3. Execute flow steps, checking expect clauses
//  4. Evaluate assertions against the trace and final state
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "tcc-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	defer os.RemoveAll(dir)

	h := newHarness(scenario, filepath.Join(dir, cache.FileName))
	ctx := context.Background()

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute flow: %w", err)
		}
	}
	h.engine.Wait()

	result.Trace = h.recorder.Events()
	for _, r := range h.engine.Snapshot() {
		result.Apps[r.Path] = r
	}
	if records, ok := h.cache.Load(); ok {
		result.Cached = make(map[string]ir.AppRecord, len(records))
		for _, r := range records {
			result.Cached[r.Path] = r
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, cachePath string) *Harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	host := testutil.NewFakeHost()
	for _, app := range scenario.Setup.Apps {
		host.Install(app.Path, app.Identifier)
		if app.Identifier != "" {
			host.SetGrant(app.Identifier, ir.ServiceCamera, app.Camera)
			host.SetGrant(app.Identifier, ir.ServiceMicrophone, app.Microphone)
		}
	}
	host.SetLag(scenario.Setup.Lag)

	cfg := engine.DefaultConfig()
	if scenario.Config.Policy != "" {
		cfg.Policy, _ = engine.ParsePolicy(scenario.Config.Policy)
	}
	if scenario.Config.VerifyRetries > 0 {
		cfg.VerifyRetries = scenario.Config.VerifyRetries
	}
	if scenario.Config.Concurrency > 0 {
		cfg.Concurrency = scenario.Config.Concurrency
	}

	c := cache.New(cachePath, logger)
	rec := &engine.Recorder{}
	sleeper := &testutil.Sleeper{}

	eng := engine.New(host, host, host, c, cfg,
		engine.WithClock(engine.NewClock()),
		engine.WithOpIDs(engine.NewSequentialGenerator("op")),
		engine.WithObserver(rec),
		engine.WithSleep(sleeper.Sleep),
		engine.WithLogger(logger),
	)

	return &Harness{host: host, cache: c, engine: eng, recorder: rec, logger: logger}
}

// executeStep runs one flow step and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step FlowStep, result *Result) error {
	var (
		count  = -1
		toggle *engine.ToggleResult
		opErr  error
	)

	switch step.Op {
	case OpLoad:
		records, err := h.engine.Load(ctx)
		count, opErr = len(records), err
	case OpRefresh:
		records, err := h.engine.Refresh(ctx)
		count, opErr = len(records), err
	case OpGrant, OpRevoke:
		res, err := h.engine.Toggle(ctx, step.Path, ir.ServiceKind(step.Service), step.Op == OpGrant)
		// optimistic verification must land before the next step
		h.engine.Wait()
		toggle, opErr = &res, err
	case OpInstall:
		h.host.Install(step.Path, step.Identifier)
	case OpUninstall:
		h.host.Uninstall(step.Path)
	case OpSetGrant:
		svc, _ := ir.ParseServiceKind(step.Service)
		h.host.SetGrant(step.Identifier, svc, *step.Granted)
	case OpSetLag:
		h.host.SetLag(*step.Lag)
	case OpFailMutations:
		h.host.FailMutations(step.Path, stepError(step.Error))
	case OpFailDiscovery:
		h.host.FailDiscovery(stepError(step.Error))
	case OpClearCache:
		if err := h.engine.ClearCache(); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
	}

	h.logger.Info("flow step completed", "step", i, "op", step.Op, "error", opErr)
	checkExpect(i, step, count, toggle, opErr, result)
	return nil
}

func stepError(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}

// checkExpect compares a step's outcome with its expect clause.
func checkExpect(i int, step FlowStep, count int, toggle *engine.ToggleResult, opErr error, result *Result) {
	prefix := fmt.Sprintf("flow[%d] %s", i, step.Op)
	exp := step.Expect
	if exp == nil {
		if opErr != nil {
			result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, opErr))
		}
		return
	}

	if got := string(engine.CodeOf(opErr)); got != exp.Error {
		if opErr != nil && got == "" {
			got = opErr.Error()
		}
		result.AddError(fmt.Sprintf("%s: expected error %q, got %q", prefix, exp.Error, got))
	}
	if exp.Count != nil && count != *exp.Count {
		result.AddError(fmt.Sprintf("%s: expected count %d, got %d", prefix, *exp.Count, count))
	}
	if toggle == nil {
		return
	}
	if exp.Confirmed != nil && toggle.Confirmed != *exp.Confirmed {
		result.AddError(fmt.Sprintf("%s: expected confirmed=%t, got %t", prefix, *exp.Confirmed, toggle.Confirmed))
	}
	if exp.Reconciled != nil && toggle.Reconciled != *exp.Reconciled {
		result.AddError(fmt.Sprintf("%s: expected reconciled=%t, got %t", prefix, *exp.Reconciled, toggle.Reconciled))
	}
	if exp.Granted != nil {
		got := toggle.Record.Permissions.Get(ir.ServiceKind(step.Service))
		if got != *exp.Granted {
			result.AddError(fmt.Sprintf("%s: expected granted=%t, got %t", prefix, *exp.Granted, got))
		}
	}
}
