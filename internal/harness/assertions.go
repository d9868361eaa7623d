package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/krunaldodiya/tcc-manager/internal/engine"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Trace    []engine.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", ev.Seq, ev.Kind, ev.Path, ev.Service)
		}
	}
	return buf.String()
}

// matchEvent reports whether ev satisfies the assertion's event filter.
func matchEvent(ev engine.Event, a Assertion) bool {
	if a.Kind != "" && string(ev.Kind) != a.Kind {
		return false
	}
	if a.Path != "" && ev.Path != a.Path {
		return false
	}
	if a.Service != "" && ev.Service != a.Service {
		return false
	}
	if a.Granted != nil && (ev.Granted == nil || *ev.Granted != *a.Granted) {
		return false
	}
	if a.Detail != "" && ev.Detail != a.Detail {
		return false
	}
	return true
}

// describeFilter renders the assertion's event filter for messages.
func describeFilter(a Assertion) string {
	parts := []string{a.Kind}
	if a.Path != "" {
		parts = append(parts, "path="+a.Path)
	}
	if a.Service != "" {
		parts = append(parts, "service="+a.Service)
	}
	if a.Granted != nil {
		parts = append(parts, fmt.Sprintf("granted=%t", *a.Granted))
	}
	if a.Detail != "" {
		parts = append(parts, "detail="+a.Detail)
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks the trace has at least one matching event.
func assertTraceContains(trace []engine.Event, assertion Assertion) error {
	for _, ev := range trace {
		if matchEvent(ev, assertion) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: "event " + describeFilter(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks the kinds occur in order. Other events may
// appear in between.
func assertTraceOrder(trace []engine.Event, assertion Assertion) error {
	pos := 0
	for i, kind := range assertion.Kinds {
		found := false
		for pos < len(trace) {
			ev := trace[pos]
			pos++
			if string(ev.Kind) == kind {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("kinds in order: %v", assertion.Kinds),
				Actual:   fmt.Sprintf("no %s after %v", kind, assertion.Kinds[:i]),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the number of matching events.
func assertTraceCount(trace []engine.Event, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if matchEvent(ev, assertion) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d × %s", assertion.Count, describeFilter(assertion)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks one record in the engine collection or the
// persisted document.
func assertFinalState(result *Result, assertion Assertion) error {
	table := result.Apps
	if assertion.Table == TableCache {
		table = result.Cached
	}

	rec, ok := table[assertion.Path]
	if assertion.Absent {
		if ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("no %s record for %s", assertion.Table, assertion.Path),
				Actual:   "record present",
			}
		}
		return nil
	}
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s record for %s", assertion.Table, assertion.Path),
			Actual:   "no record",
		}
	}

	actual := recordFieldsOf(rec)
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, field := range keys {
		expected := assertion.Expect[field]
		if !valuesEqual(actual[field], expected) {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %v, got %v", field, expected, actual[field]))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s record for %s matching %v", assertion.Table, assertion.Path, assertion.Expect),
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

func recordFieldsOf(r ir.AppRecord) map[string]any {
	return map[string]any{
		"camera":     r.Permissions.Camera,
		"microphone": r.Permissions.Microphone,
		"pending":    r.Permissions.Pending,
		"identifier": r.Identifier,
		"name":       r.Name,
	}
}

// valuesEqual compares two values for equality.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
