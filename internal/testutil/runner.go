package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
)

// Call records one invocation seen by a FakeRunner.
type Call struct {
	Name string
	Args []string
}

// CommandLine returns the call as a single space-joined string.
func (c Call) CommandLine() string {
	return commandLine(c.Name, c.Args)
}

// HandlerFunc produces the outcome of a scripted program.
type HandlerFunc func(args []string) (hostexec.Result, error)

// FakeRunner is a scripted hostexec.Runner.
//
// Responses are matched first by exact command line, then by program name.
// Unscripted commands fail as if the program does not exist.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeRunner struct {
	mu       sync.Mutex
	exact    map[string]HandlerFunc
	programs map[string]HandlerFunc
	calls    []Call
}

// NewFakeRunner creates a runner with no scripted commands.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		exact:    make(map[string]HandlerFunc),
		programs: make(map[string]HandlerFunc),
	}
}

// SetOutput scripts an exact command line to succeed with stdout.
func (f *FakeRunner) SetOutput(stdout string, name string, args ...string) {
	f.SetExact(func([]string) (hostexec.Result, error) {
		return hostexec.Result{Stdout: stdout}, nil
	}, name, args...)
}

// SetFailure scripts an exact command line to exit with code and stderr.
func (f *FakeRunner) SetFailure(code int, stderr string, name string, args ...string) {
	f.SetExact(func([]string) (hostexec.Result, error) {
		return hostexec.Result{Stderr: stderr, ExitCode: code},
			&hostexec.ExitError{Name: name, Code: code, Stderr: stderr}
	}, name, args...)
}

// SetExact scripts an exact command line.
func (f *FakeRunner) SetExact(fn HandlerFunc, name string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exact[commandLine(name, args)] = fn
}

// SetProgram scripts every invocation of a program not matched exactly.
func (f *FakeRunner) SetProgram(name string, fn HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.programs[name] = fn
}

// Run implements hostexec.Runner.
func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) (hostexec.Result, error) {
	f.mu.Lock()
	argsCopy := append([]string(nil), args...)
	f.calls = append(f.calls, Call{Name: name, Args: argsCopy})
	fn, ok := f.exact[commandLine(name, args)]
	if !ok {
		fn, ok = f.programs[name]
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return hostexec.Result{ExitCode: -1}, err
	}
	if !ok {
		return hostexec.Result{ExitCode: -1}, fmt.Errorf("run %s: executable file not found", name)
	}
	return fn(argsCopy)
}

// Calls returns a copy of every recorded call in order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns recorded calls to one program.
func (f *FakeRunner) CallsTo(name string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls; scripted responses stay.
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func commandLine(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
