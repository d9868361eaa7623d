// Package hostexec runs short-lived external tools with a hard execution cap.
//
// Every component that talks to the host (metadata index, plist reader,
// sqlite3 tool, privileged helper, notification tools) goes through a
// Runner so tests can substitute a scripted fake and so no spawned process
// can outlive its timeout.
package hostexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout caps a single external process.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when a process exceeds its execution cap.
var ErrTimeout = errors.New("process timed out")

// Result is the captured outcome of one process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExitError reports a process that ran and exited non-zero.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with code %d: %s", e.Name, e.Code, e.Stderr)
	}
	return fmt.Sprintf("%s exited with code %d", e.Name, e.Code)
}

// Runner executes external commands.
type Runner interface {
	// Run executes name with args and returns captured output. A non-zero
	// exit yields an *ExitError alongside the populated Result; a timeout
	// yields an error wrapping ErrTimeout.
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithTimeout sets the per-process execution cap. Non-positive values are
// ignored.
func WithTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger used for per-process debug lines.
func WithLogger(l *slog.Logger) Option {
	return func(r *ExecRunner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewExecRunner creates a runner with DefaultTimeout.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		timeout: DefaultTimeout,
		logger:  slog.Default().With("component", "hostexec"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the configured execution cap.
func (r *ExecRunner) Timeout() time.Duration {
	return r.timeout
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	//nolint:gosec // G204: running host tools is the purpose of this package
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	r.logger.Debug("process finished",
		"name", name,
		"args", strings.Join(args, " "),
		"duration", res.Duration,
		"error", err,
	)

	if err == nil {
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		return res, fmt.Errorf("%s after %s: %w", name, r.timeout, ErrTimeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{
			Name:   name,
			Code:   res.ExitCode,
			Stderr: strings.TrimSpace(res.Stderr),
		}
	}
	res.ExitCode = -1
	return res, fmt.Errorf("run %s: %w", name, err)
}

// IsExitError reports whether err is a non-zero exit from a process that
// did start.
func IsExitError(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}
