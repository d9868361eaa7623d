package mutator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// HelperName is the executable name searched for on PATH and in install
// locations.
const HelperName = "tcc-helper"

// Helper verbs.
const (
	helperGrantVerb  = "add"
	helperRevokeVerb = "reset"
)

// DefaultHelperCandidates returns the ordered probe list: the packaged
// resource directory next to the running binary, common install
// directories, then a bare name resolved through PATH.
func DefaultHelperCandidates() []string {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "..", "Resources", HelperName),
			filepath.Join(dir, HelperName),
		)
	}
	return append(candidates,
		"/usr/local/libexec/"+HelperName,
		"/usr/local/bin/"+HelperName,
		"/opt/homebrew/bin/"+HelperName,
		HelperName,
	)
}

// ResolveHelper returns the first candidate that exists and is executable.
// Candidates without a path separator are looked up on PATH.
//
// When no candidate exists the error wraps ErrHelperNotFound; when at least
// one exists but none is executable it wraps ErrHelperNotExecutable.
func ResolveHelper(candidates []string) (string, error) {
	var notExec []string
	for _, c := range candidates {
		if c == "" {
			continue
		}
		path := c
		if !strings.ContainsRune(c, filepath.Separator) {
			found, err := exec.LookPath(c)
			if err != nil {
				continue
			}
			path = found
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() || unix.Access(path, unix.X_OK) != nil {
			notExec = append(notExec, path)
			continue
		}
		return filepath.Clean(path), nil
	}

	if len(notExec) > 0 {
		return "", fmt.Errorf("%w: %s", ErrHelperNotExecutable, strings.Join(notExec, ", "))
	}
	return "", fmt.Errorf("%w: tried %s", ErrHelperNotFound, strings.Join(candidates, ", "))
}

// HelperBackend writes through the external privileged helper. The helper
// location is resolved once, at construction.
type HelperBackend struct {
	runner     hostexec.Runner
	path       string
	resolveErr error
}

// NewHelperBackend resolves the helper from candidates. Resolution failure
// is not returned here; it is reported by every Apply call so that a
// missing helper fails only mutations.
func NewHelperBackend(runner hostexec.Runner, candidates []string) *HelperBackend {
	path, err := ResolveHelper(candidates)
	return &HelperBackend{runner: runner, path: path, resolveErr: err}
}

// Name implements Backend.
func (b *HelperBackend) Name() string { return "helper" }

// Path returns the resolved helper, or "" with the resolution error.
func (b *HelperBackend) Path() (string, error) {
	return b.path, b.resolveErr
}

// Apply implements Backend. The helper receives the store's long service
// key (kTCCServiceCamera), the same spelling the direct write uses.
func (b *HelperBackend) Apply(ctx context.Context, action Action, service ir.ServiceKind, identifier string) error {
	if b.resolveErr != nil {
		return b.resolveErr
	}

	verb := helperGrantVerb
	if action == ActionRevoke {
		verb = helperRevokeVerb
	}

	_, err := b.runner.Run(ctx, b.path, verb, service.StoreKey(), identifier)
	if err != nil {
		var exitErr *hostexec.ExitError
		if errors.As(err, &exitErr) {
			return &helperFailure{stderr: exitErr.Stderr, err: err}
		}
		return err
	}
	return nil
}

// helperFailure carries the helper's captured stderr up to MutationError.
type helperFailure struct {
	stderr string
	err    error
}

func (f *helperFailure) Error() string { return f.err.Error() }
func (f *helperFailure) Unwrap() error { return f.err }
