package mutator

import (
	"errors"
	"fmt"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

var (
	// ErrHelperNotFound is returned when no helper candidate exists.
	ErrHelperNotFound = errors.New("helper not found")

	// ErrHelperNotExecutable is returned when a helper candidate exists but
	// cannot be executed.
	ErrHelperNotExecutable = errors.New("helper not executable")

	// ErrIdentifierNotFound is returned when the bundle identifier cannot be
	// resolved, so there is nothing to write.
	ErrIdentifierNotFound = errors.New("bundle identifier not found")
)

// Action is the requested mutation.
type Action string

const (
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
)

// ActionFor maps a desired grant state to its action.
func ActionFor(grant bool) Action {
	if grant {
		return ActionGrant
	}
	return ActionRevoke
}

// MutationError describes a failed grant or revoke.
type MutationError struct {
	Action  Action
	Service ir.ServiceKind
	Path    string
	Detail  string // captured helper stderr, when any
	Err     error
}

func (e *MutationError) Error() string {
	msg := fmt.Sprintf("failed to %s %s access for %s", e.Action, e.Service.Label(), e.Path)
	if e.Detail != "" {
		return msg + ": " + e.Detail
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// IsMutationError reports whether err is a *MutationError.
func IsMutationError(err error) bool {
	var mErr *MutationError
	return errors.As(err, &mErr)
}
