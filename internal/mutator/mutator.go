package mutator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// Strategy names a Backend in configuration.
type Strategy string

const (
	StrategyHelper Strategy = "helper"
	StrategyDirect Strategy = "direct"
)

// Backend performs one write for a resolved identifier.
type Backend interface {
	Name() string
	Apply(ctx context.Context, action Action, service ir.ServiceKind, identifier string) error
}

// IdentifierResolver maps a bundle path to its bundle identifier.
type IdentifierResolver interface {
	Resolve(ctx context.Context, bundlePath string) (string, bool)
}

// Mutator grants and revokes authorization for application bundles.
type Mutator struct {
	resolver IdentifierResolver
	backend  Backend
	notifier *Notifier
	logger   *slog.Logger
}

// New creates a Mutator. A nil notifier skips notification; a nil logger
// uses slog.Default().
func New(resolver IdentifierResolver, backend Backend, notifier *Notifier, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{
		resolver: resolver,
		backend:  backend,
		notifier: notifier,
		logger:   logger.With("component", "mutator", "strategy", backend.Name()),
	}
}

// Grant writes a grant for service to the bundle at path.
func (m *Mutator) Grant(ctx context.Context, path string, service ir.ServiceKind) error {
	return m.apply(ctx, ActionGrant, path, service)
}

// Revoke removes the grant for service from the bundle at path.
func (m *Mutator) Revoke(ctx context.Context, path string, service ir.ServiceKind) error {
	return m.apply(ctx, ActionRevoke, path, service)
}

func (m *Mutator) apply(ctx context.Context, action Action, path string, service ir.ServiceKind) error {
	identifier, ok := m.resolver.Resolve(ctx, path)
	if !ok {
		return &MutationError{Action: action, Service: service, Path: path, Err: ErrIdentifierNotFound}
	}

	if err := m.backend.Apply(ctx, action, service, identifier); err != nil {
		mErr := &MutationError{Action: action, Service: service, Path: path, Err: err}
		var hf *helperFailure
		if errors.As(err, &hf) {
			mErr.Detail = hf.stderr
		}
		m.logger.Warn("mutation failed",
			"action", action,
			"service", service,
			"client", identifier,
			"error", err,
		)
		return mErr
	}

	m.logger.Info("mutation applied",
		"action", action,
		"service", service,
		"client", identifier,
	)

	if m.notifier != nil {
		// best effort; the write already succeeded
		_ = m.notifier.Notify(ctx)
	}
	return nil
}
