package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// IdentifierResolver maps a bundle path to its bundle identifier.
type IdentifierResolver interface {
	Resolve(ctx context.Context, bundlePath string) (string, bool)
}

// PermissionStore answers permission queries for application bundles
// against the user store and then the system store.
type PermissionStore struct {
	resolver IdentifierResolver
	querier  Querier
	paths    Paths
	logger   *slog.Logger
}

// NewPermissionStore creates a PermissionStore. A nil logger uses
// slog.Default().
func NewPermissionStore(resolver IdentifierResolver, querier Querier, paths Paths, logger *slog.Logger) *PermissionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionStore{
		resolver: resolver,
		querier:  querier,
		paths:    paths,
		logger:   logger.With("component", "store"),
	}
}

// Paths returns the configured store locations.
func (s *PermissionStore) Paths() Paths {
	return s.paths
}

// Query returns the permission state of a bundle for services.
//
// The returned state is always usable: an unresolvable identifier or a
// failing store yields "not granted" and is never pending. The error, when
// non-nil, describes the lookups that degraded and is informational.
func (s *PermissionStore) Query(ctx context.Context, bundlePath string, services []ir.ServiceKind) (ir.PermissionState, error) {
	_, state, err := s.Inspect(ctx, bundlePath, services)
	return state, err
}

// Inspect is Query that also returns the resolved identifier ("" when
// absent).
func (s *PermissionStore) Inspect(ctx context.Context, bundlePath string, services []ir.ServiceKind) (string, ir.PermissionState, error) {
	var state ir.PermissionState

	identifier, ok := s.resolver.Resolve(ctx, bundlePath)
	if !ok {
		s.logger.Debug("identifier not found", "path", bundlePath)
		return "", state, nil
	}

	var errs []error
	for _, svc := range services {
		granted, err := s.Granted(ctx, identifier, svc)
		if err != nil {
			errs = append(errs, err)
		}
		state = state.With(svc, granted)
	}
	return identifier, state, errors.Join(errs...)
}

// Granted reports whether identifier holds a grant for service. The first
// store with a matching row decides; no row anywhere is not granted.
// Unavailable stores are skipped.
func (s *PermissionStore) Granted(ctx context.Context, identifier string, service ir.ServiceKind) (bool, error) {
	var errs []error
	for _, loc := range s.paths.Locations() {
		value, found, err := s.querier.AuthValue(ctx, loc.Path, service.StoreKey(), identifier)
		if err != nil {
			s.logger.Debug("store lookup degraded",
				"scope", loc.Scope,
				"service", service,
				"client", identifier,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s %s: %w", loc.Scope, service, err))
			continue
		}
		if found {
			return ir.Granted(value), nil
		}
	}
	return false, errors.Join(errs...)
}
