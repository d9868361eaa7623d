package store

import (
	"context"
	"errors"
)

// StoreStatus is the startup accessibility of one store.
type StoreStatus struct {
	Scope     Scope  `json:"scope"`
	Path      string `json:"path"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Preflight probes every configured store once. It reports rather than
// fails: an unavailable store is a precondition warning, and queries
// against it degrade to "not granted".
func Preflight(ctx context.Context, q Querier, paths Paths) []StoreStatus {
	var out []StoreStatus
	for _, loc := range paths.Locations() {
		st := StoreStatus{Scope: loc.Scope, Path: loc.Path, Available: true}
		if err := q.Probe(ctx, loc.Path); err != nil {
			st.Available = false
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// AnyUnavailable reports whether any status is unavailable.
func AnyUnavailable(statuses []StoreStatus) bool {
	for _, st := range statuses {
		if !st.Available {
			return true
		}
	}
	return false
}

// IsUnavailable reports whether err stems from an unavailable store.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
