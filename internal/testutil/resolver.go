package testutil

import (
	"context"
	"sync"
)

// MapResolver resolves bundle identifiers from a fixed table. Safe for
// concurrent use.
type MapResolver struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewMapResolver creates a resolver from path → identifier pairs.
func NewMapResolver(ids map[string]string) *MapResolver {
	m := make(map[string]string, len(ids))
	for k, v := range ids {
		m[k] = v
	}
	return &MapResolver{ids: m}
}

// Set adds or replaces one mapping.
func (r *MapResolver) Set(path, identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[path] = identifier
}

// Resolve implements the identifier resolver contract.
func (r *MapResolver) Resolve(_ context.Context, path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[path]
	return id, ok && id != ""
}
