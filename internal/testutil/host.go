package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// ErrNothingFound mirrors a discovery pass that found no bundles.
var ErrNothingFound = errors.New("no application bundles found")

type grantKey struct {
	identifier string
	service    ir.ServiceKind
}

type delayedWrite struct {
	value     bool
	readsLeft int
}

// Gate holds a mutation in flight until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered is closed once the held mutation has started.
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Release lets the held mutation finish.
func (g *Gate) Release() { g.once.Do(func() { close(g.release) }) }

// FakeHost is an in-memory host: installed bundles, their identifiers and an
// authorization store with configurable write propagation lag. It
// implements the engine's Discoverer, Reader and Mutator contracts.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeHost struct {
	mu          sync.Mutex
	apps        map[string]string
	grants      map[grantKey]bool
	delayed     map[grantKey]*delayedWrite
	lag         int
	mutateErrs  map[string]error
	gates       map[string]*Gate
	discoverErr error
	inspects    int
	mutations   int
}

// NewFakeHost creates an empty host with writes visible immediately.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		apps:       make(map[string]string),
		grants:     make(map[grantKey]bool),
		delayed:    make(map[grantKey]*delayedWrite),
		mutateErrs: make(map[string]error),
		gates:      make(map[string]*Gate),
	}
}

// Install adds a bundle. An empty identifier makes it unresolvable.
func (h *FakeHost) Install(path, identifier string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.apps[path] = identifier
}

// Uninstall removes a bundle from disk.
func (h *FakeHost) Uninstall(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.apps, path)
}

// SetGrant sets the store's current value directly.
func (h *FakeHost) SetGrant(identifier string, service ir.ServiceKind, granted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := grantKey{identifier, service}
	delete(h.delayed, key)
	h.grants[key] = granted
}

// SetLag makes each write visible only after n further reads of it.
// A negative n means writes never become visible.
func (h *FakeHost) SetLag(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lag = n
}

// FailMutations makes every grant or revoke for path fail with err (nil
// clears).
func (h *FakeHost) FailMutations(path string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.mutateErrs, path)
		return
	}
	h.mutateErrs[path] = err
}

// FailDiscovery makes Discover return err (nil clears).
func (h *FakeHost) FailDiscovery(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discoverErr = err
}

// Block holds the next mutations for path until the gate is released.
func (h *FakeHost) Block(path string) *Gate {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := &Gate{entered: make(chan struct{}), release: make(chan struct{})}
	h.gates[path] = g
	return g
}

// Inspects returns how many Inspect calls were made.
func (h *FakeHost) Inspects() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inspects
}

// Mutations returns how many Grant/Revoke calls were made.
func (h *FakeHost) Mutations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mutations
}

// Granted returns the store's value as a fresh read would see it, without
// counting as a read.
func (h *FakeHost) Granted(identifier string, service ir.ServiceKind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.grants[grantKey{identifier, service}]
}

// Discover implements the discoverer contract.
func (h *FakeHost) Discover(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.discoverErr != nil {
		return nil, h.discoverErr
	}
	if len(h.apps) == 0 {
		return nil, ErrNothingFound
	}
	paths := make([]string, 0, len(h.apps))
	for p := range h.apps {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths, nil
}

// Exists reports whether path is installed.
func (h *FakeHost) Exists(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.apps[path]
	return ok
}

// Resolve implements the identifier resolver contract.
func (h *FakeHost) Resolve(_ context.Context, path string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.apps[path]
	return id, id != ""
}

// Inspect implements the reader contract. Each call counts as one read of
// every delayed write it touches.
func (h *FakeHost) Inspect(ctx context.Context, path string, services []ir.ServiceKind) (string, ir.PermissionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inspects++

	var state ir.PermissionState
	if err := ctx.Err(); err != nil {
		return "", state, err
	}
	id := h.apps[path]
	if id == "" {
		return "", state, nil
	}
	for _, svc := range services {
		key := grantKey{id, svc}
		if d, ok := h.delayed[key]; ok {
			if d.readsLeft == 0 {
				h.grants[key] = d.value
				delete(h.delayed, key)
			} else if d.readsLeft > 0 {
				d.readsLeft--
			}
		}
		state = state.With(svc, h.grants[key])
	}
	return id, state, nil
}

// Grant implements the mutator contract.
func (h *FakeHost) Grant(ctx context.Context, path string, service ir.ServiceKind) error {
	return h.write(ctx, path, service, true)
}

// Revoke implements the mutator contract.
func (h *FakeHost) Revoke(ctx context.Context, path string, service ir.ServiceKind) error {
	return h.write(ctx, path, service, false)
}

func (h *FakeHost) write(ctx context.Context, path string, service ir.ServiceKind, value bool) error {
	h.mu.Lock()
	h.mutations++
	gate := h.gates[path]
	delete(h.gates, path)
	h.mu.Unlock()

	if gate != nil {
		close(gate.entered)
		select {
		case <-gate.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.mutateErrs[path]; err != nil {
		return err
	}
	id := h.apps[path]
	if id == "" {
		return errors.New("bundle identifier not found")
	}
	key := grantKey{id, service}
	switch {
	case h.lag == 0:
		delete(h.delayed, key)
		h.grants[key] = value
	default:
		h.delayed[key] = &delayedWrite{value: value, readsLeft: h.lag}
	}
	return nil
}
