package engine

import (
	"sync"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

type toggleKey struct {
	path    string
	service ir.ServiceKind
}

// inflightGuard admits one toggle per (path, service) at a time.
type inflightGuard struct {
	mu     sync.Mutex
	active map[toggleKey]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{active: make(map[toggleKey]struct{})}
}

// acquire claims key, reporting false when it is already held.
func (g *inflightGuard) acquire(key toggleKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[key]; busy {
		return false
	}
	g.active[key] = struct{}{}
	return true
}

func (g *inflightGuard) release(key toggleKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, key)
}

func (g *inflightGuard) held(key toggleKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[key]
	return busy
}
