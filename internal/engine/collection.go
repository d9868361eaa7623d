package engine

import (
	"sync"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// collection is the in-memory app list. The engine is its only writer;
// readers get sorted copies.
type collection struct {
	mu      sync.RWMutex
	records map[string]ir.AppRecord
}

func newCollection() *collection {
	return &collection{records: make(map[string]ir.AppRecord)}
}

// snapshot returns a sorted copy.
func (c *collection) snapshot() []ir.AppRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ir.AppRecord, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	ir.SortRecords(out)
	return out
}

func (c *collection) get(id string) (ir.AppRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	return r, ok
}

func (c *collection) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// replace swaps in a whole new set of records at once.
func (c *collection) replace(records []ir.AppRecord) {
	next := make(map[string]ir.AppRecord, len(records))
	for _, r := range records {
		next[r.ID] = r
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = next
}

// update applies fn to one record and returns the result. It reports false
// when the record is unknown.
func (c *collection) update(id string, fn func(*ir.AppRecord)) (ir.AppRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.records[id]
	if !ok {
		return ir.AppRecord{}, false
	}
	fn(&r)
	c.records[id] = r
	return r, true
}

// markAllPending flags every record as having a query outstanding.
func (c *collection) markAllPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, r := range c.records {
		r.Permissions.Pending = true
		c.records[id] = r
	}
}

// settleAll clears every pending flag, leaving the values as they were.
func (c *collection) settleAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, r := range c.records {
		r.Permissions.Pending = false
		c.records[id] = r
	}
}
