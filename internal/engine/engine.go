package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// Discoverer enumerates installed application bundles.
type Discoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

// Prober reports whether a bundle is still on disk. When the Discoverer
// implements it, a failed discovery drops known apps that are gone.
type Prober interface {
	Exists(path string) bool
}

// Reader reads a bundle's identifier and permission state. The returned
// state is always usable; a non-nil error only describes degraded lookups.
type Reader interface {
	Inspect(ctx context.Context, path string, services []ir.ServiceKind) (string, ir.PermissionState, error)
}

// Mutator grants and revokes authorization.
type Mutator interface {
	Grant(ctx context.Context, path string, service ir.ServiceKind) error
	Revoke(ctx context.Context, path string, service ir.ServiceKind) error
}

// Cache persists the collection between runs.
type Cache interface {
	Save(records []ir.AppRecord) error
	Load() ([]ir.AppRecord, bool)
	Clear() error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Engine owns the app collection and keeps it coherent with the store.
//
// Thread-safety model:
//   - Snapshot(): safe from any goroutine; returns a copy
//   - Load(), Refresh(): safe from any goroutine; refreshes are serialized
//   - Toggle(): safe from any goroutine; one toggle per (path, service)
//
// INVARIANTS:
//   - the collection is replaced as a whole after a batch, never per app
//   - a cached document never contains pending records
//   - saves are serialized and each writes the collection as of its turn
//   - no record stays pending once the operation that flagged it returns
//   - the in-flight guard is released on every Toggle exit path
type Engine struct {
	discoverer Discoverer
	reader     Reader
	mutator    Mutator
	cache      Cache
	cfg        Config

	clock    *Clock
	opIDs    OpIDGenerator
	observer Observer
	sleep    SleepFunc
	logger   *slog.Logger

	apps      *collection
	guard     *inflightGuard
	refreshMu sync.Mutex
	persistMu sync.Mutex
	verifying sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the trace clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithOpIDs sets the operation id generator.
func WithOpIDs(g OpIDGenerator) Option {
	return func(e *Engine) { e.opIDs = g }
}

// WithObserver sets the trace observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithSleep replaces the wait between a mutation and its verification.
func WithSleep(fn SleepFunc) Option {
	return func(e *Engine) { e.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine. cache may be nil, which disables persistence.
func New(d Discoverer, r Reader, m Mutator, c Cache, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		discoverer: d,
		reader:     r,
		mutator:    m,
		cache:      c,
		cfg:        cfg.withDefaults(),
		clock:      NewClock(),
		opIDs:      UUIDv7Generator{},
		sleep:      sleepContext,
		logger:     slog.Default(),
		apps:       newCollection(),
		guard:      newInflightGuard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Snapshot returns the current collection sorted by ID.
func (e *Engine) Snapshot() []ir.AppRecord {
	return e.apps.snapshot()
}

// Lookup returns one record by ID.
func (e *Engine) Lookup(id string) (ir.AppRecord, bool) {
	return e.apps.get(id)
}

// Wait blocks until every background verification has finished.
func (e *Engine) Wait() {
	e.verifying.Wait()
}

// Load adopts the cached collection when there is one, without querying
// the store; otherwise it runs a full Refresh.
func (e *Engine) Load(ctx context.Context) ([]ir.AppRecord, error) {
	opID := e.opIDs.Generate()

	if e.cache != nil {
		if records, ok := e.cache.Load(); ok {
			e.apps.replace(records)
			e.emit(Event{OpID: opID, Kind: EventLoad, Count: len(records), Detail: "cache"})
			e.logger.Debug("loaded from cache", "count", len(records))
			return e.apps.snapshot(), nil
		}
	}

	e.emit(Event{OpID: opID, Kind: EventLoad, Detail: "miss"})
	return e.refresh(ctx, opID)
}

// Refresh rediscovers every bundle, queries all of them and swaps the new
// collection in at once. Entries no longer on disk are dropped. The
// result is persisted.
func (e *Engine) Refresh(ctx context.Context) ([]ir.AppRecord, error) {
	return e.refresh(ctx, e.opIDs.Generate())
}

func (e *Engine) refresh(ctx context.Context, opID string) ([]ir.AppRecord, error) {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	paths, err := e.discoverer.Discover(ctx)
	if err != nil {
		// Keep the known set rather than emptying the list, minus bundles
		// that are provably gone.
		e.logger.Warn("discovery unavailable", "error", err)
		e.emit(Event{OpID: opID, Kind: EventDiscover, Detail: string(ErrCodeDiscoveryUnavailable)})
		prober, _ := e.discoverer.(Prober)
		for _, r := range e.apps.snapshot() {
			if prober != nil && !prober.Exists(r.Path) {
				e.logger.Debug("dropping missing bundle", "path", r.Path)
				continue
			}
			paths = append(paths, r.Path)
		}
	} else {
		e.emit(Event{OpID: opID, Kind: EventDiscover, Count: len(paths)})
	}

	e.apps.markAllPending()
	records, err := e.queryAll(ctx, paths)
	if err != nil {
		e.apps.settleAll()
		return nil, err
	}
	e.apps.replace(records)
	e.emit(Event{OpID: opID, Kind: EventQuery, Count: len(records)})

	if err := e.persist(); err != nil {
		e.emit(Event{OpID: opID, Kind: EventError, Detail: string(ErrCodeCacheWriteFailed)})
		return e.apps.snapshot(), err
	}
	e.emit(Event{OpID: opID, Kind: EventSettle, Count: len(records)})
	return e.apps.snapshot(), nil
}

// queryAll inspects every path with bounded concurrency. Each worker owns
// one slot of the result slice; nothing shared is written until all are
// done.
func (e *Engine) queryAll(ctx context.Context, paths []string) ([]ir.AppRecord, error) {
	records := make([]ir.AppRecord, len(paths))

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			records[i] = e.inspect(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ir.SortRecords(records)
	return records, nil
}

// inspect builds a settled record for one path.
func (e *Engine) inspect(ctx context.Context, path string) ir.AppRecord {
	rec := ir.NewAppRecord(path)
	identifier, state, err := e.reader.Inspect(ctx, path, e.cfg.Services)
	if err != nil {
		e.logger.Debug("query degraded", "path", path, "error", err)
	}
	rec.Identifier = identifier
	rec.Permissions = state.Settled()
	return rec
}

// requery refreshes one record in place from the store.
func (e *Engine) requery(ctx context.Context, path string) (ir.AppRecord, bool) {
	fresh := e.inspect(ctx, path)
	return e.apps.update(path, func(r *ir.AppRecord) {
		r.Identifier = fresh.Identifier
		r.Permissions = fresh.Permissions
	})
}

// persist writes the collection to the cache. The snapshot is taken under
// persistMu so a slower save can never overwrite a newer one.
func (e *Engine) persist() error {
	if e.cache == nil {
		return nil
	}
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	if err := e.cache.Save(e.apps.snapshot()); err != nil {
		e.logger.Error("cache write failed", "error", err)
		return newCacheError(err)
	}
	return nil
}

// ClearCache removes the persisted collection.
func (e *Engine) ClearCache() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Clear()
}

func (e *Engine) emit(ev Event) {
	ev.Seq = e.clock.Next()
	if e.observer != nil {
		e.observer.Observe(ev)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// errCanceled reports whether err is a context cancellation.
func errCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
