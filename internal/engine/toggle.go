package engine

import (
	"context"
	"fmt"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// ToggleResult is the outcome of a successful Toggle.
type ToggleResult struct {
	OpID string

	// Record is the app as held in memory after the toggle settled.
	Record ir.AppRecord

	// Confirmed is true when a re-read of the store showed the requested
	// value before the record settled.
	Confirmed bool

	// Reconciled is true when verification was exhausted and the record
	// settled through a full refresh instead.
	Reconciled bool
}

// Toggle grants (grant=true) or revokes access to service for the app at
// path and settles the in-memory record according to the configured
// policy.
//
// A second Toggle for the same (path, service) while one is running is
// rejected with ErrCodeToggleInFlight. Toggles for different keys run in
// parallel.
//
// On mutation failure the record is re-read once from the store and a
// SyncError naming the action and service is returned.
func (e *Engine) Toggle(ctx context.Context, path string, service ir.ServiceKind, grant bool) (ToggleResult, error) {
	if !service.Valid() {
		return ToggleResult{}, &SyncError{
			Code:    ErrCodeInvalidService,
			Message: fmt.Sprintf("unknown service %q", string(service)),
			Path:    path,
		}
	}
	if _, ok := e.apps.get(path); !ok {
		return ToggleResult{}, &SyncError{
			Code:    ErrCodeUnknownApp,
			Message: fmt.Sprintf("no application at %s", path),
			Path:    path,
			Service: service,
		}
	}

	key := toggleKey{path: path, service: service}
	if !e.guard.acquire(key) {
		return ToggleResult{}, newInFlightError(path, service)
	}
	defer e.guard.release(key)

	opID := e.opIDs.Generate()
	res := ToggleResult{OpID: opID}
	svc := string(service)

	e.apps.update(path, func(r *ir.AppRecord) { r.Permissions.Pending = true })
	e.emit(Event{OpID: opID, Kind: EventMutate, Path: path, Service: svc, Granted: boolPtr(grant)})

	var err error
	if grant {
		err = e.mutator.Grant(ctx, path, service)
	} else {
		err = e.mutator.Revoke(ctx, path, service)
	}
	if err != nil {
		syncErr := newMutationError(path, service, grant, err)
		e.emit(Event{OpID: opID, Kind: EventError, Path: path, Service: svc, Detail: string(syncErr.Code)})
		e.logger.Warn("toggle failed", "path", path, "service", service, "grant", grant, "error", err)

		// Reflect the store's actual state; memory is not changed to the
		// requested value.
		if rec, ok := e.requery(ctx, path); ok {
			res.Record = rec
		}
		return res, syncErr
	}

	if e.cfg.Policy == PolicyOptimistic {
		return e.settleOptimistic(ctx, res, path, service, grant)
	}
	return e.settleVerified(ctx, res, path, service, grant)
}

// settleOptimistic adopts the requested value now and schedules one
// background re-read that only logs.
func (e *Engine) settleOptimistic(ctx context.Context, res ToggleResult, path string, service ir.ServiceKind, grant bool) (ToggleResult, error) {
	rec, _ := e.apps.update(path, func(r *ir.AppRecord) {
		r.Permissions = r.Permissions.With(service, grant).Settled()
	})
	res.Record = rec
	e.emit(Event{OpID: res.OpID, Kind: EventSettle, Path: path, Service: string(service), Granted: boolPtr(grant)})

	e.verifying.Add(1)
	go func() {
		defer e.verifying.Done()
		bg := context.WithoutCancel(ctx)
		if err := e.sleep(bg, e.cfg.VerifyDelay); err != nil {
			return
		}
		_, state, _ := e.reader.Inspect(bg, path, []ir.ServiceKind{service})
		observed := state.Get(service)
		e.emit(Event{OpID: res.OpID, Kind: EventVerify, Path: path, Service: string(service), Attempt: 1, Granted: boolPtr(observed)})
		if observed != grant {
			e.logger.Warn("store does not reflect toggle yet",
				"path", path,
				"service", service,
				"requested", grant,
				"observed", observed,
			)
		}
	}()

	if err := e.persist(); err != nil {
		return res, err
	}
	return res, nil
}

// settleVerified waits for the store to confirm the requested value. On
// exhaustion it reconciles through a full refresh and adopts whatever the
// store reports.
func (e *Engine) settleVerified(ctx context.Context, res ToggleResult, path string, service ir.ServiceKind, grant bool) (ToggleResult, error) {
	svc := string(service)

	for attempt := 1; attempt <= e.cfg.VerifyRetries; attempt++ {
		if err := e.sleep(ctx, e.cfg.VerifyDelay); err != nil {
			e.apps.update(path, func(r *ir.AppRecord) { r.Permissions.Pending = false })
			return res, err
		}

		identifier, state, qerr := e.reader.Inspect(ctx, path, e.cfg.Services)
		observed := state.Get(service)
		e.emit(Event{OpID: res.OpID, Kind: EventVerify, Path: path, Service: svc, Attempt: attempt, Granted: boolPtr(observed)})

		if qerr == nil && observed == grant {
			rec, _ := e.apps.update(path, func(r *ir.AppRecord) {
				r.Identifier = identifier
				r.Permissions = state.Settled()
			})
			res.Record = rec
			res.Confirmed = true
			e.emit(Event{OpID: res.OpID, Kind: EventSettle, Path: path, Service: svc, Granted: boolPtr(observed)})
			return res, e.persist()
		}
		if qerr != nil && errCanceled(qerr) {
			e.apps.update(path, func(r *ir.AppRecord) { r.Permissions.Pending = false })
			return res, qerr
		}
		if attempt < e.cfg.VerifyRetries {
			e.emit(Event{OpID: res.OpID, Kind: EventRetry, Path: path, Service: svc, Attempt: attempt})
		}
	}

	e.logger.Info("verification exhausted, reconciling", "path", path, "service", service, "requested", grant)
	e.emit(Event{OpID: res.OpID, Kind: EventReconcile, Path: path, Service: svc, Detail: string(ErrCodeVerificationExhausted)})

	_, err := e.refresh(ctx, res.OpID)
	res.Reconciled = true
	if rec, ok := e.apps.get(path); ok {
		res.Record = rec
	}
	return res, err
}
