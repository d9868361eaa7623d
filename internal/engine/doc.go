// Package engine keeps the in-memory app list coherent with the host's
// authorization store.
//
// ARCHITECTURE:
//
// The Engine is the single owner of the app collection. It is built from
// explicitly injected services (Discoverer, Reader, Mutator, Cache); there
// is no package-level state.
//
// Refresh:
//  1. Discover bundle paths.
//  2. Inspect every path with bounded concurrency (errgroup). Each worker
//     writes only its own result slot.
//  3. Swap the whole collection in at once, then persist it.
//
// Toggle state machine:
//
//	Idle → Mutating → (delay) → Verifying → Settled
//	                              ↘ Retrying → Verifying (bounded)
//	                              ↘ Reconciling → Settled
//
// The post-mutation policy is a configuration switch, applied to every
// toggle:
//
//   - PolicyVerify: memory changes only once a re-read confirms the value.
//     Exhausted retries fall back to a full Refresh, and the store's answer
//     wins over the requested value.
//   - PolicyOptimistic: memory changes immediately; one background re-read
//     logs a mismatch but never reverts.
//
// Concurrency:
//
// Toggles for different (path, service) keys run in parallel. A toggle for
// a key that is already in flight is rejected, never interleaved. Refreshes
// are serialized with each other.
//
// Tracing:
//
// Each step is reported to an optional Observer as an Event stamped with a
// logical seq (Clock) and the operation id (UUIDv7 by default).
package engine
