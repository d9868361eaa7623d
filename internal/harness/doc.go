// Package harness runs engine scenarios against a scripted host.
//
// A scenario installs applications on a testutil.FakeHost, drives the
// engine through a flow of operations and checks the resulting event trace
// and final state. Every run uses a fresh engine, a logical clock whose first
// event is seq 1, sequential operation ids ("op-1", "op-2", ...) and a cache
// document in a temporary directory, so traces are identical across runs
// and can be compared against golden files.
//
// # Scenario Format
//
//	name: grant_verified
//	description: "A grant is adopted once a re-read confirms it"
//	config:
//	  policy: verify
//	  verify_retries: 3
//	setup:
//	  lag: 0
//	  apps:
//	    - path: /Applications/Foo.app
//	      identifier: com.example.foo
//	      camera: false
//	flow:
//	  - op: load
//	    expect: { count: 1 }
//	  - op: grant
//	    path: /Applications/Foo.app
//	    service: camera
//	    expect: { confirmed: true, granted: true }
//	assertions:
//	  - type: trace_order
//	    kinds: [mutate, verify, settle]
//	  - type: final_state
//	    table: apps
//	    path: /Applications/Foo.app
//	    expect: { camera: true }
//
// # Operations
//
//   - load, refresh: Engine.Load and Engine.Refresh
//   - grant, revoke: Engine.Toggle for path and service
//   - install, uninstall: add or remove a bundle on the host
//   - set_grant: change the store behind the engine's back
//   - set_lag: number of stale reads before later writes become visible
//     (negative: never)
//   - fail_mutations, fail_discovery: inject errors (empty error clears)
//   - clear_cache: remove the persisted document
//
// # Assertion Types
//
//   - trace_contains: an event of kind matching path, service, granted
//     and detail when given
//   - trace_order: kinds occur as a subsequence of the trace
//   - trace_count: number of events of a kind
//   - final_state: record fields in table "apps" (engine memory) or
//     "cache" (persisted document)
//
// RunSuite runs every *.yaml scenario in a directory and collects the
// failures instead of stopping at the first one.
package harness
