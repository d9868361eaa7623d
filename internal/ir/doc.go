// Package ir provides the shared data model for tcc-manager.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - AppRecord.ID is the bundle path; it is the only stable key
//   - PermissionState.Pending is transient and never persisted as true
//   - Service kinds are stored under their long store keys (kTCCService*)
//   - All JSON tags use snake_case; persisted documents use canonical JSON
package ir
