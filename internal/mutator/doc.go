// Package mutator grants and revokes authorization records.
//
// A Mutator resolves the bundle identifier, hands the write to a Backend and
// then runs the store-notification step. Two backends exist:
//
//   - HelperBackend invokes an external privileged helper as
//     `<helper> add|reset <service> <identifier>`.
//   - DirectBackend writes the user store through store.Writer.
//
// The system store is never mutated. Notification is best effort: its
// failure is logged and never turns a successful write into an error.
package mutator
