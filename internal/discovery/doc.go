// Package discovery finds installed application bundles and resolves their
// bundle identifiers.
//
// # Discovery Strategy
//
// Two locations are searched: the user application directory and the
// system application directory. For each, strategies run in priority
// order:
//
//  1. Metadata index query (mdfind) restricted to the application-bundle
//     content type. The system directory query excludes system-owned
//     bundles (com.apple.* identifiers, /System paths).
//  2. If the index yields nothing at all, a bounded-depth directory walk
//     (find -maxdepth N -name *.app -type d): depth 3 for the user
//     directory, depth 1 for the system directory.
//
// Results are deduplicated and sorted. A location that cannot be searched
// contributes nothing; ErrDiscoveryUnavailable is returned only when every
// location and both strategies come back empty.
//
// # Identifier Resolution
//
// Resolver reads CFBundleIdentifier from <bundle>/Contents/Info.plist with
// an external plist reader. It holds no mutable state and is safe to call
// from many goroutines.
package discovery
