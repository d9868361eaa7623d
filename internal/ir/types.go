package ir

import (
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// BundleExtension is the suffix every application bundle directory carries.
const BundleExtension = ".app"

// PermissionState is the last observed authorization state of one app.
type PermissionState struct {
	Camera     bool `json:"camera"`
	Microphone bool `json:"microphone"`
	Pending    bool `json:"pending"` // query or mutation outstanding
}

// Get returns the granted flag for a service kind.
func (p PermissionState) Get(s ServiceKind) bool {
	switch s {
	case ServiceCamera:
		return p.Camera
	case ServiceMicrophone:
		return p.Microphone
	default:
		return false
	}
}

// With returns a copy of p with the flag for s set to granted.
func (p PermissionState) With(s ServiceKind, granted bool) PermissionState {
	switch s {
	case ServiceCamera:
		p.Camera = granted
	case ServiceMicrophone:
		p.Microphone = granted
	}
	return p
}

// Settled returns a copy of p with Pending cleared.
func (p PermissionState) Settled() PermissionState {
	p.Pending = false
	return p
}

// AppRecord is one discovered application bundle and its permission state.
type AppRecord struct {
	ID          string          `json:"id" validate:"required"`
	Path        string          `json:"path" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Identifier  string          `json:"identifier,omitempty"`
	Permissions PermissionState `json:"permissions"`
}

// NewAppRecord creates a record for a bundle path with no resolved
// identifier and all services not granted.
func NewAppRecord(path string) AppRecord {
	return AppRecord{
		ID:   path,
		Path: path,
		Name: AppName(path),
	}
}

// HasIdentifier reports whether the bundle identifier has been resolved.
func (r AppRecord) HasIdentifier() bool {
	return r.Identifier != ""
}

// toCanonicalMap converts the record for canonical JSON serialization.
func (r AppRecord) toCanonicalMap() map[string]any {
	m := map[string]any{
		"id":   Verbatim(r.ID),
		"path": Verbatim(r.Path),
		"name": r.Name,
		"permissions": map[string]any{
			"camera":     r.Permissions.Camera,
			"microphone": r.Permissions.Microphone,
			"pending":    r.Permissions.Pending,
		},
	}
	if r.Identifier != "" {
		m["identifier"] = Verbatim(r.Identifier)
	}
	return m
}

// AppName derives the display name from a bundle path: last component,
// extension stripped, NFC normalized.
//
// Bundle paths coming back from the file system on macOS are often in
// decomposed form; normalizing keeps cached names comparable.
func AppName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	base = strings.TrimSuffix(base, BundleExtension)
	return norm.NFC.String(base)
}

// SortRecords orders records by ID (bundle path), the order used for every
// listing and persisted document.
func SortRecords(records []AppRecord) {
	slices.SortFunc(records, func(a, b AppRecord) int {
		return strings.Compare(a.ID, b.ID)
	})
}
