package discovery

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
)

// DefaultPlistTool reads keys from property lists.
const DefaultPlistTool = "/usr/libexec/PlistBuddy"

// BundleIdentifierKey is the Info.plist key holding the identifier.
const BundleIdentifierKey = "CFBundleIdentifier"

// Resolver extracts bundle identifiers from bundle metadata.
type Resolver struct {
	runner hostexec.Runner
	tool   string
	logger *slog.Logger
}

// NewResolver creates a Resolver using tool (DefaultPlistTool when empty).
func NewResolver(runner hostexec.Runner, tool string, logger *slog.Logger) *Resolver {
	if tool == "" {
		tool = DefaultPlistTool
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		runner: runner,
		tool:   tool,
		logger: logger.With("component", "resolver"),
	}
}

// InfoPlistPath returns the metadata container of a bundle.
func InfoPlistPath(bundlePath string) string {
	return filepath.Join(bundlePath, "Contents", "Info.plist")
}

// Resolve returns the bundle identifier, or false when it cannot be read
// or is empty.
func (r *Resolver) Resolve(ctx context.Context, bundlePath string) (string, bool) {
	res, err := r.runner.Run(ctx, r.tool, "-c", "Print :"+BundleIdentifierKey, InfoPlistPath(bundlePath))
	if err != nil {
		r.logger.Debug("identifier lookup failed", "path", bundlePath, "error", err)
		return "", false
	}
	id := strings.TrimSpace(res.Stdout)
	if id == "" {
		return "", false
	}
	return id, true
}
