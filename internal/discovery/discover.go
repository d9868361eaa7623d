package discovery

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// ErrDiscoveryUnavailable is returned when no strategy found any bundle in
// any location.
var ErrDiscoveryUnavailable = errors.New("application discovery unavailable")

// ApplicationBundleType is the content type allow-listed in index queries.
const ApplicationBundleType = "com.apple.application-bundle"

// Default tool locations and search parameters.
const (
	DefaultMdfindTool  = "/usr/bin/mdfind"
	DefaultFindTool    = "/usr/bin/find"
	DefaultSystemDir   = "/Applications"
	DefaultUserDepth   = 3
	DefaultSystemDepth = 1
)

// Config holds discovery locations and tools.
type Config struct {
	UserDir     string
	SystemDir   string
	UserDepth   int
	SystemDepth int
	MdfindTool  string
	FindTool    string
}

// DefaultConfig returns the standard macOS locations for the current user.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "~"
	}
	return Config{
		UserDir:     filepath.Join(home, "Applications"),
		SystemDir:   DefaultSystemDir,
		UserDepth:   DefaultUserDepth,
		SystemDepth: DefaultSystemDepth,
		MdfindTool:  DefaultMdfindTool,
		FindTool:    DefaultFindTool,
	}
}

// location is one directory to search.
type location struct {
	dir         string
	depth       int
	systemOwned bool // exclude system-owned bundles
}

// Discoverer enumerates installed application bundles.
type Discoverer struct {
	runner hostexec.Runner
	cfg    Config
	logger *slog.Logger
}

// NewDiscoverer creates a Discoverer. A nil logger uses slog.Default().
func NewDiscoverer(runner hostexec.Runner, cfg Config, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		runner: runner,
		cfg:    cfg,
		logger: logger.With("component", "discovery"),
	}
}

func (d *Discoverer) locations() []location {
	var locs []location
	if d.cfg.UserDir != "" {
		locs = append(locs, location{dir: d.cfg.UserDir, depth: d.cfg.UserDepth})
	}
	if d.cfg.SystemDir != "" {
		locs = append(locs, location{dir: d.cfg.SystemDir, depth: d.cfg.SystemDepth, systemOwned: true})
	}
	return locs
}

// Discover returns the sorted, deduplicated set of bundle paths.
func (d *Discoverer) Discover(ctx context.Context) ([]string, error) {
	locs := d.locations()

	var found []string
	for _, loc := range locs {
		found = append(found, d.indexSearch(ctx, loc)...)
	}
	if len(found) > 0 {
		d.logger.Debug("index search complete", "count", len(found))
		return dedupeSorted(found), nil
	}

	d.logger.Debug("index search empty, falling back to directory walk")
	for _, loc := range locs {
		found = append(found, d.walkSearch(ctx, loc)...)
	}
	if len(found) == 0 {
		return nil, ErrDiscoveryUnavailable
	}
	d.logger.Debug("directory walk complete", "count", len(found))
	return dedupeSorted(found), nil
}

// Exists reports whether path is still a bundle directory on disk.
func (d *Discoverer) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// indexSearch queries the metadata index for one location.
func (d *Discoverer) indexSearch(ctx context.Context, loc location) []string {
	if d.cfg.MdfindTool == "" {
		return nil
	}
	predicate := "kMDItemContentType == '" + ApplicationBundleType + "'"
	if loc.systemOwned {
		predicate += " && kMDItemCFBundleIdentifier != 'com.apple.*'"
	}

	res, err := d.runner.Run(ctx, d.cfg.MdfindTool, "-onlyin", loc.dir, predicate)
	if err != nil {
		d.logger.Debug("index search failed", "dir", loc.dir, "error", err)
		return nil
	}
	return filterBundles(res.Stdout, loc)
}

// walkSearch walks one location with a bounded depth.
func (d *Discoverer) walkSearch(ctx context.Context, loc location) []string {
	if d.cfg.FindTool == "" {
		return nil
	}
	res, err := d.runner.Run(ctx, d.cfg.FindTool,
		loc.dir,
		"-maxdepth", strconv.Itoa(loc.depth),
		"-name", "*"+ir.BundleExtension,
		"-type", "d",
	)
	// find exits non-zero on unreadable subdirectories but still prints what
	// it could reach.
	if err != nil && !hostexec.IsExitError(err) {
		d.logger.Debug("directory walk failed", "dir", loc.dir, "error", err)
		return nil
	}
	return filterBundles(res.Stdout, loc)
}

// filterBundles parses tool output into bundle paths. Nested bundles
// (helpers inside another .app) and system-owned paths are dropped.
func filterBundles(output string, loc location) []string {
	var paths []string
	for _, line := range strings.Split(output, "\n") {
		p := strings.TrimSpace(line)
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		if !strings.HasSuffix(p, ir.BundleExtension) {
			continue
		}
		if strings.Contains(strings.TrimSuffix(p, ir.BundleExtension), ir.BundleExtension+"/") {
			continue
		}
		if loc.systemOwned && strings.HasPrefix(p, "/System/") {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

func dedupeSorted(paths []string) []string {
	out := slices.Clone(paths)
	slices.Sort(out)
	return slices.Compact(out)
}
