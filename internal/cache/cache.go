// Package cache persists the app collection between runs.
//
// The document is one JSON object keyed by bundle path, written with sorted
// keys and two-space indentation so it diffs cleanly. Writes go to a
// temporary file in the same directory and are renamed into place. Load
// never fails: a missing, empty or invalid document is a miss.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// FileName is the cache document name under the application support dir.
const FileName = "apps.json"

// ErrWriteFailed is returned when the document could not be persisted.
var ErrWriteFailed = errors.New("cache write failed")

// Document is the on-disk shape: bundle path → record.
type Document map[string]ir.AppRecord

// DefaultPath returns the per-user application support location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "tcc-manager", FileName)
}

// Cache reads and writes the cache document at one path.
type Cache struct {
	path     string
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a Cache at path (DefaultPath when empty). A nil logger uses
// slog.Default().
func New(path string, logger *slog.Logger) *Cache {
	if path == "" {
		path = DefaultPath()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		path:     path,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "cache"),
	}
}

// Path returns the document location.
func (c *Cache) Path() string {
	return c.path
}

// Save persists records. An empty collection is refused without touching
// the existing document. Pending flags are never persisted.
func (c *Cache) Save(records []ir.AppRecord) error {
	if len(records) == 0 {
		c.logger.Warn("refusing to save empty collection", "path", c.path)
		return nil
	}

	settled := make([]ir.AppRecord, len(records))
	for i, r := range records {
		r.Permissions = r.Permissions.Settled()
		settled[i] = r
	}

	data, err := ir.MarshalRecords(settled)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := writeAtomic(c.path, data); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	c.logger.Debug("cache saved", "path", c.path, "count", len(records))
	return nil
}

// Load returns the cached collection sorted by ID, or false on a miss.
func (c *Cache) Load() ([]ir.AppRecord, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("cache unreadable", "path", c.path, "error", err)
		}
		return nil, false
	}

	records, err := c.decode(data)
	if err != nil {
		c.logger.Warn("cache invalid, ignoring", "path", c.path, "error", err)
		return nil, false
	}
	if len(records) == 0 {
		return nil, false
	}
	return records, true
}

func (c *Cache) decode(data []byte) ([]ir.AppRecord, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	records := make([]ir.AppRecord, 0, len(doc))
	for key, r := range doc {
		if err := c.validate.Struct(r); err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
		if key != r.ID {
			return nil, fmt.Errorf("entry %q: id mismatch %q", key, r.ID)
		}
		r.Permissions = r.Permissions.Settled()
		records = append(records, r)
	}
	ir.SortRecords(records)
	return records, nil
}

// Clear removes the document. Clearing a missing document succeeds.
func (c *Cache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Schema returns the JSON Schema of the cache document.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(Document{})
	schema.Title = "tcc-manager cache document"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}

// writeAtomic writes data to a temporary file beside path and renames it
// into place. Readers see either the old document or the new one.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	file, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary cache file: %w", err)
	}
	tmpPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temporary cache file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temporary cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temporary cache file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting cache file mode: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming cache file into place: %w", err)
	}
	return nil
}
