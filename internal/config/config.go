package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/krunaldodiya/tcc-manager/internal/cache"
	"github.com/krunaldodiya/tcc-manager/internal/discovery"
	"github.com/krunaldodiya/tcc-manager/internal/engine"
	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
	"github.com/krunaldodiya/tcc-manager/internal/mutator"
	"github.com/krunaldodiya/tcc-manager/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "TCC_MANAGER_CONFIG"

// Config is the complete tcc-manager configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Mutation  MutationConfig  `yaml:"mutation" toml:"mutation"`
	Discovery DiscoveryConfig `yaml:"discovery" toml:"discovery"`
	Sync      SyncConfig      `yaml:"sync" toml:"sync"`
	Exec      ExecConfig      `yaml:"exec" toml:"exec"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// StoreConfig selects the authorization stores and how they are read.
type StoreConfig struct {
	UserPath    string `yaml:"user_path" toml:"user_path"`
	SystemPath  string `yaml:"system_path" toml:"system_path"`
	Strategy    string `yaml:"strategy" toml:"strategy"`
	Driver      string `yaml:"driver" toml:"driver"`
	SQLiteTool  string `yaml:"sqlite_tool" toml:"sqlite_tool"`
	QueryScript string `yaml:"query_script" toml:"query_script"`
}

// MutationConfig selects how grants and revokes are written.
type MutationConfig struct {
	Strategy         string   `yaml:"strategy" toml:"strategy"`
	HelperCandidates []string `yaml:"helper_candidates" toml:"helper_candidates"`
	Notify           bool     `yaml:"notify" toml:"notify"`
}

// DiscoveryConfig holds application search locations and tools.
type DiscoveryConfig struct {
	UserDir     string `yaml:"user_dir" toml:"user_dir"`
	SystemDir   string `yaml:"system_dir" toml:"system_dir"`
	UserDepth   int    `yaml:"user_depth" toml:"user_depth"`
	SystemDepth int    `yaml:"system_depth" toml:"system_depth"`
	MdfindTool  string `yaml:"mdfind_tool" toml:"mdfind_tool"`
	FindTool    string `yaml:"find_tool" toml:"find_tool"`
	PlistTool   string `yaml:"plist_tool" toml:"plist_tool"`
}

// SyncConfig holds the toggle policy and batch settings.
type SyncConfig struct {
	Policy        string        `yaml:"policy" toml:"policy"`
	VerifyDelay   time.Duration `yaml:"-" toml:"-"`
	VerifyRetries int           `yaml:"verify_retries" toml:"verify_retries"`
	Concurrency   int           `yaml:"concurrency" toml:"concurrency"`

	// Raw string values for decoding
	VerifyDelayRaw string `yaml:"verify_delay" toml:"verify_delay"`
}

// ExecConfig caps every external process.
type ExecConfig struct {
	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// CacheConfig locates the cache document.
type CacheConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	paths := store.DefaultPaths()
	disc := discovery.DefaultConfig()
	eng := engine.DefaultConfig()

	return &Config{
		Store: StoreConfig{
			UserPath:   paths.User,
			SystemPath: paths.System,
			Strategy:   string(store.StrategyTool),
			Driver:     string(store.DriverCGo),
			SQLiteTool: store.DefaultSQLiteTool,
		},
		Mutation: MutationConfig{
			Strategy:         string(mutator.StrategyHelper),
			HelperCandidates: mutator.DefaultHelperCandidates(),
			Notify:           true,
		},
		Discovery: DiscoveryConfig{
			UserDir:     disc.UserDir,
			SystemDir:   disc.SystemDir,
			UserDepth:   disc.UserDepth,
			SystemDepth: disc.SystemDepth,
			MdfindTool:  disc.MdfindTool,
			FindTool:    disc.FindTool,
			PlistTool:   discovery.DefaultPlistTool,
		},
		Sync: SyncConfig{
			Policy:        string(eng.Policy),
			VerifyDelay:   eng.VerifyDelay,
			VerifyRetries: eng.VerifyRetries,
			Concurrency:   eng.Concurrency,
		},
		Exec: ExecConfig{
			Timeout: hostexec.DefaultTimeout,
		},
		Cache: CacheConfig{
			Path: cache.DefaultPath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the config location used when neither the flag nor
// the environment names one.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "tcc-manager", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "tcc-manager", "config.yaml")
}

// ResolvePath applies the lookup order. explicit reports whether the path
// was named by the flag or the environment, in which case it must exist.
func ResolvePath(flagPath string) (path string, explicit bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, true
	}
	return DefaultPath(), false
}

// LoadResolved resolves the file location and loads it. A missing file at
// the default location yields Default().
func LoadResolved(flagPath string) (*Config, string, error) {
	path, explicit := ResolvePath(flagPath)
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return Default(), "", nil
		}
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Load reads a configuration file, validates it and returns it merged over
// Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(string(data), isTOML(path))
}

// Parse decodes a configuration document (TOML when asTOML is set, YAML
// otherwise).
func Parse(content string, asTOML bool) (*Config, error) {
	expanded := expandEnvVars(content)

	raw, err := decodeRaw(expanded, asTOML)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := checkSchema(raw); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg := Default()
	if asTOML {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if strings.TrimSpace(expanded) != "" {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.expandHome()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// decodeRaw parses the document into generic maps for schema checking.
func decodeRaw(content string, asTOML bool) (map[string]any, error) {
	raw := map[string]any{}
	if asTOML {
		if _, err := toml.Decode(content, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// checkSchema unifies the document with the closed #Config definition.
func checkSchema(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return err
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Sync.VerifyDelayRaw != "" {
		cfg.Sync.VerifyDelay, err = time.ParseDuration(cfg.Sync.VerifyDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing verify_delay %q: %w", cfg.Sync.VerifyDelayRaw, err)
		}
	}
	if cfg.Exec.TimeoutRaw != "" {
		cfg.Exec.Timeout, err = time.ParseDuration(cfg.Exec.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Exec.TimeoutRaw, err)
		}
	}
	return nil
}

// expandHome resolves a leading "~/" in path settings.
func (c *Config) expandHome() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	for _, p := range []*string{
		&c.Store.UserPath, &c.Store.SystemPath, &c.Store.QueryScript,
		&c.Discovery.UserDir, &c.Discovery.SystemDir, &c.Cache.Path,
	} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}
}

// Validate checks the decoded configuration. It repeats the schema's enum
// and range checks for configurations built in code.
func (c *Config) Validate() error {
	switch store.Strategy(c.Store.Strategy) {
	case store.StrategyTool, store.StrategyDirect:
	case StrategyScript:
		if c.Store.QueryScript == "" {
			return fmt.Errorf("store.query_script is required when store.strategy is script")
		}
	default:
		return fmt.Errorf("store.strategy must be tool, direct or script, got %q", c.Store.Strategy)
	}
	if !store.Driver(c.Store.Driver).Valid() {
		return fmt.Errorf("store.driver must be sqlite3 or sqlite, got %q", c.Store.Driver)
	}
	if c.Store.UserPath == "" {
		return fmt.Errorf("store.user_path is required")
	}

	switch mutator.Strategy(c.Mutation.Strategy) {
	case mutator.StrategyHelper:
		if len(c.Mutation.HelperCandidates) == 0 {
			return fmt.Errorf("mutation.helper_candidates is required when mutation.strategy is helper")
		}
	case mutator.StrategyDirect:
	default:
		return fmt.Errorf("mutation.strategy must be helper or direct, got %q", c.Mutation.Strategy)
	}

	if c.Discovery.UserDepth < 1 || c.Discovery.SystemDepth < 1 {
		return fmt.Errorf("discovery depths must be at least 1")
	}

	if _, err := engine.ParsePolicy(c.Sync.Policy); err != nil {
		return fmt.Errorf("sync.policy: %w", err)
	}
	if c.Sync.VerifyDelay < 0 {
		return fmt.Errorf("sync.verify_delay must not be negative")
	}
	if c.Sync.VerifyRetries < 1 {
		return fmt.Errorf("sync.verify_retries must be at least 1")
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1")
	}
	if c.Exec.Timeout <= 0 {
		return fmt.Errorf("exec.timeout must be positive")
	}

	switch c.Logging.Format {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("logging.format must be text, json or pretty, got %q", c.Logging.Format)
	}
	return nil
}

// StrategyScript reads permissions through an external query script.
const StrategyScript store.Strategy = "script"

// StorePaths returns the store locations.
func (c *Config) StorePaths() store.Paths {
	return store.Paths{User: c.Store.UserPath, System: c.Store.SystemPath}
}

// DiscoverySettings returns the discovery settings.
func (c *Config) DiscoverySettings() discovery.Config {
	return discovery.Config{
		UserDir:     c.Discovery.UserDir,
		SystemDir:   c.Discovery.SystemDir,
		UserDepth:   c.Discovery.UserDepth,
		SystemDepth: c.Discovery.SystemDepth,
		MdfindTool:  c.Discovery.MdfindTool,
		FindTool:    c.Discovery.FindTool,
	}
}

// EngineConfig returns the engine settings.
func (c *Config) EngineConfig() engine.Config {
	policy, _ := engine.ParsePolicy(c.Sync.Policy)
	cfg := engine.DefaultConfig()
	cfg.Policy = policy
	cfg.VerifyDelay = c.Sync.VerifyDelay
	cfg.VerifyRetries = c.Sync.VerifyRetries
	cfg.Concurrency = c.Sync.Concurrency
	return cfg
}
