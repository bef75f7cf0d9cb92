package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	friendlyerrors "github.com/jxwalker/modbrowse/internal/errors"
)

// Config mirrors the YAML schema. Values missing from the file fall back to Default();
// environment variables (MODBROWSE_*) override both.
type Config struct {
	Version int       `yaml:"version"`
	General General   `yaml:"general"`
	Network Network   `yaml:"network"`
	Sources Sources   `yaml:"sources"`
	Browse  Browse    `yaml:"browse"`
	Logging Logging   `yaml:"logging"`
	Metrics Metrics   `yaml:"metrics"`
	UI      UIOptions `yaml:"ui"`
}

type General struct {
	DataRoot string `yaml:"data_root" env:"MODBROWSE_DATA_ROOT"`
}

type Network struct {
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"MODBROWSE_TIMEOUT_SECONDS"`
	MaxRetries     int    `yaml:"max_retries" env:"MODBROWSE_MAX_RETRIES"`
	UserAgent      string `yaml:"user_agent" env:"MODBROWSE_USER_AGENT"`
}

type Sources struct {
	CurseForge CurseForgeSource `yaml:"curseforge"`
	Modrinth   ModrinthSource   `yaml:"modrinth"`
}

type CurseForgeSource struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url" env:"MODBROWSE_CURSEFORGE_URL"`
	TokenEnv string `yaml:"token_env"`
	PageSize int    `yaml:"page_size" env:"MODBROWSE_PAGE_SIZE"`
}

type ModrinthSource struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url" env:"MODBROWSE_MODRINTH_URL"`
	TokenEnv string `yaml:"token_env"`
	// BulkLimit is how many hits one listing call asks for.
	BulkLimit int `yaml:"bulk_limit"`
	// ChunkSize slices a listing into pages locally; 0 delivers the whole listing at once.
	ChunkSize   int  `yaml:"chunk_size"`
	LocalSearch bool `yaml:"local_search"`
}

type Browse struct {
	EstimateRows      int    `yaml:"estimate_rows"`
	Overscan          int    `yaml:"overscan"`
	PrefetchThreshold int    `yaml:"prefetch_threshold"`
	DefaultResultType string `yaml:"default_result_type" env:"MODBROWSE_RESULT_TYPE"`
	DefaultPlatform   string `yaml:"default_platform" env:"MODBROWSE_PLATFORM"`
	RefreshCatalog    bool   `yaml:"refresh_catalog"`
}

type Logging struct {
	Level  string `yaml:"level" env:"MODBROWSE_LOG_LEVEL"`   // debug|info|warn|error
	Format string `yaml:"format" env:"MODBROWSE_LOG_FORMAT"` // human|json
	File   string `yaml:"file"`
}

type Metrics struct {
	PrometheusTextfile PromTextfile `yaml:"prometheus_textfile"`
}

type PromTextfile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type UIOptions struct {
	// Compact renders one line per result instead of two.
	Compact bool `yaml:"compact"`
}

// Default returns a configuration that works without a file.
func Default() *Config {
	return &Config{
		Version: 1,
		General: General{DataRoot: "~/.local/share/modbrowse"},
		Network: Network{TimeoutSeconds: 30, MaxRetries: 2},
		Sources: Sources{
			CurseForge: CurseForgeSource{
				Enabled:  true,
				BaseURL:  "https://api.curseforge.com",
				TokenEnv: "CURSEFORGE_API_KEY",
				PageSize: 20,
			},
			Modrinth: ModrinthSource{
				Enabled:   true,
				BaseURL:   "https://api.modrinth.com",
				BulkLimit: 100,
				ChunkSize: 20,
			},
		},
		Browse: Browse{
			EstimateRows:      2,
			Overscan:          10,
			PrefetchThreshold: 5,
			DefaultResultType: "modpack",
			DefaultPlatform:   "curseforge",
		},
		Logging: Logging{Level: "info", Format: "human"},
	}
}

// DefaultPath returns $MODBROWSE_CONFIG or ~/.config/modbrowse/config.yml.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv("MODBROWSE_CONFIG")); p != "" {
		return p
	}
	h, err := os.UserHomeDir()
	if err != nil || h == "" {
		return ""
	}
	return filepath.Join(h, ".config", "modbrowse", "config.yml")
}

// Load reads, parses, expands, applies env overrides and validates a YAML config file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	expanded, err := expandTilde(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// LoadOrDefault behaves like Load but returns Default() (with env overrides) when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	c, err := Load(path)
	if err == nil {
		return c, nil
	}
	if path == "" || errors.Is(err, fs.ErrNotExist) {
		c = Default()
		if err := c.finish(); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, err
}

// Parse decodes YAML on top of the defaults.
func Parse(b []byte) (*Config, error) {
	// Expand ${ENV} placeholders before unmarshalling
	b = []byte(os.ExpandEnv(string(b)))
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) finish() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if err := c.expandPaths(); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) expandPaths() error {
	var err error
	if c.General.DataRoot, err = expandTilde(c.General.DataRoot); err != nil {
		return err
	}
	if c.Logging.File, err = expandTilde(c.Logging.File); err != nil {
		return err
	}
	if c.Metrics.PrometheusTextfile.Path, err = expandTilde(c.Metrics.PrometheusTextfile.Path); err != nil {
		return err
	}
	return nil
}

// Validate reports the first setting the program cannot run with.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return friendlyerrors.ConfigError("version", fmt.Sprintf("unsupported config version: %d", c.Version))
	}
	if c.General.DataRoot == "" {
		return friendlyerrors.ConfigError("general.data_root", "required")
	}
	if !c.Sources.CurseForge.Enabled && !c.Sources.Modrinth.Enabled {
		return friendlyerrors.ConfigError("sources", "at least one of curseforge or modrinth must be enabled")
	}
	if c.Sources.CurseForge.PageSize < 1 || c.Sources.CurseForge.PageSize > 50 {
		return friendlyerrors.ConfigError("sources.curseforge.page_size", "must be between 1 and 50")
	}
	if c.Sources.Modrinth.BulkLimit < 1 || c.Sources.Modrinth.BulkLimit > 100 {
		return friendlyerrors.ConfigError("sources.modrinth.bulk_limit", "must be between 1 and 100")
	}
	if c.Sources.Modrinth.ChunkSize < 0 {
		return friendlyerrors.ConfigError("sources.modrinth.chunk_size", "must be >= 0")
	}
	if c.Browse.EstimateRows < 1 {
		return friendlyerrors.ConfigError("browse.estimate_rows", "must be >= 1")
	}
	if c.Browse.Overscan < 0 || c.Browse.PrefetchThreshold < 0 {
		return friendlyerrors.ConfigError("browse", "overscan and prefetch_threshold must be >= 0")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
		// ok
	default:
		return friendlyerrors.ConfigError("logging.level", fmt.Sprintf("invalid level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "human", "json":
		// ok
	default:
		return friendlyerrors.ConfigError("logging.format", fmt.Sprintf("invalid format %q", c.Logging.Format))
	}
	return nil
}

// Token returns the API token for a source from its configured env var.
func (s CurseForgeSource) Token() string { return tokenFrom(s.TokenEnv) }

func (s ModrinthSource) Token() string { return tokenFrom(s.TokenEnv) }

func tokenFrom(envName string) string {
	envName = strings.TrimSpace(envName)
	if envName == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envName))
}

func expandTilde(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if p[0] != '~' {
		return p, nil
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if p == "~" {
		return h, nil
	}
	return filepath.Join(h, p[2:]), nil
}

// EnsureDir creates path if it does not exist.
func EnsureDir(path string, perm fs.FileMode) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, perm)
}
