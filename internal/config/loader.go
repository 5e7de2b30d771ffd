package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".trugle"

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "TRUGLE_"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file. Pointer fields distinguish "unset"
// from a zero value, so only keys present in the file override defaults.
type File struct {
	Seed           string         `yaml:"seed,omitempty"`
	MaxPages       *int           `yaml:"maxPages,omitempty"`
	Workers        *int           `yaml:"workers,omitempty"`
	Timeout        *time.Duration `yaml:"timeout,omitempty"`
	UserAgent      string         `yaml:"userAgent,omitempty"`
	MaxBodySize    *int64         `yaml:"maxBodySize,omitempty"`
	SameHostOnly   *bool          `yaml:"sameHostOnly,omitempty"`
	SkipIndexed    *bool          `yaml:"skipIndexed,omitempty"`
	IgnorePatterns []string       `yaml:"ignorePatterns,omitempty"`
	FollowPatterns []string       `yaml:"followPatterns,omitempty"`
	Listen         string         `yaml:"listen,omitempty"`
	StaticDir      string         `yaml:"staticDir,omitempty"`
	Storage        StorageFile    `yaml:"storage,omitempty"`
	Index          IndexFile      `yaml:"index,omitempty"`
	Tracker        TrackerFile    `yaml:"tracker,omitempty"`
	Truth          TruthFile      `yaml:"truth,omitempty"`
	Proxy          ProxyFile      `yaml:"proxy,omitempty"`
}

// StorageFile is the storage section.
type StorageFile struct {
	Backend string `yaml:"backend,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// IndexFile is the index section.
type IndexFile struct {
	MaxPages *int `yaml:"maxPages,omitempty"`
}

// TrackerFile is the tracker section.
type TrackerFile struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// TruthFile is the truth section.
type TruthFile struct {
	AnalyzerURL string `yaml:"analyzerURL,omitempty"`
}

// ProxyFile is the proxy section.
type ProxyFile struct {
	SOCKS5      string `yaml:"socks5,omitempty"`
	EmbeddedTor *bool  `yaml:"embeddedTor,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .trugle in the current directory
// 3. Look for .trugle in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Apply copies every key present in the file onto c.
func (f *File) Apply(c *Config) {
	if f.Seed != "" {
		c.Seed = f.Seed
	}
	if f.MaxPages != nil {
		c.MaxPages = *f.MaxPages
	}
	if f.Workers != nil {
		c.Workers = *f.Workers
	}
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.MaxBodySize != nil {
		c.MaxBodySize = *f.MaxBodySize
	}
	if f.SameHostOnly != nil {
		c.SameHostOnly = *f.SameHostOnly
	}
	if f.SkipIndexed != nil {
		c.SkipIndexed = *f.SkipIndexed
	}
	if len(f.IgnorePatterns) > 0 {
		c.IgnorePatterns = f.IgnorePatterns
	}
	if len(f.FollowPatterns) > 0 {
		c.FollowPatterns = f.FollowPatterns
	}
	if f.Listen != "" {
		c.Listen = f.Listen
	}
	if f.StaticDir != "" {
		c.StaticDir = f.StaticDir
	}
	if f.Storage.Backend != "" {
		c.StorageBackend = f.Storage.Backend
	}
	if f.Storage.Path != "" {
		c.StoragePath = f.Storage.Path
	}
	if f.Index.MaxPages != nil {
		c.IndexMaxPages = *f.Index.MaxPages
	}
	if f.Tracker.Enabled != nil {
		c.TrackerEnabled = *f.Tracker.Enabled
	}
	if f.Truth.AnalyzerURL != "" {
		c.AnalyzerURL = f.Truth.AnalyzerURL
	}
	if f.Proxy.SOCKS5 != "" {
		c.SOCKS5Proxy = f.Proxy.SOCKS5
	}
	if f.Proxy.EmbeddedTor != nil {
		c.EmbeddedTor = *f.Proxy.EmbeddedTor
	}
}

// LoadDotEnv reads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
// With no paths it reads ".env" in the current directory.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides c with TRUGLE_* variables. Every unparsable variable is
// reported; valid ones are still applied.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := envReader{lookup: lookup}

	e.str("SEED", &c.Seed)
	e.integer("MAX_PAGES", &c.MaxPages)
	e.integer("WORKERS", &c.Workers)
	e.duration("TIMEOUT", &c.Timeout)
	e.str("USER_AGENT", &c.UserAgent)
	e.int64("MAX_BODY_SIZE", &c.MaxBodySize)
	e.boolean("SAME_HOST_ONLY", &c.SameHostOnly)
	e.boolean("SKIP_INDEXED", &c.SkipIndexed)
	e.str("LISTEN", &c.Listen)
	e.str("STATIC_DIR", &c.StaticDir)
	e.str("STORAGE_BACKEND", &c.StorageBackend)
	e.str("STORAGE_PATH", &c.StoragePath)
	e.integer("INDEX_MAX_PAGES", &c.IndexMaxPages)
	e.boolean("TRACKER_ENABLED", &c.TrackerEnabled)
	e.str("ANALYZER_URL", &c.AnalyzerURL)
	e.str("SOCKS5_PROXY", &c.SOCKS5Proxy)
	e.boolean("EMBEDDED_TOR", &c.EmbeddedTor)

	return e.errs.ErrorOrNil()
}

type envReader struct {
	lookup LookupFunc
	errs   *multierror.Error
}

func (e *envReader) get(name string) (string, string, bool) {
	key := EnvPrefix + name
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return key, "", false
	}
	return key, v, true
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = multierror.Append(e.errs, fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, key, value, err))
}

func (e *envReader) str(name string, dst *string) {
	if _, v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	key, v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) int64(name string, dst *int64) {
	key, v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(name string, dst *bool) {
	key, v, ok := e.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(name string, dst *time.Duration) {
	key, v, ok := e.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = d
}

// Load builds a Config from defaults, the config file and the environment.
// A missing config file is not an error unless configPath was given
// explicitly.
func Load(configPath string, lookup LookupFunc) (*Config, error) {
	cfg := NewConfig()
	cfg.ConfigFilePath = configPath

	path := FindConfigFile(configPath)
	if path == "" && configPath != "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}
	if path != "" {
		f, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		f.Apply(cfg)
		cfg.ConfigFilePath = path
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}
