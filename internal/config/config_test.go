package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func mapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	if cfg.MaxPages != DefaultMaxPages {
		t.Errorf("MaxPages = %d, want %d", cfg.MaxPages, DefaultMaxPages)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.Listen != ":3000" {
		t.Errorf("Listen = %q, want :3000", cfg.Listen)
	}
	if cfg.StorageBackend != BackendJSON {
		t.Errorf("StorageBackend = %q, want json", cfg.StorageBackend)
	}
	if cfg.StoragePath != XDGDataDir() {
		t.Errorf("StoragePath = %q, want %q", cfg.StoragePath, XDGDataDir())
	}
	if cfg.IndexMaxPages != 0 {
		t.Error("index should be unbounded by default")
	}
	if cfg.EmbeddedTor || cfg.SOCKS5Proxy != "" {
		t.Error("fetches should be direct by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestXDGDataDir(t *testing.T) {
	t.Parallel()

	if filepath.Base(XDGDataDir()) != AppName {
		t.Errorf("XDGDataDir() = %q, want suffix %q", XDGDataDir(), AppName)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		want   []error
	}{
		{name: "negative max pages", modify: func(c *Config) { c.MaxPages = -1 }, want: []error{ErrInvalidMaxPages}},
		{name: "zero max pages is allowed", modify: func(c *Config) { c.MaxPages = 0 }},
		{name: "zero workers", modify: func(c *Config) { c.Workers = 0 }, want: []error{ErrInvalidWorkers}},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, want: []error{ErrInvalidTimeout}},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, want: []error{ErrInvalidMaxBodySize}},
		{name: "negative capacity", modify: func(c *Config) { c.IndexMaxPages = -3 }, want: []error{ErrInvalidIndexCapacity}},
		{name: "unknown backend", modify: func(c *Config) { c.StorageBackend = "redis" }, want: []error{ErrUnknownStorageBackend}},
		{name: "sqlite backend", modify: func(c *Config) { c.StorageBackend = BackendSQLite }},
		{name: "empty listen", modify: func(c *Config) { c.Listen = " " }, want: []error{ErrEmptyListenAddr}},
		{name: "relative analyzer", modify: func(c *Config) { c.AnalyzerURL = "/analyze" }, want: []error{ErrInvalidAnalyzerURL}},
		{name: "valid analyzer", modify: func(c *Config) { c.AnalyzerURL = "http://localhost:5000/analyze" }},
		{name: "two proxies", modify: func(c *Config) { c.SOCKS5Proxy = "127.0.0.1:9050"; c.EmbeddedTor = true }, want: []error{ErrConflictingProxies}},
		{name: "embedded tor without timeout", modify: func(c *Config) { c.EmbeddedTor = true; c.TorStartupTimeout = 0 }, want: []error{ErrInvalidTorStartupTimeout}},
		{name: "unknown report format", modify: func(c *Config) { c.ReportFormat = "pdf" }, want: []error{ErrUnknownReportFormat}},
		{
			name: "every problem is reported",
			modify: func(c *Config) {
				c.Workers = 0
				c.Timeout = -time.Second
				c.StorageBackend = "redis"
			},
			want: []error{ErrInvalidWorkers, ErrInvalidTimeout, ErrUnknownStorageBackend},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)
			err := cfg.Validate()

			if len(tt.want) == 0 {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			for _, want := range tt.want {
				if !errors.Is(err, want) {
					t.Errorf("Validate() = %v, want it to include %v", err, want)
				}
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("maxPages: [oops"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("applies present keys only", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `seed: https://example.com
maxPages: 0
timeout: 10s
sameHostOnly: true
ignorePatterns:
  - "*.pdf"
storage:
  backend: sqlite
  path: /tmp/trugle-data
index:
  maxPages: 1000
tracker:
  enabled: true
truth:
  analyzerURL: http://localhost:5000/analyze
proxy:
  socks5: 127.0.0.1:9050
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}
		cfg := NewConfig()
		f.Apply(cfg)

		want := NewConfig()
		want.Seed = "https://example.com"
		want.MaxPages = 0
		want.Timeout = 10 * time.Second
		want.SameHostOnly = true
		want.IgnorePatterns = []string{"*.pdf"}
		want.StorageBackend = BackendSQLite
		want.StoragePath = "/tmp/trugle-data"
		want.IndexMaxPages = 1000
		want.TrackerEnabled = true
		want.AnalyzerURL = "http://localhost:5000/analyze"
		want.SOCKS5Proxy = "127.0.0.1:9050"

		if diff := cmp.Diff(want, cfg); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path that exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte(""), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("explicit path that does not exist", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got != "" {
			t.Errorf("FindConfigFile() = %q, want empty", got)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	t.Run("overrides values", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		err := cfg.ApplyEnv(mapLookup(map[string]string{
			"TRUGLE_SEED":            "http://env.test",
			"TRUGLE_MAX_PAGES":       "12",
			"TRUGLE_TIMEOUT":         "2s",
			"TRUGLE_MAX_BODY_SIZE":   "1024",
			"TRUGLE_SKIP_INDEXED":    "true",
			"TRUGLE_STORAGE_BACKEND": "sqlite",
			"TRUGLE_LISTEN":          ":8080",
			"TRUGLE_EMPTY":           "",
			"TRUGLE_WORKERS":         "",
		}))
		if err != nil {
			t.Fatalf("ApplyEnv() error = %v", err)
		}
		if cfg.Seed != "http://env.test" || cfg.MaxPages != 12 || cfg.Timeout != 2*time.Second {
			t.Errorf("unexpected config %+v", cfg)
		}
		if cfg.MaxBodySize != 1024 || !cfg.SkipIndexed || cfg.StorageBackend != BackendSQLite || cfg.Listen != ":8080" {
			t.Errorf("unexpected config %+v", cfg)
		}
		if cfg.Workers != DefaultWorkers {
			t.Error("an empty variable must not override the default")
		}
	})

	t.Run("reports every bad value", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		err := cfg.ApplyEnv(mapLookup(map[string]string{
			"TRUGLE_MAX_PAGES":    "many",
			"TRUGLE_TIMEOUT":      "soon",
			"TRUGLE_EMBEDDED_TOR": "maybe",
			"TRUGLE_USER_AGENT":   "agent/1",
		}))
		if !errors.Is(err, ErrInvalidEnv) {
			t.Fatalf("ApplyEnv() error = %v, want ErrInvalidEnv", err)
		}
		var merr interface{ WrappedErrors() []error }
		if !errors.As(err, &merr) || len(merr.WrappedErrors()) != 3 {
			t.Errorf("expected three errors, got %v", err)
		}
		if cfg.UserAgent != "agent/1" {
			t.Error("valid variables should still be applied")
		}
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("file then env", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("maxPages: 7\nworkers: 2\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path, mapLookup(map[string]string{"TRUGLE_WORKERS": "9"}))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.MaxPages != 7 {
			t.Errorf("MaxPages = %d, want 7 from file", cfg.MaxPages)
		}
		if cfg.Workers != 9 {
			t.Errorf("Workers = %d, want 9 from env", cfg.Workers)
		}
		if cfg.ConfigFilePath != path {
			t.Errorf("ConfigFilePath = %q", cfg.ConfigFilePath)
		}
	})

	t.Run("explicit missing file", func(t *testing.T) {
		t.Parallel()

		_, err := Load(filepath.Join(t.TempDir(), "missing"), mapLookup(nil))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("Load() error = %v, want ErrConfigNotFound", err)
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	// Not parallel: godotenv writes to the process environment.
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TRUGLE_TEST_DOTENV_VALUE=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("TRUGLE_TEST_DOTENV_VALUE") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("TRUGLE_TEST_DOTENV_VALUE"); got != "from-dotenv" {
		t.Errorf("TRUGLE_TEST_DOTENV_VALUE = %q", got)
	}
}
