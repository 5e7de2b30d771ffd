package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/hashicorp/go-multierror"

	"github.com/nao1215/trugle/internal/persist"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "trugle"

	// DefaultMaxPages is the page budget of a crawl.
	DefaultMaxPages = 50

	// DefaultWorkers is the number of concurrent fetches.
	DefaultWorkers = 4

	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 5 * time.Second

	// DefaultUserAgent identifies trugle in HTTP requests.
	DefaultUserAgent = "trugle/1.0 (+https://github.com/nao1215/trugle)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultListenAddr is where the search server listens.
	DefaultListenAddr = ":3000"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds every option of the crawler, the index and the server.
type Config struct {
	// Seed is the URL a crawl starts from. serve crawls it at startup when set.
	Seed string

	// MaxPages is the page budget of one crawl.
	MaxPages int

	// Workers is the number of fetches that may run at once.
	Workers int

	// Timeout bounds each fetch.
	Timeout time.Duration

	// UserAgent is sent with every fetch.
	UserAgent string

	// MaxBodySize caps the bytes read per response. 0 uses the fetcher default.
	MaxBodySize int64

	// SameHostOnly restricts the crawl to the seed's host.
	SameHostOnly bool

	// SkipIndexed skips URLs already present in the index.
	SkipIndexed bool

	// IgnorePatterns and FollowPatterns filter URL paths during a crawl.
	IgnorePatterns []string
	FollowPatterns []string

	// Listen is the search server address.
	Listen string

	// StaticDir is served under / by the search server when set.
	StaticDir string

	// StorageBackend selects the snapshot backend, json or sqlite.
	StorageBackend string

	// StoragePath is the data directory for snapshots and the database.
	// Defaults to the XDG data directory (~/.local/share/trugle on Linux).
	StoragePath string

	// NoSave skips saving the snapshot after a cancelled crawl.
	NoSave bool

	// IndexMaxPages caps the number of pages in the index. 0 is unbounded.
	IndexMaxPages int

	// TrackerEnabled records every discovered URL in the articles table.
	TrackerEnabled bool

	// AnalyzerURL is the truth analyzer endpoint. Empty uses random scores.
	AnalyzerURL string

	// SOCKS5Proxy routes fetches through an external SOCKS5 proxy (host:port).
	SOCKS5Proxy string

	// EmbeddedTor starts a Tor daemon and routes fetches through it.
	EmbeddedTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// ReportFormat is text, json or markdown.
	ReportFormat string

	// ReportFile writes the crawl report to a file instead of stdout.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches the log output to JSON.
	LogJSON bool

	// ConfigFilePath is the path of the YAML file. Empty searches for
	// .trugle in the current directory and then the home directory.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxPages:          DefaultMaxPages,
		Workers:           DefaultWorkers,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		Listen:            DefaultListenAddr,
		StorageBackend:    BackendJSON,
		StoragePath:       XDGDataDir(),
		TorStartupTimeout: DefaultTorStartupTimeout,
		ReportFormat:      "text",
	}
}

// XDGDataDir returns the XDG data directory for trugle.
// On Linux: ~/.local/share/trugle
// On macOS: ~/Library/Application Support/trugle
// On Windows: %LOCALAPPDATA%\trugle
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks every option and returns all problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.MaxPages < 0 {
		result = multierror.Append(result, ErrInvalidMaxPages)
	}
	if c.Workers <= 0 {
		result = multierror.Append(result, ErrInvalidWorkers)
	}
	if c.Timeout <= 0 {
		result = multierror.Append(result, ErrInvalidTimeout)
	}
	if c.MaxBodySize < 0 {
		result = multierror.Append(result, ErrInvalidMaxBodySize)
	}
	if c.IndexMaxPages < 0 {
		result = multierror.Append(result, ErrInvalidIndexCapacity)
	}
	switch c.StorageBackend {
	case BackendJSON, BackendSQLite:
	default:
		result = multierror.Append(result, ErrUnknownStorageBackend)
	}
	if strings.TrimSpace(c.Listen) == "" {
		result = multierror.Append(result, ErrEmptyListenAddr)
	}
	if c.AnalyzerURL != "" && !isHTTPURL(c.AnalyzerURL) {
		result = multierror.Append(result, ErrInvalidAnalyzerURL)
	}
	if c.SOCKS5Proxy != "" && c.EmbeddedTor {
		result = multierror.Append(result, ErrConflictingProxies)
	}
	if c.EmbeddedTor && c.TorStartupTimeout <= 0 {
		result = multierror.Append(result, ErrInvalidTorStartupTimeout)
	}
	switch strings.ToLower(c.ReportFormat) {
	case "", "text", "json", "markdown", "md":
	default:
		result = multierror.Append(result, ErrUnknownReportFormat)
	}

	return result.ErrorOrNil()
}

// SnapshotPath returns the JSON snapshot file inside StoragePath.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.StoragePath, persist.DefaultJSONFileName)
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
