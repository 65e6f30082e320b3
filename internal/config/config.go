package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Storage   Storage   `yaml:"storage"`
	Mirror    Mirror    `yaml:"mirror"`
	Download  Download  `yaml:"download"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Log       Log       `yaml:"log"`
}

type Server struct {
	Port int `yaml:"port"`
}

// Storage selects the installation root, see ResolveBasePath
type Storage struct {
	Mode   Mode   `yaml:"mode"`   // documents, app-local, app-parent, custom
	Subdir string `yaml:"subdir"` // directory name appended for the non-custom modes
	Custom string `yaml:"custom"` // absolute path, custom mode only
}

type Mirror struct {
	Enabled        bool          `yaml:"enabled"`
	VersionListURL string        `yaml:"version_list_url"`
	MetaBase       string        `yaml:"meta_base"`  // replaces the authority of manifest URLs
	AssetBase      string        `yaml:"asset_base"` // objects are fetched from <asset_base>/<xx>/<hash>
	Rules          []MirrorRule  `yaml:"rules"`
	Timeout        time.Duration `yaml:"timeout"`
}

// MirrorRule maps an upstream URL prefix to the mirror's equivalent prefix
type MirrorRule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type Download struct {
	MaxAttempts        int           `yaml:"max_attempts"`
	Backoff            time.Duration `yaml:"backoff"`
	AssetBatchSize     int           `yaml:"asset_batch_size"`
	LibraryConcurrency int           `yaml:"library_concurrency"` // 0 leaves the fan-out uncapped
	MaxConnsPerHost    int           `yaml:"max_conns_per_host"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	UserAgent          string        `yaml:"user_agent"`
}

type RateLimit struct {
	RPS         int `yaml:"rps"` // outgoing requests per second, 0 disables
	Burst       int `yaml:"burst"`
	ServerRPS   int `yaml:"server_rps"`
	ServerBurst int `yaml:"server_burst"`
}

type Log struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	Filename   string `yaml:"filename"`    // log file path, empty for stdout only
	MaxSize    int    `yaml:"max_size"`    // megabytes
	MaxBackups int    `yaml:"max_backups"` // number of backups
	MaxAge     int    `yaml:"max_age"`     // days
	Compress   bool   `yaml:"compress"`    // compress rotated files
}

const (
	upstreamVersionList = "https://launchermeta.mojang.com/mc/game/version_manifest.json"
	bmclapi             = "https://bmclapi2.bangbang93.com"
)

// Default returns the configuration used when no file overrides a value
func Default() *Config {
	return &Config{
		Server: Server{Port: 8080},
		Storage: Storage{
			Mode:   ModeAppLocal,
			Subdir: ".minecraft",
		},
		Mirror: Mirror{
			Enabled:        true,
			VersionListURL: upstreamVersionList,
			MetaBase:       bmclapi,
			AssetBase:      bmclapi + "/assets",
			Rules: []MirrorRule{
				{From: "https://libraries.minecraft.net", To: bmclapi + "/maven"},
				{From: "https://launchermeta.mojang.com", To: bmclapi},
				{From: "https://piston-meta.mojang.com", To: bmclapi},
				{From: "https://piston-data.mojang.com", To: bmclapi},
				{From: "https://resources.download.minecraft.net", To: bmclapi + "/assets"},
			},
			Timeout: 30 * time.Second,
		},
		Download: Download{
			MaxAttempts:     3,
			Backoff:         time.Second,
			AssetBatchSize:  10,
			MaxConnsPerHost: 10,
			RequestTimeout:  5 * time.Minute,
			UserAgent:       "craftsync",
		},
		RateLimit: RateLimit{
			ServerRPS:   10,
			ServerBurst: 20,
		},
		Log: Log{
			Level:      "info",
			Format:     "json",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// Load loads the configuration from the default config file
func Load() (*Config, error) {
	return LoadFromFile("config/config.yaml")
}

// LoadFromFile loads the configuration from the specified file on top of Default.
// A missing file is not an error.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Download.MaxAttempts < 1 {
		return fmt.Errorf("download.max_attempts must be at least 1, got %d", c.Download.MaxAttempts)
	}
	if c.Download.AssetBatchSize < 1 {
		return fmt.Errorf("download.asset_batch_size must be at least 1, got %d", c.Download.AssetBatchSize)
	}
	if c.Download.LibraryConcurrency < 0 {
		return fmt.Errorf("download.library_concurrency must not be negative")
	}
	if c.Mirror.VersionListURL == "" {
		return fmt.Errorf("mirror.version_list_url is required")
	}
	switch c.Storage.Mode {
	case ModeDocuments, ModeAppLocal, ModeAppParent, ModeCustom:
	default:
		return fmt.Errorf("unknown storage.mode %q", c.Storage.Mode)
	}
	return nil
}

// Layout directories relative to the base path
const (
	LibrariesDir    = "libraries"
	VersionsDir     = "versions"
	AssetIndexesDir = "assets/indexes"
	AssetObjectsDir = "assets/objects"
)

// EnsureLayout creates the directories the pipeline writes into.
// os.MkdirAll is idempotent, so concurrent callers with overlapping parents are safe.
func EnsureLayout(basePath string) error {
	dirs := []string{
		filepath.Join(basePath, LibrariesDir),
		filepath.Join(basePath, VersionsDir),
		filepath.Join(basePath, filepath.FromSlash(AssetIndexesDir)),
		filepath.Join(basePath, filepath.FromSlash(AssetObjectsDir)),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
