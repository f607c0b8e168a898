package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config holds all daemon configuration.
type Config struct {
	DataDir    string      `json:"data_dir"`
	SocketPath string      `json:"socket_path"`
	DBPath     string      `json:"db_path"`
	LogLevel   string      `json:"log_level"`
	Watch      WatchConfig `json:"watch"`
}

// WatchConfig configures the filesystem watcher subsystem.
type WatchConfig struct {
	// Enabled gates the whole watcher. Read once at startup; when false the
	// daemon serves status queries but never starts a watch goroutine.
	Enabled bool `json:"enabled"`

	// QuietIntervalMs is the debounce window between the first event of a
	// burst and the coalesced refresh.
	QuietIntervalMs int `json:"quiet_interval_ms"`

	// PollTimeoutMs bounds each backend wait so shutdown stays responsive.
	PollTimeoutMs int `json:"poll_timeout_ms"`

	// IgnorePatterns are extra glob patterns excluded from watching, on top
	// of the built-in .git exclusion.
	IgnorePatterns []string `json:"ignore_patterns"`
}

// QuietInterval returns the debounce window as a duration.
func (w WatchConfig) QuietInterval() time.Duration {
	return time.Duration(w.QuietIntervalMs) * time.Millisecond
}

// PollTimeout returns the backend wait bound as a duration.
func (w WatchConfig) PollTimeout() time.Duration {
	return time.Duration(w.PollTimeoutMs) * time.Millisecond
}

// DefaultDataDir returns the default data directory (~/.repowatch).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".repowatch")
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		DataDir:    dataDir,
		SocketPath: filepath.Join(dataDir, "repowatch.sock"),
		DBPath:     filepath.Join(dataDir, "repowatch.db"),
		LogLevel:   "info",
		Watch: WatchConfig{
			Enabled:         true,
			QuietIntervalMs: 888,
			PollTimeoutMs:   333,
		},
	}
}

// Load reads configuration from a JSON file, falling back to defaults for
// any unset fields. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Re-derive paths if DataDir was overridden but socket/db paths were not.
	if cfg.SocketPath == "" {
		cfg.SocketPath = filepath.Join(cfg.DataDir, "repowatch.sock")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "repowatch.db")
	}
	if cfg.Watch.QuietIntervalMs <= 0 {
		cfg.Watch.QuietIntervalMs = 888
	}
	if cfg.Watch.PollTimeoutMs <= 0 {
		cfg.Watch.PollTimeoutMs = 333
	}

	return cfg, nil
}

// EnsureDataDir creates the data directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// ConfigPath returns the default path to the config file.
func ConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.json")
}
