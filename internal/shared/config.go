package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Client      ClientConfig      `toml:"client"`
	Lidarr      LidarrConfig      `toml:"lidarr"`
	MusicBrainz MusicBrainzConfig `toml:"musicbrainz"`
	Polling     PollingConfig     `toml:"polling"`
	Search      SearchConfig      `toml:"search"`
	Database    DatabaseConfig    `toml:"database"`
	Logging     LoggingConfig     `toml:"logging"`
}

// ServerConfig contains settings for the backend HTTP service.
type ServerConfig struct {
	Host  string `toml:"host"`
	Port  int    `toml:"port"`
	Token string `toml:"token"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ClientConfig contains settings for the API client used by the CLI and TUI.
type ClientConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the per-request HTTP timeout.
func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LidarrConfig contains Lidarr connection settings.
type LidarrConfig struct {
	URL      string `toml:"url"`
	APIKey   string `toml:"api_key"`
	PageSize int    `toml:"page_size"`
}

// MusicBrainzConfig contains MusicBrainz search settings.
type MusicBrainzConfig struct {
	BaseURL       string  `toml:"base_url"`
	Contact       string  `toml:"contact"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// PollingConfig controls the download status poller.
type PollingConfig struct {
	IntervalMS   int `toml:"interval_ms"`
	RetryDelayMS int `toml:"retry_delay_ms"`
}

// Interval returns the poll interval.
func (p PollingConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMS) * time.Millisecond
}

// RetryDelay returns the delay before the reconciling fetch after a retry.
func (p PollingConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayMS) * time.Millisecond
}

// SearchConfig controls the typeahead search session.
type SearchConfig struct {
	DebounceMS int `toml:"debounce_ms"`
	MinLength  int `toml:"min_length"`
	Limit      int `toml:"limit"`
}

// Debounce returns the debounce window.
func (s SearchConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoggingConfig contains log level and the log file used by the TUI.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the defaults from the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that would otherwise break the poller or search session.
func (c *Config) Validate() error {
	if c.Polling.IntervalMS <= 0 {
		return fmt.Errorf("%w: polling.interval_ms must be positive", ErrInvalidConfig)
	}
	if c.Polling.RetryDelayMS < 0 {
		return fmt.Errorf("%w: polling.retry_delay_ms must not be negative", ErrInvalidConfig)
	}
	if c.Search.MinLength < 1 {
		return fmt.Errorf("%w: search.min_length must be at least 1", ErrInvalidConfig)
	}
	if c.Search.Limit < 1 {
		return fmt.Errorf("%w: search.limit must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
