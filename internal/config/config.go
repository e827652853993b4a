package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Download DownloadConfig `mapstructure:"download"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	URLs     []string       `mapstructure:"urls"`
}

// DownloadConfig contains download settings
type DownloadConfig struct {
	Dir              string `mapstructure:"dir"`
	TempDir          string `mapstructure:"temp_dir"`
	Workers          int    `mapstructure:"workers"`
	MaxRetries       int    `mapstructure:"max_retries"`
	RetryDelay       string `mapstructure:"retry_delay"`
	RequestTimeout   string `mapstructure:"request_timeout"`
	ChunkSizeKB      int    `mapstructure:"chunk_size_kb"`
	ProgressInterval string `mapstructure:"progress_interval"`
}

// ProbeConfig contains connectivity probe settings
type ProbeConfig struct {
	URL     string `mapstructure:"url"`
	Timeout string `mapstructure:"timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains history database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from the specified file path. A missing file is
// not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	viper.Reset()
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("download.dir", "downloads")
	viper.SetDefault("download.temp_dir", "temp")
	viper.SetDefault("download.workers", 5)
	viper.SetDefault("download.max_retries", 10)
	viper.SetDefault("download.retry_delay", "5s")
	viper.SetDefault("download.request_timeout", "30s")
	viper.SetDefault("download.chunk_size_kb", 8)
	viper.SetDefault("download.progress_interval", "500ms")
	viper.SetDefault("probe.url", "https://www.google.com")
	viper.SetDefault("probe.timeout", "5s")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("database.path", "")

	if err := viper.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Download.Dir == "" {
		return fmt.Errorf("download.dir is required")
	}
	if c.Download.TempDir == "" {
		return fmt.Errorf("download.temp_dir is required")
	}
	if c.Download.Workers < 1 || c.Download.Workers > 32 {
		return fmt.Errorf("download.workers must be between 1 and 32")
	}
	if c.Download.MaxRetries < 1 {
		return fmt.Errorf("download.max_retries must be positive")
	}
	if c.Download.ChunkSizeKB < 1 {
		return fmt.Errorf("download.chunk_size_kb must be positive")
	}

	if _, err := time.ParseDuration(c.Download.RetryDelay); err != nil {
		return fmt.Errorf("invalid download.retry_delay: %w", err)
	}
	if _, err := time.ParseDuration(c.Download.RequestTimeout); err != nil {
		return fmt.Errorf("invalid download.request_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Download.ProgressInterval); err != nil {
		return fmt.Errorf("invalid download.progress_interval: %w", err)
	}

	if c.Probe.URL == "" {
		return fmt.Errorf("probe.url is required")
	}
	if _, err := time.ParseDuration(c.Probe.Timeout); err != nil {
		return fmt.Errorf("invalid probe.timeout: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetRetryDelay returns the retry delay as time.Duration
func (c *DownloadConfig) GetRetryDelay() time.Duration {
	d, _ := time.ParseDuration(c.RetryDelay)
	if d == 0 {
		return 5 * time.Second
	}
	return d
}

// GetRequestTimeout returns the request timeout as time.Duration
func (c *DownloadConfig) GetRequestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.RequestTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetProgressInterval returns the progress update interval as time.Duration
func (c *DownloadConfig) GetProgressInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProgressInterval)
	if d == 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetChunkSize returns the chunk size in bytes
func (c *DownloadConfig) GetChunkSize() int {
	if c.ChunkSizeKB <= 0 {
		return 8 * 1024
	}
	return c.ChunkSizeKB * 1024
}

// GetTimeout returns the probe timeout as time.Duration
func (c *ProbeConfig) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 5 * time.Second
	}
	return d
}

// HistoryPath returns the history database path, defaulting to a file next
// to the partial downloads.
func (c *Config) HistoryPath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Download.TempDir, "history.db")
}
