package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the grabber
type Config struct {
	// Telegram API credentials
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Ledger settings
	Ledger LedgerConfig `yaml:"ledger" json:"ledger"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TelegramConfig holds Telegram-specific configuration
type TelegramConfig struct {
	APIID     int    `yaml:"api_id" json:"api_id"`
	APIHash   string `yaml:"api_hash" json:"api_hash"`
	Session   string `yaml:"session" json:"session"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	// LinkConcurrency bounds concurrent page/post fetches.
	LinkConcurrency int `yaml:"link_concurrency" json:"link_concurrency"`
	// ImageConcurrency bounds concurrent image downloads per page.
	ImageConcurrency int           `yaml:"image_concurrency" json:"image_concurrency"`
	DownloadTimeout  time.Duration `yaml:"download_timeout" json:"download_timeout"`
	// MaxRetries is 0 by default: transport failures are reported, not retried.
	MaxRetries int  `yaml:"max_retries" json:"max_retries"`
	FullCrawl  bool `yaml:"full_crawl" json:"full_crawl"`
}

// LedgerConfig holds the dedup ledger configuration
type LedgerConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Session:   "tgrab",
			UserAgent: "Mozilla/5.0 (tgrab)",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Output: OutputConfig{
			BaseDirectory: "./telegraph_images",
		},
		Download: DownloadConfig{
			LinkConcurrency:  4,
			ImageConcurrency: 10,
			DownloadTimeout:  30 * time.Second,
			MaxRetries:       0,
			FullCrawl:        true,
		},
		Ledger: LedgerConfig{
			Path: "processed_links.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if apiID := os.Getenv("TGRAB_API_ID"); apiID != "" {
		var val int
		fmt.Sscanf(apiID, "%d", &val)
		if val > 0 {
			c.Telegram.APIID = val
		}
	}
	if apiHash := os.Getenv("TGRAB_API_HASH"); apiHash != "" {
		c.Telegram.APIHash = apiHash
	}
	if session := os.Getenv("TGRAB_SESSION"); session != "" {
		c.Telegram.Session = session
	}

	if rpm := os.Getenv("TGRAB_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if outputDir := os.Getenv("TGRAB_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if ledgerPath := os.Getenv("TGRAB_LEDGER_PATH"); ledgerPath != "" {
		c.Ledger.Path = ledgerPath
	}

	if concurrent := os.Getenv("TGRAB_LINK_CONCURRENCY"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.LinkConcurrency = val
		}
	}
	if concurrent := os.Getenv("TGRAB_IMAGE_CONCURRENCY"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ImageConcurrency = val
		}
	}

	if logLevel := os.Getenv("TGRAB_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".tgrab.yaml",
		".tgrab.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "tgrab", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "tgrab", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".tgrab.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Download.LinkConcurrency <= 0 {
		errs = append(errs, errors.New("link concurrency must be positive"))
	}
	if c.Download.ImageConcurrency <= 0 {
		errs = append(errs, errors.New("image concurrency must be positive"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Ledger.Path == "" {
		errs = append(errs, errors.New("ledger path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if ledgerPath, ok := flags["ledger"].(string); ok && ledgerPath != "" {
		c.Ledger.Path = ledgerPath
	}
	if concurrent, ok := flags["link-concurrency"].(int); ok && concurrent > 0 {
		c.Download.LinkConcurrency = concurrent
	}
	if concurrent, ok := flags["image-concurrency"].(int); ok && concurrent > 0 {
		c.Download.ImageConcurrency = concurrent
	}
	if full, ok := flags["full"].(bool); ok {
		c.Download.FullCrawl = full
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tgrab.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
