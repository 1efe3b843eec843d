package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config holds docscan configuration.
// Stored at: {home}/config.yaml
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`
	Rescan    RescanConfig    `mapstructure:"rescan" yaml:"rescan"`
	Upload    UploadConfig    `mapstructure:"upload" yaml:"upload"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// APIConfig configures the backend connection.
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	Token      string        `mapstructure:"token" yaml:"token"` // supports ${ENV_VAR} syntax
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	GetRetries uint          `mapstructure:"get_retries" yaml:"get_retries"`
}

// DetectionConfig configures row-detection polling.
type DetectionConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
}

// RescanConfig configures grouped rescans.
type RescanConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// UploadConfig configures document uploads.
type UploadConfig struct {
	MaxFileSize         int64  `mapstructure:"max_file_size" yaml:"max_file_size"`                 // bytes
	ScanMode            string `mapstructure:"scan_mode" yaml:"scan_mode"`                         // "llm", "standard"
	PdfConversionMethod string `mapstructure:"pdf_conversion_method" yaml:"pdf_conversion_method"` // "standard", "enhanced"
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // "debug", "info", "warn", "error"
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8000/api/v2",
			Token:      "${DOCSCAN_API_TOKEN}",
			Timeout:    10 * time.Minute,
			GetRetries: 3,
		},
		Detection: DetectionConfig{
			PollInterval: 2 * time.Second,
			PollTimeout:  5 * time.Minute,
		},
		Rescan: RescanConfig{
			Concurrency: 5,
		},
		Upload: UploadConfig{
			MaxFileSize:         100 << 20,
			ScanMode:            "llm",
			PdfConversionMethod: "standard",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ResolveToken returns the API token with ${ENV_VAR} references expanded.
func (c *Config) ResolveToken() string {
	return ResolveEnvVars(c.API.Token)
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch c.Upload.ScanMode {
	case "llm", "standard":
	default:
		return fmt.Errorf("upload.scan_mode must be llm or standard, got %q", c.Upload.ScanMode)
	}
	switch c.Upload.PdfConversionMethod {
	case "standard", "enhanced":
	default:
		return fmt.Errorf("upload.pdf_conversion_method must be standard or enhanced, got %q", c.Upload.PdfConversionMethod)
	}
	if c.Detection.PollInterval <= 0 {
		return fmt.Errorf("detection.poll_interval must be positive")
	}
	if c.Rescan.Concurrency < 1 {
		return fmt.Errorf("rescan.concurrency must be at least 1")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
