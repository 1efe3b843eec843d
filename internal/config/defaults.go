package config

import "time"

// Entry is one documented configuration key and its default value.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns every configuration key with its default.
func DefaultEntries() []Entry {
	return DefaultConfig().Entries()
}

// Entries flattens c into documented keys. Durations are written as
// strings so generated files stay readable.
func (c *Config) Entries() []Entry {
	return []Entry{
		// API
		{
			Key:         "api.base_url",
			Value:       c.API.BaseURL,
			Description: "Base URL of the document-scanning backend",
		},
		{
			Key:         "api.token",
			Value:       c.API.Token,
			Description: "Bearer token (uses environment variable)",
		},
		{
			Key:         "api.timeout",
			Value:       durationString(c.API.Timeout),
			Description: "HTTP timeout for backend requests",
		},
		{
			Key:         "api.get_retries",
			Value:       c.API.GetRetries,
			Description: "Attempts for GET requests that fail to connect",
		},

		// Row detection
		{
			Key:         "detection.poll_interval",
			Value:       durationString(c.Detection.PollInterval),
			Description: "Interval between row-detection status polls",
		},
		{
			Key:         "detection.poll_timeout",
			Value:       durationString(c.Detection.PollTimeout),
			Description: "How long detect run waits for an outcome",
		},

		// Rescan
		{
			Key:         "rescan.concurrency",
			Value:       c.Rescan.Concurrency,
			Description: "Maximum concurrent page-group rescans",
		},

		// Upload
		{
			Key:         "upload.max_file_size",
			Value:       c.Upload.MaxFileSize,
			Description: "Largest PDF accepted for upload, in bytes",
		},
		{
			Key:         "upload.scan_mode",
			Value:       c.Upload.ScanMode,
			Description: "Scan mode for uploads: llm or standard",
		},
		{
			Key:         "upload.pdf_conversion_method",
			Value:       c.Upload.PdfConversionMethod,
			Description: "PDF rasterization: standard or enhanced",
		},

		// Logging
		{
			Key:         "log.level",
			Value:       c.Log.Level,
			Description: "Log level: debug, info, warn or error",
		},
	}
}

// GetDefault returns the default entry for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

func durationString(d time.Duration) string {
	return d.String()
}
