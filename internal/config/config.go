// Package config provides configuration types and helpers for rumcollect.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/bimmerbailey/rumcollect/internal/privacy"
)

// Config holds the application-wide configuration.
type Config struct {
	Format    string          `mapstructure:"format"`
	Verbose   bool            `mapstructure:"verbose"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Redaction RedactionConfig `mapstructure:"redaction"`
	Model     ModelConfig     `mapstructure:"model"`
	Tables    TablesConfig    `mapstructure:"tables"`
	Collector CollectorConfig `mapstructure:"collector"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// ServerConfig holds settings for the beacon collector HTTP server.
type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	ReadTimeout     string `mapstructure:"read_timeout"`     // e.g. "5s"
	ShutdownTimeout string `mapstructure:"shutdown_timeout"` // e.g. "10s"
}

// RedactionConfig holds configuration for URL path redaction.
type RedactionConfig struct {
	// Filters lists the filters to apply, in order.
	// Available: jwt, pnr, uuid, email
	Filters []string `mapstructure:"filters"`

	PNR privacy.PNRConfig `mapstructure:"pnr"`

	// MaxPathLength caps the bytes of a path handed to the filters.
	MaxPathLength int `mapstructure:"max_path_length"`
}

// ModelConfig selects the PII tree ensemble.
type ModelConfig struct {
	Path      string  `mapstructure:"path"` // empty uses the embedded model
	Threshold float64 `mapstructure:"threshold"`
}

// TablesConfig selects the n-gram corpus.
type TablesConfig struct {
	Corpus string `mapstructure:"corpus"` // empty uses the embedded corpus
}

// CollectorConfig holds settings for beacon persistence.
type CollectorConfig struct {
	// Sinks lists where events go: console, file, slog
	Sinks     []string `mapstructure:"sinks"`
	File      string   `mapstructure:"file"`
	RateLimit float64  `mapstructure:"rate_limit"` // requests per second per client, 0 disables
	Burst     int      `mapstructure:"burst"`
	Host      string   `mapstructure:"host"` // reported as the event host
}

// PrivacyOptions converts the redaction settings into pipeline options.
func (r RedactionConfig) PrivacyOptions() privacy.Options {
	return privacy.Options{
		Filters:   r.Filters,
		PNR:       r.PNR,
		MaxLength: r.MaxPathLength,
	}
}

// ReadTimeoutDuration parses ReadTimeout, falling back to def.
func (s ServerConfig) ReadTimeoutDuration(def time.Duration) time.Duration {
	return durationOr(s.ReadTimeout, def)
}

// ShutdownTimeoutDuration parses ShutdownTimeout, falling back to def.
func (s ServerConfig) ShutdownTimeoutDuration(def time.Duration) time.Duration {
	return durationOr(s.ShutdownTimeout, def)
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ParseLevel converts a level name to a slog.Level. Unknown names report
// false and map to info.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "dbg":
		return slog.LevelDebug, true
	case "info", "inf", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "err":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Record is a single beacon event read back from a collector log.
type Record struct {
	Raw        string                 `json:"-" yaml:"-"`
	File       string                 `json:"file,omitempty" yaml:"file,omitempty"`
	Line       int                    `json:"line" yaml:"line"`
	Time       time.Time              `json:"time,omitempty" yaml:"time,omitempty"`
	Host       string                 `json:"host,omitempty" yaml:"host,omitempty"`
	URL        string                 `json:"url,omitempty" yaml:"url,omitempty"`
	Referer    string                 `json:"referer,omitempty" yaml:"referer,omitempty"`
	Target     string                 `json:"target,omitempty" yaml:"target,omitempty"`
	Source     string                 `json:"source,omitempty" yaml:"source,omitempty"`
	Checkpoint string                 `json:"checkpoint,omitempty" yaml:"checkpoint,omitempty"`
	ID         string                 `json:"id,omitempty" yaml:"id,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	Weight     int                    `json:"weight,omitempty" yaml:"weight,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty" yaml:"fields,omitempty"`
}
