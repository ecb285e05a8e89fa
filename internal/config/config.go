// SPDX-License-Identifier: MIT

// Package config loads filechain configuration with the precedence
// environment > YAML file > defaults.
package config

import (
	"time"
)

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	// DataDir holds the chain store and, unless overridden, the uploads.
	DataDir string `yaml:"data_dir"`

	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Cache     CacheConfig     `yaml:"cache"`
	Security  SecurityConfig  `yaml:"security"`
	Log       LogConfig       `yaml:"log"`
	Watch     WatchConfig     `yaml:"watch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen            string        `yaml:"listen"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
	// TLSAuto generates a self-signed pair under DataDir/certs when no
	// explicit pair is configured.
	TLSAuto bool `yaml:"tls_auto"`
}

// StorageConfig selects the chain store.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// UploadsConfig configures the blob directory.
type UploadsConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// CacheConfig configures the digest cache. An empty RedisAddr selects the
// in-memory cache.
type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

// SecurityConfig holds the flash-cookie signing key and the request and
// upload rate limits.
type SecurityConfig struct {
	SecretKey    string `yaml:"secret_key"`
	RateLimitRPM int    `yaml:"rate_limit_rpm"`
	// UploadsPerMinute throttles uploads per client; zero disables it.
	UploadsPerMinute int `yaml:"uploads_per_minute"`
	UploadBurst      int `yaml:"upload_burst"`
	// AllowGETActions serves the UI's repair and reset actions on GET as well
	// as POST. GET requests bypass the CSRF origin check.
	AllowGETActions bool `yaml:"allow_get_actions"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// WatchConfig configures the tamper watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// AuditConfig bounds the concurrent file audit.
type AuditConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() AppConfig {
	return AppConfig{
		DataDir: "data",
		Server: ServerConfig{
			Listen:            ":5000",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Storage: StorageConfig{Backend: "json"},
		Uploads: UploadsConfig{MaxBytes: 64 << 20},
		Cache:   CacheConfig{TTL: 10 * time.Minute},
		Security: SecurityConfig{
			RateLimitRPM:     600,
			UploadsPerMinute: 30,
			UploadBurst:      10,
		},
		Log:       LogConfig{Level: "info", Format: "json"},
		Watch:     WatchConfig{Debounce: 500 * time.Millisecond},
		Telemetry: TelemetryConfig{Exporter: "none", SamplingRate: 1.0},
		Audit:     AuditConfig{Concurrency: 4},
	}
}
