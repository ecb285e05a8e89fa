// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/filechain/internal/chainstore"
	"github.com/ManuGH/filechain/internal/log"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment key read by the loader.
const EnvPrefix = "FILECHAIN_"

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
	overrides  []func(*AppConfig)
	// ConsumedEnvKeys records every environment key the loader consulted.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath skips the file stage.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Override registers fn to run after the environment stage and before paths
// are derived. Command-line flags use it to take precedence over everything.
func (l *Loader) Override(fn func(*AppConfig)) *Loader {
	l.overrides = append(l.overrides, fn)
	return l
}

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

// Load resolves the configuration: defaults, then the YAML file (strict),
// then environment overrides, then derived paths and validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	for _, fn := range l.overrides {
		fn(&cfg)
	}
	cfg.Version = l.version

	if err := resolvePaths(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Security.SecretKey == "" {
		key, err := randomKey()
		if err != nil {
			return cfg, fmt.Errorf("generate secret key: %w", err)
		}
		cfg.Security.SecretKey = key
		logger := log.WithComponent("config")
		logger.Warn().
			Str(log.FieldEvent, "config.secret_generated").
			Msg("no secret key configured; generated an ephemeral key, flash cookies will not survive restarts")
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg. Unknown fields are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString(l.key("DATA"), cfg.DataDir)

	cfg.Server.Listen = ParseString(l.key("LISTEN"), cfg.Server.Listen)
	cfg.Server.ShutdownTimeout = ParseDuration(l.key("SHUTDOWN_TIMEOUT"), cfg.Server.ShutdownTimeout)
	cfg.Server.TLSCert = ParseString(l.key("TLS_CERT"), cfg.Server.TLSCert)
	cfg.Server.TLSKey = ParseString(l.key("TLS_KEY"), cfg.Server.TLSKey)
	cfg.Server.TLSAuto = ParseBool(l.key("TLS_AUTO"), cfg.Server.TLSAuto)

	cfg.Storage.Backend = ParseString(l.key("STORE_BACKEND"), cfg.Storage.Backend)
	cfg.Storage.Path = ParseString(l.key("STORE_PATH"), cfg.Storage.Path)

	cfg.Uploads.Dir = ParseString(l.key("UPLOAD_DIR"), cfg.Uploads.Dir)
	cfg.Uploads.MaxBytes = ParseInt64(l.key("MAX_UPLOAD_BYTES"), cfg.Uploads.MaxBytes)

	cfg.Cache.RedisAddr = ParseString(l.key("REDIS_ADDR"), cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = ParseString(l.key("REDIS_PASSWORD"), cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = ParseInt(l.key("REDIS_DB"), cfg.Cache.RedisDB)
	cfg.Cache.TTL = ParseDuration(l.key("CACHE_TTL"), cfg.Cache.TTL)

	cfg.Security.SecretKey = ParseString(l.key("SECRET_KEY"), cfg.Security.SecretKey)
	cfg.Security.RateLimitRPM = ParseInt(l.key("RATE_LIMIT_RPM"), cfg.Security.RateLimitRPM)
	cfg.Security.UploadsPerMinute = ParseInt(l.key("UPLOAD_RPM"), cfg.Security.UploadsPerMinute)
	cfg.Security.UploadBurst = ParseInt(l.key("UPLOAD_BURST"), cfg.Security.UploadBurst)
	cfg.Security.AllowGETActions = ParseBool(l.key("ALLOW_GET_ACTIONS"), cfg.Security.AllowGETActions)

	cfg.Log.Level = ParseString(l.key("LOG_LEVEL"), cfg.Log.Level)
	cfg.Log.Format = ParseString(l.key("LOG_FORMAT"), cfg.Log.Format)

	cfg.Watch.Enabled = ParseBool(l.key("WATCH"), cfg.Watch.Enabled)
	cfg.Watch.Debounce = ParseDuration(l.key("WATCH_DEBOUNCE"), cfg.Watch.Debounce)

	cfg.Telemetry.Exporter = ParseString(l.key("OTEL_EXPORTER"), cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(l.key("OTEL_ENDPOINT"), cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(l.key("OTEL_SAMPLING_RATE"), cfg.Telemetry.SamplingRate)

	cfg.Audit.Concurrency = ParseInt(l.key("AUDIT_CONCURRENCY"), cfg.Audit.Concurrency)
}

// resolvePaths makes DataDir absolute and derives the upload directory and
// store path from it when they are not set.
func resolvePaths(cfg *AppConfig) error {
	if cfg.DataDir == "" {
		return nil
	}
	abs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = abs
	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = filepath.Join(abs, "uploads")
	}
	if cfg.Storage.Path == "" && cfg.Storage.Backend != chainstore.BackendMemory {
		cfg.Storage.Path = chainstore.DefaultPath(cfg.Storage.Backend, abs)
	}
	if cfg.Server.TLSAuto && cfg.Server.TLSCert == "" && cfg.Server.TLSKey == "" {
		cfg.Server.TLSCert = filepath.Join(abs, "certs", "filechain.crt")
		cfg.Server.TLSKey = filepath.Join(abs, "certs", "filechain.key")
	}
	return nil
}

func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
