// SPDX-License-Identifier: MIT

package config

import (
	"github.com/ManuGH/filechain/internal/chainstore"
	"github.com/ManuGH/filechain/internal/telemetry"
	"github.com/ManuGH/filechain/internal/validate"
)

// Validate reports every invalid field of cfg at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("server.listen", cfg.Server.Listen)
	v.Positive("server.shutdown_timeout", int64(cfg.Server.ShutdownTimeout))
	v.Positive("server.read_header_timeout", int64(cfg.Server.ReadHeaderTimeout))
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		v.AddError("server.tls_cert", "tls_cert and tls_key must be set together", cfg.Server.TLSCert)
	}

	v.Directory("data_dir", cfg.DataDir)
	v.OneOf("storage.backend", cfg.Storage.Backend, chainstore.Backends)
	if cfg.Storage.Backend != chainstore.BackendMemory {
		v.NotEmpty("storage.path", cfg.Storage.Path)
	}

	v.Directory("uploads.dir", cfg.Uploads.Dir)
	v.Positive("uploads.max_bytes", cfg.Uploads.MaxBytes)

	v.NonNegative("cache.ttl", int64(cfg.Cache.TTL))
	v.NonNegative("cache.redis_db", int64(cfg.Cache.RedisDB))

	v.MinLen("security.secret_key", cfg.Security.SecretKey, 16)
	v.NonNegative("security.rate_limit_rpm", int64(cfg.Security.RateLimitRPM))
	v.NonNegative("security.uploads_per_minute", int64(cfg.Security.UploadsPerMinute))
	if cfg.Security.UploadsPerMinute > 0 {
		v.Positive("security.upload_burst", int64(cfg.Security.UploadBurst))
	}

	v.OneOf("log.level", cfg.Log.Level, validate.LogLevels)
	v.OneOf("log.format", cfg.Log.Format, []string{"json", "console"})

	if cfg.Watch.Enabled {
		v.Positive("watch.debounce", int64(cfg.Watch.Debounce))
	}

	v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter,
		[]string{telemetry.ExporterNone, telemetry.ExporterGRPC, telemetry.ExporterHTTP})
	if cfg.Telemetry.Exporter != telemetry.ExporterNone {
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}
	v.Fraction("telemetry.sampling_rate", cfg.Telemetry.SamplingRate)

	v.Positive("audit.concurrency", int64(cfg.Audit.Concurrency))

	return v.Err()
}
