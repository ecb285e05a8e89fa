// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/filechain/internal/api"
	"github.com/ManuGH/filechain/internal/blobstore"
	"github.com/ManuGH/filechain/internal/cache"
	"github.com/ManuGH/filechain/internal/chainstore"
	"github.com/ManuGH/filechain/internal/config"
	"github.com/ManuGH/filechain/internal/health"
	"github.com/ManuGH/filechain/internal/ledger"
	"github.com/ManuGH/filechain/internal/log"
	"github.com/ManuGH/filechain/internal/telemetry"
	"github.com/ManuGH/filechain/internal/tls"
	"github.com/ManuGH/filechain/internal/watch"
)

// ServiceName identifies the daemon in traces and logs.
const ServiceName = "filechaind"

const memoryCacheCleanup = time.Minute

// Build wires the chain store, digest cache, upload store, ledger, health
// checks, HTTP surface and watcher described by cfg into a Daemon. Resources
// opened here are released by the daemon's shutdown hooks, or immediately if
// Build fails.
func Build(ctx context.Context, cfg *config.AppConfig) (d *Daemon, err error) {
	logger := log.WithComponent("daemon")

	var hooks []namedHook
	addHook := func(name string, h ShutdownHook) { hooks = append(hooks, namedHook{name: name, hook: h}) }
	defer func() {
		if err == nil {
			return
		}
		for i := len(hooks) - 1; i >= 0; i-- {
			_ = hooks[i].hook(context.Background())
		}
	}()

	tcfg := telemetry.Config{
		ServiceName:    ServiceName,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	}
	tp, err := telemetry.NewProvider(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	addHook("telemetry", tp.Shutdown)

	store, err := chainstore.Open(chainstore.Config{Backend: cfg.Storage.Backend, Path: cfg.Storage.Path})
	if err != nil {
		return nil, fmt.Errorf("open chain store: %w", err)
	}
	addHook("chainstore", func(context.Context) error { return store.Close() })

	digests, redisCache := openDigestCache(ctx, cfg)
	addHook("cache", func(context.Context) error { return digests.Close() })

	blobs, err := blobstore.New(cfg.Uploads.Dir,
		blobstore.WithMaxBytes(cfg.Uploads.MaxBytes),
		blobstore.WithDigestCache(digests, cfg.Cache.TTL),
	)
	if err != nil {
		return nil, fmt.Errorf("open upload directory: %w", err)
	}

	svc, err := ledger.Open(ctx, ledger.Options{
		Store:            store,
		Blobs:            blobs,
		AuditConcurrency: cfg.Audit.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("chainstore", store.Ping))
	hm.RegisterChecker(health.NewChainChecker(svc.Valid))
	hm.RegisterChecker(health.NewDirChecker("uploads", cfg.Uploads.Dir))
	if redisCache != nil {
		hm.RegisterChecker(health.NewOptionalPingChecker("redis", redisCache.HealthCheck))
	}

	tracingService := ""
	if tcfg.Enabled() {
		tracingService = ServiceName
	}
	srv, err := api.New(api.Config{
		SecretKey:        cfg.Security.SecretKey,
		RateLimitRPM:     cfg.Security.RateLimitRPM,
		MaxUploadBytes:   cfg.Uploads.MaxBytes,
		TracingService:   tracingService,
		UploadsPerMinute: cfg.Security.UploadsPerMinute,
		UploadBurst:      cfg.Security.UploadBurst,
		AllowGETActions:  cfg.Security.AllowGETActions,
	}, svc, hm)
	if err != nil {
		return nil, err
	}

	if cfg.Server.TLSAuto {
		if err := tls.EnsureCertificates(tls.Config{
			CertPath: cfg.Server.TLSCert,
			KeyPath:  cfg.Server.TLSKey,
			Logger:   log.WithComponent("tls"),
		}); err != nil {
			return nil, fmt.Errorf("provision TLS certificate: %w", err)
		}
	}

	var tasks []Task
	if cfg.Watch.Enabled {
		w := watch.New(cfg.Uploads.Dir, cfg.Watch.Debounce, svc)
		tasks = append(tasks, Task{Name: "watch", Run: w.Run})
	}

	d, err = New(Config{
		ListenAddr:        cfg.Server.Listen,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		TLSCert:           cfg.Server.TLSCert,
		TLSKey:            cfg.Server.TLSKey,
	}, Deps{
		Logger:  logger,
		Handler: srv.Handler(),
		Tasks:   tasks,
	})
	if err != nil {
		return nil, err
	}
	for _, h := range hooks {
		d.RegisterShutdownHook(h.name, h.hook)
	}

	logger.Info().
		Str(log.FieldEvent, "daemon.built").
		Str("backend", store.Backend()).
		Str("store_path", cfg.Storage.Path).
		Str("upload_dir", cfg.Uploads.Dir).
		Str("chain_source", svc.Source()).
		Bool("redis", redisCache != nil).
		Bool("watch", cfg.Watch.Enabled).
		Str("exporter", cfg.Telemetry.Exporter).
		Msg("filechain daemon wired")
	return d, nil
}

// openDigestCache connects to Redis when configured and falls back to the
// in-memory cache if Redis is unreachable. The second result is nil unless
// Redis is in use.
func openDigestCache(ctx context.Context, cfg *config.AppConfig) (cache.Cache, *cache.RedisCache) {
	logger := log.WithComponent("cache")
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemoryCache(memoryCacheCleanup), nil
	}
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).
			Str(log.FieldEvent, "cache.redis_unavailable").
			Str("addr", cfg.Cache.RedisAddr).
			Msg("redis unavailable, using in-memory digest cache")
		return cache.NewMemoryCache(memoryCacheCleanup), nil
	}
	return rc, rc
}
