// SPDX-License-Identifier: MIT

// Package api serves the filechain web UI, the JSON API and the operational
// endpoints.
package api

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/filechain/internal/api/middleware"
	"github.com/ManuGH/filechain/internal/health"
	"github.com/ManuGH/filechain/internal/ledger"
	"github.com/ManuGH/filechain/internal/log"
	"github.com/ManuGH/filechain/internal/ratelimit"
)

// multipartOverhead is the body allowance beyond MaxUploadBytes for
// multipart framing and other form fields.
const multipartOverhead = 1 << 20

// Config configures the HTTP surface.
type Config struct {
	// SecretKey signs flash cookies.
	SecretKey string
	// RateLimitRPM is the per-IP budget per minute; zero disables limiting.
	RateLimitRPM int
	// MaxUploadBytes bounds upload request bodies.
	MaxUploadBytes int64
	// TracingService names server spans; empty disables HTTP tracing.
	TracingService string
	// Location renders UI timestamps. Defaults to time.Local.
	Location *time.Location
	// AllowedOrigins are accepted by CSRF checks in addition to the server's own origin.
	AllowedOrigins []string
	// UploadsPerMinute and UploadBurst throttle uploads per client; zero disables it.
	UploadsPerMinute int
	UploadBurst      int
	// AllowGETActions also serves /repair and /reset on GET. Those requests
	// carry no origin to check, so any page the user visits can trigger them.
	AllowGETActions bool
}

// Server holds the HTTP handlers.
type Server struct {
	cfg    Config
	ledger *ledger.Service
	health *health.Manager
	flash  flashCodec
	tmpl   *template.Template
	logger zerolog.Logger

	uploads   *ratelimit.Limiter
	validator func(http.Handler) http.Handler
}

// New creates a Server.
func New(cfg Config, svc *ledger.Service, hm *health.Manager) (*Server, error) {
	if svc == nil || hm == nil {
		return nil, errors.New("api: ledger and health manager are required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("api: secret key is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	tmpl, err := parseTemplates(cfg.Location)
	if err != nil {
		return nil, err
	}
	doc, err := LoadOpenAPI(context.Background())
	if err != nil {
		return nil, err
	}
	validator, err := middleware.OpenAPIValidator(doc)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:    cfg,
		ledger: svc,
		health: hm,
		flash:  flashCodec{key: []byte(cfg.SecretKey)},
		tmpl:   tmpl,
		logger: log.WithComponent("api"),
		uploads: ratelimit.New(ratelimit.Config{
			Operation: "upload",
			PerMinute: cfg.UploadsPerMinute,
			Burst:     cfg.UploadBurst,
		}),
		validator: validator,
	}, nil
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	middleware.ApplyStack(r, middleware.StackConfig{
		TracingService: s.cfg.TracingService,
		RateLimitRPM:   s.cfg.RateLimitRPM,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Surface(log.SurfaceUI))
		r.Use(middleware.CSRFProtection(s.cfg.AllowedOrigins...))

		r.Get("/", s.handleIndex)
		r.Post("/upload", s.handleUpload)
		r.Get("/download/{filename}", s.handleDownload)
		r.Get("/verify", s.handleVerify)
		r.Post("/verify", s.handleVerify)
		r.Post("/repair", s.handleRepair)
		r.Post("/reset", s.handleReset)
		if s.cfg.AllowGETActions {
			r.Get("/repair", s.handleRepair)
			r.Get("/reset", s.handleReset)
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Surface(log.SurfaceAPI))
		r.Use(s.validator)
		r.Get("/openapi.yaml", s.apiOpenAPI)
		r.Get("/files", s.apiListFiles)
		r.Post("/files", s.apiUploadFile)
		r.Get("/files/audit", s.apiAuditFiles)
		r.Get("/files/{filename}", s.apiDownloadFile)
		r.Get("/chain", s.apiGetChain)
		r.Get("/chain/verify", s.apiVerifyChain)
		r.Post("/chain/repair", s.apiRepairChain)
		r.Post("/chain/reset", s.apiResetChain)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed")
	})
	return r
}
