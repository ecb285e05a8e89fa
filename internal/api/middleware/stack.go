// SPDX-License-Identifier: MIT

// Package middleware holds the HTTP ingress chain shared by the UI and the
// JSON API.
package middleware

import (
	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/filechain/internal/log"
)

// StackConfig selects the optional parts of the ingress chain.
type StackConfig struct {
	CSP string // empty uses DefaultCSP
	// TracingService names server spans. Empty disables tracing.
	TracingService string
	// RateLimitRPM is the per-IP budget per minute. Zero disables it.
	RateLimitRPM int
}

// ApplyStack installs the ingress chain on r. The request ID comes first so
// that recovered panics and access logs carry it.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(RequestID, Recoverer, SecurityHeaders(cfg.CSP), Metrics())
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	r.Use(log.Middleware())
	if cfg.RateLimitRPM > 0 {
		r.Use(RequestLimit(cfg.RateLimitRPM))
	}
}
