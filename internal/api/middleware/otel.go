// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request using the global tracer provider
// and propagator. Operational endpoints are not traced.
func Tracing(service string) func(http.Handler) http.Handler {
	opts := []otelhttp.Option{
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
		otelhttp.WithSpanOptions(trace.WithAttributes(attribute.String("service.name", service))),
		otelhttp.WithFilter(shouldTrace),
		otelhttp.WithSpanNameFormatter(spanNameFormatter),
	}
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service, opts...)
	}
}

func shouldTrace(r *http.Request) bool { return !isOperational(r.URL.Path) }

// spanNameFormatter names spans "METHOD /path" without the query string.
func spanNameFormatter(_ string, r *http.Request) string {
	return r.Method + " " + r.URL.Path
}
