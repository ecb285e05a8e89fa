// SPDX-License-Identifier: MIT

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	surfaceKey
)

// Surfaces that start ledger work.
const (
	SurfaceUI    = "ui"
	SurfaceAPI   = "api"
	SurfaceCLI   = "cli"
	SurfaceWatch = "watch"
)

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithSurface tags ctx with the entry point that triggered the work.
func WithSurface(ctx context.Context, surface string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, surfaceKey, surface)
}

// Surface returns the entry point stored in ctx, or "".
func Surface(ctx context.Context) string {
	return stringValue(ctx, surfaceKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// Enrich adds the request ID and surface found in ctx to l.
func Enrich(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	rid, surface := RequestID(ctx), Surface(ctx)
	if rid == "" && surface == "" {
		return l
	}
	b := l.With()
	if rid != "" {
		b = b.Str(FieldRequestID, rid)
	}
	if surface != "" {
		b = b.Str(FieldSurface, surface)
	}
	return b.Logger()
}

// For returns the component logger enriched from ctx.
func For(ctx context.Context, component string) zerolog.Logger {
	return Enrich(ctx, WithComponent(component))
}
