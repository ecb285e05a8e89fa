// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(nil, "req-1") //nolint:staticcheck // nil ctx is accepted
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
	assert.Empty(t, RequestID(nil)) //nolint:staticcheck
}

func TestSurface(t *testing.T) {
	ctx := WithSurface(context.Background(), SurfaceWatch)
	assert.Equal(t, SurfaceWatch, Surface(ctx))
	assert.Empty(t, RequestID(ctx))
}

func TestEnrich(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithSurface(WithRequestID(context.Background(), "req-9"), SurfaceAPI)

	l := Enrich(ctx, zerolog.New(&buf))
	l.Info().Msg("upload")

	assert.Contains(t, buf.String(), `"request_id":"req-9"`)
	assert.Contains(t, buf.String(), `"surface":"api"`)
}

func TestEnrich_Empty(t *testing.T) {
	var buf bytes.Buffer
	l := Enrich(context.Background(), zerolog.New(&buf))
	l.Info().Msg("x")
	assert.NotContains(t, buf.String(), "request_id")
	assert.NotContains(t, buf.String(), "surface")
}
