package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/JakeFAU/promoforge/internal/config"
)

var initOnce sync.Once

func setup(t *testing.T) {
	t.Helper()
	initOnce.Do(func() {
		_, err := Init(context.Background(), config.TelemetryConfig{SampleRatio: 1})
		require.NoError(t, err)
	})
}

func TestTransportPropagatesTraceContext(t *testing.T) {
	setup(t)

	headers := make(chan string, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("traceparent")
	}))
	defer upstream.Close()

	ctx, span := otel.Tracer("test").Start(context.Background(), "outbound")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream.URL, nil)
	require.NoError(t, err)
	resp, err := (&http.Client{Transport: Transport(nil)}).Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	traceparent := <-headers
	require.NotEmpty(t, traceparent)
	assert.Contains(t, traceparent, TraceID(ctx))
}

func TestHandlerStartsServerSpan(t *testing.T) {
	setup(t)

	var seen string
	h := Handler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Len(t, seen, 32)
}

func TestTraceIDOutsideSpan(t *testing.T) {
	t.Parallel()

	assert.Empty(t, TraceID(context.Background()))
}
