package server

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/muza/internal/engine"
	"github.com/lazypower/muza/internal/metrics"
)

func testServer(t *testing.T, opts ...Option) (*Server, *engine.Engine) {
	t.Helper()
	g := engine.NewGraph(nil, engine.WithRand(rand.New(rand.NewPCG(1, 2))))
	eng := engine.NewEngine(g, nil)
	t.Cleanup(eng.Stop)
	return New(eng, "test-version", opts...), eng
}

func do(t *testing.T, srv http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, httptest.NewRequest("GET", "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decodeBody(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-version", body["version"])
	assert.Equal(t, 3.0, body["nodes"]) // bootstrap phrase
	assert.Equal(t, false, body["provider"])
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := testServer(t, WithCORSOrigins([]string{"http://localhost:5173"}))

	req := httptest.NewRequest("OPTIONS", "/api/stats", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := do(t, srv, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t, WithMetrics(metrics.NewCollector()))

	do(t, srv, httptest.NewRequest("GET", "/api/stats", nil))
	w := do(t, srv, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/api/stats"`)
}

func TestMetricsUnmatchedRoutesShareOneLabel(t *testing.T) {
	srv, _ := testServer(t, WithMetrics(metrics.NewCollector()))

	for i := 0; i < 5; i++ {
		w := do(t, srv, httptest.NewRequest("GET", fmt.Sprintf("/junk-%d", i), nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	}
	w := do(t, srv, httptest.NewRequest("GET", "/metrics", nil))
	body := w.Body.String()

	assert.NotContains(t, body, "/junk-")
	assert.Contains(t, body, `muza_http_requests_total{method="GET",route="unmatched",status="404"} 5`)
}

func TestMetricsNotMountedWithoutCollector(t *testing.T) {
	srv, _ := testServer(t)
	w := do(t, srv, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
