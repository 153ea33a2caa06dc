package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-crawler/internal/crawler"
)

type stubStats struct {
	summary crawler.Summary
}

func (s stubStats) Snapshot() crawler.Summary { return s.summary }

func newTestServer() *Server {
	visited := crawler.NewVisitedSet()
	visited.TryClaim("https://docs.example.com")
	visited.TryClaim("https://docs.example.com/a")
	stats := stubStats{summary: crawler.Summary{PagesFetched: 2, PagesPersisted: 2}}
	return NewServer("run-123", stats, visited, zap.NewNop())
}

func TestHealthz(t *testing.T) {
	srv := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestProgress(t *testing.T) {
	srv := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp progressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-123", resp.RunID)
	assert.Equal(t, 2, resp.VisitedURLs)
	assert.Equal(t, int64(2), resp.Stats.PagesFetched)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
}

func TestMetricsExposesPrometheusText(t *testing.T) {
	srv := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
