package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/reefwatch/coral-etl/internal/adapter/http"
	"github.com/reefwatch/coral-etl/internal/pipeline"
)

type mockReporter struct {
	err  error
	last *pipeline.Manifest
}

func (m *mockReporter) CheckReadiness(_ context.Context) error { return m.err }
func (m *mockReporter) LastManifest() *pipeline.Manifest       { return m.last }

func newTestServer(reporter *mockReporter) *httpadapter.Server {
	return httpadapter.NewServer(":0", reporter, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockReporter{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(&mockReporter{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(&mockReporter{err: fmt.Errorf("no batch run has completed yet")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no batch run has completed yet", body["error"])
}

func TestLastRun(t *testing.T) {
	t.Run("404 before any run", func(t *testing.T) {
		srv := newTestServer(&mockReporter{})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/lastrun", nil)

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("serves the manifest", func(t *testing.T) {
		srv := newTestServer(&mockReporter{last: &pipeline.Manifest{
			RunID:     "run-1",
			Mode:      "daily",
			Succeeded: 4,
			Failed:    1,
		}})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/lastrun", nil)

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var m pipeline.Manifest
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
		assert.Equal(t, "run-1", m.RunID)
		assert.Equal(t, 4, m.Succeeded)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockReporter{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
