package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/gospool/internal/errors"
)

func okChecker() HealthChecker {
	return HealthCheckerFunc(func(context.Context) error { return nil })
}

func failingChecker(msg string) HealthChecker {
	return HealthCheckerFunc(func(context.Context) error { return errors.New(msg) })
}

func probe(t *testing.T, h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthReportsEveryChecker(t *testing.T) {
	m := NewHealthManager("1.2.3")
	m.RegisterChecker("catalog", okChecker())
	m.RegisterChecker("store", okChecker())

	rec := probe(t, m.HealthHandler, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, map[string]string{"catalog": StatusHealthy, "store": StatusHealthy}, resp.Checks)
}

func TestHealthUnhealthyStoreIs503(t *testing.T) {
	m := NewHealthManager("1.2.3")
	m.RegisterChecker("catalog", okChecker())
	m.RegisterChecker("store", failingChecker("database is locked"))

	rec := probe(t, m.ReadinessHandler, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.CodeServiceUnavailable, resp.Error.Code)

	checks, ok := resp.Error.Details["checks"].(map[string]any)
	require.True(t, ok, "details carry the per-check results")
	assert.Equal(t, StatusUnhealthy, checks["store"])
	assert.Equal(t, StatusHealthy, checks["catalog"])
}

func TestHealthDeadlineIsDegraded(t *testing.T) {
	m := NewHealthManager("dev")
	m.RegisterChecker("page_log", HealthCheckerFunc(func(ctx context.Context) error {
		return context.DeadlineExceeded
	}))

	rec := probe(t, m.ReadinessHandler, "/health/ready")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, StatusTimeout, resp.Checks["page_log"])
}

func TestDetermineOverallStatus(t *testing.T) {
	m := NewHealthManager("dev")
	tests := []struct {
		name   string
		checks map[string]string
		want   string
	}{
		{"no checks", nil, StatusHealthy},
		{"timeout degrades", map[string]string{"store": StatusTimeout, "catalog": StatusHealthy}, StatusDegraded},
		{"unhealthy wins", map[string]string{"store": StatusTimeout, "catalog": StatusUnhealthy}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.determineOverallStatus(tt.checks))
		})
	}
}

func TestLivenessSkipsCheckers(t *testing.T) {
	m := NewHealthManager("dev")
	m.RegisterChecker("store", failingChecker("closed"))

	assert.Equal(t, http.StatusOK, probe(t, m.LivenessHandler, "/health/live").Code)
	assert.Equal(t, http.StatusOK, probe(t, m.StartupHandler, "/health/startup").Code)
}

func TestGlobalHandlers(t *testing.T) {
	original := globalHealthManager
	t.Cleanup(func() { globalHealthManager = original })

	handlers := map[string]http.HandlerFunc{
		"/health":         HealthHandler,
		"/health/live":    LivenessHandler,
		"/health/ready":   ReadinessHandler,
		"/health/startup": StartupHandler,
	}

	globalHealthManager = nil
	assert.Nil(t, GetHealthManager())
	for path, h := range handlers {
		assert.Equal(t, http.StatusServiceUnavailable, probe(t, h, path).Code, path)
	}

	m := InitHealthManager("test-version")
	assert.Same(t, m, GetHealthManager())
	for path, h := range handlers {
		assert.Equal(t, http.StatusOK, probe(t, h, path).Code, path)
	}
}
