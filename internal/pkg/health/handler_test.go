package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLivenessAlwaysOK(t *testing.T) {
	e := echo.New()
	RegisterHealthEndpoints(e, "dispatch-service", nil)

	for _, path := range []string{"/health", "/healthz"} {
		rec := doRequest(e, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestPingCarriesBuildInfo(t *testing.T) {
	e := echo.New()
	RegisterHealthEndpoints(e, "dispatch-service", nil)

	rec := doRequest(e, "/ping")
	require.Equal(t, http.StatusOK, rec.Code)

	var info BuildInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "dispatch-service", info.ServiceName)
	assert.NotEmpty(t, info.GoVersion)
	assert.False(t, info.ServerTime.IsZero())
}

func TestReadyReflectsProbes(t *testing.T) {
	e := echo.New()
	RegisterHealthEndpoints(e, "dispatch-service", map[string]Probe{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})

	rec := doRequest(e, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var result struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "degraded", result.Status)
	assert.Equal(t, "ok", result.Checks["postgres"])
	assert.Equal(t, "connection refused", result.Checks["redis"])
}

func TestReadyWithAllProbesHealthy(t *testing.T) {
	e := echo.New()
	RegisterHealthEndpoints(e, "dispatch-service", map[string]Probe{
		"postgres": func(ctx context.Context) error { return nil },
	})

	rec := doRequest(e, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
}
