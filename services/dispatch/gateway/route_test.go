package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movex/dispatch/internal/pkg/models"
)

func routeTestConfig(url string) *models.Config {
	cfg := &models.Config{}
	cfg.Routing.URL = url
	cfg.Routing.TimeoutSec = 1
	cfg.Routing.AvgSpeedKm = 30
	cfg.Routing.RoadFactor = 1.25
	cfg.Pricing.BaseFare = 2.50
	cfg.Pricing.PerKmRate = 0.90
	cfg.Pricing.PerMinuteRate = 0.15
	cfg.Pricing.MinimumFare = 5.00
	cfg.Pricing.PeakMultiplier = 1.35
	return cfg
}

// offPeak is a fixed 14:00 local time
var offPeak = time.Date(2024, 3, 12, 14, 0, 0, 0, time.Local)

func TestEstimate_RemoteService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/routes/estimate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req routeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, -30.03, req.Origin.Latitude, 0.001)

		_ = json.NewEncoder(w).Encode(routeResponse{
			DistanceKm: 7.2,
			ETAMinutes: 18,
			Fare:       12.40,
		})
	}))
	defer server.Close()

	client := NewRouteClient(routeTestConfig(server.URL))
	client.now = func() time.Time { return offPeak }

	estimate, err := client.Estimate(context.Background(),
		models.Coordinate{Latitude: -30.03, Longitude: -51.23},
		models.Coordinate{Latitude: -30.08, Longitude: -51.18},
	)
	require.NoError(t, err)
	assert.Equal(t, 7.2, estimate.DistanceKm)
	assert.Equal(t, 18, estimate.ETAMinutes)
	assert.Equal(t, 12.40, estimate.Fare)
	assert.False(t, estimate.Fallback)
}

func TestEstimate_FallbackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewRouteClient(routeTestConfig(server.URL))
	client.now = func() time.Time { return offPeak }

	estimate, err := client.Estimate(context.Background(),
		models.Coordinate{Latitude: -30.03, Longitude: -51.23},
		models.Coordinate{Latitude: -30.08, Longitude: -51.18},
	)
	require.NoError(t, err)
	assert.True(t, estimate.Fallback)
	assert.Greater(t, estimate.DistanceKm, 0.0)
	assert.Greater(t, estimate.ETAMinutes, 0)
	assert.GreaterOrEqual(t, estimate.Fare, 5.00)
}

func TestEstimate_NoURLUsesLocal(t *testing.T) {
	client := NewRouteClient(routeTestConfig(""))
	client.now = func() time.Time { return offPeak }

	estimate, err := client.Estimate(context.Background(),
		models.Coordinate{Latitude: -30.03, Longitude: -51.23},
		models.Coordinate{Latitude: -30.08, Longitude: -51.18},
	)
	require.NoError(t, err)
	assert.True(t, estimate.Fallback)
}

func TestLocalEstimate_MinimumFareClamp(t *testing.T) {
	client := NewRouteClient(routeTestConfig(""))
	client.now = func() time.Time { return offPeak }

	// A very short hop falls below the minimum fare
	estimate := client.localEstimate(
		models.Coordinate{Latitude: -30.0300, Longitude: -51.2300},
		models.Coordinate{Latitude: -30.0305, Longitude: -51.2305},
	)
	assert.Equal(t, 5.00, estimate.Fare)
}

func TestLocalEstimate_PeakMultiplier(t *testing.T) {
	client := NewRouteClient(routeTestConfig(""))

	origin := models.Coordinate{Latitude: -30.03, Longitude: -51.23}
	dest := models.Coordinate{Latitude: -30.13, Longitude: -51.13}

	client.now = func() time.Time { return offPeak }
	offPeakEstimate := client.localEstimate(origin, dest)

	client.now = func() time.Time {
		return time.Date(2024, 3, 12, 8, 0, 0, 0, time.Local)
	}
	peakEstimate := client.localEstimate(origin, dest)

	assert.Greater(t, peakEstimate.Fare, offPeakEstimate.Fare)
	assert.InDelta(t, offPeakEstimate.Fare*1.35, peakEstimate.Fare, 0.02)
}

func TestIsPeakHour(t *testing.T) {
	client := NewRouteClient(routeTestConfig(""))

	tests := []struct {
		hour int
		peak bool
	}{
		{6, false},
		{7, true},
		{8, true},
		{9, false},
		{14, false},
		{17, true},
		{19, true},
		{20, false},
		{23, false},
	}

	for _, tt := range tests {
		at := time.Date(2024, 3, 12, tt.hour, 30, 0, 0, time.Local)
		assert.Equal(t, tt.peak, client.isPeakHour(at), "hour %d", tt.hour)
	}
}
