package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/movex/dispatch/internal/pkg/geo"
	"github.com/movex/dispatch/internal/pkg/logger"
	"github.com/movex/dispatch/internal/pkg/models"
)

// peak windows for the fare multiplier, local server time
const (
	morningPeakStart = 7
	morningPeakEnd   = 9
	eveningPeakStart = 17
	eveningPeakEnd   = 20
)

// RouteClient estimates route distance, duration and fare against an external
// routing service, with a deterministic local fallback when the service is
// unreachable. The fallback is computed exactly once per call, never retried.
type RouteClient struct {
	baseURL    string
	httpClient *http.Client
	pricing    models.PricingConfig
	routing    models.RoutingConfig
	now        func() time.Time
}

// NewRouteClient creates a route/fare estimation client
func NewRouteClient(cfg *models.Config) *RouteClient {
	timeout := time.Duration(cfg.Routing.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &RouteClient{
		baseURL: cfg.Routing.URL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pricing: cfg.Pricing,
		routing: cfg.Routing,
		now:     time.Now,
	}
}

// routeRequest is the request structure for the routing service
type routeRequest struct {
	Origin      models.Coordinate `json:"origin"`
	Destination models.Coordinate `json:"destination"`
}

// routeResponse is the response structure from the routing service
type routeResponse struct {
	DistanceKm float64 `json:"distance_km"`
	ETAMinutes int     `json:"eta_minutes"`
	Fare       float64 `json:"fare"`
}

// Estimate returns the route estimate for an origin/destination pair
func (c *RouteClient) Estimate(ctx context.Context, origin, destination models.Coordinate) (*models.RouteEstimate, error) {
	if c.baseURL == "" {
		return c.localEstimate(origin, destination), nil
	}

	estimate, err := c.remoteEstimate(ctx, origin, destination)
	if err != nil {
		logger.WarnCtx(ctx, "routing service unavailable, using local estimate",
			logger.Err(err))
		return c.localEstimate(origin, destination), nil
	}

	return estimate, nil
}

func (c *RouteClient) remoteEstimate(ctx context.Context, origin, destination models.Coordinate) (*models.RouteEstimate, error) {
	url := fmt.Sprintf("%s/routes/estimate", c.baseURL)

	reqBody, err := json.Marshal(routeRequest{Origin: origin, Destination: destination})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send route request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing service returned status %d", resp.StatusCode)
	}

	var response routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode route response: %w", err)
	}

	return &models.RouteEstimate{
		DistanceKm: response.DistanceKm,
		ETAMinutes: response.ETAMinutes,
		Fare:       response.Fare,
	}, nil
}

// localEstimate derives a straight-line estimate scaled by a road factor,
// with the configured tariff applied.
func (c *RouteClient) localEstimate(origin, destination models.Coordinate) *models.RouteEstimate {
	roadFactor := c.routing.RoadFactor
	if roadFactor <= 0 {
		roadFactor = 1.25
	}
	distance := geo.DistanceKm(origin, destination) * roadFactor

	avgSpeed := c.routing.AvgSpeedKm
	if avgSpeed <= 0 {
		avgSpeed = 30
	}
	etaMinutes := int(math.Ceil(distance / avgSpeed * 60))

	fare := c.pricing.BaseFare +
		c.pricing.PerKmRate*distance +
		c.pricing.PerMinuteRate*float64(etaMinutes)
	if c.isPeakHour(c.now()) {
		fare *= c.pricing.PeakMultiplier
	}
	if fare < c.pricing.MinimumFare {
		fare = c.pricing.MinimumFare
	}
	fare = math.Round(fare*100) / 100

	return &models.RouteEstimate{
		DistanceKm: math.Round(distance*100) / 100,
		ETAMinutes: etaMinutes,
		Fare:       fare,
		Fallback:   true,
	}
}

func (c *RouteClient) isPeakHour(t time.Time) bool {
	hour := t.Hour()
	morning := hour >= morningPeakStart && hour < morningPeakEnd
	evening := hour >= eveningPeakStart && hour < eveningPeakEnd
	return morning || evening
}
