package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movex/dispatch/internal/pkg/models"
)

func matcherConfig(radiusKm float64) *models.Config {
	cfg := &models.Config{}
	cfg.Dispatch.SearchRadiusKm = radiusKm
	return cfg
}

func TestFindAvailable_SortsByDistance(t *testing.T) {
	drivers := newFakeDriverRepo()
	origin := models.Coordinate{Latitude: -30.0300, Longitude: -51.2300}

	drivers.addAvailable("far", "Far", -30.0700, -51.2700)
	drivers.addAvailable("near", "Near", -30.0310, -51.2310)
	drivers.addAvailable("mid", "Mid", -30.0450, -51.2450)

	matcher := NewMatcher(matcherConfig(10), drivers)
	candidates, err := matcher.FindAvailable(context.Background(), origin)
	require.NoError(t, err)

	require.Len(t, candidates, 3)
	assert.Equal(t, "near", candidates[0].DriverID)
	assert.Equal(t, "mid", candidates[1].DriverID)
	assert.Equal(t, "far", candidates[2].DriverID)
	assert.Less(t, candidates[0].DistanceKm, candidates[1].DistanceKm)
	assert.Less(t, candidates[1].DistanceKm, candidates[2].DistanceKm)
}

func TestFindAvailable_RadiusFilter(t *testing.T) {
	drivers := newFakeDriverRepo()
	origin := models.Coordinate{Latitude: -30.03, Longitude: -51.23}

	drivers.addAvailable("near", "Near", -30.0310, -51.2310)
	// Roughly 85 km away
	drivers.addAvailable("another-city", "Away", -30.70, -51.80)

	matcher := NewMatcher(matcherConfig(10), drivers)
	candidates, err := matcher.FindAvailable(context.Background(), origin)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "near", candidates[0].DriverID)
}

func TestFindAvailable_SkipsDriversWithoutPosition(t *testing.T) {
	drivers := newFakeDriverRepo()
	origin := models.Coordinate{Latitude: -30.03, Longitude: -51.23}

	drivers.addAvailable("located", "Located", -30.0310, -51.2310)
	// Present and available, but never reported a position
	_ = drivers.UpsertPresence(context.Background(), &models.DriverPresence{
		DriverID:  "ghost",
		Name:      "Ghost",
		Available: true,
	})

	matcher := NewMatcher(matcherConfig(10), drivers)
	candidates, err := matcher.FindAvailable(context.Background(), origin)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "located", candidates[0].DriverID)
}

func TestFindAvailable_SkipsStalePositions(t *testing.T) {
	drivers := newFakeDriverRepo()
	origin := models.Coordinate{Latitude: -30.03, Longitude: -51.23}

	_ = drivers.UpsertPresence(context.Background(), &models.DriverPresence{
		DriverID:    "fresh",
		Name:        "Fresh",
		Available:   true,
		Location:    models.Coordinate{Latitude: -30.0310, Longitude: -51.2310},
		HasLocation: true,
		UpdatedAt:   time.Now(),
	})
	_ = drivers.UpsertPresence(context.Background(), &models.DriverPresence{
		DriverID:    "stale",
		Name:        "Stale",
		Available:   true,
		Location:    models.Coordinate{Latitude: -30.0320, Longitude: -51.2320},
		HasLocation: true,
		UpdatedAt:   time.Now().Add(-10 * time.Minute),
	})

	matcher := NewMatcher(matcherConfig(10), drivers)
	candidates, err := matcher.FindAvailable(context.Background(), origin)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "fresh", candidates[0].DriverID)
}

func TestFindAvailable_Empty(t *testing.T) {
	matcher := NewMatcher(matcherConfig(10), newFakeDriverRepo())

	candidates, err := matcher.FindAvailable(context.Background(),
		models.Coordinate{Latitude: -30.03, Longitude: -51.23})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
