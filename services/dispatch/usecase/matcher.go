package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/movex/dispatch/internal/pkg/geo"
	"github.com/movex/dispatch/internal/pkg/logger"
	"github.com/movex/dispatch/internal/pkg/models"
	"github.com/movex/dispatch/services/dispatch"
)

// Matcher finds available drivers near a pickup point
type Matcher struct {
	drivers    dispatch.DriverRepo
	radiusKm   float64
	staleAfter time.Duration
}

func NewMatcher(cfg *models.Config, drivers dispatch.DriverRepo) *Matcher {
	radius := cfg.Dispatch.SearchRadiusKm
	if radius <= 0 {
		radius = 10
	}
	staleSec := cfg.Dispatch.LocationStaleTL
	if staleSec <= 0 {
		staleSec = 300
	}
	return &Matcher{
		drivers:    drivers,
		radiusKm:   radius,
		staleAfter: time.Duration(staleSec) * time.Second,
	}
}

// FindAvailable returns available drivers within the search radius of the
// origin, nearest first. Drivers that never reported a position, or whose
// last fix has gone stale, are excluded rather than placed at a made-up
// location.
func (m *Matcher) FindAvailable(ctx context.Context, origin models.Coordinate) ([]models.DriverSummary, error) {
	available, err := m.drivers.AvailableDrivers(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.DriverSummary, 0, len(available))
	for _, presence := range available {
		if !presence.HasLocation {
			logger.DebugCtx(ctx, "skipping driver with unknown position",
				logger.String("driver_id", presence.DriverID))
			continue
		}

		if !presence.UpdatedAt.IsZero() && time.Since(presence.UpdatedAt) > m.staleAfter {
			logger.DebugCtx(ctx, "skipping driver with stale position",
				logger.String("driver_id", presence.DriverID))
			continue
		}

		distance := geo.DistanceKm(origin, presence.Location)
		if distance > m.radiusKm {
			continue
		}

		candidates = append(candidates, models.DriverSummary{
			DriverID:   presence.DriverID,
			Name:       presence.Name,
			Vehicle:    presence.Vehicle,
			DistanceKm: distance,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})

	return candidates, nil
}
