package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/movex/dispatch/internal/pkg/apperrors"
	"github.com/movex/dispatch/internal/pkg/constants"
	"github.com/movex/dispatch/internal/pkg/database"
	"github.com/movex/dispatch/internal/pkg/geo"
	"github.com/movex/dispatch/internal/pkg/logger"
	"github.com/movex/dispatch/internal/pkg/models"
)

// DriverRepo is the redis-backed driver presence directory. Presence entries
// are created on first sight and flipped unavailable, never deleted, when a
// driver goes away.
type DriverRepo struct {
	cfg   *models.Config
	redis *database.RedisClient
}

func NewDriverRepository(cfg *models.Config, redisClient *database.RedisClient) *DriverRepo {
	return &DriverRepo{
		cfg:   cfg,
		redis: redisClient,
	}
}

// UpsertPresence writes the complete presence entry, last writer wins
func (r *DriverRepo) UpsertPresence(ctx context.Context, presence *models.DriverPresence) error {
	key := fmt.Sprintf(constants.KeyDriverPresence, presence.DriverID)

	fields := []interface{}{
		constants.FieldName, presence.Name,
		constants.FieldVehModel, presence.Vehicle.Model,
		constants.FieldVehPlate, presence.Vehicle.Plate,
		constants.FieldVehColor, presence.Vehicle.Color,
		constants.FieldAvailable, strconv.FormatBool(presence.Available),
		constants.FieldRideID, presence.RideID,
		constants.FieldTimestamp, strconv.FormatInt(time.Now().Unix(), 10),
	}
	if presence.HasLocation {
		fields = append(fields,
			constants.FieldLatitude, strconv.FormatFloat(presence.Location.Latitude, 'f', -1, 64),
			constants.FieldLongitude, strconv.FormatFloat(presence.Location.Longitude, 'f', -1, 64),
			constants.FieldGeohash, geo.Encode(presence.Location),
		)
	}

	if err := r.redis.HSet(ctx, key, fields...); err != nil {
		return fmt.Errorf("failed to upsert driver presence: %w", err)
	}

	if presence.HasLocation {
		if err := r.redis.GeoAdd(ctx, constants.KeyDriverGeo,
			presence.Location.Longitude, presence.Location.Latitude, presence.DriverID); err != nil {
			return fmt.Errorf("failed to index driver position: %w", err)
		}
	}

	return r.syncAvailableSet(ctx, presence.DriverID, presence.Available)
}

// GetPresence reads a driver's presence entry. A driver never seen before
// yields a not-found error, not a zero-valued entry.
func (r *DriverRepo) GetPresence(ctx context.Context, driverID string) (*models.DriverPresence, error) {
	key := fmt.Sprintf(constants.KeyDriverPresence, driverID)

	fields, err := r.redis.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read driver presence: %w", err)
	}
	if len(fields) == 0 {
		return nil, apperrors.NotFound("driver %s not in directory", driverID)
	}

	presence := &models.DriverPresence{
		DriverID: driverID,
		Name:     fields[constants.FieldName],
		Vehicle: models.Vehicle{
			Model: fields[constants.FieldVehModel],
			Plate: fields[constants.FieldVehPlate],
			Color: fields[constants.FieldVehColor],
		},
		RideID:  fields[constants.FieldRideID],
		Geohash: fields[constants.FieldGeohash],
	}

	presence.Available, _ = strconv.ParseBool(fields[constants.FieldAvailable])

	if ts, err := strconv.ParseInt(fields[constants.FieldTimestamp], 10, 64); err == nil {
		presence.UpdatedAt = time.Unix(ts, 0)
	}

	latStr, latOK := fields[constants.FieldLatitude]
	lngStr, lngOK := fields[constants.FieldLongitude]
	if latOK && lngOK {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		if latErr == nil && lngErr == nil {
			presence.Location = models.Coordinate{Latitude: lat, Longitude: lng}
			presence.HasLocation = true
		}
	}

	return presence, nil
}

// SetAvailability flips the availability flag and keeps the available set in sync
func (r *DriverRepo) SetAvailability(ctx context.Context, driverID string, available bool) error {
	key := fmt.Sprintf(constants.KeyDriverPresence, driverID)

	if err := r.redis.HSet(ctx, key,
		constants.FieldAvailable, strconv.FormatBool(available),
		constants.FieldTimestamp, strconv.FormatInt(time.Now().Unix(), 10),
	); err != nil {
		return fmt.Errorf("failed to set driver availability: %w", err)
	}

	return r.syncAvailableSet(ctx, driverID, available)
}

// SetRideAssignment records the ride a driver is serving and marks them busy
func (r *DriverRepo) SetRideAssignment(ctx context.Context, driverID, rideID string) error {
	key := fmt.Sprintf(constants.KeyDriverPresence, driverID)

	if err := r.redis.HSet(ctx, key,
		constants.FieldRideID, rideID,
		constants.FieldAvailable, "false",
		constants.FieldTimestamp, strconv.FormatInt(time.Now().Unix(), 10),
	); err != nil {
		return fmt.Errorf("failed to set ride assignment: %w", err)
	}

	return r.syncAvailableSet(ctx, driverID, false)
}

// ClearRideAssignment drops the ride link and restores availability
func (r *DriverRepo) ClearRideAssignment(ctx context.Context, driverID string) error {
	key := fmt.Sprintf(constants.KeyDriverPresence, driverID)

	if err := r.redis.HSet(ctx, key,
		constants.FieldRideID, "",
		constants.FieldAvailable, "true",
		constants.FieldTimestamp, strconv.FormatInt(time.Now().Unix(), 10),
	); err != nil {
		return fmt.Errorf("failed to clear ride assignment: %w", err)
	}

	return r.syncAvailableSet(ctx, driverID, true)
}

// UpdateLocation overwrites the driver's last known position
func (r *DriverRepo) UpdateLocation(ctx context.Context, driverID string, location models.Coordinate) error {
	key := fmt.Sprintf(constants.KeyDriverPresence, driverID)

	if err := r.redis.HSet(ctx, key,
		constants.FieldLatitude, strconv.FormatFloat(location.Latitude, 'f', -1, 64),
		constants.FieldLongitude, strconv.FormatFloat(location.Longitude, 'f', -1, 64),
		constants.FieldGeohash, geo.Encode(location),
		constants.FieldTimestamp, strconv.FormatInt(time.Now().Unix(), 10),
	); err != nil {
		return fmt.Errorf("failed to update driver location: %w", err)
	}

	if err := r.redis.GeoAdd(ctx, constants.KeyDriverGeo,
		location.Longitude, location.Latitude, driverID); err != nil {
		return fmt.Errorf("failed to index driver position: %w", err)
	}

	return nil
}

// AvailableDrivers loads the presence entries of every available driver.
// Entries that vanished between the set read and the hash read are skipped.
func (r *DriverRepo) AvailableDrivers(ctx context.Context) ([]*models.DriverPresence, error) {
	ids, err := r.redis.SMembers(ctx, constants.KeyAvailableDrivers)
	if err != nil {
		return nil, fmt.Errorf("failed to list available drivers: %w", err)
	}

	drivers := make([]*models.DriverPresence, 0, len(ids))
	for _, id := range ids {
		presence, err := r.GetPresence(ctx, id)
		if err != nil {
			logger.Debug("skipping stale available-set member",
				logger.String("driver_id", id),
				logger.Err(err))
			continue
		}
		drivers = append(drivers, presence)
	}

	return drivers, nil
}

func (r *DriverRepo) syncAvailableSet(ctx context.Context, driverID string, available bool) error {
	if available {
		if err := r.redis.SAdd(ctx, constants.KeyAvailableDrivers, driverID); err != nil {
			return fmt.Errorf("failed to add driver to available set: %w", err)
		}
		return nil
	}
	if err := r.redis.SRem(ctx, constants.KeyAvailableDrivers, driverID); err != nil {
		return fmt.Errorf("failed to remove driver from available set: %w", err)
	}
	return nil
}
