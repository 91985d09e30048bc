package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/movex/dispatch/internal/pkg/apperrors"
	"github.com/movex/dispatch/internal/pkg/logger"
	"github.com/movex/dispatch/internal/pkg/models"
	"github.com/movex/dispatch/services/dispatch"
)

// Lifecycle owns every ride state transition. All mutations go through the
// store's conditional updates, so concurrent calls resolve to exactly one
// winner and the rest get typed errors.
type Lifecycle struct {
	rides   dispatch.RideRepo
	drivers dispatch.DriverRepo
}

func NewLifecycle(rides dispatch.RideRepo, drivers dispatch.DriverRepo) *Lifecycle {
	return &Lifecycle{
		rides:   rides,
		drivers: drivers,
	}
}

// RequestRide validates and creates a new ride in the requested state.
// A rider with an active ride cannot open a second one.
func (l *Lifecycle) RequestRide(ctx context.Context, req *models.RideRequest) (*models.Ride, error) {
	if req.RiderID == "" {
		return nil, apperrors.Validation("rider id is required")
	}
	if req.Origin == (models.Coordinate{}) || req.Destination == (models.Coordinate{}) {
		return nil, apperrors.Validation("origin and destination coordinates are required")
	}
	if req.Fare <= 0 {
		return nil, apperrors.Validation("fare must be positive")
	}

	if existing, err := l.rides.ActiveRideByRider(ctx, req.RiderID); err == nil {
		return nil, apperrors.Conflict("rider %s already has an active ride %s", req.RiderID, existing.ID)
	} else if apperrors.KindOf(err) != apperrors.KindNotFound {
		return nil, err
	}

	ride := &models.Ride{
		ID:          uuid.New(),
		RiderID:     req.RiderID,
		RiderName:   req.RiderName,
		RiderPhone:  req.RiderPhone,
		Status:      models.RideStatusRequested,
		Origin:      req.Origin,
		Destination: req.Destination,
		OriginDesc:  req.OriginDesc,
		DestDesc:    req.DestDesc,
		Fare:        req.Fare,
		DistanceKm:  req.DistanceKm,
		ETAMinutes:  req.ETAMinutes,
		RequestedAt: time.Now(),
	}

	if err := l.rides.CreateRide(ctx, ride); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "ride requested",
		logger.String("ride_id", ride.ID.String()),
		logger.String("rider_id", ride.RiderID))

	return ride, nil
}

// Accept resolves the acceptance race for one driver. The store's conditional
// update decides the winner; this method then binds the driver in the
// directory and reports which drivers lost.
func (l *Lifecycle) Accept(ctx context.Context, rideID, driverID string) (*models.AcceptResult, error) {
	ride, err := l.rides.AcceptRide(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}

	if err := l.drivers.SetRideAssignment(ctx, driverID, rideID); err != nil {
		logger.WarnCtx(ctx, "failed to bind ride in driver directory",
			logger.String("driver_id", driverID),
			logger.String("ride_id", rideID),
			logger.Err(err))
	}

	result := &models.AcceptResult{
		Ride:    ride,
		RiderID: ride.RiderID,
	}

	if presence, err := l.drivers.GetPresence(ctx, driverID); err == nil {
		result.Driver = &models.DriverSummary{
			DriverID: driverID,
			Name:     presence.Name,
			Vehicle:  presence.Vehicle,
		}
	} else {
		// Directory miss degrades the notification, not the acceptance.
		logger.WarnCtx(ctx, "driver missing from directory after accept",
			logger.String("driver_id", driverID),
			logger.Err(err))
		result.Driver = &models.DriverSummary{DriverID: driverID}
	}

	if remaining, err := l.drivers.AvailableDrivers(ctx); err == nil {
		for _, p := range remaining {
			if p.DriverID != driverID {
				result.LosingDrivers = append(result.LosingDrivers, p.DriverID)
			}
		}
	}

	logger.InfoCtx(ctx, "ride accepted",
		logger.String("ride_id", rideID),
		logger.String("driver_id", driverID))

	return result, nil
}

// MarkArrived records that the assigned driver reached the pickup point
func (l *Lifecycle) MarkArrived(ctx context.Context, rideID, driverID string) (*models.Ride, error) {
	if err := l.checkDriverAssociation(ctx, rideID, driverID); err != nil {
		return nil, err
	}

	return l.rides.UpdateStatus(ctx, rideID, models.RideStatusDriverArrived,
		models.RideStatusAccepted, models.RideStatusEnRoute)
}

// Start moves an arrived ride into progress
func (l *Lifecycle) Start(ctx context.Context, rideID, driverID string) (*models.Ride, error) {
	if err := l.checkDriverAssociation(ctx, rideID, driverID); err != nil {
		return nil, err
	}

	return l.rides.UpdateStatus(ctx, rideID, models.RideStatusInProgress,
		models.RideStatusDriverArrived)
}

// Finish completes an in-progress ride and releases the driver. The caller
// may send the pending-rating status variant; it is normalized to completed
// and the original value is kept in the log only.
func (l *Lifecycle) Finish(ctx context.Context, rideID, driverID, requestedStatus string) (*models.Ride, error) {
	if err := l.checkDriverAssociation(ctx, rideID, driverID); err != nil {
		return nil, err
	}

	if requestedStatus != "" && requestedStatus != string(models.RideStatusCompleted) {
		if requestedStatus != string(models.RideStatusCompletedPendingRating) {
			return nil, apperrors.Validation("unsupported finish status %q", requestedStatus)
		}
		logger.InfoCtx(ctx, "normalizing finish status",
			logger.String("ride_id", rideID),
			logger.String("requested_status", requestedStatus))
	}

	ride, err := l.rides.UpdateStatus(ctx, rideID, models.RideStatusCompleted,
		models.RideStatusInProgress)
	if err != nil {
		return nil, err
	}

	if err := l.drivers.ClearRideAssignment(ctx, driverID); err != nil {
		logger.WarnCtx(ctx, "failed to release driver after finish",
			logger.String("driver_id", driverID),
			logger.Err(err))
	}

	logger.InfoCtx(ctx, "ride completed",
		logger.String("ride_id", rideID),
		logger.String("driver_id", driverID))

	return ride, nil
}

// Cancel terminates a non-terminal ride. Riders and drivers may only cancel
// rides they belong to; the system actor may cancel any ride.
func (l *Lifecycle) Cancel(ctx context.Context, rideID string, actor models.ActorType, actorID, reason string) (*models.Ride, error) {
	ride, err := l.rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	switch actor {
	case models.ActorRider:
		if ride.RiderID != actorID {
			return nil, apperrors.NotAssociated("rider %s is not on ride %s", actorID, rideID)
		}
	case models.ActorDriver:
		if ride.DriverID != actorID {
			return nil, apperrors.NotAssociated("driver %s is not on ride %s", actorID, rideID)
		}
	case models.ActorSystem:
		// unrestricted
	default:
		return nil, apperrors.Validation("unknown actor type %q", actor)
	}

	cancelled, err := l.rides.CancelRide(ctx, rideID, actor, actorID, reason)
	if err != nil {
		return nil, err
	}

	if cancelled.DriverID != "" {
		if err := l.drivers.ClearRideAssignment(ctx, cancelled.DriverID); err != nil {
			logger.WarnCtx(ctx, "failed to release driver after cancel",
				logger.String("driver_id", cancelled.DriverID),
				logger.Err(err))
		}
	}

	logger.InfoCtx(ctx, "ride cancelled",
		logger.String("ride_id", rideID),
		logger.String("actor_type", string(actor)),
		logger.String("actor_id", actorID),
		logger.String("reason", reason))

	return cancelled, nil
}

// RateDriver stores the rider's rating of the driver on a completed ride
func (l *Lifecycle) RateDriver(ctx context.Context, rideID, riderID string, score int, comment string) (*models.Ride, error) {
	if err := validateScore(score); err != nil {
		return nil, err
	}

	ride, err := l.rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.RiderID != riderID {
		return nil, apperrors.NotAssociated("rider %s is not on ride %s", riderID, rideID)
	}

	return l.rides.SetDriverRating(ctx, rideID, score, comment)
}

// RateRider stores the driver's rating of the rider on a completed ride
func (l *Lifecycle) RateRider(ctx context.Context, rideID, driverID string, score int, comment string) (*models.Ride, error) {
	if err := validateScore(score); err != nil {
		return nil, err
	}

	ride, err := l.rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, apperrors.NotAssociated("driver %s is not on ride %s", driverID, rideID)
	}

	return l.rides.SetRiderRating(ctx, rideID, score, comment)
}

// ActiveRideByRider returns the rider's non-terminal ride, if any
func (l *Lifecycle) ActiveRideByRider(ctx context.Context, riderID string) (*models.Ride, error) {
	return l.rides.ActiveRideByRider(ctx, riderID)
}

// ActiveRideByDriver returns the driver's non-terminal ride, if any
func (l *Lifecycle) ActiveRideByDriver(ctx context.Context, driverID string) (*models.Ride, error) {
	return l.rides.ActiveRideByDriver(ctx, driverID)
}

func (l *Lifecycle) checkDriverAssociation(ctx context.Context, rideID, driverID string) error {
	ride, err := l.rides.GetRide(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.DriverID != driverID {
		return apperrors.NotAssociated("driver %s is not on ride %s", driverID, rideID)
	}
	return nil
}

func validateScore(score int) error {
	if score < 1 || score > 5 {
		return apperrors.Validation("rating score must be between 1 and 5")
	}
	return nil
}
