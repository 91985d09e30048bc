package dispatch

import (
	"context"

	"github.com/movex/dispatch/internal/pkg/models"
)

// RideRepo defines the interface for ride data access operations
type RideRepo interface {
	CreateRide(ctx context.Context, ride *models.Ride) error
	GetRide(ctx context.Context, rideID string) (*models.Ride, error)

	// AcceptRide atomically assigns the driver iff the ride is still in the
	// requested state. It returns the updated ride, or a conflict error when
	// another driver already won.
	AcceptRide(ctx context.Context, rideID, driverID string) (*models.Ride, error)

	// UpdateStatus performs a guarded transition to the target status,
	// stamping the transition timestamp. It fails when the ride is not in
	// one of the allowed predecessor statuses.
	UpdateStatus(ctx context.Context, rideID string, to models.RideStatus, allowedFrom ...models.RideStatus) (*models.Ride, error)

	// CancelRide terminates a non-terminal ride, recording who cancelled and why.
	CancelRide(ctx context.Context, rideID string, actor models.ActorType, actorID, reason string) (*models.Ride, error)

	SetDriverRating(ctx context.Context, rideID string, rating int, comment string) (*models.Ride, error)
	SetRiderRating(ctx context.Context, rideID string, rating int, comment string) (*models.Ride, error)
	SetDriverUnreachable(ctx context.Context, rideID string, unreachable bool) error

	// ActiveRideByRider and ActiveRideByDriver return the user's single
	// non-terminal ride, or a not-found error when none exists.
	ActiveRideByRider(ctx context.Context, riderID string) (*models.Ride, error)
	ActiveRideByDriver(ctx context.Context, driverID string) (*models.Ride, error)
}

// DriverRepo defines the interface for the driver presence directory
type DriverRepo interface {
	UpsertPresence(ctx context.Context, presence *models.DriverPresence) error
	GetPresence(ctx context.Context, driverID string) (*models.DriverPresence, error)
	SetAvailability(ctx context.Context, driverID string, available bool) error
	SetRideAssignment(ctx context.Context, driverID, rideID string) error
	ClearRideAssignment(ctx context.Context, driverID string) error
	UpdateLocation(ctx context.Context, driverID string, location models.Coordinate) error

	// AvailableDrivers returns the presence entries of every driver
	// currently marked available.
	AvailableDrivers(ctx context.Context) ([]*models.DriverPresence, error)
}
