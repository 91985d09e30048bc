package dispatch

import (
	"context"

	"github.com/movex/dispatch/internal/pkg/models"
)

// DispatchUC defines the interface for ride dispatch business logic
type DispatchUC interface {
	// Ride lifecycle
	RequestRide(ctx context.Context, req *models.RideRequest) (*models.Ride, []models.DriverSummary, error)
	AcceptRide(ctx context.Context, driverID, rideID string) (*models.AcceptResult, error)
	MarkArrived(ctx context.Context, driverID, rideID string) (*models.Ride, error)
	StartRide(ctx context.Context, driverID, rideID string) (*models.Ride, error)

	// FinishRide accepts the pending-rating status variant and normalizes it
	// before storage.
	FinishRide(ctx context.Context, driverID, rideID, requestedStatus string) (*models.Ride, error)
	CancelRide(ctx context.Context, actor models.ActorType, actorID, rideID, reason string) (*models.Ride, error)

	// Ratings
	RateDriver(ctx context.Context, riderID, rideID string, score int, comment string) (*models.Ride, error)
	RateRider(ctx context.Context, driverID, rideID string, score int, comment string) (*models.Ride, error)

	// Chat
	RelayChat(ctx context.Context, role models.UserRole, userID, rideID, content string) (*models.Ride, error)

	// Session lifecycle. Identify returns the user's active ride, if any,
	// so a reconnecting client can resume.
	Identify(ctx context.Context, role models.UserRole, userID, name string, vehicle *models.Vehicle) (*models.Ride, error)
	HandleDisconnect(ctx context.Context, role models.UserRole, userID string) error

	// Driver presence
	UpdateDriverLocation(ctx context.Context, driverID string, location models.Coordinate) error
	SetDriverAvailability(ctx context.Context, driverID string, available bool) error

	// Route estimation for ride requests that do not carry a fare
	EstimateRoute(ctx context.Context, origin, destination models.Coordinate) (*models.RouteEstimate, error)
}
