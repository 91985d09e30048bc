package usecase

import (
	"context"
	"time"

	"github.com/movex/dispatch/internal/pkg/apperrors"
	"github.com/movex/dispatch/internal/pkg/constants"
	"github.com/movex/dispatch/internal/pkg/logger"
	"github.com/movex/dispatch/internal/pkg/models"
	"github.com/movex/dispatch/services/dispatch"
)

// reasonNoDrivers is the system cancellation reason when matching finds nobody
const reasonNoDrivers = "no drivers available"

// reasonDispatchFailed marks rides released after a matching infrastructure error
const reasonDispatchFailed = "dispatch unavailable"

// DispatchService orchestrates ride dispatch: lifecycle transitions, driver
// matching and group fan-out. Notifications are fire-and-forget; a failed
// broadcast never rolls back a committed transition.
type DispatchService struct {
	cfg       *models.Config
	lifecycle *Lifecycle
	matcher   *Matcher
	drivers   dispatch.DriverRepo
	groups    dispatch.GroupGW
	routes    dispatch.RouteGW
}

func NewDispatchService(
	cfg *models.Config,
	lifecycle *Lifecycle,
	matcher *Matcher,
	drivers dispatch.DriverRepo,
	groups dispatch.GroupGW,
	routes dispatch.RouteGW,
) *DispatchService {
	return &DispatchService{
		cfg:       cfg,
		lifecycle: lifecycle,
		matcher:   matcher,
		drivers:   drivers,
		groups:    groups,
		routes:    routes,
	}
}

// EstimateRoute returns distance, duration and fare for a prospective ride
func (s *DispatchService) EstimateRoute(ctx context.Context, origin, destination models.Coordinate) (*models.RouteEstimate, error) {
	return s.routes.Estimate(ctx, origin, destination)
}

// RequestRide creates a ride and offers it to nearby available drivers.
// When nobody is available the ride is cancelled immediately and the rider
// gets exactly one cancellation notice.
func (s *DispatchService) RequestRide(ctx context.Context, req *models.RideRequest) (*models.Ride, []models.DriverSummary, error) {
	if req.Fare <= 0 || req.DistanceKm <= 0 {
		estimate, err := s.routes.Estimate(ctx, req.Origin, req.Destination)
		if err != nil {
			return nil, nil, apperrors.Upstream("route estimation failed", err)
		}
		req.Fare = estimate.Fare
		req.DistanceKm = estimate.DistanceKm
		req.ETAMinutes = estimate.ETAMinutes
	}

	ride, err := s.lifecycle.RequestRide(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	candidates, err := s.matcher.FindAvailable(ctx, req.Origin)
	if err != nil {
		logger.ErrorCtx(ctx, "driver matching failed",
			logger.String("ride_id", ride.ID.String()),
			logger.Err(err))
		// Infrastructure failure, not an empty market. Release the ride and
		// surface the error instead of telling the rider nobody is around.
		if _, cancelErr := s.lifecycle.Cancel(ctx, ride.ID.String(),
			models.ActorSystem, "", reasonDispatchFailed); cancelErr != nil {
			logger.WarnCtx(ctx, "failed to release ride after matching error",
				logger.String("ride_id", ride.ID.String()),
				logger.Err(cancelErr))
		}
		return nil, nil, apperrors.Upstream("driver matching failed", err)
	}

	if len(candidates) == 0 {
		cancelled, cancelErr := s.lifecycle.Cancel(ctx, ride.ID.String(),
			models.ActorSystem, "", reasonNoDrivers)
		if cancelErr != nil {
			return nil, nil, cancelErr
		}
		s.broadcast(ctx, constants.RiderGroup(ride.RiderID), constants.EventRideCancelled,
			models.RideCancelled{
				RideID:          ride.ID.String(),
				CancelledByType: string(models.ActorSystem),
				Reason:          reasonNoDrivers,
			})
		return cancelled, nil, nil
	}

	offer := models.RideOffered{
		RideID:      ride.ID.String(),
		RiderName:   ride.RiderName,
		Origin:      ride.Origin,
		Destination: ride.Destination,
		OriginDesc:  ride.OriginDesc,
		DestDesc:    ride.DestDesc,
		Fare:        ride.Fare,
		DistanceKm:  ride.DistanceKm,
		ETAMinutes:  ride.ETAMinutes,
	}
	for _, candidate := range candidates {
		s.broadcast(ctx, constants.DriverGroup(candidate.DriverID), constants.EventRideOffered, offer)
	}

	return ride, candidates, nil
}

// AcceptRide resolves the acceptance race and fans out the verdict: the
// rider learns who won, losing drivers learn the ride is gone.
func (s *DispatchService) AcceptRide(ctx context.Context, driverID, rideID string) (*models.AcceptResult, error) {
	result, err := s.lifecycle.Accept(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, constants.RiderGroup(result.RiderID), constants.EventRideAccepted,
		models.RideAccepted{
			RideID: rideID,
			Driver: result.Driver,
		})

	taken := models.RideTaken{RideID: rideID}
	for _, loserID := range result.LosingDrivers {
		s.broadcast(ctx, constants.DriverGroup(loserID), constants.EventRideTakenByOther, taken)
	}

	return result, nil
}

// MarkArrived records pickup arrival and tells the rider
func (s *DispatchService) MarkArrived(ctx context.Context, driverID, rideID string) (*models.Ride, error) {
	ride, err := s.lifecycle.MarkArrived(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, constants.RiderGroup(ride.RiderID), constants.EventDriverArrivedAck,
		models.RideStatusEvent{RideID: rideID, Status: string(ride.Status)})

	return ride, nil
}

// StartRide begins the trip and tells the rider
func (s *DispatchService) StartRide(ctx context.Context, driverID, rideID string) (*models.Ride, error) {
	ride, err := s.lifecycle.Start(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, constants.RiderGroup(ride.RiderID), constants.EventRideStarted,
		models.RideStatusEvent{RideID: rideID, Status: string(ride.Status)})

	return ride, nil
}

// FinishRide completes the trip, releases the driver and tells the rider
func (s *DispatchService) FinishRide(ctx context.Context, driverID, rideID, requestedStatus string) (*models.Ride, error) {
	ride, err := s.lifecycle.Finish(ctx, rideID, driverID, requestedStatus)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, constants.RiderGroup(ride.RiderID), constants.EventRideCompleted,
		models.RideStatusEvent{RideID: rideID, Status: string(ride.Status)})

	return ride, nil
}

// CancelRide terminates the ride and notifies the counterpart, when there is one
func (s *DispatchService) CancelRide(ctx context.Context, actor models.ActorType, actorID, rideID, reason string) (*models.Ride, error) {
	ride, err := s.lifecycle.Cancel(ctx, rideID, actor, actorID, reason)
	if err != nil {
		return nil, err
	}

	notice := models.RideCancelled{
		RideID:          rideID,
		CancelledByType: string(actor),
		Reason:          reason,
	}

	counterpart := ride.Counterpart(actor)
	if counterpart != "" {
		group := constants.RiderGroup(counterpart)
		if actor == models.ActorRider {
			group = constants.DriverGroup(counterpart)
		}
		s.broadcast(ctx, group, constants.EventRideCancelled, notice)
	}

	return ride, nil
}

// RateDriver stores the rider's rating and notifies the driver
func (s *DispatchService) RateDriver(ctx context.Context, riderID, rideID string, score int, comment string) (*models.Ride, error) {
	ride, err := s.lifecycle.RateDriver(ctx, rideID, riderID, score, comment)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, constants.DriverGroup(ride.DriverID), constants.EventRatingReceived,
		models.RatingReceived{
			RideID:  rideID,
			Score:   score,
			Comment: comment,
			RatedBy: string(models.ActorRider),
		})

	return ride, nil
}

// RateRider stores the driver's rating and notifies the rider
func (s *DispatchService) RateRider(ctx context.Context, driverID, rideID string, score int, comment string) (*models.Ride, error) {
	ride, err := s.lifecycle.RateRider(ctx, rideID, driverID, score, comment)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, constants.RiderGroup(ride.RiderID), constants.EventRatingReceived,
		models.RatingReceived{
			RideID:  rideID,
			Score:   score,
			Comment: comment,
			RatedBy: string(models.ActorDriver),
		})

	return ride, nil
}

// RelayChat forwards a chat message to the ride counterpart. Messages are
// not persisted.
func (s *DispatchService) RelayChat(ctx context.Context, role models.UserRole, userID, rideID, content string) (*models.Ride, error) {
	if content == "" {
		return nil, apperrors.Validation("chat content is required")
	}

	ride, err := s.lifecycle.rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status.IsTerminal() {
		return nil, apperrors.InvalidTransition("ride is no longer active")
	}

	var group string
	switch role {
	case models.RoleRider:
		if ride.RiderID != userID {
			return nil, apperrors.NotAssociated("rider is not on this ride")
		}
		group = constants.DriverGroup(ride.DriverID)
	case models.RoleDriver:
		if ride.DriverID != userID {
			return nil, apperrors.NotAssociated("driver is not on this ride")
		}
		group = constants.RiderGroup(ride.RiderID)
	default:
		return nil, apperrors.Validation("unknown role")
	}

	s.broadcast(ctx, group, constants.EventChatMessage, models.ChatMessage{
		RideID:  rideID,
		From:    userID,
		Role:    string(role),
		Content: content,
		SentAt:  time.Now(),
	})

	return ride, nil
}

// Identify registers a user's presence and returns their active ride for
// resume. Drivers enter the directory here; a driver with a ride in flight
// comes back as busy and their unreachable flag is cleared.
func (s *DispatchService) Identify(ctx context.Context, role models.UserRole, userID, name string, vehicle *models.Vehicle) (*models.Ride, error) {
	var active *models.Ride
	var err error

	switch role {
	case models.RoleRider:
		active, err = s.lifecycle.ActiveRideByRider(ctx, userID)
	case models.RoleDriver:
		active, err = s.lifecycle.ActiveRideByDriver(ctx, userID)
	default:
		return nil, apperrors.Validation("unknown role")
	}
	if err != nil {
		if apperrors.KindOf(err) != apperrors.KindNotFound {
			return nil, err
		}
		active = nil
	}

	if role == models.RoleDriver {
		presence := &models.DriverPresence{
			DriverID:  userID,
			Name:      name,
			Available: active == nil,
		}
		if vehicle != nil {
			presence.Vehicle = *vehicle
		}
		if active != nil {
			presence.RideID = active.ID.String()
		}

		// Preserve the last known position across reconnects
		if prev, prevErr := s.drivers.GetPresence(ctx, userID); prevErr == nil && prev.HasLocation {
			presence.Location = prev.Location
			presence.HasLocation = true
			if presence.Name == "" {
				presence.Name = prev.Name
			}
			if vehicle == nil {
				presence.Vehicle = prev.Vehicle
			}
		}

		if err := s.drivers.UpsertPresence(ctx, presence); err != nil {
			return nil, err
		}

		if active != nil && active.DriverUnreachable {
			if err := s.lifecycle.rides.SetDriverUnreachable(ctx, active.ID.String(), false); err != nil {
				logger.WarnCtx(ctx, "failed to clear unreachable flag",
					logger.String("ride_id", active.ID.String()),
					logger.Err(err))
			} else {
				active.DriverUnreachable = false
			}
		}
	}

	return active, nil
}

// HandleDisconnect reacts to a user's last connection dropping. A driver
// goes unavailable; if they were serving a ride the rider is warned the
// driver is temporarily unreachable. The ride stays assigned.
func (s *DispatchService) HandleDisconnect(ctx context.Context, role models.UserRole, userID string) error {
	if role != models.RoleDriver {
		return nil
	}

	if err := s.drivers.SetAvailability(ctx, userID, false); err != nil {
		logger.WarnCtx(ctx, "failed to mark driver unavailable on disconnect",
			logger.String("driver_id", userID),
			logger.Err(err))
	}

	active, err := s.lifecycle.ActiveRideByDriver(ctx, userID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil
		}
		return err
	}

	if err := s.lifecycle.rides.SetDriverUnreachable(ctx, active.ID.String(), true); err != nil {
		logger.WarnCtx(ctx, "failed to flag driver unreachable",
			logger.String("ride_id", active.ID.String()),
			logger.Err(err))
	}

	s.broadcast(ctx, constants.RiderGroup(active.RiderID), constants.EventDriverUnreachable,
		models.DriverUnreachable{RideID: active.ID.String()})

	return nil
}

// UpdateDriverLocation stores the position and, while the driver is serving
// a ride, relays it to the rider.
func (s *DispatchService) UpdateDriverLocation(ctx context.Context, driverID string, location models.Coordinate) error {
	if err := s.drivers.UpdateLocation(ctx, driverID, location); err != nil {
		return err
	}

	presence, err := s.drivers.GetPresence(ctx, driverID)
	if err != nil || presence.RideID == "" {
		return nil
	}

	ride, err := s.lifecycle.rides.GetRide(ctx, presence.RideID)
	if err != nil || ride.Status.IsTerminal() {
		return nil
	}

	s.broadcast(ctx, constants.RiderGroup(ride.RiderID), constants.EventDriverLocationUpdate,
		models.DriverLocation{
			RideID:    presence.RideID,
			Latitude:  location.Latitude,
			Longitude: location.Longitude,
		})

	return nil
}

// SetDriverAvailability flips the driver's availability flag
func (s *DispatchService) SetDriverAvailability(ctx context.Context, driverID string, available bool) error {
	return s.drivers.SetAvailability(ctx, driverID, available)
}

// broadcast publishes to a group, logging but not propagating failures
func (s *DispatchService) broadcast(ctx context.Context, group, event string, payload interface{}) {
	if err := s.groups.Broadcast(ctx, group, event, payload); err != nil {
		logger.WarnCtx(ctx, "group broadcast failed",
			logger.String("group", group),
			logger.String("event", event),
			logger.Err(err))
	}
}
