package websocket

import (
	"context"
	"encoding/json"

	"github.com/movex/dispatch/internal/pkg/apperrors"
	"github.com/movex/dispatch/internal/pkg/constants"
	"github.com/movex/dispatch/internal/pkg/logger"
	"github.com/movex/dispatch/internal/pkg/models"
)

// Per-event handlers. Successful mutations are acknowledged directly on the
// acting session; counterpart notifications travel through the group hub
// inside the usecase.

func (h *SessionHandler) handleRequestRide(ctx context.Context, sess *session, data json.RawMessage) error {
	if sess.role != models.RoleRider {
		return apperrors.Validation("only riders can request rides")
	}

	var req models.RideRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return apperrors.Validation("malformed request_ride payload")
	}
	req.RiderID = sess.userID
	if req.RiderName == "" {
		req.RiderName = sess.name
	}
	if req.RiderName == "" {
		// Degrade to a placeholder rather than failing delivery downstream
		req.RiderName = "Rider"
	}

	ride, candidates, err := h.uc.RequestRide(ctx, &req)
	if err != nil {
		return err
	}

	logger.InfoCtx(ctx, "ride requested",
		logger.String("ride_id", ride.ID.String()),
		logger.String("rider_id", sess.userID),
		logger.Int("candidates", len(candidates)))

	return sess.client.SendEvent(constants.EventRequestRide, ride)
}

func (h *SessionHandler) handleAcceptRide(ctx context.Context, sess *session, data json.RawMessage) error {
	if sess.role != models.RoleDriver {
		return apperrors.Validation("only drivers can accept rides")
	}

	var req models.AcceptRideRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return apperrors.Validation("malformed accept_ride payload")
	}
	if req.RideID == "" {
		return apperrors.Validation("ride_id is required")
	}

	result, err := h.uc.AcceptRide(ctx, sess.userID, req.RideID)
	if err != nil {
		return err
	}

	return sess.client.SendEvent(constants.EventRideAccepted, models.RideAccepted{
		RideID: req.RideID,
		Driver: result.Driver,
	})
}

func (h *SessionHandler) handleLocationUpdate(ctx context.Context, sess *session, data json.RawMessage) error {
	if sess.role != models.RoleDriver {
		return apperrors.Validation("only drivers report locations")
	}

	var req models.LocationUpdateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return apperrors.Validation("malformed location_update payload")
	}
	if req.Latitude == 0 && req.Longitude == 0 {
		return apperrors.Validation("location is required")
	}

	// Pings get no acknowledgment
	return h.uc.UpdateDriverLocation(ctx, sess.userID, models.Coordinate{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
}

func (h *SessionHandler) handleDriverArrived(ctx context.Context, sess *session, data json.RawMessage) error {
	ride, err := h.rideAction(ctx, sess, data, func(req *models.RideActionRequest) (*models.Ride, error) {
		return h.uc.MarkArrived(ctx, sess.userID, req.RideID)
	})
	if err != nil {
		return err
	}
	return sess.client.SendEvent(constants.EventDriverArrived,
		models.RideStatusEvent{RideID: ride.ID.String(), Status: string(ride.Status)})
}

func (h *SessionHandler) handleStartRide(ctx context.Context, sess *session, data json.RawMessage) error {
	ride, err := h.rideAction(ctx, sess, data, func(req *models.RideActionRequest) (*models.Ride, error) {
		return h.uc.StartRide(ctx, sess.userID, req.RideID)
	})
	if err != nil {
		return err
	}
	return sess.client.SendEvent(constants.EventStartRide,
		models.RideStatusEvent{RideID: ride.ID.String(), Status: string(ride.Status)})
}

func (h *SessionHandler) handleFinishRide(ctx context.Context, sess *session, data json.RawMessage) error {
	ride, err := h.rideAction(ctx, sess, data, func(req *models.RideActionRequest) (*models.Ride, error) {
		return h.uc.FinishRide(ctx, sess.userID, req.RideID, req.Status)
	})
	if err != nil {
		return err
	}
	return sess.client.SendEvent(constants.EventFinishRide,
		models.RideStatusEvent{RideID: ride.ID.String(), Status: string(ride.Status)})
}

// rideAction parses the shared driver-action payload and runs the mutation
func (h *SessionHandler) rideAction(
	_ context.Context,
	sess *session,
	data json.RawMessage,
	run func(*models.RideActionRequest) (*models.Ride, error),
) (*models.Ride, error) {
	if sess.role != models.RoleDriver {
		return nil, apperrors.Validation("only the assigned driver can do this")
	}

	var req models.RideActionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperrors.Validation("malformed ride action payload")
	}
	if req.RideID == "" {
		return nil, apperrors.Validation("ride_id is required")
	}

	return run(&req)
}

func (h *SessionHandler) handleCancelRide(ctx context.Context, sess *session, data json.RawMessage) error {
	var req models.CancelRideRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return apperrors.Validation("malformed cancel_ride payload")
	}
	if req.RideID == "" {
		return apperrors.Validation("ride_id is required")
	}

	actor := models.ActorRider
	if sess.role == models.RoleDriver {
		actor = models.ActorDriver
	}

	ride, err := h.uc.CancelRide(ctx, actor, sess.userID, req.RideID, req.Reason)
	if err != nil {
		return err
	}

	return sess.client.SendEvent(constants.EventRideCancelled, models.RideCancelled{
		RideID:          ride.ID.String(),
		CancelledByType: string(actor),
		Reason:          req.Reason,
	})
}

func (h *SessionHandler) handleRateDriver(ctx context.Context, sess *session, data json.RawMessage) error {
	if sess.role != models.RoleRider {
		return apperrors.Validation("only riders rate drivers")
	}
	return h.rate(ctx, sess, data, h.uc.RateDriver)
}

func (h *SessionHandler) handleRateRider(ctx context.Context, sess *session, data json.RawMessage) error {
	if sess.role != models.RoleDriver {
		return apperrors.Validation("only drivers rate riders")
	}
	return h.rate(ctx, sess, data, h.uc.RateRider)
}

func (h *SessionHandler) rate(
	ctx context.Context,
	sess *session,
	data json.RawMessage,
	run func(ctx context.Context, userID, rideID string, score int, comment string) (*models.Ride, error),
) error {
	var req models.RatingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return apperrors.Validation("malformed rating payload")
	}
	if req.RideID == "" {
		return apperrors.Validation("ride_id is required")
	}

	if _, err := run(ctx, sess.userID, req.RideID, req.Score, req.Comment); err != nil {
		return err
	}

	return sess.client.SendEvent(constants.EventRatingAck, models.RatingAck{
		RideID: req.RideID,
		Score:  req.Score,
	})
}

func (h *SessionHandler) handleChatMessage(ctx context.Context, sess *session, data json.RawMessage) error {
	var req models.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return apperrors.Validation("malformed chat_message payload")
	}
	if req.RideID == "" {
		return apperrors.Validation("ride_id is required")
	}

	// Delivery to the counterpart happens in the usecase; the sender gets
	// no echo.
	_, err := h.uc.RelayChat(ctx, sess.role, sess.userID, req.RideID, req.Content)
	return err
}

func (h *SessionHandler) handleSetAvailability(ctx context.Context, sess *session, data json.RawMessage) error {
	if sess.role != models.RoleDriver {
		return apperrors.Validation("only drivers toggle availability")
	}

	var req models.AvailabilityRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return apperrors.Validation("malformed set_availability payload")
	}

	if err := h.uc.SetDriverAvailability(ctx, sess.userID, req.Available); err != nil {
		return err
	}

	return sess.client.SendEvent(constants.EventSetAvailability, models.AvailabilityAck{
		DriverID:  sess.userID,
		Available: req.Available,
	})
}

func (h *SessionHandler) handleEstimateRoute(ctx context.Context, sess *session, data json.RawMessage) error {
	var req models.RouteEstimateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return apperrors.Validation("malformed estimate_route payload")
	}
	if req.Origin.Latitude == 0 && req.Origin.Longitude == 0 {
		return apperrors.Validation("origin is required")
	}
	if req.Destination.Latitude == 0 && req.Destination.Longitude == 0 {
		return apperrors.Validation("destination is required")
	}

	estimate, err := h.uc.EstimateRoute(ctx, req.Origin, req.Destination)
	if err != nil {
		return err
	}

	return sess.client.SendEvent(constants.EventEstimateRoute, estimate)
}
