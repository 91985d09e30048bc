package models

import "time"

// Inbound event payloads. Field names follow the wire format consumed by
// the mobile clients.

// IdentifyRequest binds a logical identity onto the connection
type IdentifyRequest struct {
	Role  string `json:"role"`
	ID    string `json:"id"`
	Token string `json:"token,omitempty"`
	Name  string `json:"name,omitempty"`

	// Driver-only profile fields, stored in the directory on identify.
	Vehicle *Vehicle `json:"vehicle,omitempty"`
}

// AcceptRideRequest is a driver's claim on an open ride
type AcceptRideRequest struct {
	RideID string `json:"ride_id"`
}

// LocationUpdateRequest is a driver position ping
type LocationUpdateRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RideActionRequest covers driver_arrived, start_ride and finish_ride
type RideActionRequest struct {
	RideID string `json:"ride_id"`
	Status string `json:"status,omitempty"` // finish_ride may carry a pending-rating variant
}

// CancelRideRequest cancels a non-terminal ride from either side
type CancelRideRequest struct {
	RideID string `json:"ride_id"`
	Reason string `json:"reason"`
}

// RatingRequest covers rate_driver and rate_rider
type RatingRequest struct {
	RideID  string `json:"ride_id"`
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

// ChatRequest relays a message to the ride counterpart
type ChatRequest struct {
	RideID  string `json:"ride_id"`
	Content string `json:"content"`
}

// AvailabilityRequest toggles a driver's availability flag
type AvailabilityRequest struct {
	Available bool `json:"available"`
}

// RouteEstimateRequest asks for distance, duration and fare ahead of a ride
type RouteEstimateRequest struct {
	Origin      Coordinate `json:"origin"`
	Destination Coordinate `json:"destination"`
}

// Outbound event payloads.

// ConnectionAck confirms the transport is up, before identification
type ConnectionAck struct {
	SessionID string `json:"session_id"`
}

// IdentifyAck confirms identification and reports any active ride so a
// reconnecting client can resume where it left off.
type IdentifyAck struct {
	Role       string `json:"role"`
	UserID     string `json:"user_id"`
	ActiveRide *Ride  `json:"active_ride,omitempty"`
}

// RideOffered is broadcast to each candidate driver's group
type RideOffered struct {
	RideID      string     `json:"ride_id"`
	RiderName   string     `json:"rider_name"`
	Origin      Coordinate `json:"origin"`
	Destination Coordinate `json:"destination"`
	OriginDesc  string     `json:"origin_desc"`
	DestDesc    string     `json:"dest_desc"`
	Fare        float64    `json:"fare"`
	DistanceKm  float64    `json:"distance_km"`
	ETAMinutes  int        `json:"eta_minutes"`
}

// RideAccepted tells the rider which driver won
type RideAccepted struct {
	RideID string         `json:"ride_id"`
	Driver *DriverSummary `json:"driver"`
}

// RideTaken tells a losing driver the ride is no longer open
type RideTaken struct {
	RideID string `json:"ride_id"`
}

// RideStatusEvent covers driver_arrived_ack, ride_started, ride_completed
type RideStatusEvent struct {
	RideID string `json:"ride_id"`
	Status string `json:"status"`
}

// RideCancelled reports a cancellation to both sides
type RideCancelled struct {
	RideID          string `json:"ride_id"`
	CancelledByType string `json:"cancelled_by_type"`
	Reason          string `json:"reason"`
}

// DriverLocation relays a driver position to the rider of an active ride
type DriverLocation struct {
	RideID    string  `json:"ride_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RatingAck confirms a stored rating to the submitter
type RatingAck struct {
	RideID string `json:"ride_id"`
	Score  int    `json:"score"`
}

// RatingReceived notifies the rated party
type RatingReceived struct {
	RideID  string `json:"ride_id"`
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
	RatedBy string `json:"rated_by"` // RIDER or DRIVER
}

// ChatMessage is the relayed chat payload
type ChatMessage struct {
	RideID  string    `json:"ride_id"`
	From    string    `json:"from"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

// DriverUnreachable warns the rider the assigned driver dropped
type DriverUnreachable struct {
	RideID string `json:"ride_id"`
}

// AvailabilityAck confirms a driver's availability toggle
type AvailabilityAck struct {
	DriverID  string `json:"driver_id"`
	Available bool   `json:"available"`
}

// Pong answers a ping
type Pong struct {
	Timestamp time.Time `json:"timestamp"`
}
