package models

import (
	"time"

	"github.com/google/uuid"
)

// RideStatus represents the status of a ride
type RideStatus string

const (
	RideStatusRequested     RideStatus = "REQUESTED"
	RideStatusAccepted      RideStatus = "ACCEPTED"
	RideStatusEnRoute       RideStatus = "EN_ROUTE"
	RideStatusDriverArrived RideStatus = "DRIVER_ARRIVED"
	RideStatusInProgress    RideStatus = "IN_PROGRESS"
	RideStatusCompleted     RideStatus = "COMPLETED"
	RideStatusCancelled     RideStatus = "CANCELLED"

	// RideStatusCompletedPendingRating is accepted from drivers finishing a
	// trip and normalized to RideStatusCompleted before storage. The
	// caller-supplied value is retained in the audit log only.
	RideStatusCompletedPendingRating RideStatus = "COMPLETED_PENDING_RATING"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// ActorType identifies which side of a ride performed an action
type ActorType string

const (
	ActorRider  ActorType = "RIDER"
	ActorDriver ActorType = "DRIVER"
	ActorSystem ActorType = "SYSTEM"
)

// Ride represents a ride record tracked from request to terminal state
type Ride struct {
	ID       uuid.UUID `json:"ride_id" db:"id"`
	RiderID  string    `json:"rider_id" db:"rider_id"`
	DriverID string    `json:"driver_id,omitempty" db:"driver_id"` // empty until accepted

	Status RideStatus `json:"status" db:"status"`

	Origin      Coordinate `json:"origin"`
	Destination Coordinate `json:"destination"`
	OriginDesc  string     `json:"origin_desc" db:"origin_desc"`
	DestDesc    string     `json:"dest_desc" db:"dest_desc"`

	Fare        float64 `json:"fare" db:"fare"`
	DistanceKm  float64 `json:"distance_km" db:"distance_km"`
	ETAMinutes  int     `json:"eta_minutes" db:"eta_minutes"`
	RiderName   string  `json:"rider_name,omitempty" db:"rider_name"`
	RiderPhone  string  `json:"rider_phone,omitempty" db:"rider_phone"`

	RequestedAt     time.Time  `json:"requested_at" db:"requested_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	DriverArrivedAt *time.Time `json:"driver_arrived_at,omitempty" db:"driver_arrived_at"`
	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`

	CancelledByType ActorType `json:"cancelled_by_type,omitempty" db:"cancelled_by_type"`
	CancelledByID   string    `json:"cancelled_by_id,omitempty" db:"cancelled_by_id"`
	CancelReason    string    `json:"cancel_reason,omitempty" db:"cancel_reason"`

	// Ratings: 0 means absent, valid scores are 1..5.
	DriverRating  int    `json:"driver_rating,omitempty" db:"driver_rating"`
	RiderRating   int    `json:"rider_rating,omitempty" db:"rider_rating"`
	DriverComment string `json:"driver_comment,omitempty" db:"driver_comment"`
	RiderComment  string `json:"rider_comment,omitempty" db:"rider_comment"`

	// DriverUnreachable is a best-effort flag set when the assigned
	// driver's connection drops mid-ride. It never retracts the assignment.
	DriverUnreachable bool `json:"driver_unreachable,omitempty" db:"driver_unreachable"`
}

// Counterpart returns the user on the other side of the ride from actor.
func (r *Ride) Counterpart(actor ActorType) string {
	if actor == ActorDriver {
		return r.RiderID
	}
	return r.DriverID
}

// Coordinate is a WGS84 latitude/longitude pair
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RideRequest is the validated payload for creating a ride
type RideRequest struct {
	RiderID     string     `json:"rider_id"`
	RiderName   string     `json:"rider_name"`
	RiderPhone  string     `json:"rider_phone"`
	Origin      Coordinate `json:"origin"`
	Destination Coordinate `json:"destination"`
	OriginDesc  string     `json:"origin_desc"`
	DestDesc    string     `json:"dest_desc"`
	Fare        float64    `json:"fare"`
	DistanceKm  float64    `json:"distance_km"`
	ETAMinutes  int        `json:"eta_minutes"`
}

// AcceptResult carries everything the coordinator needs to fan out
// after a driver wins the acceptance race.
type AcceptResult struct {
	Ride          *Ride
	RiderID       string
	Driver        *DriverSummary
	LosingDrivers []string // drivers still marked available, to be told the ride is gone
}

// RouteEstimate is the route/fare service answer for an origin/destination pair
type RouteEstimate struct {
	DistanceKm float64 `json:"distance_km"`
	ETAMinutes int     `json:"eta_minutes"`
	Fare       float64 `json:"fare"`
	Fallback   bool    `json:"fallback,omitempty"` // true when computed locally
}
