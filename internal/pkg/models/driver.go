package models

import "time"

// Vehicle is the driver's vehicle summary shown to riders
type Vehicle struct {
	Model string `json:"model"`
	Plate string `json:"plate"`
	Color string `json:"color"`
}

// DriverPresence is the directory entry for one driver. It is created on
// the driver's first identify and marked unavailable, never deleted, on
// disconnect.
type DriverPresence struct {
	DriverID  string    `json:"driver_id"`
	Name      string    `json:"name"`
	Vehicle   Vehicle   `json:"vehicle"`
	Available bool      `json:"available"`
	RideID    string    `json:"ride_id,omitempty"` // currently assigned ride, empty if none
	UpdatedAt time.Time `json:"updated_at"`

	// Last reported position. HasLocation distinguishes "never reported"
	// from a genuine (0,0) fix; drivers without a known position are
	// excluded from matching.
	Location    Coordinate `json:"location"`
	Geohash     string     `json:"geohash,omitempty"`
	HasLocation bool       `json:"has_location"`
}

// DriverSummary is the matcher's view of one candidate driver,
// ordered by distance from the pickup point.
type DriverSummary struct {
	DriverID   string  `json:"driver_id"`
	Name       string  `json:"name"`
	Vehicle    Vehicle `json:"vehicle"`
	DistanceKm float64 `json:"distance_km"`
}
