package constants

// Inbound WebSocket event kinds
const (
	EventIdentify        = "identify"
	EventPing            = "ping"
	EventRequestRide     = "request_ride"
	EventAcceptRide      = "accept_ride"
	EventLocationUpdate  = "location_update"
	EventDriverArrived   = "driver_arrived"
	EventStartRide       = "start_ride"
	EventFinishRide      = "finish_ride"
	EventCancelRide      = "cancel_ride"
	EventRateDriver      = "rate_driver"
	EventRateRider       = "rate_rider"
	EventChatMessage     = "chat_message"
	EventSetAvailability = "set_availability"
	EventEstimateRoute   = "estimate_route"
)

// Outbound WebSocket event kinds
const (
	EventConnectionAck        = "connection_ack"
	EventIdentifyAck          = "identify_ack"
	EventPong                 = "pong"
	EventRideOffered          = "ride_offered"
	EventRideAccepted         = "ride_accepted"
	EventRideTakenByOther     = "ride_taken_by_other"
	EventDriverLocationUpdate = "driver_location_update"
	EventDriverArrivedAck     = "driver_arrived_ack"
	EventRideStarted          = "ride_started"
	EventRideCompleted        = "ride_completed"
	EventRideCancelled        = "ride_cancelled"
	EventRatingAck            = "rating_ack"
	EventRatingReceived       = "rating_received"
	EventDriverUnreachable    = "driver_unreachable"
	EventError                = "error"
)

// WebSocket error codes carried in error events
const (
	ErrorValidationFailed  = "validation_failed"
	ErrorUnauthorized      = "unauthorized"
	ErrorNotIdentified     = "not_identified"
	ErrorUnknownEvent      = "unknown_event"
	ErrorNotFound          = "not_found"
	ErrorNotAssociated     = "not_associated"
	ErrorInvalidTransition = "invalid_transition"
	ErrorConflict          = "conflict"
	ErrorUpstream          = "upstream_unavailable"
	ErrorRateLimitExceeded = "rate_limit_exceeded"
	ErrorInternalError     = "internal_error"
)

// Close codes used when the server terminates a connection
const (
	// CloseCodeSessionEvicted closes the oldest session of a user who
	// exceeded the per-user connection cap.
	CloseCodeSessionEvicted = 4001
	// CloseCodeProtocolError closes a connection after an unrecoverable
	// decode failure.
	CloseCodeProtocolError = 4400
)
