package constants

// Redis key formats for the driver directory
const (
	KeyDriverPresence   = "driver:presence:%s" // Format: driver:presence:{driver_id}
	KeyDriverGeo        = "drivers:geo"        // GEO set of last known driver positions
	KeyAvailableDrivers = "drivers:available"  // Set of available driver IDs
)

// Redis hash fields on driver:presence entries
const (
	FieldLatitude  = "lat"
	FieldLongitude = "lng"
	FieldGeohash   = "geohash"
	FieldTimestamp = "ts"
	FieldAvailable = "available"
	FieldName      = "name"
	FieldRideID    = "ride_id"
	FieldVehModel  = "veh_model"
	FieldVehPlate  = "veh_plate"
	FieldVehColor  = "veh_color"
)
