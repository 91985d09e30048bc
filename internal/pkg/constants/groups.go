package constants

import "fmt"

// Pub/sub group names. A group addresses every live session joined to it;
// user-scoped groups carry one user's sessions across all instances.
const (
	GroupGeneral = "general"

	groupDriverFmt = "driver:%s"
	groupRiderFmt  = "rider:%s"
)

// DriverGroup returns the private notification group for one driver.
func DriverGroup(driverID string) string {
	return fmt.Sprintf(groupDriverFmt, driverID)
}

// RiderGroup returns the private notification group for one rider.
func RiderGroup(riderID string) string {
	return fmt.Sprintf(groupRiderFmt, riderID)
}
