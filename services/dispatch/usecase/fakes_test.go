package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/movex/dispatch/internal/pkg/apperrors"
	"github.com/movex/dispatch/internal/pkg/models"
)

// fakeRideRepo mirrors the store's conditional-update contract in memory so
// race semantics can be exercised without a database.
type fakeRideRepo struct {
	mu    sync.Mutex
	rides map[string]*models.Ride
}

func newFakeRideRepo() *fakeRideRepo {
	return &fakeRideRepo{rides: make(map[string]*models.Ride)}
}

func (f *fakeRideRepo) CreateRide(_ context.Context, ride *models.Ride) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *ride
	f.rides[ride.ID.String()] = &clone
	return nil
}

func (f *fakeRideRepo) GetRide(_ context.Context, rideID string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok {
		return nil, apperrors.NotFound("ride %s not found", rideID)
	}
	clone := *ride
	return &clone, nil
}

func (f *fakeRideRepo) AcceptRide(_ context.Context, rideID, driverID string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok {
		return nil, apperrors.NotFound("ride %s not found", rideID)
	}
	if ride.Status != models.RideStatusRequested {
		return nil, apperrors.Conflict("ride %s is no longer available (status %s)", rideID, ride.Status)
	}
	now := time.Now()
	ride.DriverID = driverID
	ride.Status = models.RideStatusAccepted
	ride.AcceptedAt = &now
	clone := *ride
	return &clone, nil
}

func (f *fakeRideRepo) UpdateStatus(_ context.Context, rideID string, to models.RideStatus, allowedFrom ...models.RideStatus) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok {
		return nil, apperrors.NotFound("ride %s not found", rideID)
	}
	allowed := false
	for _, from := range allowedFrom {
		if ride.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperrors.InvalidTransition("cannot move ride %s from %s to %s", rideID, ride.Status, to)
	}
	now := time.Now()
	ride.Status = to
	switch to {
	case models.RideStatusDriverArrived:
		ride.DriverArrivedAt = &now
	case models.RideStatusInProgress:
		ride.StartedAt = &now
	case models.RideStatusCompleted:
		ride.EndedAt = &now
	}
	clone := *ride
	return &clone, nil
}

func (f *fakeRideRepo) CancelRide(_ context.Context, rideID string, actor models.ActorType, actorID, reason string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok {
		return nil, apperrors.NotFound("ride %s not found", rideID)
	}
	if ride.Status.IsTerminal() {
		return nil, apperrors.InvalidTransition("ride %s already terminal (status %s)", rideID, ride.Status)
	}
	now := time.Now()
	ride.Status = models.RideStatusCancelled
	ride.CancelledAt = &now
	ride.CancelledByType = actor
	ride.CancelledByID = actorID
	ride.CancelReason = reason
	clone := *ride
	return &clone, nil
}

func (f *fakeRideRepo) SetDriverRating(_ context.Context, rideID string, rating int, comment string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok {
		return nil, apperrors.NotFound("ride %s not found", rideID)
	}
	if ride.Status != models.RideStatusCompleted {
		return nil, apperrors.InvalidTransition("ride %s is not completed (status %s)", rideID, ride.Status)
	}
	if ride.DriverRating != 0 {
		return nil, apperrors.Conflict("ride %s already rated", rideID)
	}
	ride.DriverRating = rating
	ride.DriverComment = comment
	clone := *ride
	return &clone, nil
}

func (f *fakeRideRepo) SetRiderRating(_ context.Context, rideID string, rating int, comment string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok {
		return nil, apperrors.NotFound("ride %s not found", rideID)
	}
	if ride.Status != models.RideStatusCompleted {
		return nil, apperrors.InvalidTransition("ride %s is not completed (status %s)", rideID, ride.Status)
	}
	if ride.RiderRating != 0 {
		return nil, apperrors.Conflict("ride %s already rated", rideID)
	}
	ride.RiderRating = rating
	ride.RiderComment = comment
	clone := *ride
	return &clone, nil
}

func (f *fakeRideRepo) SetDriverUnreachable(_ context.Context, rideID string, unreachable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok {
		return apperrors.NotFound("ride %s not found", rideID)
	}
	ride.DriverUnreachable = unreachable
	return nil
}

func (f *fakeRideRepo) ActiveRideByRider(_ context.Context, riderID string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ride := range f.rides {
		if ride.RiderID == riderID && !ride.Status.IsTerminal() {
			clone := *ride
			return &clone, nil
		}
	}
	return nil, apperrors.NotFound("no active ride for %s", riderID)
}

func (f *fakeRideRepo) ActiveRideByDriver(_ context.Context, driverID string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ride := range f.rides {
		if ride.DriverID == driverID && !ride.Status.IsTerminal() {
			clone := *ride
			return &clone, nil
		}
	}
	return nil, apperrors.NotFound("no active ride for %s", driverID)
}

// fakeDriverRepo is an in-memory driver directory
type fakeDriverRepo struct {
	mu      sync.Mutex
	drivers map[string]*models.DriverPresence
	listErr error
}

func newFakeDriverRepo() *fakeDriverRepo {
	return &fakeDriverRepo{drivers: make(map[string]*models.DriverPresence)}
}

func (f *fakeDriverRepo) addAvailable(id, name string, lat, lng float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drivers[id] = &models.DriverPresence{
		DriverID:    id,
		Name:        name,
		Available:   true,
		Location:    models.Coordinate{Latitude: lat, Longitude: lng},
		HasLocation: true,
	}
}

func (f *fakeDriverRepo) UpsertPresence(_ context.Context, presence *models.DriverPresence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *presence
	f.drivers[presence.DriverID] = &clone
	return nil
}

func (f *fakeDriverRepo) GetPresence(_ context.Context, driverID string) (*models.DriverPresence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	presence, ok := f.drivers[driverID]
	if !ok {
		return nil, apperrors.NotFound("driver %s not in directory", driverID)
	}
	clone := *presence
	return &clone, nil
}

func (f *fakeDriverRepo) SetAvailability(_ context.Context, driverID string, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if presence, ok := f.drivers[driverID]; ok {
		presence.Available = available
	}
	return nil
}

func (f *fakeDriverRepo) SetRideAssignment(_ context.Context, driverID, rideID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if presence, ok := f.drivers[driverID]; ok {
		presence.RideID = rideID
		presence.Available = false
	}
	return nil
}

func (f *fakeDriverRepo) ClearRideAssignment(_ context.Context, driverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if presence, ok := f.drivers[driverID]; ok {
		presence.RideID = ""
		presence.Available = true
	}
	return nil
}

func (f *fakeDriverRepo) UpdateLocation(_ context.Context, driverID string, location models.Coordinate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if presence, ok := f.drivers[driverID]; ok {
		presence.Location = location
		presence.HasLocation = true
	}
	return nil
}

func (f *fakeDriverRepo) AvailableDrivers(_ context.Context) ([]*models.DriverPresence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.DriverPresence
	for _, presence := range f.drivers {
		if presence.Available {
			clone := *presence
			out = append(out, &clone)
		}
	}
	return out, nil
}

// fakeGroupHub records broadcasts per group
type fakeGroupHub struct {
	mu       sync.Mutex
	messages map[string][]fakeBroadcast
}

type fakeBroadcast struct {
	Event   string
	Payload []byte
}

func newFakeGroupHub() *fakeGroupHub {
	return &fakeGroupHub{messages: make(map[string][]fakeBroadcast)}
}

func (f *fakeGroupHub) Join(_, _ string, _ func(event string, data []byte)) error { return nil }
func (f *fakeGroupHub) Leave(_, _ string)                                         {}
func (f *fakeGroupHub) Close()                                                    {}

func (f *fakeGroupHub) Broadcast(_ context.Context, group, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[group] = append(f.messages[group], fakeBroadcast{Event: event, Payload: data})
	return nil
}

func (f *fakeGroupHub) sent(group string) []fakeBroadcast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeBroadcast(nil), f.messages[group]...)
}

func (f *fakeGroupHub) events(group string) []string {
	var out []string
	for _, msg := range f.sent(group) {
		out = append(out, msg.Event)
	}
	return out
}

// fakeRouteGW returns a fixed estimate
type fakeRouteGW struct {
	estimate models.RouteEstimate
	err      error
}

func (f *fakeRouteGW) Estimate(_ context.Context, _, _ models.Coordinate) (*models.RouteEstimate, error) {
	if f.err != nil {
		return nil, f.err
	}
	clone := f.estimate
	return &clone, nil
}
