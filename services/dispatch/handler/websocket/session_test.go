package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movex/dispatch/internal/pkg/apperrors"
	"github.com/movex/dispatch/internal/pkg/constants"
	"github.com/movex/dispatch/internal/pkg/jwt"
	"github.com/movex/dispatch/internal/pkg/models"
	pkgws "github.com/movex/dispatch/internal/pkg/websocket"
)

// fakeDispatchUC satisfies dispatch.DispatchUC with canned answers
type fakeDispatchUC struct {
	mu sync.Mutex

	identifyActive *models.Ride
	acceptErr      error
	requestErr     error

	identified   []string
	disconnects  []string
	locations    []models.Coordinate
	availability map[string]bool
}

func (f *fakeDispatchUC) RequestRide(_ context.Context, req *models.RideRequest) (*models.Ride, []models.DriverSummary, error) {
	if f.requestErr != nil {
		return nil, nil, f.requestErr
	}
	ride := &models.Ride{
		ID:        uuid.New(),
		RiderID:   req.RiderID,
		RiderName: req.RiderName,
		Status:    models.RideStatusRequested,
		Fare:      req.Fare,
	}
	return ride, []models.DriverSummary{{DriverID: "driver-1"}}, nil
}

func (f *fakeDispatchUC) AcceptRide(_ context.Context, driverID, rideID string) (*models.AcceptResult, error) {
	if f.acceptErr != nil {
		return nil, f.acceptErr
	}
	id, _ := uuid.Parse(rideID)
	return &models.AcceptResult{
		Ride:    &models.Ride{ID: id, DriverID: driverID, Status: models.RideStatusAccepted},
		RiderID: "rider-1",
		Driver:  &models.DriverSummary{DriverID: driverID, Name: "Bruno"},
	}, nil
}

func (f *fakeDispatchUC) rideInStatus(rideID string, status models.RideStatus) *models.Ride {
	id, _ := uuid.Parse(rideID)
	return &models.Ride{ID: id, RiderID: "rider-1", DriverID: "driver-1", Status: status}
}

func (f *fakeDispatchUC) MarkArrived(_ context.Context, _, rideID string) (*models.Ride, error) {
	return f.rideInStatus(rideID, models.RideStatusDriverArrived), nil
}

func (f *fakeDispatchUC) StartRide(_ context.Context, _, rideID string) (*models.Ride, error) {
	return f.rideInStatus(rideID, models.RideStatusInProgress), nil
}

func (f *fakeDispatchUC) FinishRide(_ context.Context, _, rideID, _ string) (*models.Ride, error) {
	return f.rideInStatus(rideID, models.RideStatusCompleted), nil
}

func (f *fakeDispatchUC) CancelRide(_ context.Context, _ models.ActorType, _, rideID, _ string) (*models.Ride, error) {
	return f.rideInStatus(rideID, models.RideStatusCancelled), nil
}

func (f *fakeDispatchUC) RateDriver(_ context.Context, _, rideID string, _ int, _ string) (*models.Ride, error) {
	return f.rideInStatus(rideID, models.RideStatusCompleted), nil
}

func (f *fakeDispatchUC) RateRider(_ context.Context, _, rideID string, _ int, _ string) (*models.Ride, error) {
	return f.rideInStatus(rideID, models.RideStatusCompleted), nil
}

func (f *fakeDispatchUC) RelayChat(_ context.Context, _ models.UserRole, _, rideID, _ string) (*models.Ride, error) {
	return f.rideInStatus(rideID, models.RideStatusAccepted), nil
}

func (f *fakeDispatchUC) Identify(_ context.Context, role models.UserRole, userID, _ string, _ *models.Vehicle) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identified = append(f.identified, string(role)+":"+userID)
	return f.identifyActive, nil
}

func (f *fakeDispatchUC) HandleDisconnect(_ context.Context, _ models.UserRole, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects = append(f.disconnects, userID)
	return nil
}

func (f *fakeDispatchUC) disconnected() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.disconnects...)
}

func (f *fakeDispatchUC) UpdateDriverLocation(_ context.Context, _ string, location models.Coordinate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, location)
	return nil
}

func (f *fakeDispatchUC) SetDriverAvailability(_ context.Context, driverID string, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.availability == nil {
		f.availability = make(map[string]bool)
	}
	f.availability[driverID] = available
	return nil
}

func (f *fakeDispatchUC) EstimateRoute(context.Context, models.Coordinate, models.Coordinate) (*models.RouteEstimate, error) {
	return &models.RouteEstimate{DistanceKm: 5, ETAMinutes: 12, Fare: 9.50}, nil
}

// fakeGroups records joins and leaves without a broker
type fakeGroups struct {
	mu     sync.Mutex
	joined map[string][]string // group -> member IDs
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{joined: make(map[string][]string)}
}

func (f *fakeGroups) Join(group, memberID string, _ func(event string, data []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined[group] = append(f.joined[group], memberID)
	return nil
}

func (f *fakeGroups) Leave(group, memberID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := f.joined[group]
	for i, id := range members {
		if id == memberID {
			f.joined[group] = append(members[:i], members[i+1:]...)
			return
		}
	}
}

func (f *fakeGroups) Broadcast(context.Context, string, string, interface{}) error { return nil }
func (f *fakeGroups) Close()                                                       {}

func (f *fakeGroups) members(group string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joined[group]...)
}

func gatewayConfig() *models.Config {
	cfg := &models.Config{}
	cfg.Dispatch.SessionCap = 3
	cfg.Dispatch.RateLimit = 100
	cfg.Dispatch.RateWindowSec = 10
	cfg.Dispatch.SendBufferSize = 16
	return cfg
}

type gatewayFixture struct {
	srv    *httptest.Server
	uc     *fakeDispatchUC
	groups *fakeGroups
}

func newGatewayFixture(t *testing.T, cfg *models.Config) *gatewayFixture {
	uc := &fakeDispatchUC{}
	groups := newFakeGroups()
	manager := pkgws.NewManager(cfg.Dispatch)
	handler := NewSessionHandler(cfg, uc, manager, groups)

	e := echo.New()
	e.GET("/ws", handler.HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return &gatewayFixture{srv: srv, uc: uc, groups: groups}
}

func (fx *gatewayFixture) dial(t *testing.T) *gorilla.Conn {
	url := "ws" + strings.TrimPrefix(fx.srv.URL, "http") + "/ws"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *gorilla.Conn) models.WSMessage {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg models.WSMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func sendEvent(t *testing.T, conn *gorilla.Conn, event string, data interface{}) {
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(models.WSMessage{Event: event, Data: payload}))
}

func readError(t *testing.T, conn *gorilla.Conn) models.WSErrorMessage {
	msg := readEvent(t, conn)
	require.Equal(t, constants.EventError, msg.Event)
	var werr models.WSErrorMessage
	require.NoError(t, json.Unmarshal(msg.Data, &werr))
	return werr
}

// identify performs the handshake past connection_ack and identify_ack
func identify(t *testing.T, conn *gorilla.Conn, role, id string) {
	ack := readEvent(t, conn)
	require.Equal(t, constants.EventConnectionAck, ack.Event)

	sendEvent(t, conn, constants.EventIdentify, models.IdentifyRequest{Role: role, ID: id})
	idAck := readEvent(t, conn)
	require.Equal(t, constants.EventIdentifyAck, idAck.Event)
}

func TestConnectionAck(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)

	msg := readEvent(t, conn)
	assert.Equal(t, constants.EventConnectionAck, msg.Event)

	var ack models.ConnectionAck
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	assert.NotEmpty(t, ack.SessionID)
}

func TestEventBeforeIdentifyRejected(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	readEvent(t, conn) // connection_ack

	sendEvent(t, conn, constants.EventRequestRide, models.RideRequest{})

	werr := readError(t, conn)
	assert.Equal(t, constants.ErrorNotIdentified, werr.Code)
}

func TestIdentify_JoinsGroups(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	readEvent(t, conn)

	sendEvent(t, conn, constants.EventIdentify, models.IdentifyRequest{Role: "rider", ID: "rider-1", Name: "Ana"})

	msg := readEvent(t, conn)
	require.Equal(t, constants.EventIdentifyAck, msg.Event)
	var ack models.IdentifyAck
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	assert.Equal(t, "rider", ack.Role)
	assert.Equal(t, "rider-1", ack.UserID)
	assert.Nil(t, ack.ActiveRide)

	assert.Len(t, fx.groups.members(constants.GroupGeneral), 1)
	assert.Len(t, fx.groups.members(constants.RiderGroup("rider-1")), 1)
}

func TestIdentify_ReturnsActiveRide(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	rideID := uuid.New()
	fx.uc.identifyActive = &models.Ride{ID: rideID, RiderID: "rider-1", Status: models.RideStatusAccepted}

	conn := fx.dial(t)
	readEvent(t, conn)

	sendEvent(t, conn, constants.EventIdentify, models.IdentifyRequest{Role: "rider", ID: "rider-1"})

	msg := readEvent(t, conn)
	require.Equal(t, constants.EventIdentifyAck, msg.Event)
	var ack models.IdentifyAck
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	require.NotNil(t, ack.ActiveRide)
	assert.Equal(t, rideID, ack.ActiveRide.ID)
}

func TestIdentify_UnknownRole(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	readEvent(t, conn)

	sendEvent(t, conn, constants.EventIdentify, models.IdentifyRequest{Role: "admin", ID: "x"})

	werr := readError(t, conn)
	assert.Equal(t, constants.ErrorValidationFailed, werr.Code)
}

func TestIdentify_TokenRequired(t *testing.T) {
	cfg := gatewayConfig()
	cfg.JWT.Secret = "sessions-secret"
	cfg.JWT.Expiration = 60
	fx := newGatewayFixture(t, cfg)

	t.Run("missing token", func(t *testing.T) {
		conn := fx.dial(t)
		readEvent(t, conn)
		sendEvent(t, conn, constants.EventIdentify, models.IdentifyRequest{Role: "rider", ID: "rider-1"})
		werr := readError(t, conn)
		assert.Equal(t, constants.ErrorUnauthorized, werr.Code)
	})

	t.Run("mismatched claims", func(t *testing.T) {
		token, _, err := jwt.GenerateToken("someone-else", "rider", cfg)
		require.NoError(t, err)

		conn := fx.dial(t)
		readEvent(t, conn)
		sendEvent(t, conn, constants.EventIdentify, models.IdentifyRequest{Role: "rider", ID: "rider-1", Token: token})
		werr := readError(t, conn)
		assert.Equal(t, constants.ErrorUnauthorized, werr.Code)
	})

	t.Run("matching claims", func(t *testing.T) {
		token, _, err := jwt.GenerateToken("rider-1", "rider", cfg)
		require.NoError(t, err)

		conn := fx.dial(t)
		readEvent(t, conn)
		sendEvent(t, conn, constants.EventIdentify, models.IdentifyRequest{Role: "rider", ID: "rider-1", Token: token})
		msg := readEvent(t, conn)
		assert.Equal(t, constants.EventIdentifyAck, msg.Event)
	})
}

func TestUnknownEventAcknowledged(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	identify(t, conn, "rider", "rider-1")

	sendEvent(t, conn, "teleport", map[string]string{})

	werr := readError(t, conn)
	assert.Equal(t, constants.ErrorUnknownEvent, werr.Code)
}

func TestPingPong(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	readEvent(t, conn)

	// ping works before identification
	require.NoError(t, conn.WriteJSON(models.WSMessage{Event: constants.EventPing}))
	msg := readEvent(t, conn)
	assert.Equal(t, constants.EventPong, msg.Event)

	var pong models.Pong
	require.NoError(t, json.Unmarshal(msg.Data, &pong))
	assert.False(t, pong.Timestamp.IsZero())
}

func TestMalformedEnvelopeClosesConnection(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte("{not json")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gorilla.IsCloseError(err, constants.CloseCodeProtocolError),
		"expected close code %d, got %v", constants.CloseCodeProtocolError, err)
}

func TestRequestRide_AckToRider(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	identify(t, conn, "rider", "rider-1")

	sendEvent(t, conn, constants.EventRequestRide, models.RideRequest{
		Origin:      models.Coordinate{Latitude: -30.03, Longitude: -51.23},
		Destination: models.Coordinate{Latitude: -30.08, Longitude: -51.18},
		Fare:        18.50,
	})

	msg := readEvent(t, conn)
	require.Equal(t, constants.EventRequestRide, msg.Event)

	var ride models.Ride
	require.NoError(t, json.Unmarshal(msg.Data, &ride))
	assert.Equal(t, "rider-1", ride.RiderID)
	assert.Equal(t, models.RideStatusRequested, ride.Status)
	assert.Equal(t, "Rider", ride.RiderName, "missing display name falls back to a placeholder")
}

func TestRequestRide_DriverRejected(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	identify(t, conn, "driver", "driver-1")

	sendEvent(t, conn, constants.EventRequestRide, models.RideRequest{Fare: 10})

	werr := readError(t, conn)
	assert.Equal(t, constants.ErrorValidationFailed, werr.Code)
}

func TestAcceptRide_AckAndConflict(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	identify(t, conn, "driver", "driver-1")

	rideID := uuid.New().String()
	sendEvent(t, conn, constants.EventAcceptRide, models.AcceptRideRequest{RideID: rideID})

	msg := readEvent(t, conn)
	require.Equal(t, constants.EventRideAccepted, msg.Event)
	var accepted models.RideAccepted
	require.NoError(t, json.Unmarshal(msg.Data, &accepted))
	assert.Equal(t, rideID, accepted.RideID)
	assert.Equal(t, "driver-1", accepted.Driver.DriverID)

	fx.uc.acceptErr = apperrors.Conflict("ride %s is no longer available", rideID)
	sendEvent(t, conn, constants.EventAcceptRide, models.AcceptRideRequest{RideID: rideID})

	werr := readError(t, conn)
	assert.Equal(t, constants.ErrorConflict, werr.Code)
}

func TestRating_Ack(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	identify(t, conn, "rider", "rider-1")

	rideID := uuid.New().String()
	sendEvent(t, conn, constants.EventRateDriver, models.RatingRequest{RideID: rideID, Score: 5})

	msg := readEvent(t, conn)
	require.Equal(t, constants.EventRatingAck, msg.Event)
	var ack models.RatingAck
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	assert.Equal(t, rideID, ack.RideID)
	assert.Equal(t, 5, ack.Score)
}

func TestSetAvailability_AckAndRecorded(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	identify(t, conn, "driver", "driver-1")

	sendEvent(t, conn, constants.EventSetAvailability, models.AvailabilityRequest{Available: false})

	msg := readEvent(t, conn)
	require.Equal(t, constants.EventSetAvailability, msg.Event)
	var ack models.AvailabilityAck
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	assert.Equal(t, "driver-1", ack.DriverID)
	assert.False(t, ack.Available)

	fx.uc.mu.Lock()
	defer fx.uc.mu.Unlock()
	available, ok := fx.uc.availability["driver-1"]
	require.True(t, ok)
	assert.False(t, available)
}

func TestSetAvailability_RiderRejected(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	identify(t, conn, "rider", "rider-1")

	sendEvent(t, conn, constants.EventSetAvailability, models.AvailabilityRequest{Available: true})

	werr := readError(t, conn)
	assert.Equal(t, constants.ErrorValidationFailed, werr.Code)
}

func TestEstimateRoute_Ack(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	identify(t, conn, "rider", "rider-1")

	sendEvent(t, conn, constants.EventEstimateRoute, models.RouteEstimateRequest{
		Origin:      models.Coordinate{Latitude: -30.03, Longitude: -51.23},
		Destination: models.Coordinate{Latitude: -30.08, Longitude: -51.18},
	})

	msg := readEvent(t, conn)
	require.Equal(t, constants.EventEstimateRoute, msg.Event)
	var estimate models.RouteEstimate
	require.NoError(t, json.Unmarshal(msg.Data, &estimate))
	assert.Equal(t, 5.0, estimate.DistanceKm)
	assert.Equal(t, 9.50, estimate.Fare)
}

func TestEstimateRoute_MissingCoordinates(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	identify(t, conn, "rider", "rider-1")

	sendEvent(t, conn, constants.EventEstimateRoute, models.RouteEstimateRequest{
		Destination: models.Coordinate{Latitude: -30.08, Longitude: -51.18},
	})

	werr := readError(t, conn)
	assert.Equal(t, constants.ErrorValidationFailed, werr.Code)
}

func TestRateLimitExceeded(t *testing.T) {
	cfg := gatewayConfig()
	cfg.Dispatch.RateLimit = 1
	fx := newGatewayFixture(t, cfg)

	conn := fx.dial(t)
	identify(t, conn, "rider", "rider-1")

	rideID := uuid.New().String()
	sendEvent(t, conn, constants.EventCancelRide, models.CancelRideRequest{RideID: rideID})
	msg := readEvent(t, conn)
	require.Equal(t, constants.EventRideCancelled, msg.Event)

	sendEvent(t, conn, constants.EventCancelRide, models.CancelRideRequest{RideID: rideID})
	werr := readError(t, conn)
	assert.Equal(t, constants.ErrorRateLimitExceeded, werr.Code)
}

func TestDisconnectRunsOnLastConnectionOnly(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())

	first := fx.dial(t)
	identify(t, first, "driver", "driver-1")
	second := fx.dial(t)
	identify(t, second, "driver", "driver-1")

	first.Close()
	// Only one of two connections dropped, no disconnect hook yet
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, fx.uc.disconnected())

	second.Close()
	require.Eventually(t, func() bool {
		got := fx.uc.disconnected()
		return len(got) == 1 && got[0] == "driver-1"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestLocationUpdate_NoAck(t *testing.T) {
	fx := newGatewayFixture(t, gatewayConfig())
	conn := fx.dial(t)
	identify(t, conn, "driver", "driver-1")

	sendEvent(t, conn, constants.EventLocationUpdate, models.LocationUpdateRequest{
		Latitude:  -30.031,
		Longitude: -51.231,
	})

	require.Eventually(t, func() bool {
		fx.uc.mu.Lock()
		defer fx.uc.mu.Unlock()
		return len(fx.uc.locations) == 1
	}, 2*time.Second, 20*time.Millisecond)

	// No message comes back for a position ping
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
