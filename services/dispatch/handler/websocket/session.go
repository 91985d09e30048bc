package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/movex/dispatch/internal/pkg/apperrors"
	"github.com/movex/dispatch/internal/pkg/constants"
	"github.com/movex/dispatch/internal/pkg/jwt"
	"github.com/movex/dispatch/internal/pkg/logger"
	"github.com/movex/dispatch/internal/pkg/models"
	pkgws "github.com/movex/dispatch/internal/pkg/websocket"
	"github.com/movex/dispatch/services/dispatch"
)

// handlerFunc processes one inbound event for an identified session
type handlerFunc func(ctx context.Context, sess *session, data json.RawMessage) error

// SessionHandler is the WebSocket session gateway. It upgrades connections,
// walks each one through connected -> identified -> closed, and routes
// inbound events to the dispatch usecase through a lookup table.
type SessionHandler struct {
	cfg      *models.Config
	uc       dispatch.DispatchUC
	manager  *pkgws.Manager
	groups   dispatch.GroupGW
	handlers map[string]handlerFunc
}

func NewSessionHandler(
	cfg *models.Config,
	uc dispatch.DispatchUC,
	manager *pkgws.Manager,
	groups dispatch.GroupGW,
) *SessionHandler {
	h := &SessionHandler{
		cfg:     cfg,
		uc:      uc,
		manager: manager,
		groups:  groups,
	}
	h.handlers = map[string]handlerFunc{
		constants.EventRequestRide:    h.handleRequestRide,
		constants.EventAcceptRide:     h.handleAcceptRide,
		constants.EventLocationUpdate: h.handleLocationUpdate,
		constants.EventDriverArrived:  h.handleDriverArrived,
		constants.EventStartRide:      h.handleStartRide,
		constants.EventFinishRide:     h.handleFinishRide,
		constants.EventCancelRide:     h.handleCancelRide,
		constants.EventRateDriver:     h.handleRateDriver,
		constants.EventRateRider:      h.handleRateRider,
		constants.EventChatMessage:    h.handleChatMessage,

		constants.EventSetAvailability: h.handleSetAvailability,
		constants.EventEstimateRoute:   h.handleEstimateRoute,
	}
	return h
}

// session is the per-connection state accumulated across the message loop
type session struct {
	client     *pkgws.Client
	identified bool
	role       models.UserRole
	userID     string
	name       string
	groups     []string
}

// HandleWebSocket upgrades the request and runs the connection's read loop
// until the peer goes away or an unrecoverable decode failure occurs.
func (h *SessionHandler) HandleWebSocket(c echo.Context) error {
	conn, err := h.manager.Upgrade(c)
	if err != nil {
		return err
	}

	client := h.manager.Open(conn)
	sess := &session{client: client}
	defer h.closeSession(sess)

	if err := client.SendEvent(constants.EventConnectionAck, models.ConnectionAck{SessionID: client.ID}); err != nil {
		logger.Warn("failed to send connection ack",
			logger.String("session_id", client.ID),
			logger.Err(err))
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read failed",
					logger.String("session_id", client.ID),
					logger.String("user_id", sess.userID),
					logger.Err(err))
			}
			return nil
		}

		var msg models.WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			client.CloseWithCode(constants.CloseCodeProtocolError, "malformed message envelope")
			return nil
		}

		h.handleMessage(context.Background(), sess, &msg)
	}
}

// handleMessage routes one decoded envelope. Application errors become a
// single error event; they never terminate the connection.
func (h *SessionHandler) handleMessage(ctx context.Context, sess *session, msg *models.WSMessage) {
	switch msg.Event {
	case constants.EventPing:
		_ = sess.client.SendEvent(constants.EventPong, models.Pong{Timestamp: time.Now()})
		return
	case constants.EventIdentify:
		if err := h.handleIdentify(ctx, sess, msg.Data); err != nil {
			h.sendAppError(sess, err)
		}
		return
	}

	if !sess.identified {
		_ = sess.client.SendError(constants.ErrorNotIdentified, "identify before sending events")
		return
	}

	handler, ok := h.handlers[msg.Event]
	if !ok {
		_ = sess.client.SendError(constants.ErrorUnknownEvent,
			fmt.Sprintf("unknown event kind %q", msg.Event))
		return
	}

	if !h.manager.Limiter.Allow(sess.userID, msg.Event) {
		_ = sess.client.SendError(constants.ErrorRateLimitExceeded,
			fmt.Sprintf("too many %s events, try again shortly", msg.Event))
		return
	}

	// High-frequency kinds are exempt from per-event logging
	if msg.Event != constants.EventLocationUpdate {
		logger.InfoCtx(ctx, "inbound session event",
			logger.String("event", msg.Event),
			logger.String("user_id", sess.userID),
			logger.String("role", string(sess.role)))
	}

	if err := handler(ctx, sess, msg.Data); err != nil {
		h.sendAppError(sess, err)
	}
}

// handleIdentify binds an identity to the connection, registers presence and
// joins the session's notification groups.
func (h *SessionHandler) handleIdentify(ctx context.Context, sess *session, data json.RawMessage) error {
	var req models.IdentifyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return apperrors.Validation("malformed identify payload")
	}

	role := models.UserRole(req.Role)
	if !role.Valid() {
		return apperrors.Validation("unknown role %q", req.Role)
	}
	if req.ID == "" {
		return apperrors.Validation("id is required")
	}
	if sess.identified {
		return apperrors.Validation("session already identified")
	}

	// With a configured secret the client identity must be backed by a token
	// whose claims match what the client asserts.
	if h.cfg.JWT.Secret != "" {
		claims, err := jwt.ValidateToken(req.Token, h.cfg.JWT.Secret)
		if err != nil || claims.UserID != req.ID || claims.Role != req.Role {
			_ = sess.client.SendError(constants.ErrorUnauthorized, "token does not match asserted identity")
			return nil
		}
	}

	active, err := h.uc.Identify(ctx, role, req.ID, req.Name, req.Vehicle)
	if err != nil {
		return err
	}

	// Registry.Add closes any evicted sibling session with 4001
	h.manager.Bind(sess.client, req.ID, role)
	sess.identified = true
	sess.role = role
	sess.userID = req.ID
	sess.name = req.Name

	userGroup := constants.RiderGroup(req.ID)
	if role == models.RoleDriver {
		userGroup = constants.DriverGroup(req.ID)
	}
	for _, group := range []string{constants.GroupGeneral, userGroup} {
		if err := h.groups.Join(group, sess.client.ID, deliverTo(sess.client)); err != nil {
			logger.WarnCtx(ctx, "failed to join group",
				logger.String("group", group),
				logger.String("session_id", sess.client.ID),
				logger.Err(err))
			continue
		}
		sess.groups = append(sess.groups, group)
	}

	logger.InfoCtx(ctx, "session identified",
		logger.String("session_id", sess.client.ID),
		logger.String("user_id", req.ID),
		logger.String("role", req.Role))

	return sess.client.SendEvent(constants.EventIdentifyAck, models.IdentifyAck{
		Role:       req.Role,
		UserID:     req.ID,
		ActiveRide: active,
	})
}

// closeSession unwinds everything the connection accumulated. The usecase
// disconnect hook runs only when the user's last session is gone.
func (h *SessionHandler) closeSession(sess *session) {
	for _, group := range sess.groups {
		h.groups.Leave(group, sess.client.ID)
	}
	h.manager.Detach(sess.client)
	sess.client.Close()

	if sess.identified && !h.manager.Registry.IsConnected(sess.userID) {
		if err := h.uc.HandleDisconnect(context.Background(), sess.role, sess.userID); err != nil {
			logger.Warn("disconnect handling failed",
				logger.String("user_id", sess.userID),
				logger.String("role", string(sess.role)),
				logger.Err(err))
		}
	}
}

// deliverTo forwards group broadcasts onto one session's outbound queue
func deliverTo(client *pkgws.Client) func(event string, data []byte) {
	return func(event string, data []byte) {
		if err := client.SendEvent(event, json.RawMessage(data)); err != nil {
			logger.Warn("group delivery failed",
				logger.String("session_id", client.ID),
				logger.String("event", event),
				logger.Err(err))
		}
	}
}
