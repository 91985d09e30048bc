package websocket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/movex/dispatch/internal/pkg/models"
)

// Manager owns the connection registry, the per-event rate limiter and the
// HTTP upgrade path for WebSocket sessions.
type Manager struct {
	Registry *Registry
	Limiter  *EventLimiter

	upgrader   websocket.Upgrader
	sendBuffer int
}

// NewManager creates a WebSocket manager from dispatch configuration
func NewManager(cfg models.DispatchConfig) *Manager {
	return &Manager{
		Registry: NewRegistry(cfg.SessionCap),
		Limiter:  NewEventLimiter(cfg.RateLimit, time.Duration(cfg.RateWindowSec)*time.Second),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sendBuffer: cfg.SendBufferSize,
	}
}

// Upgrade upgrades the HTTP request to a WebSocket connection
func (m *Manager) Upgrade(c echo.Context) (*websocket.Conn, error) {
	return m.upgrader.Upgrade(c.Response(), c.Request(), nil)
}

// Open wraps a fresh connection in an anonymous client and starts its
// writer pump. The client carries no identity until Bind.
func (m *Manager) Open(conn *websocket.Conn) *Client {
	client := NewClient(uuid.New().String(), "", "", conn, m.sendBuffer)
	go client.WritePump()
	return client
}

// Bind attaches an identity to an open client and registers it. Returns
// the evicted session when the user was at the connection cap; the evicted
// connection has already been closed.
func (m *Manager) Bind(client *Client, userID string, role models.UserRole) *Client {
	client.UserID = userID
	client.Role = role
	return m.Registry.Add(client)
}

// Detach removes a connection from the registry and drops the user's rate
// limit state once their last connection is gone.
func (m *Manager) Detach(client *Client) {
	m.Registry.Remove(client)
	if !m.Registry.IsConnected(client.UserID) {
		m.Limiter.Forget(client.UserID)
	}
}
