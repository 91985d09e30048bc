package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/movex/dispatch/internal/pkg/models"
	"github.com/movex/dispatch/services/dispatch/handler/websocket"
)

// Handler wires the dispatch service's protocol surface onto Echo.
// Everything rides over the WebSocket session gateway; identity is asserted
// in-band on identify, so the route itself is unauthenticated.
type Handler struct {
	cfg       *models.Config
	wsHandler *websocket.SessionHandler
}

func NewHandler(cfg *models.Config, wsHandler *websocket.SessionHandler) *Handler {
	return &Handler{
		cfg:       cfg,
		wsHandler: wsHandler,
	}
}

// RegisterRoutes registers the WebSocket entry point
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.wsHandler.HandleWebSocket)
}
