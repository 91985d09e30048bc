package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/movex/dispatch/internal/pkg/constants"
	"github.com/movex/dispatch/internal/pkg/logger"
	"github.com/movex/dispatch/internal/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client represents a single WebSocket connection bound to an identified user.
// All outbound writes go through the send channel so only the writer pump
// touches the connection.
type Client struct {
	ID          string
	UserID      string
	Role        models.UserRole
	Conn        *websocket.Conn
	ConnectedAt time.Time

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps an upgraded connection in a client with a buffered send queue
func NewClient(id, userID string, role models.UserRole, conn *websocket.Conn, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Client{
		ID:          id,
		UserID:      userID,
		Role:        role,
		Conn:        conn,
		ConnectedAt: time.Now(),
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
	}
}

// WritePump drains the send queue onto the connection and keeps the peer
// alive with periodic control pings. It must run in its own goroutine and
// exits when the client is closed. The read side refreshes its deadline on
// each pong, so a peer that stops answering is detected within pongWait.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("write failed, closing client",
					logger.String("user_id", c.UserID),
					logger.Err(err))
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// SendEvent marshals an event envelope and enqueues it. A full queue means the
// peer is not draining; the message is dropped rather than blocking the caller.
func (c *Client) SendEvent(event string, data interface{}) error {
	rawData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshaling message data: %w", err)
	}

	msg, err := json.Marshal(models.WSMessage{
		Event: event,
		Data:  rawData,
	})
	if err != nil {
		return fmt.Errorf("error marshaling message envelope: %w", err)
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return fmt.Errorf("client %s closed", c.ID)
	default:
		logger.Warn("send queue full, dropping message",
			logger.String("user_id", c.UserID),
			logger.String("event", event))
		return fmt.Errorf("send queue full for client %s", c.ID)
	}
}

// SendError sends a structured error event to the client
func (c *Client) SendError(code, message string) error {
	return c.SendEvent(constants.EventError, models.WSErrorMessage{
		Code:    code,
		Message: message,
	})
}

// CloseWithCode writes a close frame with the given code before closing
func (c *Client) CloseWithCode(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn == nil {
			return
		}
		deadline := time.Now().Add(writeWait)
		_ = c.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.Conn.Close()
	})
}

// Close closes the connection without a custom close frame
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// Done returns a channel closed when the client is shut down
func (c *Client) Done() <-chan struct{} {
	return c.done
}
