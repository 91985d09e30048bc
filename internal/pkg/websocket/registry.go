package websocket

import (
	"sync"

	"github.com/movex/dispatch/internal/pkg/constants"
	"github.com/movex/dispatch/internal/pkg/logger"
	"github.com/movex/dispatch/internal/pkg/models"
)

// Registry tracks live connections per user. A user may hold several
// concurrent connections up to the configured cap; adding one more evicts
// the oldest connection with a session-evicted close frame.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string][]*Client
	sessionCap int
}

// NewRegistry creates a connection registry with the given per-user cap
func NewRegistry(sessionCap int) *Registry {
	if sessionCap <= 0 {
		sessionCap = 3
	}
	return &Registry{
		sessions:   make(map[string][]*Client),
		sessionCap: sessionCap,
	}
}

// Add registers a client under its user ID. When the user already holds the
// maximum number of connections, the oldest one is closed and returned.
func (r *Registry) Add(client *Client) *Client {
	r.mu.Lock()
	conns := r.sessions[client.UserID]
	var evicted *Client
	if len(conns) >= r.sessionCap {
		evicted = conns[0]
		conns = conns[1:]
	}
	r.sessions[client.UserID] = append(conns, client)
	r.mu.Unlock()

	if evicted != nil {
		logger.Info("session cap reached, evicting oldest connection",
			logger.String("user_id", client.UserID),
			logger.String("evicted_conn", evicted.ID))
		evicted.CloseWithCode(constants.CloseCodeSessionEvicted, "session evicted by newer connection")
	}

	return evicted
}

// Remove unregisters a client. It is a no-op if the client was already
// removed, so eviction and normal disconnect can both call it.
func (r *Registry) Remove(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.sessions[client.UserID]
	for i, c := range conns {
		if c.ID == client.ID {
			r.sessions[client.UserID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(r.sessions[client.UserID]) == 0 {
		delete(r.sessions, client.UserID)
	}
}

// Connections returns a snapshot of the user's live connections
func (r *Registry) Connections(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.sessions[userID]
	out := make([]*Client, len(conns))
	copy(out, conns)
	return out
}

// IsConnected reports whether the user has at least one live connection
func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// ConnectionCount returns the number of live connections for a user
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID])
}

// CloseAll closes every registered connection, used during shutdown
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var all []*Client
	for _, conns := range r.sessions {
		all = append(all, conns...)
	}
	r.sessions = make(map[string][]*Client)
	r.mu.Unlock()

	for _, client := range all {
		client.Close()
	}
}

// UserRole returns the role recorded for a connected user. The second return
// is false when the user has no live connections.
func (r *Registry) UserRole(userID string) (models.UserRole, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.sessions[userID]
	if len(conns) == 0 {
		return "", false
	}
	return conns[0].Role, true
}
