package dispatch

import (
	"context"

	"github.com/movex/dispatch/internal/pkg/models"
)

// GroupGW defines the interface for named-group pub/sub fan-out. Joining a
// group subscribes the local node; broadcasts reach every member across nodes.
type GroupGW interface {
	Join(group, memberID string, deliver func(event string, data []byte)) error
	Leave(group, memberID string)
	Broadcast(ctx context.Context, group, event string, payload interface{}) error
	Close()
}

// RouteGW defines the interface for route and fare estimation
type RouteGW interface {
	Estimate(ctx context.Context, origin, destination models.Coordinate) (*models.RouteEstimate, error)
}
