package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	natsgo "github.com/nats-io/nats.go"

	"github.com/movex/dispatch/internal/pkg/logger"
	"github.com/movex/dispatch/internal/pkg/nats"
)

// groupSubjectPrefix maps group names onto NATS subjects
const groupSubjectPrefix = "dispatch.group."

// groupEnvelope is the wire format for group broadcasts
type groupEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// GroupHub implements named-group fan-out over NATS. Each group maps to one
// subject; the hub holds a single NATS subscription per group and fans
// messages out to every local member. Broadcasts reach remote nodes through
// the same subject. Delivery is fire-and-forget.
type GroupHub struct {
	client *nats.Client

	mu     sync.Mutex
	groups map[string]*groupSub
}

type groupSub struct {
	sub     *natsgo.Subscription
	members map[string]func(event string, data []byte)
}

func NewGroupHub(client *nats.Client) *GroupHub {
	return &GroupHub{
		client: client,
		groups: make(map[string]*groupSub),
	}
}

func groupSubject(group string) string {
	return groupSubjectPrefix + group
}

// Join adds a local member to a group, subscribing the node to the group's
// subject on first join.
func (h *GroupHub) Join(group, memberID string, deliver func(event string, data []byte)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	gs, ok := h.groups[group]
	if !ok {
		gs = &groupSub{members: make(map[string]func(event string, data []byte))}

		sub, err := h.client.Subscribe(groupSubject(group), func(msg *natsgo.Msg) {
			h.dispatch(group, msg.Data)
		})
		if err != nil {
			return fmt.Errorf("failed to join group %s: %w", group, err)
		}
		gs.sub = sub
		h.groups[group] = gs
	}

	gs.members[memberID] = deliver
	return nil
}

// Leave removes a local member, dropping the subscription when the group
// has no local members left.
func (h *GroupHub) Leave(group, memberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	gs, ok := h.groups[group]
	if !ok {
		return
	}

	delete(gs.members, memberID)
	if len(gs.members) == 0 {
		if gs.sub != nil {
			_ = gs.sub.Unsubscribe()
		}
		delete(h.groups, group)
	}
}

// Broadcast publishes an event to every member of the group, local and remote
func (h *GroupHub) Broadcast(ctx context.Context, group, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal group payload: %w", err)
	}

	if err := h.client.PublishJSON(groupSubject(group), groupEnvelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("failed to broadcast to group %s: %w", group, err)
	}

	return nil
}

// Close unsubscribes every group
func (h *GroupHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for group, gs := range h.groups {
		if gs.sub != nil {
			_ = gs.sub.Unsubscribe()
		}
		delete(h.groups, group)
	}
}

func (h *GroupHub) dispatch(group string, raw []byte) {
	var envelope groupEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Warn("dropping malformed group message",
			logger.String("group", group),
			logger.Err(err))
		return
	}

	h.mu.Lock()
	var delivers []func(event string, data []byte)
	if gs, ok := h.groups[group]; ok {
		delivers = make([]func(event string, data []byte), 0, len(gs.members))
		for _, deliver := range gs.members {
			delivers = append(delivers, deliver)
		}
	}
	h.mu.Unlock()

	for _, deliver := range delivers {
		deliver(envelope.Event, envelope.Data)
	}
}
