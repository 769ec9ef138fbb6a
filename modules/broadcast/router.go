package broadcast

import (
	"encoding/json"

	"github.com/go-monolith/mono/pkg/types"
)

// Event types delivered to clients.
const (
	EventProjectUpdated  = "project-updated"
	EventChatMessage     = "chat-message"
	EventDashboardNotice = "dashboard-notice"
	EventConnected       = "connected"
	EventError           = "error"
)

// Frame is the JSON envelope of every message on the socket.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Router fans events out to the members of a room.
type Router struct {
	registry *Registry
	metrics  *Metrics
	logger   types.Logger
}

// NewRouter creates a router over registry.
func NewRouter(registry *Registry, metrics *Metrics, logger types.Logger) *Router {
	return &Router{
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// Publish delivers payload to every current member of key, tagged with
// eventType. Delivery is best effort: frames are queued under the room lock,
// so each member sees one room's events in publish order, and a member whose
// queue is full is dropped rather than waited on.
func (r *Router) Publish(key RoomKey, eventType string, payload any) {
	data, err := json.Marshal(Frame{Event: eventType, Data: payload})
	if err != nil {
		r.logger.Error("Failed to marshal event", "event", eventType, "room", string(key), "error", err)
		return
	}

	var delivered, dropped int
	members := r.registry.forEachMember(key, func(c *Conn) {
		if c.enqueue(data) {
			delivered++
		} else {
			dropped++
		}
	})

	r.metrics.published.WithLabelValues(eventType).Inc()
	r.metrics.delivered.Add(float64(delivered))
	r.metrics.dropped.Add(float64(dropped))

	if dropped > 0 {
		r.logger.Warn("Dropped frames for slow connections",
			"event", eventType, "room", string(key), "dropped", dropped)
	}
	r.logger.Debug("Published event", "event", eventType, "room", string(key), "members", members)
}

// send queues a frame for a single connection.
func (r *Router) send(c *Conn, eventType string, payload any) bool {
	data, err := json.Marshal(Frame{Event: eventType, Data: payload})
	if err != nil {
		r.logger.Error("Failed to marshal frame", "event", eventType, "error", err)
		return false
	}
	return c.enqueue(data)
}
