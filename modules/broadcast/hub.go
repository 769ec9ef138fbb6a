package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"go.uber.org/multierr"
)

// Inbound event names a client may send after admission.
const (
	InboundProjectUpdated = "project-updated"
	InboundChatMessage    = "chat-message"
	InboundJoinDashboard  = "join-dashboard"
)

var (
	// ErrHubClosed is returned when a connection is opened after shutdown began.
	ErrHubClosed = errors.New("hub is closed")
	// ErrDashboardForbidden is returned when a connection asks for a dashboard
	// other than its own.
	ErrDashboardForbidden = fmt.Errorf("%w: dashboard belongs to another user", apperr.ErrAuthorizationTarget)
	// ErrNotBound is returned for inbound events sent before admission.
	ErrNotBound = fmt.Errorf("%w: connection is not bound to a project", apperr.ErrAuthentication)
	// ErrUnknownEvent is returned for inbound events the hub does not handle.
	ErrUnknownEvent = fmt.Errorf("%w: unknown event", apperr.ErrValidation)
	// ErrMalformedFrame is returned when an inbound frame cannot be decoded.
	ErrMalformedFrame = fmt.Errorf("%w: malformed frame", apperr.ErrValidation)
)

// MessageAppender writes chat messages to the durable log.
type MessageAppender interface {
	Append(ctx context.Context, projectID, senderID, body string) (*domain.Message, error)
}

// HubConfig configures a Hub.
type HubConfig struct {
	// SendBuffer is the number of frames queued per connection before the
	// connection is considered too slow and dropped.
	SendBuffer int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{SendBuffer: 64}
}

// Hub owns the room registry and every live connection.
type Hub struct {
	registry *Registry
	router   *Router
	auth     *Authenticator
	messages MessageAppender
	metrics  *Metrics
	logger   types.Logger
	config   HubConfig

	mu     sync.Mutex
	conns  map[*Conn]struct{}
	closed bool
}

// NewHub creates a new Hub.
func NewHub(config HubConfig, logger types.Logger) *Hub {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultHubConfig().SendBuffer
	}
	registry := NewRegistry()
	metrics := NewMetrics()
	return &Hub{
		registry: registry,
		router:   NewRouter(registry, metrics, logger),
		metrics:  metrics,
		logger:   logger,
		config:   config,
		conns:    make(map[*Conn]struct{}),
	}
}

// SetAuthenticator wires the credential and project checks used at admission.
func (h *Hub) SetAuthenticator(validator CredentialValidator, projects ProjectLookup) {
	h.auth = NewAuthenticator(validator, projects, h.registry)
}

// SetMessageAppender wires the message log used for inbound chat messages.
func (h *Hub) SetMessageAppender(messages MessageAppender) {
	h.messages = messages
}

// Registry returns the hub's room registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Metrics returns the hub's collectors.
func (h *Hub) Metrics() *Metrics {
	return h.metrics
}

// Open wraps transport in a new connection in the Connecting state.
func (h *Hub) Open(transport Transport) (*Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}

	c := newConn(transport, h.registry, h.config.SendBuffer, h.forget)
	h.conns[c] = struct{}{}
	h.metrics.connections.Inc()
	return c, nil
}

func (h *Hub) forget(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		h.metrics.connections.Dec()
	}
}

// Admit authenticates c and binds it to its project room. A rejected
// connection receives a close frame naming the reason and is closed before
// Admit returns.
func (h *Hub) Admit(ctx context.Context, c *Conn, hs Handshake) (Identity, error) {
	if h.auth == nil {
		return Identity{}, fmt.Errorf("%w: authenticator not configured", apperr.ErrStoreUnavailable)
	}

	identity, err := h.auth.Authenticate(ctx, hs, c)
	if err != nil {
		code, reason := RejectReason(err)
		h.metrics.rejected.WithLabelValues(reason).Inc()
		h.logger.Info("Connection rejected", "connID", c.ID(), "reason", reason, "error", err)
		_ = c.CloseWithReason(code, reason)
		return Identity{}, err
	}

	h.router.send(c, EventConnected, identity)
	h.logger.Info("Connection admitted",
		"connID", c.ID(), "userID", identity.UserID, "projectID", identity.ProjectID)
	return identity, nil
}

// JoinDashboard adds c to the dashboard channel of userID, which must be the
// connection's own user.
func (h *Hub) JoinDashboard(c *Conn, userID string) error {
	own := c.UserID()
	if own == "" {
		return ErrNotBound
	}
	if userID != own {
		return ErrDashboardForbidden
	}
	return h.registry.JoinDashboard(userID, c)
}

// Publish fans an event out to a room.
func (h *Hub) Publish(key RoomKey, eventType string, payload any) {
	h.router.Publish(key, eventType, payload)
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type chatMessageData struct {
	Message string `json:"message"`
}

type joinDashboardData struct {
	UserID string `json:"userId"`
}

// ErrorPayload is the data of an error frame sent back to the origin.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleInbound dispatches one frame received from c. Failures are reported
// to c alone with an error frame and are also returned.
func (h *Hub) HandleInbound(ctx context.Context, c *Conn, raw []byte) error {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return h.reply(c, "", ErrMalformedFrame)
	}
	if c.State() != StateRoomBound {
		return h.reply(c, frame.Event, ErrNotBound)
	}
	projectID := c.ProjectID()

	switch frame.Event {
	case InboundProjectUpdated:
		var data any = frame.Data
		if len(frame.Data) == 0 {
			data = map[string]string{"projectId": projectID}
		}
		h.router.Publish(ProjectRoom(projectID), EventProjectUpdated, data)
		return nil

	case InboundChatMessage:
		var data chatMessageData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return h.reply(c, frame.Event, ErrMalformedFrame)
		}
		if h.messages == nil {
			return h.reply(c, frame.Event, fmt.Errorf("%w: message log not configured", apperr.ErrStoreUnavailable))
		}
		// The committed message reaches the room through the event bus.
		if _, err := h.messages.Append(ctx, projectID, c.UserID(), data.Message); err != nil {
			return h.reply(c, frame.Event, err)
		}
		return nil

	case InboundJoinDashboard:
		var data joinDashboardData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return h.reply(c, frame.Event, ErrMalformedFrame)
		}
		if err := h.JoinDashboard(c, data.UserID); err != nil {
			return h.reply(c, frame.Event, err)
		}
		return nil

	default:
		return h.reply(c, frame.Event, ErrUnknownEvent)
	}
}

func (h *Hub) reply(c *Conn, event string, err error) error {
	h.logger.Debug("Inbound event failed", "connID", c.ID(), "event", event, "error", err)
	h.router.send(c, EventError, ErrorPayload{
		Event:   event,
		Code:    apperr.Code(err),
		Message: err.Error(),
	})
	return err
}

// ConnCount returns the number of open connections.
func (h *Hub) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close refuses new connections and closes every open one.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	var errs error
	for _, c := range conns {
		errs = multierr.Append(errs, c.Close())
	}
	return errs
}
