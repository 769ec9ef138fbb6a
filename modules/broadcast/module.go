package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/example/collab-workspace/events"
	"github.com/example/collab-workspace/modules/auth"
	"github.com/example/collab-workspace/modules/chat"
	"github.com/example/collab-workspace/modules/project"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// BroadcastModule owns the real-time hub and relays committed domain events
// to connected clients.
type BroadcastModule struct {
	hub       *Hub
	validator CredentialValidator
	projects  ProjectLookup
	logger    types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.DependentModule = (*BroadcastModule)(nil)
var _ mono.EventConsumerModule = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule(config HubConfig, logger types.Logger) *BroadcastModule {
	return &BroadcastModule{
		hub:    NewHub(config, logger),
		logger: logger,
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Dependencies returns the modules this module depends on.
func (m *BroadcastModule) Dependencies() []string {
	return []string{"auth", "project", "chat"}
}

// SetDependencyServiceContainer receives the containers of the modules the
// hub calls at admission and for inbound chat messages.
func (m *BroadcastModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.validator = auth.NewAuthAdapter(container)
	case "project":
		m.projects = project.NewProjectAdapter(container)
	case "chat":
		m.hub.SetMessageAppender(chat.NewChatAdapter(container))
	}
}

// Start wires the authenticator.
func (m *BroadcastModule) Start(_ context.Context) error {
	if m.validator == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.projects == nil {
		return fmt.Errorf("project dependency not set")
	}
	m.hub.SetAuthenticator(m.validator, m.projects)

	m.logger.Info("Broadcast module started", "sendBuffer", m.hub.config.SendBuffer)
	return nil
}

// Stop closes every open connection.
func (m *BroadcastModule) Stop(_ context.Context) error {
	count := m.hub.ConnCount()
	if err := m.hub.Close(); err != nil {
		m.logger.Warn("Errors while closing connections", "error", err)
	}
	m.logger.Info("Broadcast module stopped", "closedConnections", count)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections": m.hub.ConnCount(),
			"rooms":       m.hub.Registry().RoomCount(),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessagePostedV1, m.handleMessagePosted, m,
	); err != nil {
		return fmt.Errorf("failed to register MessagePosted consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ProjectUpdatedV1, m.handleProjectUpdated, m,
	); err != nil {
		return fmt.Errorf("failed to register ProjectUpdated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.DashboardNoticeV1, m.handleDashboardNotice, m,
	); err != nil {
		return fmt.Errorf("failed to register DashboardNotice consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", []string{"MessagePosted", "ProjectUpdated", "DashboardNotice"})
	return nil
}

// Event handlers

func (m *BroadcastModule) handleMessagePosted(_ context.Context, event events.MessagePostedEvent, _ *mono.Msg) error {
	m.hub.Publish(ProjectRoom(event.Message.ProjectID), EventChatMessage, event.Message)
	return nil
}

func (m *BroadcastModule) handleProjectUpdated(_ context.Context, event events.ProjectUpdatedEvent, _ *mono.Msg) error {
	m.hub.Publish(ProjectRoom(event.ProjectID), EventProjectUpdated, ProjectUpdatedPayload{
		ProjectID: event.ProjectID,
		UpdatedBy: event.UpdatedBy,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *BroadcastModule) handleDashboardNotice(_ context.Context, event events.DashboardNoticeEvent, _ *mono.Msg) error {
	m.hub.Publish(DashboardRoom(event.UserID), EventDashboardNotice, DashboardNoticePayload{
		Tag:       event.Tag,
		ProjectID: event.ProjectID,
	})
	return nil
}

// GetHub returns the hub for the API module to use.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}

// ProjectUpdatedPayload is the data of a project-updated frame.
type ProjectUpdatedPayload struct {
	ProjectID string    `json:"projectId"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DashboardNoticePayload is the data of a dashboard-notice frame.
type DashboardNoticePayload struct {
	Tag       string `json:"tag"`
	ProjectID string `json:"projectId,omitempty"`
}
