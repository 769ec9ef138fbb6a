package chat

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/collab-workspace/domain/chat"
	"github.com/example/collab-workspace/events"
	"github.com/example/collab-workspace/modules/auth"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module owns the persisted message log.
type Module struct {
	db       *gorm.DB
	service  *Service
	users    SenderDirectory
	eventBus mono.EventBus
	dsn      string
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Publisher                  = (*Module)(nil)
)

// NewModule creates a new chat module.
func NewModule(dsn string, logger types.Logger) *Module {
	return &Module{
		dsn:    dsn,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Dependencies returns the modules this module depends on.
func (m *Module) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives the auth container used to resolve senders.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "auth" {
		m.users = auth.NewAuthAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessagePostedV1.ToBase(),
	}
}

// PublishMessagePosted implements Publisher.
func (m *Module) PublishMessagePosted(event events.MessagePostedEvent) error {
	return events.MessagePostedV1.Publish(m.eventBus, event, nil)
}

// Start opens the database and migrates the message table.
func (m *Module) Start(_ context.Context) error {
	if m.users == nil {
		return fmt.Errorf("auth dependency not set")
	}

	db, err := gorm.Open(sqlite.Open(m.dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.Message{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	svc, err := NewService(NewRepository(db), m.users)
	if err != nil {
		return err
	}
	m.service = svc

	m.logger.Info("Chat module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Chat module stopped")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceAppend, json.Unmarshal, json.Marshal, m.handleAppend,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceAppend, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceHistory, json.Unmarshal, json.Marshal, m.handleHistory,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceHistory, err)
	}

	m.logger.Info("Registered services", "services", []string{ServiceAppend, ServiceHistory})
	return nil
}

func (m *Module) handleAppend(ctx context.Context, req AppendRequest, _ *mono.Msg) (AppendResponse, error) {
	receipt, err := m.service.Append(ctx, req.ProjectID, req.SenderID, req.Body)
	if err != nil {
		return AppendResponse{}, err
	}

	msg := receipt.Message()
	if err := receipt.Publish(m); err != nil {
		// The message is committed; clients recover it from history.
		m.logger.Warn("Failed to publish MessagePosted event",
			"projectID", msg.ProjectID, "messageID", msg.ID, "error", err)
	}

	m.logger.Debug("Message appended", "projectID", msg.ProjectID, "messageID", msg.ID)
	return AppendResponse{Message: msg}, nil
}

func (m *Module) handleHistory(ctx context.Context, req HistoryRequest, _ *mono.Msg) (HistoryResponse, error) {
	messages, err := m.service.History(ctx, req.ProjectID)
	if err != nil {
		return HistoryResponse{}, err
	}
	return HistoryResponse{Messages: messages}, nil
}
