package project

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/collab-workspace/domain/project"
	"github.com/example/collab-workspace/events"
	"github.com/example/collab-workspace/modules/auth"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module owns projects and their member sets.
type Module struct {
	db       *gorm.DB
	service  *Service
	users    UserDirectory
	eventBus mono.EventBus
	dsn      string
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Publisher                  = (*Module)(nil)
)

// NewModule creates a new project module.
func NewModule(dsn string, logger types.Logger) *Module {
	return &Module{
		dsn:    dsn,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "project"
}

// Dependencies returns the modules this module depends on.
func (m *Module) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives the auth container.
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
		events.ProjectUpdatedV1.ToBase(),
		events.DashboardNoticeV1.ToBase(),
	}
}

// PublishProjectUpdated implements Publisher.
func (m *Module) PublishProjectUpdated(event events.ProjectUpdatedEvent) error {
	return events.ProjectUpdatedV1.Publish(m.eventBus, event, nil)
}

// PublishDashboardNotice implements Publisher.
func (m *Module) PublishDashboardNotice(event events.DashboardNoticeEvent) error {
	return events.DashboardNoticeV1.Publish(m.eventBus, event, nil)
}

// Start opens the database and migrates the project tables.
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

	if err := db.AutoMigrate(&domain.Project{}, &domain.Member{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.service = NewService(NewRepository(db), m.users)
	m.logger.Info("Project module started")
	return nil
}

// Stop closes the database.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Project module stopped")
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
		container, ServiceCreate, json.Unmarshal, json.Marshal, m.handleCreate,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreate, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListForUser, json.Unmarshal, json.Marshal, m.handleListForUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListForUser, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGet, json.Unmarshal, json.Marshal, m.handleGet,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGet, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceExists, json.Unmarshal, json.Marshal, m.handleExists,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceExists, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceAddMembers, json.Unmarshal, json.Marshal, m.handleAddMembers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceAddMembers, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceAddMemberByEmail, json.Unmarshal, json.Marshal, m.handleAddMemberByEmail,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceAddMemberByEmail, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceUpdateFileTree, json.Unmarshal, json.Marshal, m.handleUpdateFileTree,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceUpdateFileTree, err)
	}

	m.logger.Info("Registered services",
		"services", []string{ServiceCreate, ServiceListForUser, ServiceGet, ServiceExists,
			ServiceAddMembers, ServiceAddMemberByEmail, ServiceUpdateFileTree})
	return nil
}

func (m *Module) handleCreate(ctx context.Context, req CreateRequest, _ *mono.Msg) (ProjectResponse, error) {
	project, err := m.service.Create(ctx, req.Name, req.CreatorID)
	if err != nil {
		return ProjectResponse{}, err
	}
	m.logger.Info("Project created", "projectID", project.ID, "creator", req.CreatorID)
	return toProjectResponse(project), nil
}

func (m *Module) handleListForUser(ctx context.Context, req ListForUserRequest, _ *mono.Msg) (ListResponse, error) {
	projects, err := m.service.ListForUser(ctx, req.UserID)
	if err != nil {
		return ListResponse{}, err
	}
	resp := ListResponse{Projects: make([]ProjectResponse, 0, len(projects))}
	for i := range projects {
		resp.Projects = append(resp.Projects, toProjectResponse(&projects[i]))
	}
	return resp, nil
}

func (m *Module) handleGet(ctx context.Context, req GetRequest, _ *mono.Msg) (ProjectResponse, error) {
	var (
		project *domain.Project
		err     error
	)
	if req.UserID != "" {
		project, err = m.service.GetForMember(ctx, req.ProjectID, req.UserID)
	} else {
		project, err = m.service.Get(ctx, req.ProjectID)
	}
	if err != nil {
		return ProjectResponse{}, err
	}

	resp := toProjectResponse(project)
	if resp.Members, err = m.service.Members(ctx, project); err != nil {
		return ProjectResponse{}, err
	}
	return resp, nil
}

func (m *Module) handleExists(ctx context.Context, req ExistsRequest, _ *mono.Msg) (ExistsResponse, error) {
	exists, err := m.service.Exists(ctx, req.ProjectID)
	if err != nil {
		return ExistsResponse{}, err
	}
	return ExistsResponse{Exists: exists}, nil
}

func (m *Module) handleAddMembers(ctx context.Context, req AddMembersRequest, _ *mono.Msg) (ProjectResponse, error) {
	receipt, err := m.service.AddMembers(ctx, req.ProjectID, req.ActorID, req.UserIDs)
	if err != nil {
		return ProjectResponse{}, err
	}
	m.publishMembers(receipt)
	return toProjectResponse(receipt.Project()), nil
}

func (m *Module) handleAddMemberByEmail(ctx context.Context, req AddMemberByEmailRequest, _ *mono.Msg) (ProjectResponse, error) {
	receipt, err := m.service.AddMemberByEmail(ctx, req.ProjectID, req.ActorID, req.Email)
	if err != nil {
		return ProjectResponse{}, err
	}
	m.publishMembers(receipt)
	return toProjectResponse(receipt.Project()), nil
}

func (m *Module) handleUpdateFileTree(ctx context.Context, req UpdateFileTreeRequest, _ *mono.Msg) (ProjectResponse, error) {
	receipt, err := m.service.UpdateFileTree(ctx, req.ProjectID, req.ActorID, req.FileTree)
	if err != nil {
		return ProjectResponse{}, err
	}
	if err := receipt.Publish(m); err != nil {
		m.logger.Warn("Failed to publish ProjectUpdated event", "projectID", req.ProjectID, "error", err)
	}
	return toProjectResponse(receipt.Project()), nil
}

// publishMembers runs after commit, so a publish failure is logged rather
// than failing the request.
func (m *Module) publishMembers(receipt *MembersReceipt) {
	if err := receipt.Publish(m); err != nil {
		m.logger.Warn("Failed to publish DashboardNotice events",
			"projectID", receipt.Project().ID, "error", err)
	}
}
