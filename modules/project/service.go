package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/project"
	"github.com/example/collab-workspace/domain/user"
	"github.com/example/collab-workspace/events"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

var (
	// ErrNameRequired is returned when a project is created without a name.
	ErrNameRequired = fmt.Errorf("%w: project name is required", apperr.ErrValidation)
	// ErrNoUsers is returned when an add-members request names nobody.
	ErrNoUsers = fmt.Errorf("%w: at least one user is required", apperr.ErrValidation)
	// ErrInvalidFileTree is returned when the file tree is not a JSON object.
	ErrInvalidFileTree = fmt.Errorf("%w: file tree must be a JSON object", apperr.ErrValidation)
	// ErrUnknownUser is returned when a user to be added does not exist.
	ErrUnknownUser = fmt.Errorf("%w: user not found", apperr.ErrAuthorizationTarget)
	// ErrNotMember is returned when the acting user does not belong to the project.
	ErrNotMember = fmt.Errorf("%w: user does not belong to this project", apperr.ErrAuthorizationTarget)
)

// UserDirectory resolves user identities.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*user.User, error)
	GetUsersByEmail(ctx context.Context, emails []string) ([]user.PublicUser, error)
}

// Publisher emits committed project changes.
type Publisher interface {
	PublishProjectUpdated(event events.ProjectUpdatedEvent) error
	PublishDashboardNotice(event events.DashboardNoticeEvent) error
}

// TreeReceipt proves a file tree update was committed.
type TreeReceipt struct {
	project   *domain.Project
	updatedBy string
	at        time.Time
}

// Project returns the committed project.
func (r *TreeReceipt) Project() *domain.Project {
	return r.project
}

// Publish announces the update to the project room.
func (r *TreeReceipt) Publish(p Publisher) error {
	return p.PublishProjectUpdated(events.ProjectUpdatedEvent{
		ProjectID: r.project.ID,
		UpdatedBy: r.updatedBy,
		Timestamp: r.at,
	})
}

// MembersReceipt proves a member set change was committed.
type MembersReceipt struct {
	project    *domain.Project
	recipients []string
	at         time.Time
}

// Project returns the committed project.
func (r *MembersReceipt) Project() *domain.Project {
	return r.project
}

// Recipients returns the users whose dashboards are notified.
func (r *MembersReceipt) Recipients() []string {
	return r.recipients
}

// Publish sends one dashboard notice per recipient. A failed notice does not
// stop the others; all failures are returned together.
func (r *MembersReceipt) Publish(p Publisher) error {
	var errs error
	for _, userID := range r.recipients {
		errs = multierr.Append(errs, p.PublishDashboardNotice(events.DashboardNoticeEvent{
			UserID:    userID,
			Tag:       events.DashboardTagProjectListUpdated,
			ProjectID: r.project.ID,
			Timestamp: r.at,
		}))
	}
	return errs
}

// Service implements project business logic.
type Service struct {
	repo  *Repository
	users UserDirectory
}

// NewService creates a new project service.
func NewService(repo *Repository, users UserDirectory) *Service {
	return &Service{repo: repo, users: users}
}

// Create creates a project with the creator as its only member.
func (s *Service) Create(_ context.Context, name, creatorID string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	now := time.Now()
	project := &domain.Project{
		ID:        uuid.New().String(),
		Name:      name,
		FileTree:  "{}",
		Members:   []domain.Member{{UserID: creatorID, CreatedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(project); err != nil {
		return nil, err
	}
	return project, nil
}

// ListForUser returns every project userID belongs to.
func (s *Service) ListForUser(_ context.Context, userID string) ([]domain.Project, error) {
	return s.repo.FindByMember(userID)
}

// Get returns a project by id.
func (s *Service) Get(_ context.Context, projectID string) (*domain.Project, error) {
	return s.repo.FindByID(projectID)
}

// GetForMember returns a project only if userID belongs to it.
func (s *Service) GetForMember(ctx context.Context, projectID, userID string) (*domain.Project, error) {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.HasMember(userID) {
		return nil, ErrNotMember
	}
	return project, nil
}

// Exists reports whether the project exists.
func (s *Service) Exists(_ context.Context, projectID string) (bool, error) {
	if projectID == "" {
		return false, nil
	}
	return s.repo.Exists(projectID)
}

// Members resolves the public projection of every member.
func (s *Service) Members(ctx context.Context, project *domain.Project) ([]user.PublicUser, error) {
	members := make([]user.PublicUser, 0, len(project.Members))
	for _, m := range project.Members {
		u, err := s.users.GetUser(ctx, m.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve member %s: %w", m.UserID, err)
		}
		members = append(members, u.Public())
	}
	return members, nil
}

// AddMembers adds users to the project. actorID must already be a member.
// The receipt notifies every added user and the actor.
func (s *Service) AddMembers(ctx context.Context, projectID, actorID string, userIDs []string) (*MembersReceipt, error) {
	userIDs = dedupe(userIDs)
	if len(userIDs) == 0 {
		return nil, ErrNoUsers
	}

	if _, err := s.GetForMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}

	for _, id := range userIDs {
		if _, err := s.users.GetUser(ctx, id); err != nil {
			if errors.Is(err, apperr.ErrAuthorizationTarget) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownUser, id)
			}
			return nil, err
		}
	}

	project, err := s.repo.AddMembers(projectID, userIDs)
	if err != nil {
		return nil, err
	}

	return &MembersReceipt{
		project:    project,
		recipients: dedupe(append(userIDs, actorID)),
		at:         project.UpdatedAt,
	}, nil
}

// AddMemberByEmail resolves email and adds that user to the project.
func (s *Service) AddMemberByEmail(ctx context.Context, projectID, actorID, email string) (*MembersReceipt, error) {
	users, err := s.users.GetUsersByEmail(ctx, []string{email})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrUnknownUser
	}
	return s.AddMembers(ctx, projectID, actorID, []string{users[0].ID})
}

// UpdateFileTree replaces the project's file tree document.
func (s *Service) UpdateFileTree(ctx context.Context, projectID, actorID string, fileTree json.RawMessage) (*TreeReceipt, error) {
	var doc map[string]any
	if err := json.Unmarshal(fileTree, &doc); err != nil || doc == nil {
		return nil, ErrInvalidFileTree
	}

	if _, err := s.GetForMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}

	project, err := s.repo.UpdateFileTree(projectID, string(fileTree))
	if err != nil {
		return nil, err
	}

	return &TreeReceipt{project: project, updatedBy: actorID, at: project.UpdatedAt}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
