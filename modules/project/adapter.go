package project

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/collab-workspace/domain/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ProjectPort defines the project operations other modules use.
type ProjectPort interface {
	Create(ctx context.Context, name, creatorID string) (*ProjectResponse, error)
	ListForUser(ctx context.Context, userID string) ([]ProjectResponse, error)
	Get(ctx context.Context, projectID, userID string) (*ProjectResponse, error)
	Exists(ctx context.Context, projectID string) (bool, error)
	AddMembers(ctx context.Context, projectID, actorID string, userIDs []string) (*ProjectResponse, error)
	AddMemberByEmail(ctx context.Context, projectID, actorID, email string) (*ProjectResponse, error)
	UpdateFileTree(ctx context.Context, projectID, actorID string, fileTree json.RawMessage) (*ProjectResponse, error)
}

// ProjectAdapter implements ProjectPort using the service container.
type ProjectAdapter struct {
	container mono.ServiceContainer
}

// NewProjectAdapter creates a new ProjectAdapter.
func NewProjectAdapter(container mono.ServiceContainer) *ProjectAdapter {
	if container == nil {
		panic("project: ServiceContainer is nil")
	}
	return &ProjectAdapter{container: container}
}

// Create creates a project.
func (a *ProjectAdapter) Create(ctx context.Context, name, creatorID string) (*ProjectResponse, error) {
	var resp ProjectResponse
	if err := a.call(ctx, ServiceCreate, &CreateRequest{Name: name, CreatorID: creatorID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListForUser lists the projects userID belongs to.
func (a *ProjectAdapter) ListForUser(ctx context.Context, userID string) ([]ProjectResponse, error) {
	var resp ListResponse
	if err := a.call(ctx, ServiceListForUser, &ListForUserRequest{UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// Get fetches a project. An empty userID skips the membership check.
func (a *ProjectAdapter) Get(ctx context.Context, projectID, userID string) (*ProjectResponse, error) {
	var resp ProjectResponse
	if err := a.call(ctx, ServiceGet, &GetRequest{ProjectID: projectID, UserID: userID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Exists reports whether a project exists.
func (a *ProjectAdapter) Exists(ctx context.Context, projectID string) (bool, error) {
	var resp ExistsResponse
	if err := a.call(ctx, ServiceExists, &ExistsRequest{ProjectID: projectID}, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// AddMembers adds users by id.
func (a *ProjectAdapter) AddMembers(ctx context.Context, projectID, actorID string, userIDs []string) (*ProjectResponse, error) {
	req := AddMembersRequest{ProjectID: projectID, ActorID: actorID, UserIDs: userIDs}
	var resp ProjectResponse
	if err := a.call(ctx, ServiceAddMembers, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddMemberByEmail adds a user by email.
func (a *ProjectAdapter) AddMemberByEmail(ctx context.Context, projectID, actorID, email string) (*ProjectResponse, error) {
	req := AddMemberByEmailRequest{ProjectID: projectID, ActorID: actorID, Email: email}
	var resp ProjectResponse
	if err := a.call(ctx, ServiceAddMemberByEmail, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateFileTree replaces a project's file tree.
func (a *ProjectAdapter) UpdateFileTree(ctx context.Context, projectID, actorID string, fileTree json.RawMessage) (*ProjectResponse, error) {
	req := UpdateFileTreeRequest{ProjectID: projectID, ActorID: actorID, FileTree: fileTree}
	var resp ProjectResponse
	if err := a.call(ctx, ServiceUpdateFileTree, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *ProjectAdapter) call(ctx context.Context, service string, req, resp any) error {
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return mapServiceError(err)
	}
	return nil
}

// mapServiceError converts an error message returned over the service
// boundary back into the matching sentinel error.
func mapServiceError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	for _, known := range []error{
		ErrProjectNotFound,
		ErrProjectExists,
		ErrNotMember,
		ErrUnknownUser,
		ErrNameRequired,
		ErrNoUsers,
		ErrInvalidFileTree,
	} {
		if strings.Contains(msg, known.Error()) {
			return known
		}
	}

	if strings.Contains(msg, apperr.ErrStoreUnavailable.Error()) {
		return fmt.Errorf("%w: %s", apperr.ErrStoreUnavailable, msg)
	}

	return err
}
