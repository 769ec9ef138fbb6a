package project

import (
	"encoding/json"
	"time"

	domain "github.com/example/collab-workspace/domain/project"
	"github.com/example/collab-workspace/domain/user"
)

// Service names registered by the project module.
const (
	ServiceCreate           = "create-project"
	ServiceListForUser      = "list-projects"
	ServiceGet              = "get-project"
	ServiceExists           = "project-exists"
	ServiceAddMembers       = "add-members"
	ServiceAddMemberByEmail = "add-member-by-email"
	ServiceUpdateFileTree   = "update-file-tree"
)

// ProjectResponse is the wire form of a project.
type ProjectResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	FileTree  json.RawMessage   `json:"fileTree"`
	Users     []string          `json:"users"`
	Members   []user.PublicUser `json:"members,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// CreateRequest creates a project owned by CreatorID.
type CreateRequest struct {
	Name      string `json:"name"`
	CreatorID string `json:"creator_id"`
}

// ListForUserRequest lists the projects of UserID.
type ListForUserRequest struct {
	UserID string `json:"user_id"`
}

// ListResponse carries a list of projects.
type ListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

// GetRequest fetches a project. When UserID is set the caller must be a member.
type GetRequest struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id,omitempty"`
}

// ExistsRequest checks for a project.
type ExistsRequest struct {
	ProjectID string `json:"project_id"`
}

// ExistsResponse reports whether the project exists.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// AddMembersRequest adds UserIDs to a project on behalf of ActorID.
type AddMembersRequest struct {
	ProjectID string   `json:"project_id"`
	ActorID   string   `json:"actor_id"`
	UserIDs   []string `json:"user_ids"`
}

// AddMemberByEmailRequest adds the user owning Email to a project.
type AddMemberByEmailRequest struct {
	ProjectID string `json:"project_id"`
	ActorID   string `json:"actor_id"`
	Email     string `json:"email"`
}

// UpdateFileTreeRequest replaces a project's file tree.
type UpdateFileTreeRequest struct {
	ProjectID string          `json:"project_id"`
	ActorID   string          `json:"actor_id"`
	FileTree  json.RawMessage `json:"file_tree"`
}

func toProjectResponse(p *domain.Project) ProjectResponse {
	tree := json.RawMessage(p.FileTree)
	if len(tree) == 0 {
		tree = json.RawMessage("{}")
	}
	return ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		FileTree:  tree,
		Users:     p.MemberIDs(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
