package api

import (
	"encoding/json"
	"time"

	domain "github.com/example/collab-workspace/domain/user"
)

// RegisterRequest is the API request to create an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the API request to sign in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the API response for a user.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// LoginResponse is the API response for a successful login.
type LoginResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// UserListResponse is the API response for the user directory.
type UserListResponse struct {
	Users []domain.PublicUser `json:"users"`
}

// CreateProjectRequest is the API request to create a project.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// AddUsersRequest is the API request to add members by ID.
type AddUsersRequest struct {
	ProjectID string   `json:"projectId"`
	Users     []string `json:"users"`
}

// AddUserByEmailRequest is the API request to add a member by email.
type AddUserByEmailRequest struct {
	ProjectID string `json:"projectId"`
	Email     string `json:"email"`
}

// UpdateFileTreeRequest is the API request to replace a project's file tree.
type UpdateFileTreeRequest struct {
	ProjectID string          `json:"projectId"`
	FileTree  json.RawMessage `json:"fileTree"`
}

// PostMessageRequest is the API request to append a chat message.
type PostMessageRequest struct {
	ProjectID string `json:"projectId"`
	Message   string `json:"message"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
