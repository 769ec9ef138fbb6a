package auth

import (
	"time"
)

// Service names registered by the auth module.
const (
	ServiceRegister        = "register"
	ServiceLogin           = "login"
	ServiceLogout          = "logout"
	ServiceValidateToken   = "validate-token"
	ServiceGetUser         = "get-user"
	ServiceGetUsersByEmail = "get-users-by-email"
	ServiceListUsers       = "list-users"
)

// Validation failure codes carried by ValidateTokenResponse.
const (
	CodeMalformed        = "malformed"
	CodeExpired          = "expired"
	CodeRevoked          = "revoked"
	CodeStoreUnavailable = "store_unavailable"
)

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse represents a user registration response.
type RegisterResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a user login response with the access token.
type LoginResponse struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}

// LogoutRequest asks for a token to be revoked.
type LogoutRequest struct {
	Token string `json:"token"`
}

// LogoutResponse confirms a revocation.
type LogoutResponse struct {
	Revoked bool `json:"revoked"`
}

// ValidateTokenRequest represents a token validation request.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse represents a token validation response.
type ValidateTokenResponse struct {
	Valid     bool      `json:"valid"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// GetUserRequest represents a get user request.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUserResponse represents a get user response.
type GetUserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// GetUsersByEmailRequest resolves a batch of emails.
type GetUsersByEmailRequest struct {
	Emails []string `json:"emails"`
}

// ListUsersRequest lists every user except ExcludeID.
type ListUsersRequest struct {
	ExcludeID string `json:"exclude_id"`
}

// UsersResponse carries the public projection of a set of users.
type UsersResponse struct {
	Users []PublicUserResponse `json:"users"`
}

// PublicUserResponse is the wire form of user.PublicUser.
type PublicUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
