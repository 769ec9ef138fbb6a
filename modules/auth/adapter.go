package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort defines the interface for authentication operations.
// This is the port that other modules use to access auth functionality.
type AuthPort interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Logout(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUsersByEmail(ctx context.Context, emails []string) ([]domain.PublicUser, error)
	ListUsers(ctx context.Context, excludeID string) ([]domain.PublicUser, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// Register creates a new account.
func (a *AuthAdapter) Register(ctx context.Context, email, password string) (*domain.User, error) {
	req := RegisterRequest{Email: email, Password: password}
	var resp RegisterResponse

	if err := a.call(ctx, ServiceRegister, &req, &resp); err != nil {
		return nil, err
	}

	return &domain.User{
		ID:        resp.ID,
		Email:     resp.Email,
		CreatedAt: resp.CreatedAt,
	}, nil
}

// Login exchanges credentials for an access token.
func (a *AuthAdapter) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp LoginResponse

	if err := a.call(ctx, ServiceLogin, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes token.
func (a *AuthAdapter) Logout(ctx context.Context, token string) error {
	req := LogoutRequest{Token: token}
	var resp LogoutResponse

	return a.call(ctx, ServiceLogout, &req, &resp)
}

// ValidateToken validates an access token and returns claims.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceValidateToken,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		// Without an answer we cannot know whether the token was revoked.
		return nil, fmt.Errorf("%w: validate-token request failed: %v", apperr.ErrStoreUnavailable, err)
	}

	if !resp.Valid {
		return nil, codeError(resp.Code)
	}

	return &domain.Claims{
		UserID:    resp.UserID,
		Email:     resp.Email,
		ExpiresAt: resp.ExpiresAt,
	}, nil
}

// GetUser retrieves a user by ID.
func (a *AuthAdapter) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse

	if err := a.call(ctx, ServiceGetUser, &req, &resp); err != nil {
		return nil, err
	}

	return &domain.User{
		ID:        resp.ID,
		Email:     resp.Email,
		CreatedAt: resp.CreatedAt,
	}, nil
}

// GetUsersByEmail resolves emails to public users. Unknown emails are skipped.
func (a *AuthAdapter) GetUsersByEmail(ctx context.Context, emails []string) ([]domain.PublicUser, error) {
	req := GetUsersByEmailRequest{Emails: emails}
	var resp UsersResponse

	if err := a.call(ctx, ServiceGetUsersByEmail, &req, &resp); err != nil {
		return nil, err
	}
	return fromUsersResponse(resp), nil
}

// ListUsers returns every user other than excludeID.
func (a *AuthAdapter) ListUsers(ctx context.Context, excludeID string) ([]domain.PublicUser, error) {
	req := ListUsersRequest{ExcludeID: excludeID}
	var resp UsersResponse

	if err := a.call(ctx, ServiceListUsers, &req, &resp); err != nil {
		return nil, err
	}
	return fromUsersResponse(resp), nil
}

func (a *AuthAdapter) call(ctx context.Context, service string, req, resp any) error {
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

func fromUsersResponse(resp UsersResponse) []domain.PublicUser {
	users := make([]domain.PublicUser, 0, len(resp.Users))
	for _, u := range resp.Users {
		users = append(users, domain.PublicUser{ID: u.ID, Email: u.Email})
	}
	return users
}

func codeError(code string) error {
	switch code {
	case CodeExpired:
		return ErrExpiredToken
	case CodeRevoked:
		return ErrRevokedToken
	case CodeStoreUnavailable:
		return apperr.ErrStoreUnavailable
	default:
		return ErrMalformedToken
	}
}

// mapServiceError converts an error message returned over the service
// boundary back into the matching sentinel error.
func mapServiceError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	for _, known := range []error{
		ErrInvalidCredentials,
		ErrInvalidEmail,
		ErrWeakPassword,
		ErrPasswordTooLong,
		ErrUserExists,
		ErrUserNotFound,
		ErrExpiredToken,
		ErrMalformedToken,
		ErrRevokedToken,
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
