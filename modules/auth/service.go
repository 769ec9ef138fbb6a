package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/user"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrAuthentication)
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email format", apperr.ErrValidation)
)

// AuthService handles authentication business logic.
type AuthService struct {
	repo      *UserRepository
	passwords *PasswordPolicy
	jwt       *JWTManager
	validator *CredentialValidator
}

// NewAuthService creates a new AuthService.
func NewAuthService(repo *UserRepository, passwords *PasswordPolicy, jwt *JWTManager, validator *CredentialValidator) *AuthService {
	return &AuthService{
		repo:      repo,
		passwords: passwords,
		jwt:       jwt,
		validator: validator,
	}
}

// Register creates a new user account.
func (s *AuthService) Register(_ context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	if err := s.passwords.Check(password); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates a user and mints a token.
func (s *AuthService) Login(_ context.Context, email, password string) (*domain.Token, *domain.User, error) {
	user, err := s.repo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.passwords.Verify(password, user.PasswordHash); err != nil {
		return nil, nil, err
	}
	if s.passwords.NeedsRehash(user.PasswordHash) {
		// Best effort: the old hash keeps working until the next login.
		if hash, err := s.passwords.Hash(password); err == nil {
			_ = s.repo.UpdatePasswordHash(user.ID, hash)
		}
	}

	token, expiresAt, err := s.jwt.Generate(user.ID, user.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &domain.Token{
		AccessToken: token,
		ExpiresIn:   s.jwt.TTLSeconds(),
		ExpiresAt:   expiresAt,
		TokenType:   "Bearer",
	}, user, nil
}

// Logout revokes the token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.validator.Revoke(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// ValidateToken validates an access token against signature, expiry and the
// revocation store.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	return s.validator.Validate(ctx, token)
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(_ context.Context, userID string) (*domain.User, error) {
	return s.repo.FindByID(userID)
}

// GetUsersByEmail resolves emails to users, skipping unknown addresses.
func (s *AuthService) GetUsersByEmail(_ context.Context, emails []string) ([]domain.User, error) {
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			normalized = append(normalized, e)
		}
	}
	return s.repo.FindByEmails(normalized)
}

// ListUsers returns every user other than the caller.
func (s *AuthService) ListUsers(_ context.Context, excludeID string) ([]domain.User, error) {
	return s.repo.ListExcept(excludeID)
}
