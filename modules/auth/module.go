package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RevocationMarker is the value written for a revoked credential.
const RevocationMarker = "revoked"

// AuthModule provides authentication services and the user directory.
type AuthModule struct {
	db        *gorm.DB
	service   *AuthService
	revoked   RevocationStore
	dsn       string
	jwtConfig JWTConfig
	passwords PasswordConfig
	logger    types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule.
func NewModule(dsn string, jwtConfig JWTConfig, passwords PasswordConfig, logger types.Logger) *AuthModule {
	return &AuthModule{
		dsn:       dsn,
		jwtConfig: jwtConfig,
		passwords: passwords,
		logger:    logger,
	}
}

// SetRevocationStore sets the store consulted on every validation.
func (m *AuthModule) SetRevocationStore(store RevocationStore) {
	m.revoked = store
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Start initializes the auth module.
func (m *AuthModule) Start(_ context.Context) error {
	if m.revoked == nil {
		return fmt.Errorf("revocation store dependency not set")
	}
	passwords, err := NewPasswordPolicy(m.passwords)
	if err != nil {
		return fmt.Errorf("invalid password configuration: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(m.dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	jwtManager := NewJWTManager(m.jwtConfig)
	validator := NewCredentialValidator(jwtManager, m.revoked, RevocationMarker)
	m.service = NewAuthService(NewUserRepository(db), passwords, jwtManager, validator)

	m.logger.Info("Auth module started",
		"issuer", m.jwtConfig.Issuer, "ttl", m.jwtConfig.TTL, "bcryptCost", m.passwords.BcryptCost)
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	m.logger.Info("Auth module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRegister, json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLogin, json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLogout, json.Unmarshal, json.Marshal, m.handleLogout,
	); err != nil {
		return fmt.Errorf("failed to register logout service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceValidateToken, json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetUser, json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register get-user service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetUsersByEmail, json.Unmarshal, json.Marshal, m.handleGetUsersByEmail,
	); err != nil {
		return fmt.Errorf("failed to register get-users-by-email service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListUsers, json.Unmarshal, json.Marshal, m.handleListUsers,
	); err != nil {
		return fmt.Errorf("failed to register list-users service: %w", err)
	}

	m.logger.Info("Registered services",
		"services", []string{ServiceRegister, ServiceLogin, ServiceLogout, ServiceValidateToken,
			ServiceGetUser, ServiceGetUsersByEmail, ServiceListUsers})
	return nil
}

func (m *AuthModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (RegisterResponse, error) {
	user, err := m.service.Register(ctx, req.Email, req.Password)
	if err != nil {
		return RegisterResponse{}, err
	}

	return RegisterResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (LoginResponse, error) {
	token, user, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResponse{}, err
	}

	return LoginResponse{
		UserID:      user.ID,
		Email:       user.Email,
		AccessToken: token.AccessToken,
		ExpiresIn:   token.ExpiresIn,
		ExpiresAt:   token.ExpiresAt,
		TokenType:   token.TokenType,
	}, nil
}

func (m *AuthModule) handleLogout(ctx context.Context, req LogoutRequest, _ *mono.Msg) (LogoutResponse, error) {
	if err := m.service.Logout(ctx, req.Token); err != nil {
		m.logger.Warn("Logout failed", "error", err)
		return LogoutResponse{}, err
	}
	return LogoutResponse{Revoked: true}, nil
}

// handleValidateToken reports validation failures in the response body so the
// caller can tell an outage from a bad credential.
func (m *AuthModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.service.ValidateToken(ctx, req.Token)
	if err != nil {
		code := validationCode(err)
		if code == CodeStoreUnavailable {
			m.logger.Error("Revocation lookup failed", "error", err)
		}
		return ValidateTokenResponse{
			Valid: false,
			Code:  code,
			Error: err.Error(),
		}, nil
	}

	return ValidateTokenResponse{
		Valid:     true,
		UserID:    claims.UserID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (m *AuthModule) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		return GetUserResponse{}, err
	}

	return GetUserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (m *AuthModule) handleGetUsersByEmail(ctx context.Context, req GetUsersByEmailRequest, _ *mono.Msg) (UsersResponse, error) {
	users, err := m.service.GetUsersByEmail(ctx, req.Emails)
	if err != nil {
		return UsersResponse{}, err
	}
	return toUsersResponse(users), nil
}

func (m *AuthModule) handleListUsers(ctx context.Context, req ListUsersRequest, _ *mono.Msg) (UsersResponse, error) {
	users, err := m.service.ListUsers(ctx, req.ExcludeID)
	if err != nil {
		return UsersResponse{}, err
	}
	return toUsersResponse(users), nil
}

func toUsersResponse(users []domain.User) UsersResponse {
	resp := UsersResponse{Users: make([]PublicUserResponse, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, PublicUserResponse{ID: u.ID, Email: u.Email})
	}
	return resp
}

func validationCode(err error) string {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return CodeExpired
	case errors.Is(err, ErrRevokedToken):
		return CodeRevoked
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return CodeStoreUnavailable
	default:
		return CodeMalformed
	}
}
