package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/example/collab-workspace/domain/apperr"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	config := JWTConfig{
		SecretKey: "test-secret-key",
		TTL:       24 * time.Hour,
		Issuer:    "test-issuer",
	}
	manager := NewJWTManager(config)

	token, expiresAt, err := manager.Generate("user-123", "test@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if token == "" {
		t.Error("Generate() returned empty token")
	}
	if until := time.Until(expiresAt); until < 23*time.Hour || until > 24*time.Hour {
		t.Errorf("expiresAt is %v from now, want about 24h", until)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("claims.UserID = %v, want %v", claims.UserID, "user-123")
	}
	if claims.Email != "test@example.com" {
		t.Errorf("claims.Email = %v, want %v", claims.Email, "test@example.com")
	}
	if claims.Issuer != config.Issuer {
		t.Errorf("claims.Issuer = %v, want %v", claims.Issuer, config.Issuer)
	}
}

func TestJWTManager_MalformedToken(t *testing.T) {
	manager := NewJWTManager(DefaultJWTConfig())

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "random string", token: "not.a.valid.token"},
		{name: "truncated jwt", token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.Validate(tt.token)
			if !errors.Is(err, ErrMalformedToken) {
				t.Errorf("Validate() error = %v, want ErrMalformedToken", err)
			}
			if !errors.Is(err, apperr.ErrAuthentication) {
				t.Errorf("Validate() error = %v, want an authentication error", err)
			}
		})
	}
}

func TestJWTManager_WrongSecretKey(t *testing.T) {
	manager1 := NewJWTManager(JWTConfig{SecretKey: "secret-key-1", TTL: time.Hour, Issuer: "test"})
	manager2 := NewJWTManager(JWTConfig{SecretKey: "secret-key-2", TTL: time.Hour, Issuer: "test"})

	token, _, err := manager1.Generate("user-123", "test@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := manager2.Validate(token); !errors.Is(err, ErrMalformedToken) {
		t.Errorf("Validate() error = %v, want ErrMalformedToken", err)
	}
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := NewJWTManager(JWTConfig{SecretKey: "test-secret-key", TTL: time.Hour, Issuer: "test"})

	token, _, err := manager.Generate("user-123", "test@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	manager.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := manager.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Validate() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTManager_TTLSeconds(t *testing.T) {
	manager := NewJWTManager(JWTConfig{SecretKey: "k", TTL: 30 * time.Minute})

	if got := manager.TTLSeconds(); got != 30*60 {
		t.Errorf("TTLSeconds() = %v, want %v", got, 30*60)
	}
}
