package config

import (
	"context"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "3000")
	}
	if cfg.JWT.TTL != 24*time.Hour {
		t.Errorf("JWT.TTL = %v, want %v", cfg.JWT.TTL, 24*time.Hour)
	}
	if cfg.Redis.RevocationPrefix != "revoked:" {
		t.Errorf("Redis.RevocationPrefix = %q, want %q", cfg.Redis.RevocationPrefix, "revoked:")
	}
	if cfg.Realtime.SendBuffer != 64 {
		t.Errorf("Realtime.SendBuffer = %d, want 64", cfg.Realtime.SendBuffer)
	}
	if cfg.Password.BcryptCost != 12 || cfg.Password.MinLength != 8 {
		t.Errorf("Password = %+v, want cost 12 and min length 8", cfg.Password)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("JWT_TTL", "1h")
	t.Setenv("WS_SEND_BUFFER", "8")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.JWT.TTL != time.Hour {
		t.Errorf("JWT.TTL = %v, want %v", cfg.JWT.TTL, time.Hour)
	}
	if cfg.Realtime.SendBuffer != 8 {
		t.Errorf("Realtime.SendBuffer = %d, want 8", cfg.Realtime.SendBuffer)
	}
	if cfg.Password.BcryptCost != 4 {
		t.Errorf("Password.BcryptCost = %d, want 4", cfg.Password.BcryptCost)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "zero send buffer", key: "WS_SEND_BUFFER", val: "0"},
		{name: "negative ttl", key: "JWT_TTL", val: "-1h"},
		{name: "unparsable ttl", key: "JWT_TTL", val: "soon"},
		{name: "bcrypt cost too low", key: "BCRYPT_COST", val: "3"},
		{name: "bcrypt cost too high", key: "BCRYPT_COST", val: "32"},
		{name: "zero password length", key: "PASSWORD_MIN_LENGTH", val: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(context.Background()); err == nil {
				t.Errorf("Load() with %s=%q expected error, got nil", tt.key, tt.val)
			}
		})
	}
}
