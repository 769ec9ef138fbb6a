// Package config loads the process configuration from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Server configures the HTTP and WebSocket listener.
type Server struct {
	Port            string        `env:"PORT, default=3000"`
	AllowOrigins    string        `env:"CORS_ALLOW_ORIGINS, default=*"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=30s"`
}

// Database locates the SQLite file shared by the stores.
type Database struct {
	Path string `env:"DB_PATH, default=workspace.db"`
}

// Redis configures the revocation store.
type Redis struct {
	Addr             string `env:"REDIS_ADDR, default=localhost:6379"`
	Password         string `env:"REDIS_PASSWORD"`
	RevocationPrefix string `env:"REVOCATION_PREFIX, default=revoked:"`
}

// JWT configures credential minting and verification.
type JWT struct {
	SecretKey string        `env:"JWT_SECRET_KEY, default=your-secret-key-change-in-production"`
	Issuer    string        `env:"JWT_ISSUER, default=collab-workspace"`
	TTL       time.Duration `env:"JWT_TTL, default=24h"`
}

// Password configures account password hashing.
type Password struct {
	BcryptCost int `env:"BCRYPT_COST, default=12"`
	MinLength  int `env:"PASSWORD_MIN_LENGTH, default=8"`
}

// Realtime configures the broadcast layer.
type Realtime struct {
	// SendBuffer is the number of outbound frames queued per connection
	// before the connection is treated as a slow consumer.
	SendBuffer int `env:"WS_SEND_BUFFER, default=64"`
}

// Config is the full process configuration.
type Config struct {
	Server   Server
	Database Database
	Redis    Redis
	JWT      JWT
	Password Password
	Realtime Realtime
}

// Load reads the configuration from the environment and rejects values the
// modules cannot run with.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}

	if cfg.Realtime.SendBuffer <= 0 {
		return nil, fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", cfg.Realtime.SendBuffer)
	}
	if cfg.JWT.TTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive, got %s", cfg.JWT.TTL)
	}
	// bcrypt accepts costs 4 through 31.
	if cfg.Password.BcryptCost < 4 || cfg.Password.BcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.Password.BcryptCost)
	}
	if cfg.Password.MinLength < 1 || cfg.Password.MinLength > 72 {
		return nil, fmt.Errorf("PASSWORD_MIN_LENGTH must be between 1 and 72, got %d", cfg.Password.MinLength)
	}

	return &cfg, nil
}
