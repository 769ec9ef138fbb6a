package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Module owns the Redis client behind the revocation store.
type Module struct {
	store  *Store
	client *redis.Client
	config Config
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the module. The client is built eagerly so the store can
// be handed to other modules before the application starts; no connection is
// made until Init.
func NewModule(config Config, logger types.Logger) *Module {
	client := redis.NewClient(&redis.Options{
		Addr:         config.RedisAddr,
		Password:     config.Password,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	return &Module{
		store:  New(client, config.Prefix),
		client: client,
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "revocation"
}

// Init verifies the Redis connection.
func (m *Module) Init(_ mono.ServiceContainer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	m.logger.Info("Connected to Redis", "addr", m.config.RedisAddr, "prefix", m.config.Prefix)
	return nil
}

// Start starts the module (no-op for this module).
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Revocation module started")
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if err := m.store.Close(); err != nil {
		m.logger.Error("Error closing Redis connection", "error", err)
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	m.logger.Info("Revocation module stopped")
	return nil
}

// Health reports whether Redis answers.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}

	stats := m.store.GetStats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr":    m.config.RedisAddr,
			"puts":    stats.Puts,
			"lookups": stats.Lookups,
			"errors":  stats.Errors,
		},
	}
}

// Store returns the revocation store.
func (m *Module) Store() *Store {
	return m.store
}
