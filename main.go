package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/example/collab-workspace/config"
	"github.com/example/collab-workspace/modules/api"
	"github.com/example/collab-workspace/modules/auth"
	"github.com/example/collab-workspace/modules/broadcast"
	"github.com/example/collab-workspace/modules/chat"
	"github.com/example/collab-workspace/modules/project"
	"github.com/example/collab-workspace/modules/revocation"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Collaborative Workspace - Fiber + EventBus Pubsub ===")

	cfg, err := config.Load(context.Background())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// All stores share one SQLite file; WAL lets readers run alongside the writer.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.Database.Path)

	// Create modules
	revocationModule := revocation.NewModule(revocation.Config{
		RedisAddr: cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		Prefix:    cfg.Redis.RevocationPrefix,
	}, logger.WithModule("revocation"))
	authModule := auth.NewModule(dsn, auth.JWTConfig{
		SecretKey: cfg.JWT.SecretKey,
		TTL:       cfg.JWT.TTL,
		Issuer:    cfg.JWT.Issuer,
	}, auth.PasswordConfig{
		BcryptCost: cfg.Password.BcryptCost,
		MinLength:  cfg.Password.MinLength,
	}, logger.WithModule("auth"))
	projectModule := project.NewModule(dsn, logger.WithModule("project"))
	chatModule := chat.NewModule(dsn, logger.WithModule("chat"))
	broadcastModule := broadcast.NewModule(broadcast.HubConfig{
		SendBuffer: cfg.Realtime.SendBuffer,
	}, logger.WithModule("broadcast"))
	apiModule := api.NewModule(cfg.Server, logger.WithModule("api"))

	// The revocation store and the hub are not exposed via ServiceContainer.
	authModule.SetRevocationStore(revocationModule.Store())
	apiModule.SetHub(broadcastModule.GetHub())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - revocation: Redis-backed revoked-credential store
	// - auth: accounts, credentials, user directory (ServiceProviderModule)
	// - project: projects and membership (ServiceProviderModule + EventEmitterModule)
	// - chat: per-project message log (ServiceProviderModule + EventEmitterModule)
	// - broadcast: real-time rooms (EventConsumerModule)
	// - api: Driving adapter (Fiber HTTP/WebSocket server)
	app.Register(revocationModule)
	app.Register(authModule)
	app.Register(projectModule)
	app.Register(chatModule)
	app.Register(broadcastModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg *config.Config) {
	port := cfg.Server.Port

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  - Database: %s", cfg.Database.Path)
	log.Printf("  - Revocation store: redis://%s", cfg.Redis.Addr)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                                - Health check")
	log.Println("  GET    /metrics                               - Prometheus metrics")
	log.Println("  POST   /api/v1/users/register                 - Create an account")
	log.Println("  POST   /api/v1/users/login                    - Sign in")
	log.Println("  GET    /api/v1/users/logout                   - Revoke the current token")
	log.Println("  POST   /api/v1/projects/create                - Create a project")
	log.Println("  PUT    /api/v1/projects/add-user              - Add members")
	log.Println("  PUT    /api/v1/projects/update-file-tree      - Replace the file tree")
	log.Println("  GET    /api/v1/messages/:projectId            - Message history")
	log.Println("  POST   /api/v1/messages                       - Post a message")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Println("  Connect with: ws://localhost:" + port + "/ws?token=<jwt>&projectId=<id>")
	log.Println("  Events: project-updated, chat-message, join-dashboard")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
