// Navigator orchestration server — drives the agent workflow over
// submitted documents and serves the HTTP/WebSocket API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentic-navigator/navigator/pkg/agents"
	"github.com/agentic-navigator/navigator/pkg/api"
	"github.com/agentic-navigator/navigator/pkg/bus"
	"github.com/agentic-navigator/navigator/pkg/cleanup"
	"github.com/agentic-navigator/navigator/pkg/config"
	"github.com/agentic-navigator/navigator/pkg/database"
	"github.com/agentic-navigator/navigator/pkg/identity"
	"github.com/agentic-navigator/navigator/pkg/store"
	"github.com/agentic-navigator/navigator/pkg/stream"
	"github.com/agentic-navigator/navigator/pkg/version"
	"github.com/agentic-navigator/navigator/pkg/workflow"
)

const (
	exitFailure      = 1
	exitStoreFailure = 2
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("NAVIGATOR_CONFIG", "./navigator.yaml"),
		"Path to the navigator.yaml configuration file")
	envPath := flag.String("env-file",
		getEnv("NAVIGATOR_ENV_FILE", ".env"),
		"Path to the .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envPath, "error", err)
	}

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(exitFailure)
	}
	if cfg.IsProduction() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}
	slog.Info("Starting navigator",
		"version", version.Full(),
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"http_port", cfg.HTTPPort)

	// 2. Service identity and signing
	resolver := identity.NewResolver(cfg)
	self, err := resolver.CurrentIdentity(ctx)
	if err != nil {
		slog.Error("Failed to resolve service identity", "error", err)
		os.Exit(exitFailure)
	}
	slog.Info("Service identity resolved", "email", self.Email, "project", self.ProjectID)

	signer := identity.NewSigner(cfg.SigningKey, cfg.UsePBKDF2, cfg.PBKDF2Iterations)
	validator := identity.NewValidator(signer, cfg)
	audit := identity.NewAuditLog(0)

	// 3. Session store
	sessionStore, dbClient, err := newSessionStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize session store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(exitStoreFailure)
	}
	if dbClient != nil {
		defer func() {
			if err := dbClient.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()
		slog.Info("Connected to PostgreSQL database")
	}

	// 4. Bus, stream hub, workflow executor
	messageBus := bus.New(cfg, signer, validator, audit, self, sessionStore)
	hub := stream.NewHub(cfg)
	executor := workflow.NewExecutor(cfg, sessionStore, messageBus, hub, []workflow.AgentPlugin{
		agents.NewOrchestrator(),
		agents.NewSummariser(),
		agents.NewLinker(),
		agents.NewVisualiser(),
	})
	slog.Info("Workflow executor initialized",
		"max_concurrent", cfg.MaxConcurrentWorkflows,
		"max_duration", cfg.MaxWorkflowDuration)

	// 5. Retention sweeper
	cleaner := cleanup.NewService(cfg, sessionStore)
	cleaner.Start(ctx)
	defer cleaner.Stop()

	// 6. HTTP server
	server := api.NewServer(cfg, sessionStore, messageBus, hub, executor, audit)
	if cfg.IDTokenJWKSURL != "" {
		verifier, err := identity.NewIDTokenVerifier(ctx, cfg.IDTokenJWKSURL, cfg.IDTokenAudience, cfg.TrustedServiceAccounts)
		if err != nil {
			slog.Error("Failed to initialize ID token verifier", "error", err)
			os.Exit(exitFailure)
		}
		server.SetIDTokenVerifier(verifier)
		slog.Info("Bearer-token authentication enabled", "jwks_url", cfg.IDTokenJWKSURL)
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.HTTPPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 7. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 8. Graceful shutdown: stop accepting requests, let in-flight
	// workflows persist their terminal snapshots.
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// newSessionStore builds the configured store backend. The document
// backend returns the database client so main can close it on exit.
func newSessionStore(ctx context.Context, cfg *config.Config) (store.SessionStore, *database.Client, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		return store.WithTimeout(store.NewMemoryStore(cfg.HistoryCapacity), cfg.StoreTimeout), nil, nil

	case config.StoreBackendFile:
		fs, err := store.NewFileStore(cfg.FileStoreDir, cfg.HistoryCapacity)
		if err != nil {
			return nil, nil, err
		}
		return store.WithTimeout(fs, cfg.StoreTimeout), nil, nil

	default: // config.StoreBackendDocument
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		client, err := database.NewClient(ctx, dbConfig)
		if err != nil {
			return nil, nil, err
		}
		ps := store.NewPostgresStore(client, cfg.HistoryCapacity)
		return store.WithTimeout(ps, cfg.StoreTimeout), client, nil
	}
}
