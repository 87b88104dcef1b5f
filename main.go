package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tpcreator/tpagent/internal/adapter/llm"
	"github.com/tpcreator/tpagent/internal/config"
	"github.com/tpcreator/tpagent/internal/registry"
	"github.com/tpcreator/tpagent/internal/repository"
	"github.com/tpcreator/tpagent/internal/secrets"
	"github.com/tpcreator/tpagent/internal/service"
	handler "github.com/tpcreator/tpagent/internal/transport/http"
	"github.com/tpcreator/tpagent/internal/transport/ws"
	"github.com/tpcreator/tpagent/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting test plan agent...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Keyring backend: %s", cfg.KeyringBackend)
	if cfg.Mode == llm.ModeMock {
		log.Printf("Mode: MOCK (demo issue and mock providers)")
	}

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize secret store
	secretStore, err := secrets.Open(cfg.KeyringBackend, cfg.KeyringDir, cfg.KeyringPassword)
	if err != nil {
		log.Fatalf("Failed to open keyring: %v", err)
	}

	// Initialize provider backends
	generator := llm.NewGenerator(cfg.Mode, cfg.LLMTestTimeout)

	// Initialize policy engine
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	policyEngine, err := policy.NewDefaultEngine(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize session registry and service
	sessions := registry.New(db, cfg.FailedHistoryLimit)
	svc := service.New(db, secretStore, generator, sessions, cfg, policyEngine)
	if err := svc.LoadHistory(ctx); err != nil {
		log.Fatalf("Failed to load history: %v", err)
	}
	log.Printf("Loaded %d completed sessions", sessions.Len())

	// Background workers
	go svc.RunHistoryPruner(ctx)

	hub := ws.NewHub()
	go hub.Run(ctx)
	stream := ws.NewServer(cfg, hub, svc)
	defer stream.Close()

	// Create Echo server
	server := handler.NewServer(svc, stream, cfg)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down test plan agent...")

	// Stop workers and close history streams before draining HTTP
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Test plan agent stopped")
}
