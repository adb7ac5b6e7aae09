package main

import (
	"fmt"
	"log"
	"net/http"

	"shopmirror/internal/api"
	"shopmirror/internal/api/handlers"
	"shopmirror/internal/api/middleware"
	"shopmirror/internal/engine/crypto"
	"shopmirror/internal/engine/pipeline"
	"shopmirror/internal/engine/reconcile"
	"shopmirror/internal/engine/tenants"
	"shopmirror/internal/pkg/logger"
	"shopmirror/internal/platform/audit"
	"shopmirror/internal/platform/auth"
	"shopmirror/internal/platform/config"
	"shopmirror/internal/platform/database"
	"shopmirror/internal/platform/keys"
	"shopmirror/internal/platform/repositories"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	// Database connections
	globalDB, err := database.NewGlobalDB(cfg.Database.Global)
	if err != nil {
		log.Fatalf("Failed to connect to global DB: %v", err)
	}
	defer globalDB.Close()

	tenantDBPool := database.NewTenantDBPool(cfg.Database.Tenant)
	defer tenantDBPool.CloseAll()

	// Repositories
	tenantRepo := repositories.NewTenantRepository(globalDB)
	logRepo := repositories.NewWebhookLogRepository(globalDB)

	// Services
	keyProvider, err := keys.NewHKDFProvider(tenantRepo, cfg.Encryption)
	if err != nil {
		log.Fatalf("Failed to initialize key provider: %v", err)
	}
	resolver := tenants.NewResolver(tenantRepo)
	cipher := crypto.NewFieldCipher(keyProvider)
	reconciler := reconcile.NewService(cipher)
	trail := audit.NewTrail(logRepo)
	processor := pipeline.NewProcessor(resolver, keyProvider, tenantDBPool, reconciler, trail)
	tokenSvc := auth.NewTokenService(cfg.JWT)

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(processor, cfg.Webhooks)
	logHandler := handlers.NewWebhookLogHandler(logRepo)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.OpsReadPerMinute)

	// Router
	deps := &api.Dependencies{
		WebhookHandler:    webhookHandler,
		WebhookLogHandler: logHandler,
		AuthMiddleware:    authMiddleware,
		RateLimiter:       rateLimiter,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
