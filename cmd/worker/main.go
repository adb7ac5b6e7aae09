package main

import (
	"context"
	"log"
	"time"

	"shopmirror/internal/pkg/logger"
	"shopmirror/internal/platform/config"
	"shopmirror/internal/platform/database"
	"shopmirror/internal/platform/repositories"
	"shopmirror/internal/workers"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	globalDB, err := database.NewGlobalDB(cfg.Database.Global)
	if err != nil {
		log.Fatalf("Failed to connect to global DB: %v", err)
	}
	defer globalDB.Close()

	tenantDBPool := database.NewTenantDBPool(cfg.Database.Tenant)
	defer tenantDBPool.CloseAll()

	tenantRepo := repositories.NewTenantRepository(globalDB)
	sweeper := workers.NewSweeper(tenantRepo, tenantDBPool)

	interval := cfg.Worker.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	log.Printf("Starting aggregate reconciliation worker (interval %v)", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := sweeper.SweepAll(context.Background()); err != nil {
			log.Printf("Sweep failed: %v", err)
		}
	}
}
