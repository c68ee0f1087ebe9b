package main

import (
	"context"
	"log"
	"time"

	"membership-ledger-be/internal/config"
	"membership-ledger-be/internal/pkg/logger"
	"membership-ledger-be/internal/repository/memory"
	"membership-ledger-be/internal/repository/unitofwork"
	"membership-ledger-be/internal/service"
	"membership-ledger-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting Authoritative GORM Migration...")

	// 3. Pre-Migration: Extensions
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		log.Printf("Warn: Failed to create pgcrypto extension: %v. Continuing...", err)
	}

	// 4. AutoMigrate ledger tables and partial indexes
	log.Println("Step 1: Running AutoMigrate for membership tables...")
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Seed the plan catalog
	log.Println("Step 2: Seeding default membership plans...")
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	defer sysLogger.Sync()
	plans := service.NewPlanCatalogService(unitofwork.NewRepositoryFactory(db), memory.NewPlanCache(time.Minute), sysLogger)
	if err := plans.SeedDefaultPlans(context.Background()); err != nil {
		log.Fatalf("Error: Plan seeding failed: %v", err)
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
