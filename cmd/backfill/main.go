package main

import (
	"context"
	"log"

	"schoolregistry/internal/config"
	"schoolregistry/internal/registry"
	"schoolregistry/internal/store"
)

// One-shot batch: assigns default credentials to legacy parent records that
// are missing a username or password. Safe to re-run; already-backfilled
// rows are skipped.
func main() {
	cfg := config.Load()

	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	svc := registry.NewService(registry.NewRepository(db.Client))

	updated, err := svc.BackfillCredentials(context.Background())
	if err != nil {
		log.Fatalf("backfill failed after %d rows: %v", updated, err)
	}
	log.Printf("backfill complete: %d rows updated", updated)
}
