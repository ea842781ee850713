package main

import (
	"context"
	"log"
	"os"

	"github.com/amara/fund-radar/internal/ai"
	"github.com/amara/fund-radar/internal/api"
	"github.com/amara/fund-radar/internal/db"
	"github.com/amara/fund-radar/internal/pipeline"
	"github.com/amara/fund-radar/internal/sources"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	registry, err := sources.LoadRegistry("internal/sources/config/sources.yaml")
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}

	store := db.NewStore(pool)
	aiClient := ai.NewOllamaClient(os.Getenv("OLLAMA_HOST"), os.Getenv("OLLAMA_EMBED_MODEL"), os.Getenv("OLLAMA_GEN_MODEL"))
	capability := &pipeline.OllamaCapability{Client: aiClient}
	fetcher := pipeline.NewWebFetcher()

	orchestrator := pipeline.NewOrchestrator(store, capability, fetcher, store)

	entries, err := store.LoadIndexEntries(ctx, 0)
	if err != nil {
		log.Fatalf("Failed to seed duplicate index: %v", err)
	}
	for _, entry := range entries {
		orchestrator.Index.Append(entry)
	}
	log.Printf("Duplicate index seeded with %d entries", orchestrator.Index.Len())

	manual := sources.NewManualAdapter("Manual Submission")

	srv := api.NewServer(store, orchestrator, registry, manual)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
