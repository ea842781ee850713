package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/sync/errgroup"

	"github.com/amara/fund-radar/internal/ai"
	"github.com/amara/fund-radar/internal/db"
	"github.com/amara/fund-radar/internal/pipeline"
	"github.com/amara/fund-radar/internal/sources"
)

type sourceRun struct {
	SourceID string
	Stats    *pipeline.Stats
	Duration time.Duration
	Err      error
}

func main() {
	sourcesCSV := flag.String("sources", "", "comma-separated source IDs (default: all)")
	parallel := flag.Int("parallel", 3, "how many sources to ingest concurrently")
	timeoutSec := flag.Int("timeout-sec", 600, "timeout per source")
	noAI := flag.Bool("no-ai", false, "skip AI stages, heuristics only")
	flag.Parse()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	registry, err := sources.LoadRegistry("internal/sources/config/sources.yaml")
	if err != nil {
		log.Fatalf("registry load failed: %v", err)
	}

	adapters, err := sources.BuildAdapters(registry, nil)
	if err != nil {
		log.Fatalf("adapter build failed: %v", err)
	}
	adapters = filterAdapters(adapters, *sourcesCSV)
	if len(adapters) == 0 {
		log.Fatal("no matching sources")
	}

	store := db.NewStore(pool)
	var capability pipeline.AICapability
	if !*noAI {
		aiClient := ai.NewOllamaClient(os.Getenv("OLLAMA_HOST"), os.Getenv("OLLAMA_EMBED_MODEL"), os.Getenv("OLLAMA_GEN_MODEL"))
		capability = &pipeline.OllamaCapability{Client: aiClient}
	}

	orchestrator := pipeline.NewOrchestrator(store, capability, pipeline.NewWebFetcher(), store)

	entries, err := store.LoadIndexEntries(ctx, 0)
	if err != nil {
		log.Fatalf("index seed failed: %v", err)
	}
	for _, entry := range entries {
		orchestrator.Index.Append(entry)
	}
	log.Printf("Duplicate index seeded with %d entries", orchestrator.Index.Len())

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(*parallel)

	var mu sync.Mutex
	var runs []sourceRun

	for _, adapter := range adapters {
		adapter := adapter
		g.Go(func() error {
			sourceCtx, cancel := context.WithTimeout(gCtx, time.Duration(*timeoutSec)*time.Second)
			defer cancel()

			started := time.Now()
			stats := orchestrator.RunSource(sourceCtx, adapter)

			mu.Lock()
			runs = append(runs, sourceRun{
				SourceID: adapter.ID(),
				Stats:    stats,
				Duration: time.Since(started),
			})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Printf("ingest run error: %v", err)
	}

	renderRuns(runs)
}

func filterAdapters(adapters []sources.Adapter, csv string) []sources.Adapter {
	if strings.TrimSpace(csv) == "" {
		return adapters
	}
	wanted := map[string]bool{}
	for _, id := range strings.Split(csv, ",") {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}
	var out []sources.Adapter
	for _, adapter := range adapters {
		if wanted[adapter.ID()] {
			out = append(out, adapter)
		}
	}
	return out
}

func renderRuns(runs []sourceRun) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Discovered", "Approved", "Review", "Rejected", "Failed", "Duration"})

	for _, run := range runs {
		t.AppendRow(table.Row{
			run.SourceID,
			run.Stats.Discovered,
			run.Stats.AutoApproved,
			run.Stats.NeedsReview,
			run.Stats.Rejected,
			run.Stats.FailedPermanently,
			run.Duration.Round(time.Second).String(),
		})
	}
	t.Render()
}
