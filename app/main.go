package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/awesome-comb/app/catalog"
	"github.com/lysyi3m/awesome-comb/app/cfg"
	"github.com/lysyi3m/awesome-comb/app/database"
	"github.com/lysyi3m/awesome-comb/app/fetcher"
	"github.com/lysyi3m/awesome-comb/app/github"
	"github.com/lysyi3m/awesome-comb/app/parser"
	"github.com/lysyi3m/awesome-comb/app/pipeline"
	"github.com/lysyi3m/awesome-comb/app/registry"
	"github.com/lysyi3m/awesome-comb/app/search"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Awesome Comb", "version", appCfg.Version)

	// The source registry is the one fatal startup condition: without it
	// there is nothing to process.
	sources, err := registry.Load(appCfg.RegistryPath)
	if err != nil {
		slog.Error("Failed to load source registry", "path", appCfg.RegistryPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Source registry loaded", "sources", len(sources), "path", appCfg.RegistryPath)

	selection := registry.Selection{
		Filter: appCfg.SourceFilter,
		Start:  appCfg.RangeStart,
		Count:  appCfg.RangeCount,
	}
	selected := registry.Select(sources, selection)
	if selection.Active() {
		slog.Info("Run selection active, writer will merge", "selected", len(selected), "total", len(sources))
	}

	snapshotPath := filepath.Join(appCfg.DataDir, "snapshot.json.gz")
	blocklistPath := filepath.Join(appCfg.DataDir, "blocklist.json")
	indexPath := filepath.Join(appCfg.DataDir, "index.bleve")
	dbPath := filepath.Join(appCfg.DataDir, "runs.db")

	previous, err := catalog.LoadSnapshot(snapshotPath)
	if err != nil {
		slog.Warn("Failed to load previous snapshot, starting from scratch", "error", err)
		previous = nil
	}
	if previous != nil {
		slog.Info("Previous snapshot loaded", "lists", previous.ListCount, "items", previous.ItemCount, "generated_at", previous.GeneratedAt)
	} else {
		slog.Info("No previous snapshot, treating every source as stale")
	}

	blocklist, err := catalog.LoadBlocklist(blocklistPath)
	if err != nil {
		slog.Warn("Failed to load blocklist, starting empty", "error", err)
		blocklist = catalog.NewBlocklist()
	}
	slog.Info("Blocklist loaded", "urls", blocklist.Len())

	// Run history is operator convenience; a broken local database must not
	// block the pipeline.
	var runRepo database.RunRepository
	if err := os.MkdirAll(appCfg.DataDir, 0755); err != nil {
		slog.Warn("Failed to create data directory", "error", err)
	} else if db, err := database.NewConnection(dbPath); err != nil {
		slog.Warn("Failed to open run-history database, continuing without history", "error", err)
	} else {
		defer db.Close()
		if version, dirty, err := database.RunMigrations(db); err != nil {
			slog.Warn("Failed to migrate run-history database, continuing without history", "error", err)
		} else {
			slog.Debug("Run-history database ready", "version", version, "dirty", dirty)
			runRepo = database.NewRunRepository(db)
		}
	}

	httpClient := &http.Client{}
	fetchTimeout := time.Duration(appCfg.FetchTimeout) * time.Second

	ghClient := github.NewClient(httpClient, github.DefaultEndpoint, appCfg.GitHubToken, appCfg.UserAgent, fetchTimeout)
	if !ghClient.HasToken() {
		slog.Warn("No GitHub token configured: freshness probes and enrichment are disabled")
	}

	run := pipeline.NewRun(
		github.NewProber(ghClient, appCfg.ProbeBatchSize),
		fetcher.NewFetcher(httpClient, appCfg.UserAgent, appCfg.WorkerCount, fetchTimeout),
		parser.NewParser(),
		github.NewEnricher(ghClient, appCfg.EnrichBatchSize),
		previous, blocklist, selection,
		appCfg.RetryPasses, appCfg.RotationSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapshot, summary := run.Execute(ctx, selected)

	if err := snapshot.Save(snapshotPath); err != nil {
		slog.Error("Failed to persist snapshot", "error", err)
		os.Exit(1)
	}
	if err := blocklist.Save(blocklistPath); err != nil {
		slog.Error("Failed to persist blocklist", "error", err)
		os.Exit(1)
	}
	slog.Info("Snapshot persisted", "path", snapshotPath, "lists", snapshot.ListCount, "items", snapshot.ItemCount, "blocklist", blocklist.Len())

	if indexed, err := search.Rebuild(indexPath, snapshot); err != nil {
		slog.Error("Failed to rebuild search index", "error", err)
	} else {
		slog.Info("Search index rebuilt", "path", indexPath, "indexed", indexed)
	}

	if runRepo != nil {
		if _, err := runRepo.InsertRun(buildRunRecord(summary)); err != nil {
			slog.Warn("Failed to record run history", "error", err)
		}
	}

	slog.Info("Run complete",
		"duration", summary.Duration().String(),
		"selected", summary.Selected,
		"processed", summary.Processed,
		"carried", summary.Carried,
		"preserved", summary.Preserved,
		"added", summary.Added,
		"removed", summary.Removed,
		"updated", summary.Updated,
		"enriched", summary.Enrich.Resolved,
		"reaped", summary.Reaped,
		"failed", len(summary.Failed))
}

func buildRunRecord(summary *pipeline.Summary) database.RunRecord {
	return database.RunRecord{
		StartedAt:      summary.StartedAt,
		FinishedAt:     summary.FinishedAt,
		SelectedCount:  summary.Selected,
		ProcessedCount: summary.Processed,
		CarriedCount:   summary.Carried,
		PreservedCount: summary.Preserved,
		AddedCount:     summary.Added,
		RemovedCount:   summary.Removed,
		UpdatedCount:   summary.Updated,
		UnchangedCount: summary.Unchanged,
		EnrichedCount:  summary.Enrich.Resolved,
		NotFoundCount:  summary.Enrich.NotFound,
		AbandonedCount: summary.Enrich.Abandoned,
		ReapedCount:    summary.Reaped,
		ListCount:      summary.ListCount,
		ItemCount:      summary.ItemCount,
		FailedSources:  summary.Failed,
	}
}
