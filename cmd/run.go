package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-crawler/internal/api"
	"github.com/JakeFAU/docs-crawler/internal/clock/system"
	"github.com/JakeFAU/docs-crawler/internal/config"
	"github.com/JakeFAU/docs-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/docs-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/docs-crawler/internal/fetcher/youtube"
	idgen "github.com/JakeFAU/docs-crawler/internal/id/uuid"
	"github.com/JakeFAU/docs-crawler/internal/logging"
	"github.com/JakeFAU/docs-crawler/internal/persist"
	"github.com/JakeFAU/docs-crawler/internal/sitemap"
)

func newRunCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run <config> <output-dir>",
		Short: "Run a crawl described by a configuration file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args[0], args[1], dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve the crawl plan and print it without fetching content")
	return cmd
}

func runCrawl(cmd *cobra.Command, configPath, outputDir string, dryRun bool) error {
	logger, err := logging.New(verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	timeout := time.Duration(cfg.Defaults.RequestTimeoutSeconds) * time.Second
	lister := sitemap.NewClient(timeout, cfg.Defaults.UserAgent, logger)
	config.ExpandSitemaps(ctx, &cfg, lister, logger)

	items := cfg.Items
	for _, u := range cfg.YouTube {
		items = append(items, config.Item{URL: u})
	}
	if len(items) == 0 {
		logger.Warn("Nothing to crawl")
		return nil
	}

	if dryRun {
		printPlan(cmd, items)
		return nil
	}

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return fmt.Errorf("create output dir %s: %w", outputDir, err)
	}

	runID, err := idgen.New().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}

	store, err := persist.New(cfg.PersistenceStrategy, outputDir, persist.Options{
		BufferSize:     cfg.Persistence.BufferSize,
		FlushSizeBytes: int64(cfg.Persistence.FlushSizeMB) << 20,
	}, system.New(), logger)
	if err != nil {
		return fmt.Errorf("init persistence: %w", err)
	}

	pages := collyfetcher.New(cfg.Defaults, logger)
	videos := youtube.New(timeout, logger)
	orch := crawler.New(cfg.Defaults, pages, videos, store, logger)

	if cfg.Observe.Enabled {
		obs := api.NewServer(runID, orch.Stats(), orch.Visited(), logger)
		obs.Start(cfg.Observe.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}()
	}

	started := time.Now().UTC()
	logger.Info("Starting crawl",
		zap.String("runId", runID),
		zap.Int("items", len(items)),
		zap.String("strategy", cfg.PersistenceStrategy),
		zap.Int("threads", cfg.Defaults.Threads))

	summary := orch.Run(ctx, items)
	store.Finalize()

	manifest := persist.Manifest{
		RunID:      runID,
		Strategy:   cfg.PersistenceStrategy,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Records:    store.Records(),
	}
	if path, err := persist.WriteManifest(outputDir, manifest); err != nil {
		logger.Error("Failed to write manifest", zap.Error(err))
	} else {
		logger.Info("Manifest written", zap.String("path", path))
	}

	logger.Info("Crawl finished",
		zap.String("runId", runID),
		zap.Int64("pagesFetched", summary.PagesFetched),
		zap.Int64("pagesFailed", summary.PagesFailed),
		zap.Int64("pagesPersisted", summary.PagesPersisted),
		zap.Int64("transcripts", summary.Transcripts),
		zap.Duration("elapsed", time.Since(started)))

	if ctx.Err() != nil {
		return fmt.Errorf("crawl interrupted: %w", ctx.Err())
	}
	return nil
}

func printPlan(cmd *cobra.Command, items []config.Item) {
	out := cmd.OutOrStdout()
	for _, it := range items {
		switch {
		case it.ShouldScrap:
			fmt.Fprintf(out, "scrap\t%s\tdepth=%d maxPages=%d\n", it.URL, it.MaxDepth, it.MaxPages)
		default:
			if _, ok := youtube.ExtractVideoID(it.URL); ok {
				fmt.Fprintf(out, "video\t%s\n", it.URL)
				continue
			}
			fmt.Fprintf(out, "page\t%s\n", it.URL)
		}
	}
}
