package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/wiki-pathfinder/internal/config"
	"github.com/alvmarrod/wiki-pathfinder/internal/extractor"
	"github.com/alvmarrod/wiki-pathfinder/internal/history"
	"github.com/alvmarrod/wiki-pathfinder/internal/metrics"
	"github.com/alvmarrod/wiki-pathfinder/internal/navigator"
	"github.com/alvmarrod/wiki-pathfinder/internal/prefetch"
	"github.com/alvmarrod/wiki-pathfinder/internal/retry"
	"github.com/alvmarrod/wiki-pathfinder/internal/scorer"
	"github.com/alvmarrod/wiki-pathfinder/internal/version"
	"github.com/alvmarrod/wiki-pathfinder/internal/wiki"
)

func main() {
	// Configure logging
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Optional .env for API keys and endpoints
	_ = godotenv.Load()

	logrus.Infof("Wiki Pathfinder v%s starting...", version.Version)

	// Load configuration; positional arguments override the configured endpoints
	cfg, err := config.Load("config.json")
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	args := os.Args[1:]
	if len(args) >= 1 {
		cfg.StartArticle = args[0]
	}
	if len(args) >= 2 {
		cfg.TargetArticle = args[1]
	}
	cfg.StartArticle = wiki.ParseArticle(cfg.StartArticle)
	cfg.TargetArticle = wiki.ParseArticle(cfg.TargetArticle)

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("Unknown log level %q, staying on info", cfg.LogLevel)
	}

	logrus.Infof("Configuration loaded: start=%s, target=%s, max_steps=%d, top_k=%d, workers=%d",
		cfg.StartArticle, cfg.TargetArticle, cfg.MaxSteps, cfg.TopK, cfg.PrefetchWorkers)

	// Run history is optional
	var store *history.Store
	if cfg.HistoryDBPath != "" {
		store, err = history.NewStore(cfg.HistoryDBPath)
		if err != nil {
			logrus.Fatalf("Failed to initialize history store: %v", err)
		}
		defer store.Close()
		logrus.Infof("History database initialized: %s", cfg.HistoryDBPath)

		if best, err := store.BestRun(cfg.StartArticle, cfg.TargetArticle); err != nil {
			logrus.Warnf("Failed to query run history: %v", err)
		} else if best != nil {
			logrus.Infof("Best prior run for this pair: %d steps in %.2fs (run %d)",
				best.Steps, float64(best.ElapsedMs)/1000, best.RunID)
		}
	}

	// Initialize metrics tracker
	tracker := metrics.NewTracker()

	// Page fetch client, shared by the traversal and the prefetch pool
	client, err := wiki.NewClient(wiki.ClientOptions{
		BaseURL:     cfg.WikiBaseURL,
		UserAgent:   cfg.UserAgent,
		Timeout:     time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
		Parallelism: cfg.PrefetchWorkers + 1,
		MetricsCallback: func(pagesFetched, pagesFailed int) {
			if pagesFetched > 0 {
				tracker.IncrementPagesFetched()
			}
			if pagesFailed > 0 {
				tracker.IncrementPagesFailed()
			}
		},
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize fetch client: %v", err)
	}

	ex := extractor.New(extractor.Options{
		WindowChars: cfg.ContextWindowChars,
		RadiusChars: cfg.ContextRadiusChars,
	})

	engine, err := scorer.NewEngine(cfg.Embedding)
	if err != nil {
		logrus.Fatalf("Failed to initialize embedding engine: %v", err)
	}
	if closer, ok := engine.(io.Closer); ok {
		defer closer.Close()
	}

	ranker := scorer.New(engine, scorer.Options{
		BatchSize: cfg.EncodeBatchSize,
		CacheSize: cfg.EmbeddingCacheSize,
	})

	manager := prefetch.NewManager(client, ex, prefetch.Options{
		Workers:     cfg.PrefetchWorkers,
		CacheSize:   cfg.PrefetchCacheSize,
		JoinTimeout: time.Duration(cfg.JoinTimeoutMs) * time.Millisecond,
	})

	nav := navigator.New(client, ex, ranker, manager, navigator.Options{
		Start:           cfg.StartArticle,
		Target:          cfg.TargetArticle,
		MaxSteps:        cfg.MaxSteps,
		TopK:            cfg.TopK,
		MaxLinksPerPage: cfg.MaxLinksPerPage,
		StepDelay:       time.Duration(cfg.StepDelayMs) * time.Millisecond,
		RetryPolicy: retry.Policy{
			MaxAttempts:    cfg.RetryAttempts,
			InitialBackoff: time.Duration(cfg.RetryInitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.RetryMaxBackoffMs) * time.Millisecond,
		},
		OnStep: func(ev navigator.StepEvent) {
			tracker.IncrementSteps()
			tracker.AddCandidatesConsidered(ev.Candidates)
			tracker.RecordStepTime(ev.Elapsed)
			if ev.Found {
				logrus.Infof("-> %s (FOUND) [%.2fs]", ev.Title, ev.Elapsed.Seconds())
			} else {
				logrus.Infof("-> %s (score: %.3f) [%.2fs]", ev.Title, ev.Score, ev.Elapsed.Seconds())
			}
			if ev.PrefetchHit {
				logrus.Debugf("Step %d served from prefetch cache", ev.Step)
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal cancels the traversal, second one forces exit
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logrus.Infof("Received signal: %v - cancelling traversal...", sig)
		cancel()

		sig = <-sigChan
		logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
		if err := tracker.WriteToFile(cfg.MetricsPath, "forced_exit"); err != nil {
			logrus.Errorf("Emergency metrics save failed: %v", err)
		}
		os.Exit(1)
	}()

	manager.Start(ctx)

	// Periodic progress logging
	stopProgress := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stopProgress:
				return
			}
		}
	}()

	logrus.Infof("Starting: %s", wiki.DisplayTitle(cfg.StartArticle))
	logrus.Infof("Target: %s", wiki.DisplayTitle(cfg.TargetArticle))

	result, runErr := nav.Run(ctx)

	close(stopProgress)
	manager.Stop()

	// Fold component counters into the tracker before export
	stats := manager.Stats()
	tracker.SetPrefetchCounts(stats.Hits, stats.Joined, stats.Misses, stats.Evicted)
	computed, cacheHits := ranker.CacheStats()
	tracker.SetEmbeddingCounts(computed, cacheHits)
	if result != nil {
		tracker.SetCandidatesSkipped(result.Skipped)
	}

	if runErr != nil {
		reason := "fatal_error"
		if ctx.Err() != nil {
			reason = "cancelled"
		}
		if err := tracker.WriteToFile(cfg.MetricsPath, reason); err != nil {
			logrus.Errorf("Failed to write metrics: %v", err)
		}
		logrus.Fatalf("Traversal aborted: %v", runErr)
	}

	// Terminal summary
	banner := strings.Repeat("=", 60)
	logrus.Info(banner)
	logrus.Infof("Status: %s | Time: %.2fs | Steps: %d", result.Status, result.Elapsed.Seconds(), result.Steps)
	if result.Reason != "" {
		logrus.Infof("Reason: %s", result.Reason)
	}
	logrus.Info(banner)

	logrus.Info("Path taken:")
	for _, article := range result.Path {
		logrus.Infof("  %s", wiki.ArticleURL(cfg.WikiBaseURL, article))
	}

	logrus.Info("Final stats: " + tracker.LogProgress())

	if store != nil {
		runID, err := store.SaveRun(history.Run{
			Start:     result.Start,
			Target:    result.Target,
			Status:    result.Status.String(),
			Steps:     result.Steps,
			ElapsedMs: result.Elapsed.Milliseconds(),
			Path:      result.Path,
			Reason:    result.Reason,
		})
		if err != nil {
			logrus.Errorf("Failed to save run history: %v", err)
		} else {
			logrus.Infof("Run recorded in history (run %d)", runID)
		}
	}

	if err := tracker.WriteToFile(cfg.MetricsPath, result.Status.String()); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}
}
