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

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/xtc-labs/xtc/internal/alerts"
	"github.com/xtc-labs/xtc/internal/api"
	"github.com/xtc-labs/xtc/internal/archive"
	"github.com/xtc-labs/xtc/internal/chat"
	"github.com/xtc-labs/xtc/internal/coins"
	"github.com/xtc-labs/xtc/internal/config"
	"github.com/xtc-labs/xtc/internal/feed"
	"github.com/xtc-labs/xtc/internal/notify"
	"github.com/xtc-labs/xtc/internal/pipeline"
	"github.com/xtc-labs/xtc/internal/scheduler"
	"github.com/xtc-labs/xtc/internal/sentiment"
	"github.com/xtc-labs/xtc/internal/storage"
	"github.com/xtc-labs/xtc/internal/summarizer"
	"github.com/xtc-labs/xtc/internal/textgen"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting XTC dashboard")

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Raw batch archive is optional; runs proceed without it
	var archiver pipeline.Archiver
	if cfg.StorageAccount != "" {
		blobArchive, err := archive.NewBlobArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize archive: %v", err)
		}
		archiver = blobArchive
	}

	var notifier pipeline.AlertNotifier
	if notifyService := notify.NewService(cfg); notifyService.Enabled() {
		notifier = notifyService
	}

	analyzer := sentiment.NewAnalyzer()
	extractor := coins.NewExtractor()
	engine := alerts.NewEngine(alerts.Thresholds{
		SentimentShare:    cfg.SentimentShare,
		SentimentMinPosts: cfg.SentimentMinPosts,
		PolarityThreshold: cfg.PolarityThreshold,
		TrendMinMentions:  cfg.TrendMinMentions,
		SpikeThreshold:    cfg.SpikeThreshold,
	})

	gen := textgen.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	sum := summarizer.New(gen, cfg.TopTrending)

	sources := []feed.Source{
		feed.NewTimelineSource(cfg.FeedBaseURL, cfg.FeedBearerToken),
	}

	pipelineService := pipeline.NewService(cfg, store, sources, analyzer, extractor, engine, sum, archiver, notifier)

	schedulerService := scheduler.NewService(cfg, pipelineService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	responder := chat.NewResponder(store, extractor, gen)
	apiServer := api.NewServer(store, pipelineService, responder, cfg.WebDir)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Run one refresh at startup so the dashboard is populated
	pipelineService.TryRun()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
