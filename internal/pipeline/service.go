package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xtc-labs/xtc/internal/alerts"
	"github.com/xtc-labs/xtc/internal/coins"
	"github.com/xtc-labs/xtc/internal/config"
	"github.com/xtc-labs/xtc/internal/feed"
	"github.com/xtc-labs/xtc/internal/models"
	"github.com/xtc-labs/xtc/internal/sentiment"
	"github.com/xtc-labs/xtc/internal/storage"
	"github.com/xtc-labs/xtc/internal/summarizer"
)

// Archiver persists a raw batch of collected posts outside the store.
// Optional; a nil archiver skips archival.
type Archiver interface {
	Archive(ctx context.Context, name string, data []byte) error
}

// AlertNotifier forwards high-importance alerts to external channels.
// Optional; failures never fail a run.
type AlertNotifier interface {
	SendAlert(alert *models.Alert) error
}

// Metrics holds the outcome of the most recent pipeline run
type Metrics struct {
	LastRunID          string         `json:"last_run_id"`
	LastRun            time.Time      `json:"last_run"`
	LastRunDuration    string         `json:"last_run_duration"`
	CollectedPosts     int            `json:"collected_posts"`
	NewPosts           int            `json:"new_posts"`
	SentimentBreakdown map[string]int `json:"sentiment_breakdown"`
	AlertsEmitted      int            `json:"alerts_emitted"`
	SourceErrors       int            `json:"source_errors"`
}

// Service orchestrates one refresh cycle: collect posts, score them,
// extract coin trends, evaluate alert rules and write a summary. Only
// one run executes at a time; concurrent triggers are coalesced.
type Service struct {
	cfg        *config.Config
	store      storage.Store
	sources    []feed.Source
	analyzer   *sentiment.Analyzer
	extractor  *coins.Extractor
	engine     *alerts.Engine
	summarizer *summarizer.Summarizer
	archiver   Archiver
	notifier   AlertNotifier

	running atomic.Bool
	mu      sync.RWMutex
	metrics Metrics
}

// NewService wires the pipeline. archiver and notifier may be nil.
func NewService(
	cfg *config.Config,
	store storage.Store,
	sources []feed.Source,
	analyzer *sentiment.Analyzer,
	extractor *coins.Extractor,
	engine *alerts.Engine,
	sum *summarizer.Summarizer,
	archiver Archiver,
	notifier AlertNotifier,
) *Service {
	return &Service{
		cfg:        cfg,
		store:      store,
		sources:    sources,
		analyzer:   analyzer,
		extractor:  extractor,
		engine:     engine,
		summarizer: sum,
		archiver:   archiver,
		notifier:   notifier,
		metrics:    Metrics{SentimentBreakdown: make(map[string]int)},
	}
}

// TryRun starts a pipeline run in the background unless one is already
// in flight. Returns false when the trigger was coalesced into the
// current run.
func (s *Service) TryRun() bool {
	if !s.running.CompareAndSwap(false, true) {
		logrus.Info("Pipeline run already in progress, trigger coalesced")
		return false
	}

	go func() {
		defer s.running.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
		defer cancel()

		if err := s.run(ctx); err != nil {
			logrus.Errorf("Pipeline run failed: %v", err)
		}
	}()

	return true
}

// RunOnce executes a run synchronously, honoring the same single-flight
// guard. Used by the scheduler and the seed tool.
func (s *Service) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		logrus.Info("Pipeline run already in progress, trigger coalesced")
		return nil
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	return s.run(ctx)
}

func (s *Service) run(ctx context.Context) error {
	start := time.Now()
	runID := uuid.NewString()
	logrus.Infof("Starting pipeline run %s", runID)

	collected, sourceErrors, err := s.collect(ctx)
	if err != nil {
		return err
	}

	scored := s.score(collected)

	s.archive(ctx, runID, scored)

	newCount, err := s.store.InsertPosts(ctx, scored)
	if err != nil {
		return fmt.Errorf("failed to store posts: %w", err)
	}
	logrus.Infof("Stored %d new posts (%d collected)", newCount, len(scored))

	now := time.Now().UTC()

	alertCount, err := s.evaluateAlerts(ctx, now)
	if err != nil {
		return err
	}

	summary, err := s.summarize(ctx, now)
	if err != nil {
		return err
	}

	s.updateMetrics(runID, scored, newCount, alertCount, sourceErrors, time.Since(start), summary)
	logrus.Infof("Pipeline run %s completed in %v", runID, time.Since(start))
	return nil
}

// collect fans out to all enabled sources concurrently and gathers
// their crypto-relevant posts. A run with zero successful sources
// aborts so storage stays untouched and the trigger is safe to retry.
func (s *Service) collect(ctx context.Context) ([]models.Post, int, error) {
	enabled := 0
	for _, src := range s.sources {
		if src.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return nil, 0, fmt.Errorf("no feed sources enabled")
	}

	var wg sync.WaitGroup
	postsChan := make(chan []models.Post, len(s.sources))
	errorsChan := make(chan error, len(s.sources))

	for _, source := range s.sources {
		if !source.IsEnabled() {
			continue
		}

		wg.Add(1)
		go func(src feed.Source) {
			defer wg.Done()

			logrus.Infof("Fetching posts from %s (window: %v)", src.Name(), s.cfg.TrendWindow)
			posts, err := src.FetchPosts(ctx, s.cfg.TrendWindow)
			if err != nil {
				logrus.Errorf("Error fetching from %s: %v", src.Name(), err)
				errorsChan <- err
				return
			}
			postsChan <- posts
		}(source)
	}

	go func() {
		wg.Wait()
		close(postsChan)
		close(errorsChan)
	}()

	var all []models.Post
	succeeded := 0
	for posts := range postsChan {
		succeeded++
		all = append(all, posts...)
	}

	errorCount := 0
	for range errorsChan {
		errorCount++
	}

	if succeeded == 0 {
		return nil, errorCount, fmt.Errorf("all feed sources failed (%d errors)", errorCount)
	}

	relevant := all[:0]
	for _, post := range all {
		if feed.MatchesKeywords(post.Text, s.cfg.Keywords) {
			relevant = append(relevant, post)
		}
	}
	logrus.Infof("Collected %d crypto-relevant posts out of %d total", len(relevant), len(all))

	return relevant, errorCount, nil
}

// score attaches sentiment and coin mentions before persistence, so a
// stored post always carries its classification
func (s *Service) score(posts []models.Post) []models.Post {
	now := time.Now().UTC()
	for i := range posts {
		posts[i].Sentiment = s.analyzer.Analyze(posts[i].Text)
		posts[i].Coins = s.extractor.Mentions(posts[i].Text)
		posts[i].CollectedAt = now
	}
	return posts
}

func (s *Service) archive(ctx context.Context, runID string, posts []models.Post) {
	if s.archiver == nil || len(posts) == 0 {
		return
	}

	data, err := json.Marshal(posts)
	if err != nil {
		logrus.Errorf("Failed to marshal batch for archive: %v", err)
		return
	}

	name := fmt.Sprintf("posts-%s-%s.json", time.Now().UTC().Format("2006-01-02-15-04-05"), runID)
	if err := s.archiver.Archive(ctx, name, data); err != nil {
		logrus.Errorf("Failed to archive batch %s: %v", name, err)
	}
}

// evaluateAlerts recomputes trends over the configured window,
// compares against the prior window's trends held in pipeline state,
// and stores whatever the rules emit
func (s *Service) evaluateAlerts(ctx context.Context, now time.Time) (int, error) {
	windowPosts, err := s.store.PostsSince(ctx, now.Add(-s.cfg.TrendWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to load window posts: %w", err)
	}

	distribution := map[string]int{
		models.SentimentBullish: 0,
		models.SentimentBearish: 0,
		models.SentimentNeutral: 0,
	}
	for _, post := range windowPosts {
		distribution[post.Sentiment.Label]++
	}

	trends := s.extractor.Trends(windowPosts)

	prevTrends, err := s.loadPrevTrends(ctx)
	if err != nil {
		return 0, err
	}

	input := alerts.Input{
		WindowID:     now.Truncate(s.cfg.RefreshInterval).Format("2006-01-02T15:04"),
		Distribution: distribution,
		Total:        len(windowPosts),
		Trends:       trends,
		PrevTrends:   prevTrends,
		Now:          now,
	}

	emitted := 0
	for _, pending := range s.engine.Evaluate(input) {
		stored, err := s.store.InsertAlert(ctx, &pending.Alert, pending.DedupKey)
		if err != nil {
			return emitted, fmt.Errorf("failed to store alert: %w", err)
		}
		if !stored {
			continue
		}
		emitted++

		if s.notifier != nil && pending.Alert.Importance >= s.cfg.NotifyImportance {
			if err := s.notifier.SendAlert(&pending.Alert); err != nil {
				logrus.Errorf("Failed to notify alert %q: %v", pending.Alert.Title, err)
			}
		}
	}

	if err := s.savePrevTrends(ctx, trends); err != nil {
		return emitted, err
	}

	logrus.Infof("Alert evaluation emitted %d alerts over %d window posts", emitted, len(windowPosts))
	return emitted, nil
}

func (s *Service) loadPrevTrends(ctx context.Context) ([]models.CoinTrend, error) {
	raw, err := s.store.GetState(ctx, storage.StateLastTrends)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous trends: %w", err)
	}
	if raw == "" {
		return nil, nil
	}

	var trends []models.CoinTrend
	if err := json.Unmarshal([]byte(raw), &trends); err != nil {
		return nil, fmt.Errorf("failed to parse previous trends: %w", err)
	}
	return trends, nil
}

func (s *Service) savePrevTrends(ctx context.Context, trends []models.CoinTrend) error {
	data, err := json.Marshal(trends)
	if err != nil {
		return fmt.Errorf("failed to marshal trends: %w", err)
	}
	if err := s.store.SetState(ctx, storage.StateLastTrends, string(data)); err != nil {
		return fmt.Errorf("failed to save trends state: %w", err)
	}
	return nil
}

// summarize builds exactly one summary over the posts collected since
// the last summary, tracked by a persisted cursor rather than process
// state
func (s *Service) summarize(ctx context.Context, now time.Time) (*models.Summary, error) {
	cursor, err := s.lastSummarizedID(ctx)
	if err != nil {
		return nil, err
	}

	newPosts, err := s.store.PostsAfterID(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts for summary: %w", err)
	}

	trends := s.extractor.Trends(newPosts)
	summary := s.summarizer.Build(ctx, newPosts, trends, now)

	if err := s.store.InsertSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to store summary: %w", err)
	}

	if len(newPosts) > 0 {
		last := newPosts[len(newPosts)-1].ID
		if err := s.store.SetState(ctx, storage.StateLastSummarizedID, strconv.FormatInt(last, 10)); err != nil {
			return nil, fmt.Errorf("failed to advance summary cursor: %w", err)
		}
	}

	logrus.Infof("Created summary %d over %d new posts", summary.ID, len(newPosts))
	return summary, nil
}

func (s *Service) lastSummarizedID(ctx context.Context) (int64, error) {
	raw, err := s.store.GetState(ctx, storage.StateLastSummarizedID)
	if err != nil {
		return 0, fmt.Errorf("failed to load summary cursor: %w", err)
	}
	if raw == "" {
		return 0, nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt summary cursor %q: %w", raw, err)
	}
	return id, nil
}

func (s *Service) updateMetrics(runID string, collected []models.Post, newCount, alertCount, sourceErrors int, duration time.Duration, summary *models.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = Metrics{
		LastRunID:          runID,
		LastRun:            time.Now().UTC(),
		LastRunDuration:    duration.String(),
		CollectedPosts:     len(collected),
		NewPosts:           newCount,
		AlertsEmitted:      alertCount,
		SourceErrors:       sourceErrors,
		SentimentBreakdown: make(map[string]int),
	}
	if summary != nil {
		for label, count := range summary.Distribution {
			s.metrics.SentimentBreakdown[label] = count
		}
	}
}

// MetricsJSON returns the last run's metrics as indented JSON
func (s *Service) MetricsJSON() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
