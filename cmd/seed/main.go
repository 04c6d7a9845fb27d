package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xtc-labs/xtc/internal/alerts"
	"github.com/xtc-labs/xtc/internal/archive"
	"github.com/xtc-labs/xtc/internal/coins"
	"github.com/xtc-labs/xtc/internal/config"
	"github.com/xtc-labs/xtc/internal/feed"
	"github.com/xtc-labs/xtc/internal/models"
	"github.com/xtc-labs/xtc/internal/pipeline"
	"github.com/xtc-labs/xtc/internal/sentiment"
	"github.com/xtc-labs/xtc/internal/storage"
	"github.com/xtc-labs/xtc/internal/summarizer"
	"github.com/xtc-labs/xtc/internal/textgen"
)

// StaticSource serves a fixed batch of posts so the pipeline can be
// exercised without feed credentials
type StaticSource struct {
	posts []models.Post
}

func (s *StaticSource) Name() string    { return "static" }
func (s *StaticSource) IsEnabled() bool { return true }

func (s *StaticSource) FetchPosts(ctx context.Context, window time.Duration) ([]models.Post, error) {
	return s.posts, nil
}

func samplePosts() []models.Post {
	now := time.Now().UTC()
	return []models.Post{
		{
			ExternalID: "seed-1",
			Author:     "Crypto Carol",
			Handle:     "@cryptocarol",
			Text:       "BTC to the moon! 🚀 Accumulating every dip, bullish as ever on bitcoin",
			Likes:      420,
			Reshares:   69,
			Replies:    15,
			PostedAt:   now.Add(-2 * time.Hour),
		},
		{
			ExternalID: "seed-2",
			Author:     "Bear Market Bob",
			Handle:     "@bmb",
			Text:       "ETH crashing hard, sell now before it gets worse. Gas fees were the warning sign 📉",
			Likes:      87,
			Reshares:   31,
			Replies:    44,
			PostedAt:   now.Add(-3 * time.Hour),
		},
		{
			ExternalID: "seed-3",
			Author:     "Daily Dave",
			Handle:     "@dailydave",
			Text:       "just had lunch, watching some crypto charts later maybe",
			Likes:      3,
			Reshares:   0,
			Replies:    1,
			PostedAt:   now.Add(-4 * time.Hour),
		},
		{
			ExternalID: "seed-4",
			Author:     "Degen Dana",
			Handle:     "@degendana",
			Text:       "$SOL mooning again, diamond hands paying off. Solana ecosystem is on fire 🔥",
			Likes:      211,
			Reshares:   54,
			Replies:    9,
			PostedAt:   now.Add(-5 * time.Hour),
		},
		{
			ExternalID: "seed-5",
			Author:     "Skeptical Sam",
			Handle:     "@skeptsam",
			Text:       "Another day, another crypto rug pull. This whole altcoin space is full of scams",
			Likes:      156,
			Reshares:   78,
			Replies:    62,
			PostedAt:   now.Add(-6 * time.Hour),
		},
	}
}

func main() {
	replay := flag.String("replay", "", `archived batch to replay instead of the bundled samples ("latest" picks the newest)`)
	flag.Parse()

	fmt.Println("XTC - Seed Runner")
	fmt.Println("=================")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		fmt.Printf("Failed to open database %s: %v\n", cfg.DBPath, err)
		os.Exit(1)
	}
	defer store.Close()

	posts := samplePosts()
	if *replay != "" {
		posts, err = loadArchivedBatch(context.Background(), cfg, *replay)
		if err != nil {
			fmt.Printf("Failed to load archived batch: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("\nSeeding %s with %d posts...\n", cfg.DBPath, len(posts))

	service := pipeline.NewService(
		cfg,
		store,
		[]feed.Source{&StaticSource{posts: posts}},
		sentiment.NewAnalyzer(),
		coins.NewExtractor(),
		alerts.NewEngine(alerts.Thresholds{
			SentimentShare:    cfg.SentimentShare,
			SentimentMinPosts: cfg.SentimentMinPosts,
			PolarityThreshold: cfg.PolarityThreshold,
			TrendMinMentions:  cfg.TrendMinMentions,
			SpikeThreshold:    cfg.SpikeThreshold,
		}),
		summarizer.New(textgen.NewClient("", ""), cfg.TopTrending),
		nil,
		nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()

	if err := service.RunOnce(ctx); err != nil {
		fmt.Printf("Pipeline run failed: %v\n", err)
		os.Exit(1)
	}

	printResults(ctx, store)

	fmt.Println("\nDone. Start the dashboard with: go run ./cmd/xtc")
}

// loadArchivedBatch pulls a raw post batch back out of blob storage so
// an earlier collection run can be replayed into a fresh database.
func loadArchivedBatch(ctx context.Context, cfg *config.Config, name string) ([]models.Post, error) {
	arch, err := archive.NewBlobArchive(cfg.StorageAccount, cfg.StorageContainer)
	if err != nil {
		return nil, err
	}

	if name == "latest" {
		names, err := arch.List(ctx, "posts-")
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("no archived batches found")
		}
		// batch names carry a UTC timestamp, so lexicographic order
		// is chronological
		sort.Strings(names)
		name = names[len(names)-1]
	}

	data, err := arch.Retrieve(ctx, name)
	if err != nil {
		return nil, err
	}

	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode batch %s: %w", name, err)
	}

	fmt.Printf("Replaying archived batch %s\n", name)
	return posts, nil
}

func printResults(ctx context.Context, store storage.Store) {
	summary, err := store.LatestSummary(ctx)
	if err != nil {
		fmt.Printf("Failed to load summary: %v\n", err)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("LATEST SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	if summary != nil {
		fmt.Println(summary.Content)
	}

	alerts, err := store.ListAlerts(ctx, 20, true)
	if err != nil {
		fmt.Printf("Failed to load alerts: %v\n", err)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf("ALERTS (%d)\n", len(alerts))
	fmt.Println(strings.Repeat("=", 60))
	for _, alert := range alerts {
		fmt.Printf("  [%d/%d] %s: %s\n", alert.Importance, models.ImportanceMax, alert.Type, alert.Title)
	}
}
