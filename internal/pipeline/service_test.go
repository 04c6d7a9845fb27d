package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtc-labs/xtc/internal/alerts"
	"github.com/xtc-labs/xtc/internal/coins"
	"github.com/xtc-labs/xtc/internal/config"
	"github.com/xtc-labs/xtc/internal/feed"
	"github.com/xtc-labs/xtc/internal/models"
	"github.com/xtc-labs/xtc/internal/sentiment"
	"github.com/xtc-labs/xtc/internal/storage"
	"github.com/xtc-labs/xtc/internal/summarizer"
	"github.com/xtc-labs/xtc/internal/textgen"
)

// fakeSource serves canned posts, optionally failing or blocking until
// released
type fakeSource struct {
	name    string
	posts   []models.Post
	err     error
	mu      sync.Mutex
	fetches int

	block   chan struct{} // when set, FetchPosts waits for a receive
	started chan struct{} // closed on first fetch
}

func (f *fakeSource) Name() string    { return f.name }
func (f *fakeSource) IsEnabled() bool { return true }

func (f *fakeSource) FetchPosts(ctx context.Context, window time.Duration) ([]models.Post, error) {
	f.mu.Lock()
	f.fetches++
	first := f.fetches == 1
	f.mu.Unlock()

	if first && f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.posts, nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func testConfig() *config.Config {
	return &config.Config{
		RefreshInterval:   30 * time.Minute,
		RunTimeout:        5 * time.Second,
		TrendWindow:       24 * time.Hour,
		TopTrending:       5,
		Keywords:          []string{"bitcoin", "btc", "eth", "crypto", "$"},
		SpikeThreshold:    5,
		SentimentShare:    0.70,
		SentimentMinPosts: 10,
		PolarityThreshold: 0.5,
		TrendMinMentions:  5,
		NotifyImportance:  4,
	}
}

func newTestService(t *testing.T, sources ...feed.Source) (*Service, storage.Store) {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := testConfig()
	service := NewService(
		cfg, store, sources,
		sentiment.NewAnalyzer(),
		coins.NewExtractor(),
		alerts.NewEngine(alerts.Thresholds{
			SpikeThreshold:    cfg.SpikeThreshold,
			SentimentShare:    cfg.SentimentShare,
			SentimentMinPosts: cfg.SentimentMinPosts,
			PolarityThreshold: cfg.PolarityThreshold,
			TrendMinMentions:  cfg.TrendMinMentions,
		}),
		summarizer.New(textgen.NewClient("", ""), cfg.TopTrending),
		nil, nil,
	)
	return service, store
}

func feedPosts(n int, text string) []models.Post {
	now := time.Now().UTC()
	posts := make([]models.Post, n)
	for i := range posts {
		posts[i] = models.Post{
			ExternalID: fmt.Sprintf("ext-%s-%d", strings.Fields(text)[0], i),
			Author:     "Author",
			Handle:     "@author",
			Text:       text,
			PostedAt:   now.Add(-time.Duration(i) * time.Minute),
		}
	}
	return posts
}

func TestService_RunOnce_EndToEnd(t *testing.T) {
	source := &fakeSource{name: "fake", posts: append(
		feedPosts(3, "BTC to the moon! bullish on bitcoin"),
		feedPosts(1, "ETH crashing hard, sell now")...,
	)}
	service, store := newTestService(t, source)
	ctx := context.Background()

	require.NoError(t, service.RunOnce(ctx))

	posts, err := store.ListPosts(ctx, storage.PostQuery{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, posts, 4)

	// Every stored post carries a sentiment label and coin mentions
	for _, post := range posts {
		assert.NotEmpty(t, post.Sentiment.Label)
	}

	summary, err := store.LatestSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.Distribution[models.SentimentBullish])
	assert.Equal(t, 1, summary.Distribution[models.SentimentBearish])

	// The summary cursor advanced, so a second run over the same feed
	// summarizes zero new posts
	require.NoError(t, service.RunOnce(ctx))

	summary, err = store.LatestSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Contains(t, summary.Content, "No new crypto activity")
}

func TestService_RunOnce_FiltersIrrelevantPosts(t *testing.T) {
	source := &fakeSource{name: "fake", posts: append(
		feedPosts(2, "bitcoin is pumping"),
		feedPosts(3, "pictures of my cat")...,
	)}
	service, store := newTestService(t, source)
	ctx := context.Background()

	require.NoError(t, service.RunOnce(ctx))

	posts, err := store.ListPosts(ctx, storage.PostQuery{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestService_RunOnce_SourceFailureLeavesStorageUntouched(t *testing.T) {
	source := &fakeSource{name: "broken", err: fmt.Errorf("scrape failed")}
	service, store := newTestService(t, source)
	ctx := context.Background()

	err := service.RunOnce(ctx)
	require.Error(t, err)

	posts, err := store.ListPosts(ctx, storage.PostQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, posts)

	summaries, err := store.ListSummaries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestService_TryRun_Coalescing(t *testing.T) {
	source := &fakeSource{
		name:    "slow",
		posts:   feedPosts(1, "btc steady"),
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	service, _ := newTestService(t, source)

	assert.True(t, service.TryRun())

	// Wait until the run is inside FetchPosts, then every further
	// trigger must coalesce
	select {
	case <-source.started:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline run never started")
	}

	assert.False(t, service.TryRun())
	assert.False(t, service.TryRun())

	close(source.block)

	// When the run finishes a new trigger is accepted again
	require.Eventually(t, func() bool {
		return service.TryRun()
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return source.fetchCount() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_MetricsJSON(t *testing.T) {
	source := &fakeSource{name: "fake", posts: feedPosts(2, "crypto chatter")}
	service, _ := newTestService(t, source)

	require.NoError(t, service.RunOnce(context.Background()))

	metrics := service.MetricsJSON()
	assert.Contains(t, metrics, `"collected_posts": 2`)
	assert.Contains(t, metrics, `"new_posts": 2`)
	assert.Contains(t, metrics, `"last_run_id"`)
}
