package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtc-labs/xtc/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func testPost(externalID, text, label string, score float64, postedAt time.Time) models.Post {
	return models.Post{
		ExternalID:  externalID,
		Author:      "Test Author",
		Handle:      "@test",
		Text:        text,
		Likes:       10,
		Reshares:    2,
		Replies:     1,
		PostedAt:    postedAt,
		CollectedAt: time.Now().UTC(),
		Sentiment:   models.Sentiment{Score: score, Label: label},
		Coins:       []string{"BTC"},
	}
}

func TestSQLiteStore_InsertPosts_Dedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	posts := []models.Post{
		testPost("p1", "BTC to the moon", models.SentimentBullish, 0.6, now),
		testPost("p2", "ETH crashing", models.SentimentBearish, -0.5, now),
	}

	inserted, err := store.InsertPosts(ctx, posts)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Re-inserting the same batch adds nothing
	inserted, err = store.InsertPosts(ctx, posts)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	stored, err := store.ListPosts(ctx, PostQuery{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestSQLiteStore_ListPosts_Pagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	var posts []models.Post
	for i := 0; i < 5; i++ {
		posts = append(posts, testPost(
			string(rune('a'+i)), "post", models.SentimentNeutral, 0,
			base.Add(time.Duration(i)*time.Minute),
		))
	}
	_, err := store.InsertPosts(ctx, posts)
	require.NoError(t, err)

	page1, err := store.ListPosts(ctx, PostQuery{Limit: 2, Page: 1})
	require.NoError(t, err)
	page2, err := store.ListPosts(ctx, PostQuery{Limit: 2, Page: 2})
	require.NoError(t, err)
	page3, err := store.ListPosts(ctx, PostQuery{Limit: 2, Page: 3})
	require.NoError(t, err)

	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	require.Len(t, page3, 1)

	// Most recent first and pages are disjoint and contiguous
	assert.Equal(t, "e", page1[0].ExternalID)
	assert.Equal(t, "d", page1[1].ExternalID)
	assert.Equal(t, "c", page2[0].ExternalID)
	assert.Equal(t, "b", page2[1].ExternalID)
	assert.Equal(t, "a", page3[0].ExternalID)
}

func TestSQLiteStore_ListPosts_SentimentFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.InsertPosts(ctx, []models.Post{
		testPost("p1", "up", models.SentimentBullish, 0.5, now),
		testPost("p2", "down", models.SentimentBearish, -0.5, now),
		testPost("p3", "flat", models.SentimentNeutral, 0, now),
	})
	require.NoError(t, err)

	bullish, err := store.ListPosts(ctx, PostQuery{Limit: 10, Sentiment: models.SentimentBullish})
	require.NoError(t, err)
	require.Len(t, bullish, 1)
	assert.Equal(t, "p1", bullish[0].ExternalID)

	all, err := store.ListPosts(ctx, PostQuery{Limit: 10, Sentiment: "all"})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStore_PostsSince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	_, err := store.InsertPosts(ctx, []models.Post{
		testPost("old", "old post", models.SentimentNeutral, 0, now.Add(-48*time.Hour)),
		testPost("new", "new post", models.SentimentNeutral, 0, now.Add(-1*time.Hour)),
	})
	require.NoError(t, err)

	recent, err := store.PostsSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].ExternalID)
}

func TestSQLiteStore_PostsAfterID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.InsertPosts(ctx, []models.Post{
		testPost("p1", "first", models.SentimentNeutral, 0, now),
		testPost("p2", "second", models.SentimentNeutral, 0, now),
		testPost("p3", "third", models.SentimentNeutral, 0, now),
	})
	require.NoError(t, err)

	all, err := store.PostsAfterID(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	after, err := store.PostsAfterID(ctx, all[0].ID)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "p2", after[0].ExternalID)
}

func TestSQLiteStore_Summaries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	latest, err := store.LatestSummary(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	first := &models.Summary{
		Title:   "Summary 1",
		Content: "body",
		Distribution: map[string]int{
			models.SentimentBullish: 2,
			models.SentimentBearish: 1,
			models.SentimentNeutral: 0,
		},
		Trending:  []models.CoinTrend{{Symbol: "BTC", Mentions: 3, AvgSentiment: 0.4}},
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, store.InsertSummary(ctx, first))
	assert.NotZero(t, first.ID)

	second := &models.Summary{
		Title:        "Summary 2",
		Content:      "newer",
		Distribution: map[string]int{},
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.InsertSummary(ctx, second))

	latest, err = store.LatestSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "Summary 2", latest.Title)

	summaries, err := store.ListSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "Summary 2", summaries[0].Title)
	assert.Equal(t, 2, summaries[1].Distribution[models.SentimentBullish])
	assert.Equal(t, "BTC", summaries[1].Trending[0].Symbol)
}

func TestSQLiteStore_InsertAlert_Dedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alert := &models.Alert{
		Type:        models.AlertTypeTrend,
		Title:       "BTC trending",
		Description: "BTC mentioned 7 times",
		Coin:        "BTC",
		Importance:  3,
		CreatedAt:   time.Now().UTC(),
	}

	stored, err := store.InsertAlert(ctx, alert, "trend:BTC:2026-08-26T12:00")
	require.NoError(t, err)
	assert.True(t, stored)
	assert.NotZero(t, alert.ID)

	// Same rule and window must not fire twice
	duplicate := &models.Alert{Type: models.AlertTypeTrend, Title: "BTC trending", Importance: 3, CreatedAt: time.Now().UTC()}
	stored, err = store.InsertAlert(ctx, duplicate, "trend:BTC:2026-08-26T12:00")
	require.NoError(t, err)
	assert.False(t, stored)

	alerts, err := store.ListAlerts(ctx, 10, true)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestSQLiteStore_MarkAlertRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alert := &models.Alert{
		Type:       models.AlertTypeSentiment,
		Title:      "Feed turned bullish",
		Importance: 4,
		CreatedAt:  time.Now().UTC(),
	}
	stored, err := store.InsertAlert(ctx, alert, "sentiment:bullish:w1")
	require.NoError(t, err)
	require.True(t, stored)

	found, err := store.MarkAlertRead(ctx, alert.ID)
	require.NoError(t, err)
	assert.True(t, found)

	// Second call is an idempotent success
	found, err = store.MarkAlertRead(ctx, alert.ID)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.MarkAlertRead(ctx, 99999)
	require.NoError(t, err)
	assert.False(t, found)

	unread, err := store.ListAlerts(ctx, 10, false)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := store.ListAlerts(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsRead)
}

func TestSQLiteStore_State(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	value, err := store.GetState(ctx, StateLastSummarizedID)
	require.NoError(t, err)
	assert.Equal(t, "", value)

	require.NoError(t, store.SetState(ctx, StateLastSummarizedID, "42"))

	value, err = store.GetState(ctx, StateLastSummarizedID)
	require.NoError(t, err)
	assert.Equal(t, "42", value)

	// Overwrite
	require.NoError(t, store.SetState(ctx, StateLastSummarizedID, "43"))
	value, err = store.GetState(ctx, StateLastSummarizedID)
	require.NoError(t, err)
	assert.Equal(t, "43", value)
}
