package summarizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtc-labs/xtc/internal/models"
	"github.com/xtc-labs/xtc/internal/textgen"
)

func newTestSummarizer(topTrending int) *Summarizer {
	return New(textgen.NewClient("", ""), topTrending)
}

func TestSummarizer_Build_ZeroPosts(t *testing.T) {
	s := newTestSummarizer(5)
	now := time.Now().UTC()

	summary := s.Build(context.Background(), nil, nil, now)
	require.NotNil(t, summary)

	assert.Equal(t, "No new crypto activity since the last summary.", summary.Content)
	assert.Equal(t, 0, summary.Distribution[models.SentimentBullish])
	assert.Equal(t, 0, summary.Distribution[models.SentimentBearish])
	assert.Equal(t, 0, summary.Distribution[models.SentimentNeutral])
	assert.Empty(t, summary.Trending)
	assert.Equal(t, now, summary.CreatedAt)
}

func TestSummarizer_Build_Distribution(t *testing.T) {
	s := newTestSummarizer(5)

	posts := []models.Post{
		{Sentiment: models.Sentiment{Label: models.SentimentBullish}},
		{Sentiment: models.Sentiment{Label: models.SentimentBullish}},
		{Sentiment: models.Sentiment{Label: models.SentimentBullish}},
		{Sentiment: models.Sentiment{Label: models.SentimentBearish}},
		{Sentiment: models.Sentiment{Label: models.SentimentNeutral}},
	}

	summary := s.Build(context.Background(), posts, nil, time.Now().UTC())

	assert.Equal(t, 3, summary.Distribution[models.SentimentBullish])
	assert.Equal(t, 1, summary.Distribution[models.SentimentBearish])
	assert.Equal(t, 1, summary.Distribution[models.SentimentNeutral])

	// 60% bullish vs 20% bearish reads as an overall bullish feed
	assert.Contains(t, summary.Content, "currently bullish")
	assert.Contains(t, summary.Content, "5 crypto-related posts")
}

func TestSummarizer_Build_TrendingTruncated(t *testing.T) {
	s := newTestSummarizer(2)

	posts := []models.Post{
		{Sentiment: models.Sentiment{Label: models.SentimentNeutral}},
	}
	trends := []models.CoinTrend{
		{Symbol: "BTC", Mentions: 5, AvgSentiment: 0.4},
		{Symbol: "ETH", Mentions: 3, AvgSentiment: -0.3},
		{Symbol: "SOL", Mentions: 1, AvgSentiment: 0.1},
	}

	summary := s.Build(context.Background(), posts, trends, time.Now().UTC())

	require.Len(t, summary.Trending, 2)
	assert.Equal(t, "BTC", summary.Trending[0].Symbol)
	assert.Contains(t, summary.Content, "BTC: 5 mentions, bullish sentiment")
	assert.Contains(t, summary.Content, "ETH: 3 mentions, bearish sentiment")
	assert.NotContains(t, summary.Content, "SOL")
}

func TestSummarizer_Build_BalancedFeedIsNeutral(t *testing.T) {
	s := newTestSummarizer(5)

	posts := []models.Post{
		{Sentiment: models.Sentiment{Label: models.SentimentBullish}},
		{Sentiment: models.Sentiment{Label: models.SentimentBearish}},
	}

	summary := s.Build(context.Background(), posts, nil, time.Now().UTC())
	assert.Contains(t, summary.Content, "currently neutral")
}
