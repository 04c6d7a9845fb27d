package models

import "time"

// Sentiment classification labels
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// Sentiment holds the scored polarity of a post's text
type Sentiment struct {
	Score float64 `json:"score"` // compound polarity in [-1, 1]
	Label string  `json:"label"` // "bullish", "bearish" or "neutral"
}

// Post represents a single crypto-related post collected from the feed
type Post struct {
	ID          int64     `json:"id"`
	ExternalID  string    `json:"external_id"` // feed-assigned id, dedup key
	Author      string    `json:"author"`      // display name
	Handle      string    `json:"handle"`
	Text        string    `json:"text"`
	Likes       int       `json:"likes"`
	Reshares    int       `json:"reshares"`
	Replies     int       `json:"replies"`
	PostedAt    time.Time `json:"posted_at"`
	CollectedAt time.Time `json:"collected_at"`
	Sentiment   Sentiment `json:"sentiment"`
	Coins       []string  `json:"mentioned_coins"` // symbols, e.g. "BTC"
}

// CoinTrend is the per-coin tally for one window, derived from posts
// and recomputed on every pipeline pass
type CoinTrend struct {
	Symbol       string  `json:"symbol"`
	Mentions     int     `json:"mentions"`
	AvgSentiment float64 `json:"avg_sentiment"`
}

// Summary is a periodic aggregate snapshot of the feed
type Summary struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Distribution map[string]int `json:"sentiment_overview"` // counts per label
	Trending     []CoinTrend    `json:"trending_coins"`
	CreatedAt    time.Time      `json:"timestamp"`
}

// Alert importance bounds (ordinal, 1 = low, 5 = high)
const (
	ImportanceMin = 1
	ImportanceMax = 5
)

// Alert types
const (
	AlertTypeSentiment = "sentiment"
	AlertTypeTrend     = "trend"
	AlertTypeSpike     = "spike"
)

// Alert is a notification record produced by a threshold rule
type Alert struct {
	ID          int64     `json:"id"`
	Type        string    `json:"alert_type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Coin        string    `json:"coin,omitempty"` // symbol, empty for feed-wide alerts
	Importance  int       `json:"importance"`
	CreatedAt   time.Time `json:"timestamp"`
	IsRead      bool      `json:"is_read"`
}
