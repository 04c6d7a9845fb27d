package storage

import (
	"context"
	"time"

	"github.com/xtc-labs/xtc/internal/models"
)

// PostQuery selects a page of posts, most recent first
type PostQuery struct {
	Limit     int
	Page      int    // 1-based
	Sentiment string // "", "all" or one of the sentiment labels
}

// Store is the contract for the relational store holding posts,
// summaries, alerts and pipeline state
type Store interface {
	// Posts are append-only; InsertPosts deduplicates on external id
	// and reports how many rows were actually added.
	InsertPosts(ctx context.Context, posts []models.Post) (int, error)
	ListPosts(ctx context.Context, q PostQuery) ([]models.Post, error)
	PostsSince(ctx context.Context, since time.Time) ([]models.Post, error)
	PostsAfterID(ctx context.Context, id int64) ([]models.Post, error)

	InsertSummary(ctx context.Context, summary *models.Summary) error
	ListSummaries(ctx context.Context, limit int) ([]models.Summary, error)
	LatestSummary(ctx context.Context) (*models.Summary, error)

	// InsertAlert suppresses duplicates sharing a dedup key and reports
	// whether the alert was stored. MarkAlertRead reports whether the id
	// exists; marking an already-read alert is a no-op success.
	InsertAlert(ctx context.Context, alert *models.Alert, dedupKey string) (bool, error)
	ListAlerts(ctx context.Context, limit int, includeRead bool) ([]models.Alert, error)
	MarkAlertRead(ctx context.Context, id int64) (bool, error)

	// Pipeline state is a key/value table replacing in-process globals
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// Pipeline state keys
const (
	StateLastSummarizedID = "last_summarized_post_id"
	StateLastTrends       = "last_trends"
)
