package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xtc-labs/xtc/internal/models"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store over a single SQLite database file
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id   TEXT NOT NULL UNIQUE,
	author        TEXT NOT NULL DEFAULT '',
	handle        TEXT NOT NULL DEFAULT '',
	text          TEXT NOT NULL DEFAULT '',
	likes         INTEGER NOT NULL DEFAULT 0,
	reshares      INTEGER NOT NULL DEFAULT 0,
	replies       INTEGER NOT NULL DEFAULT 0,
	posted_at     INTEGER NOT NULL,
	collected_at  INTEGER NOT NULL,
	sentiment_score REAL NOT NULL DEFAULT 0,
	sentiment_label TEXT NOT NULL DEFAULT 'neutral',
	coins         TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_posts_posted_at ON posts(posted_at);
CREATE INDEX IF NOT EXISTS idx_posts_sentiment ON posts(sentiment_label);

CREATE TABLE IF NOT EXISTS summaries (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	title        TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL DEFAULT '',
	distribution TEXT NOT NULL DEFAULT '{}',
	trending     TEXT NOT NULL DEFAULT '[]',
	created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	alert_type  TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	coin        TEXT NOT NULL DEFAULT '',
	importance  INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	is_read     INTEGER NOT NULL DEFAULT 0,
	dedup_key   TEXT NOT NULL UNIQUE
);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);

CREATE TABLE IF NOT EXISTS pipeline_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection avoids SQLITE_BUSY between the pipeline writer
	// and concurrent API reads.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logrus.Infof("Database initialized at %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

// InsertPosts appends posts, skipping external ids already stored
func (s *SQLiteStore) InsertPosts(ctx context.Context, posts []models.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO posts
			(external_id, author, handle, text, likes, reshares, replies,
			 posted_at, collected_at, sentiment_score, sentiment_label, coins)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, post := range posts {
		coins, err := json.Marshal(post.Coins)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal coins: %w", err)
		}

		res, err := stmt.ExecContext(ctx,
			post.ExternalID, post.Author, post.Handle, post.Text,
			post.Likes, post.Reshares, post.Replies,
			post.PostedAt.Unix(), post.CollectedAt.Unix(),
			post.Sentiment.Score, post.Sentiment.Label, string(coins),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert post %s: %w", post.ExternalID, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit posts: %w", err)
	}

	return inserted, nil
}

const postColumns = `id, external_id, author, handle, text, likes, reshares,
	replies, posted_at, collected_at, sentiment_score, sentiment_label, coins`

// ListPosts returns a page of posts, most recent first, optionally
// filtered by sentiment label
func (s *SQLiteStore) ListPosts(ctx context.Context, q PostQuery) ([]models.Post, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := `SELECT ` + postColumns + ` FROM posts`
	args := []any{}

	if q.Sentiment != "" && q.Sentiment != "all" {
		query += ` WHERE sentiment_label = ?`
		args = append(args, q.Sentiment)
	}

	query += ` ORDER BY posted_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// PostsSince returns all posts with posted_at >= since, oldest first
func (s *SQLiteStore) PostsSince(ctx context.Context, since time.Time) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE posted_at >= ?
		ORDER BY posted_at ASC, id ASC
	`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query posts since %v: %w", since, err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// PostsAfterID returns all posts with a row id greater than id, used to
// find posts collected since the last summary
func (s *SQLiteStore) PostsAfterID(ctx context.Context, id int64) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE id > ?
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts after id %d: %w", id, err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

func scanPosts(rows *sql.Rows) ([]models.Post, error) {
	var posts []models.Post
	for rows.Next() {
		var post models.Post
		var postedAt, collectedAt int64
		var coins string

		if err := rows.Scan(
			&post.ID, &post.ExternalID, &post.Author, &post.Handle, &post.Text,
			&post.Likes, &post.Reshares, &post.Replies,
			&postedAt, &collectedAt,
			&post.Sentiment.Score, &post.Sentiment.Label, &coins,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}

		post.PostedAt = time.Unix(postedAt, 0).UTC()
		post.CollectedAt = time.Unix(collectedAt, 0).UTC()
		if err := json.Unmarshal([]byte(coins), &post.Coins); err != nil {
			return nil, fmt.Errorf("failed to unmarshal coins: %w", err)
		}

		posts = append(posts, post)
	}

	return posts, rows.Err()
}

// InsertSummary appends a summary and fills in its assigned id
func (s *SQLiteStore) InsertSummary(ctx context.Context, summary *models.Summary) error {
	distribution, err := json.Marshal(summary.Distribution)
	if err != nil {
		return fmt.Errorf("failed to marshal distribution: %w", err)
	}
	trending, err := json.Marshal(summary.Trending)
	if err != nil {
		return fmt.Errorf("failed to marshal trending: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (title, content, distribution, trending, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, summary.Title, summary.Content, string(distribution), string(trending), summary.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}

	summary.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read summary id: %w", err)
	}
	return nil
}

// ListSummaries returns up to limit summaries, most recent first
func (s *SQLiteStore) ListSummaries(ctx context.Context, limit int) ([]models.Summary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, distribution, trending, created_at
		FROM summaries
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}

	return summaries, rows.Err()
}

// LatestSummary returns the most recent summary, or nil when none exists
func (s *SQLiteStore) LatestSummary(ctx context.Context) (*models.Summary, error) {
	summaries, err := s.ListSummaries(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, nil
	}
	return &summaries[0], nil
}

func scanSummary(rows *sql.Rows) (*models.Summary, error) {
	var summary models.Summary
	var distribution, trending string
	var createdAt int64

	if err := rows.Scan(&summary.ID, &summary.Title, &summary.Content,
		&distribution, &trending, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan summary: %w", err)
	}

	if err := json.Unmarshal([]byte(distribution), &summary.Distribution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal distribution: %w", err)
	}
	if err := json.Unmarshal([]byte(trending), &summary.Trending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trending: %w", err)
	}
	summary.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &summary, nil
}

// InsertAlert appends an alert unless its dedup key already fired.
// Returns true when the alert was stored.
func (s *SQLiteStore) InsertAlert(ctx context.Context, alert *models.Alert, dedupKey string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO alerts
			(alert_type, title, description, coin, importance, created_at, is_read, dedup_key)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, alert.Type, alert.Title, alert.Description, alert.Coin,
		alert.Importance, alert.CreatedAt.Unix(), dedupKey)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		logrus.Debugf("Alert suppressed, dedup key already fired: %s", dedupKey)
		return false, nil
	}

	alert.ID, err = res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read alert id: %w", err)
	}
	return true, nil
}

// ListAlerts returns up to limit alerts, most recent first; unread only
// unless includeRead is set
func (s *SQLiteStore) ListAlerts(ctx context.Context, limit int, includeRead bool) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, alert_type, title, description, coin, importance, created_at, is_read
		FROM alerts`
	if !includeRead {
		query += ` WHERE is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var alert models.Alert
		var createdAt int64
		var isRead int

		if err := rows.Scan(&alert.ID, &alert.Type, &alert.Title, &alert.Description,
			&alert.Coin, &alert.Importance, &createdAt, &isRead); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		alert.CreatedAt = time.Unix(createdAt, 0).UTC()
		alert.IsRead = isRead != 0
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// MarkAlertRead sets is_read on the alert; returns false for unknown ids.
// Marking an already-read alert succeeds again, keeping the operation
// idempotent.
func (s *SQLiteStore) MarkAlertRead(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark alert read: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// GetState reads a pipeline state value; missing keys yield ""
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM pipeline_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, nil
}

// SetState writes a pipeline state value
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pipeline_state (key, value) VALUES (?, ?)
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
