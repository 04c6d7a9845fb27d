package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/xtc-labs/xtc/internal/models"
)

// TimelineSource reads the most recent posts visible to the account
// from the feed's HTTP API. Session mechanics (login flows, browser
// automation) stay behind this boundary; callers only see posts or an
// error for the run.
type TimelineSource struct {
	baseURL     string
	bearerToken string
	client      *resty.Client
}

// Ensure TimelineSource implements Source
var _ Source = (*TimelineSource)(nil)

type timelineResponse struct {
	Data []timelinePost `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type timelinePost struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorName    string `json:"author_name"`
	AuthorHandle  string `json:"author_handle"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		LikeCount   string `json:"like_count"`
		RepostCount string `json:"repost_count"`
		ReplyCount  string `json:"reply_count"`
	} `json:"public_metrics"`
	Referenced []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_posts"`
}

// NewTimelineSource creates a timeline source for the given account session
func NewTimelineSource(baseURL, bearerToken string) *TimelineSource {
	return &TimelineSource{
		baseURL:     strings.TrimRight(baseURL, "/"),
		bearerToken: bearerToken,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "XTC-Sentinel/1.0"),
	}
}

func (t *TimelineSource) Name() string {
	return "timeline"
}

func (t *TimelineSource) IsEnabled() bool {
	return t.bearerToken != ""
}

// FetchPosts retrieves the recent home timeline, following pagination
// tokens until the window is covered. Any transport or API failure
// aborts the fetch; no partial results are returned.
func (t *TimelineSource) FetchPosts(ctx context.Context, window time.Duration) ([]models.Post, error) {
	if !t.IsEnabled() {
		logrus.Debug("Timeline source disabled - missing bearer token")
		return nil, nil
	}

	startTime := time.Now().Add(-window).UTC().Format(time.RFC3339)
	var all []models.Post
	nextToken := ""

	for page := 0; page < 10; page++ {
		resp, err := t.fetchPage(ctx, startTime, nextToken)
		if err != nil {
			return nil, err
		}

		for _, raw := range resp.Data {
			post, err := t.toPost(raw)
			if err != nil {
				logrus.Errorf("Skipping malformed timeline post %s: %v", raw.ID, err)
				continue
			}
			all = append(all, post)
		}

		nextToken = resp.Meta.NextToken
		if nextToken == "" {
			break
		}
	}

	logrus.Infof("Fetched %d posts from timeline (window: %v)", len(all), window)
	return deduplicate(all), nil
}

func (t *TimelineSource) fetchPage(ctx context.Context, startTime, nextToken string) (*timelineResponse, error) {
	req := t.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+t.bearerToken).
		SetQueryParams(map[string]string{
			"start_time":  startTime,
			"max_results": "100",
		})
	if nextToken != "" {
		req.SetQueryParam("pagination_token", nextToken)
	}

	resp, err := req.Get(t.baseURL + "/timeline/recent")
	if err != nil {
		return nil, fmt.Errorf("timeline request failed: %w", err)
	}

	if resp.StatusCode() == 429 {
		return nil, fmt.Errorf("timeline rate limit hit (reset: %s)",
			resp.Header().Get("x-rate-limit-reset"))
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("timeline API returned status %d: %s",
			resp.StatusCode(), string(resp.Body()))
	}

	var parsed timelineResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse timeline response: %w", err)
	}

	return &parsed, nil
}

func (t *TimelineSource) toPost(raw timelinePost) (models.Post, error) {
	if t.isRepost(raw) {
		return models.Post{}, fmt.Errorf("repost")
	}

	postedAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
	if err != nil {
		return models.Post{}, fmt.Errorf("bad timestamp %q: %w", raw.CreatedAt, err)
	}

	return models.Post{
		ExternalID: raw.ID,
		Author:     raw.AuthorName,
		Handle:     raw.AuthorHandle,
		Text:       raw.Text,
		Likes:      ParseCount(raw.PublicMetrics.LikeCount),
		Reshares:   ParseCount(raw.PublicMetrics.RepostCount),
		Replies:    ParseCount(raw.PublicMetrics.ReplyCount),
		PostedAt:   postedAt.UTC(),
	}, nil
}

func (t *TimelineSource) isRepost(raw timelinePost) bool {
	for _, ref := range raw.Referenced {
		if ref.Type == "reposted" {
			return true
		}
	}
	return false
}

func deduplicate(posts []models.Post) []models.Post {
	seen := make(map[string]bool)
	var unique []models.Post

	for _, post := range posts {
		if !seen[post.ExternalID] {
			seen[post.ExternalID] = true
			unique = append(unique, post)
		}
	}

	return unique
}

// ParseCount parses feed engagement counters, which arrive either as
// plain integers or abbreviated strings like "1.2K" and "3M"
func ParseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
		multiplier = 1_000_000
		s = s[:len(s)-1]
	}

	s = strings.ReplaceAll(s, ",", "")
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return int(value * multiplier)
}

// MatchesKeywords reports whether text is crypto-relevant for the
// configured keyword list. The "$" keyword matches any cashtag.
func MatchesKeywords(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
