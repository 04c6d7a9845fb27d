package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xtc-labs/xtc/internal/models"
	"github.com/xtc-labs/xtc/internal/sentiment"
	"github.com/xtc-labs/xtc/internal/textgen"
)

// Summarizer aggregates scored posts into a Summary record. Content is
// templated; when a text-generation client is available the template
// output is rewritten by it, falling back to the template on failure.
type Summarizer struct {
	gen         *textgen.Client
	topTrending int
}

// New creates a summarizer. gen may be a disabled client.
func New(gen *textgen.Client, topTrending int) *Summarizer {
	if topTrending <= 0 {
		topTrending = 5
	}
	return &Summarizer{gen: gen, topTrending: topTrending}
}

// Build produces exactly one summary for the given batch of newly
// collected posts. A zero-post batch yields a summary noting no new
// activity with an all-zero distribution, not an error.
func (s *Summarizer) Build(ctx context.Context, posts []models.Post, trends []models.CoinTrend, now time.Time) *models.Summary {
	summary := &models.Summary{
		Title:     fmt.Sprintf("Crypto Feed Summary %s", now.Format("2006-01-02 15:04")),
		CreatedAt: now,
		Distribution: map[string]int{
			models.SentimentBullish: 0,
			models.SentimentBearish: 0,
			models.SentimentNeutral: 0,
		},
	}

	if len(posts) == 0 {
		summary.Content = "No new crypto activity since the last summary."
		summary.Trending = []models.CoinTrend{}
		return summary
	}

	for _, post := range posts {
		summary.Distribution[post.Sentiment.Label]++
	}

	if len(trends) > s.topTrending {
		trends = trends[:s.topTrending]
	}
	summary.Trending = trends

	summary.Content = s.render(summary, len(posts))

	if s.gen.Enabled() {
		polished, err := s.polish(ctx, summary)
		if err != nil {
			logrus.Errorf("Summary text generation failed, keeping template: %v", err)
		} else if polished != "" {
			summary.Content = polished
		}
	}

	return summary
}

func (s *Summarizer) render(summary *models.Summary, total int) string {
	bullish := summary.Distribution[models.SentimentBullish]
	bearish := summary.Distribution[models.SentimentBearish]
	neutral := summary.Distribution[models.SentimentNeutral]

	bullishPct := float64(bullish) / float64(total) * 100
	bearishPct := float64(bearish) / float64(total) * 100

	overall := models.SentimentNeutral
	if bullishPct > bearishPct+10 {
		overall = models.SentimentBullish
	} else if bearishPct > bullishPct+10 {
		overall = models.SentimentBearish
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The crypto feed sentiment is currently %s. ", overall)
	fmt.Fprintf(&b, "Out of %d crypto-related posts, ", total)
	fmt.Fprintf(&b, "%d (%.1f%%) are bullish, ", bullish, bullishPct)
	fmt.Fprintf(&b, "%d (%.1f%%) are bearish, and ", bearish, bearishPct)
	fmt.Fprintf(&b, "%d (%.1f%%) are neutral.\n", neutral, 100-bullishPct-bearishPct)

	if len(summary.Trending) > 0 {
		b.WriteString("\nTrending cryptocurrencies:\n")
		for _, trend := range summary.Trending {
			fmt.Fprintf(&b, "- %s: %d mentions, %s sentiment\n",
				trend.Symbol, trend.Mentions, sentiment.Classify(trend.AvgSentiment))
		}
	}

	return b.String()
}

func (s *Summarizer) polish(ctx context.Context, summary *models.Summary) (string, error) {
	const system = "You summarize crypto social feed activity. " +
		"Rewrite the provided stats into two or three readable sentences. " +
		"Do not invent numbers or coins."

	return s.gen.Complete(ctx, system, summary.Content)
}
