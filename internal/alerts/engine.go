package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/xtc-labs/xtc/internal/models"
	"github.com/xtc-labs/xtc/internal/sentiment"
)

// Thresholds configures the fixed rule set
type Thresholds struct {
	// SpikeThreshold is the mention-count increase over the prior
	// window that fires a spike alert.
	SpikeThreshold int
	// SentimentShare is the share of one label (0..1] that fires a
	// feed-wide sentiment alert.
	SentimentShare float64
	// SentimentMinPosts is the minimum number of scored posts before
	// the sentiment rule applies.
	SentimentMinPosts int
	// PolarityThreshold is the absolute aggregate sentiment at which a
	// trending coin fires a trend alert.
	PolarityThreshold float64
	// TrendMinMentions is the minimum mention count for the trend rule.
	TrendMinMentions int
}

// Pending is an alert the engine wants stored, along with the dedup key
// that prevents the same rule/window combination from firing twice
type Pending struct {
	Alert    models.Alert
	DedupKey string
}

// Engine evaluates threshold rules against extractor output. It holds
// no state between runs; idempotence comes from the dedup key stored
// with each alert.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates an engine with the given thresholds
func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Input is one window's worth of evaluation data
type Input struct {
	WindowID     string             // stable identifier of the window, part of dedup keys
	Distribution map[string]int     // scored-post counts per sentiment label
	Total        int                // total scored posts in the window
	Trends       []models.CoinTrend // current window's extractor output
	PrevTrends   []models.CoinTrend // prior window's output, nil on first run
	Now          time.Time
}

// Evaluate runs every rule and returns the alerts that fired.
// Importance is scaled with the magnitude of the triggering change and
// always stays within [ImportanceMin, ImportanceMax].
func (e *Engine) Evaluate(in Input) []Pending {
	var pending []Pending

	pending = append(pending, e.sentimentRule(in)...)
	pending = append(pending, e.trendRule(in)...)
	pending = append(pending, e.spikeRule(in)...)

	return pending
}

// sentimentRule fires when one polarity dominates the window
func (e *Engine) sentimentRule(in Input) []Pending {
	if in.Total == 0 || in.Total < e.thresholds.SentimentMinPosts {
		return nil
	}

	for _, label := range []string{models.SentimentBullish, models.SentimentBearish} {
		share := float64(in.Distribution[label]) / float64(in.Total)
		if share <= e.thresholds.SentimentShare {
			continue
		}

		// 4 at the threshold, 5 once the share passes 85%
		importance := 4
		if share >= 0.85 {
			importance = 5
		}

		return []Pending{{
			Alert: models.Alert{
				Type:  models.AlertTypeSentiment,
				Title: fmt.Sprintf("Strong %s sentiment detected", label),
				Description: fmt.Sprintf(
					"Crypto feed sentiment is highly %s (%.1f%%) based on %d recent posts.",
					label, share*100, in.Total),
				Importance: importance,
				CreatedAt:  in.Now,
			},
			DedupKey: fmt.Sprintf("sentiment:%s:%s", label, in.WindowID),
		}}
	}

	return nil
}

// trendRule fires when the top coin is heavily mentioned or its
// aggregate sentiment crosses the polarity threshold
func (e *Engine) trendRule(in Input) []Pending {
	if len(in.Trends) == 0 {
		return nil
	}

	var pending []Pending

	top := in.Trends[0]
	if top.Mentions > e.thresholds.TrendMinMentions {
		pending = append(pending, Pending{
			Alert: models.Alert{
				Type:  models.AlertTypeTrend,
				Title: fmt.Sprintf("%s is trending", top.Symbol),
				Description: fmt.Sprintf("%s is trending with %d mentions and %s sentiment.",
					top.Symbol, top.Mentions, sentiment.Classify(top.AvgSentiment)),
				Coin:       top.Symbol,
				Importance: 3,
				CreatedAt:  in.Now,
			},
			DedupKey: fmt.Sprintf("trend:%s:%s", strings.ToLower(top.Symbol), in.WindowID),
		})
	}

	for _, trend := range in.Trends {
		if trend.Mentions < 2 {
			continue
		}
		if trend.AvgSentiment < e.thresholds.PolarityThreshold &&
			trend.AvgSentiment > -e.thresholds.PolarityThreshold {
			continue
		}

		label := sentiment.Classify(trend.AvgSentiment)
		magnitude := trend.AvgSentiment
		if magnitude < 0 {
			magnitude = -magnitude
		}
		// 3 at the polarity threshold, 5 near the score ceiling
		importance := clampImportance(3 + int((magnitude-e.thresholds.PolarityThreshold)*4))

		pending = append(pending, Pending{
			Alert: models.Alert{
				Type:  models.AlertTypeSentiment,
				Title: fmt.Sprintf("%s sentiment strongly %s", trend.Symbol, label),
				Description: fmt.Sprintf(
					"Aggregate sentiment for %s reached %.2f over %d mentions.",
					trend.Symbol, trend.AvgSentiment, trend.Mentions),
				Coin:       trend.Symbol,
				Importance: importance,
				CreatedAt:  in.Now,
			},
			DedupKey: fmt.Sprintf("polarity:%s:%s:%s",
				strings.ToLower(trend.Symbol), label, in.WindowID),
		})
	}

	return pending
}

// spikeRule compares against the prior window and fires when a coin's
// mention count jumps by more than the threshold
func (e *Engine) spikeRule(in Input) []Pending {
	if in.PrevTrends == nil || e.thresholds.SpikeThreshold < 1 {
		return nil
	}

	prev := make(map[string]int, len(in.PrevTrends))
	for _, trend := range in.PrevTrends {
		prev[trend.Symbol] = trend.Mentions
	}

	var pending []Pending
	for _, trend := range in.Trends {
		delta := trend.Mentions - prev[trend.Symbol]
		if delta <= e.thresholds.SpikeThreshold {
			continue
		}

		// grows by one level per further multiple of the threshold
		importance := clampImportance(2 + delta/e.thresholds.SpikeThreshold)

		pending = append(pending, Pending{
			Alert: models.Alert{
				Type:  models.AlertTypeSpike,
				Title: fmt.Sprintf("%s mention spike", trend.Symbol),
				Description: fmt.Sprintf(
					"%s mentions jumped from %d to %d since the previous window.",
					trend.Symbol, prev[trend.Symbol], trend.Mentions),
				Coin:       trend.Symbol,
				Importance: importance,
				CreatedAt:  in.Now,
			},
			DedupKey: fmt.Sprintf("spike:%s:%s", strings.ToLower(trend.Symbol), in.WindowID),
		})
	}

	return pending
}

func clampImportance(v int) int {
	if v < models.ImportanceMin {
		return models.ImportanceMin
	}
	if v > models.ImportanceMax {
		return models.ImportanceMax
	}
	return v
}
