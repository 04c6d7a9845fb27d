package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xtc-labs/xtc/internal/coins"
	"github.com/xtc-labs/xtc/internal/models"
	"github.com/xtc-labs/xtc/internal/sentiment"
	"github.com/xtc-labs/xtc/internal/storage"
	"github.com/xtc-labs/xtc/internal/textgen"
)

const fallbackResponse = "Sorry, I couldn't process that right now. " +
	"Try asking about current sentiment, trending coins, or recent alerts."

// Responder answers free-text questions about the current feed state.
// Answers are grounded in stored summaries, alerts and posts; when a
// text-generation client is available it composes the reply, otherwise
// a rule-based fallback handles the common intents. Respond never
// returns an error to the caller.
type Responder struct {
	store     storage.Store
	extractor *coins.Extractor
	gen       *textgen.Client
}

// NewResponder creates a chat responder
func NewResponder(store storage.Store, extractor *coins.Extractor, gen *textgen.Client) *Responder {
	return &Responder{store: store, extractor: extractor, gen: gen}
}

// Respond answers the message. Any internal failure degrades to a
// generic apologetic response.
func (r *Responder) Respond(ctx context.Context, message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return "Please provide a message to chat about the crypto feed."
	}

	if r.gen.Enabled() {
		if reply, err := r.delegate(ctx, message); err == nil && reply != "" {
			return reply
		} else if err != nil {
			logrus.Errorf("Chat delegation failed, using rule-based answer: %v", err)
		}
	}

	reply, err := r.ruleBased(ctx, message)
	if err != nil {
		logrus.Errorf("Chat responder failed: %v", err)
		return fallbackResponse
	}
	return reply
}

// delegate grounds the model in the latest stored state before asking
// it to answer
func (r *Responder) delegate(ctx context.Context, message string) (string, error) {
	var grounding strings.Builder

	if summary, err := r.store.LatestSummary(ctx); err == nil && summary != nil {
		grounding.WriteString("Latest summary:\n")
		grounding.WriteString(summary.Content)
		grounding.WriteString("\n")
	}

	if alerts, err := r.store.ListAlerts(ctx, 5, true); err == nil && len(alerts) > 0 {
		grounding.WriteString("\nRecent alerts:\n")
		for _, alert := range alerts {
			fmt.Fprintf(&grounding, "- %s: %s\n", alert.Title, alert.Description)
		}
	}

	system := "You are XTC, a crypto feed dashboard assistant. Answer from " +
		"the provided dashboard state only; say when the data doesn't cover " +
		"the question.\n\n" + grounding.String()

	return r.gen.Complete(ctx, system, message)
}

func (r *Responder) ruleBased(ctx context.Context, message string) (string, error) {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "trend", "trending", "popular"):
		return r.answerTrending(ctx)
	case containsAny(lower, "sentiment", "mood", "feeling"):
		return r.answerSentiment(ctx)
	case containsAny(lower, "bull", "bullish", "positive"):
		return r.answerByLabel(ctx, models.SentimentBullish)
	case containsAny(lower, "bear", "bearish", "negative"):
		return r.answerByLabel(ctx, models.SentimentBearish)
	case containsAny(lower, "alert", "notification", "important"):
		return r.answerAlerts(ctx)
	case strings.Contains(lower, "help"):
		return helpText, nil
	}

	if symbols := r.extractor.Mentions(message); len(symbols) > 0 {
		return r.answerCoin(ctx, symbols[0])
	}

	summary, err := r.store.LatestSummary(ctx)
	if err != nil {
		return "", err
	}
	if summary == nil {
		return "No recent data available. Try refreshing the feed.", nil
	}
	return summary.Content, nil
}

func (r *Responder) answerTrending(ctx context.Context) (string, error) {
	summary, err := r.store.LatestSummary(ctx)
	if err != nil {
		return "", err
	}
	if summary == nil || len(summary.Trending) == 0 {
		return "No trending cryptocurrencies detected in recent posts.", nil
	}

	var b strings.Builder
	b.WriteString("Currently trending cryptocurrencies:\n\n")
	for _, trend := range summary.Trending {
		fmt.Fprintf(&b, "- %s: %d mentions, %s sentiment\n",
			trend.Symbol, trend.Mentions, sentiment.Classify(trend.AvgSentiment))
	}
	return b.String(), nil
}

func (r *Responder) answerSentiment(ctx context.Context) (string, error) {
	summary, err := r.store.LatestSummary(ctx)
	if err != nil {
		return "", err
	}
	if summary == nil {
		return "No recent sentiment analysis available.", nil
	}

	bullish := summary.Distribution[models.SentimentBullish]
	bearish := summary.Distribution[models.SentimentBearish]
	neutral := summary.Distribution[models.SentimentNeutral]
	total := bullish + bearish + neutral
	if total == 0 {
		return "Not enough data to determine the current feed sentiment.", nil
	}

	bullishPct := float64(bullish) / float64(total) * 100
	bearishPct := float64(bearish) / float64(total) * 100

	overall := models.SentimentNeutral
	if bullishPct > bearishPct+10 {
		overall = models.SentimentBullish
	} else if bearishPct > bullishPct+10 {
		overall = models.SentimentBearish
	}

	return fmt.Sprintf(
		"The overall feed sentiment is currently %s. Out of %d analyzed posts, "+
			"%.1f%% are bullish, %.1f%% are bearish, and %.1f%% are neutral.",
		overall, total, bullishPct, bearishPct, 100-bullishPct-bearishPct), nil
}

func (r *Responder) answerByLabel(ctx context.Context, label string) (string, error) {
	posts, err := r.store.ListPosts(ctx, storage.PostQuery{Limit: 3, Page: 1, Sentiment: label})
	if err != nil {
		return "", err
	}
	if len(posts) == 0 {
		return fmt.Sprintf("No recent %s posts found.", label), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent %s posts:\n\n", label)
	for _, post := range posts {
		fmt.Fprintf(&b, "@%s: %s\n\n", post.Handle, truncate(post.Text, 100))
	}
	return b.String(), nil
}

func (r *Responder) answerCoin(ctx context.Context, symbol string) (string, error) {
	posts, err := r.store.ListPosts(ctx, storage.PostQuery{Limit: 50, Page: 1})
	if err != nil {
		return "", err
	}

	var mentions []models.Post
	for _, post := range posts {
		for _, coin := range post.Coins {
			if coin == symbol {
				mentions = append(mentions, post)
				break
			}
		}
	}

	if len(mentions) == 0 {
		return fmt.Sprintf("No recent %s-related posts found.", symbol), nil
	}

	bullish, bearish := 0, 0
	for _, post := range mentions {
		switch post.Sentiment.Label {
		case models.SentimentBullish:
			bullish++
		case models.SentimentBearish:
			bearish++
		}
	}

	label := models.SentimentNeutral
	if bullish > bearish {
		label = models.SentimentBullish
	} else if bearish > bullish {
		label = models.SentimentBearish
	}

	return fmt.Sprintf("%s sentiment is currently %s with %d recent mentions. "+
		"Sample post: @%s: %s",
		symbol, label, len(mentions),
		mentions[0].Handle, truncate(mentions[0].Text, 100)), nil
}

func (r *Responder) answerAlerts(ctx context.Context) (string, error) {
	alerts, err := r.store.ListAlerts(ctx, 3, false)
	if err != nil {
		return "", err
	}
	if len(alerts) == 0 {
		return "No recent alerts found.", nil
	}

	var b strings.Builder
	b.WriteString("Recent alerts:\n\n")
	for _, alert := range alerts {
		fmt.Fprintf(&b, "- %s: %s\n\n", alert.Title, alert.Description)
	}
	return b.String(), nil
}

const helpText = "I can help you analyze the crypto feed. Try asking me about:\n\n" +
	"- Current sentiment\n" +
	"- Trending cryptocurrencies\n" +
	"- Recent bullish or bearish posts\n" +
	"- Specific cryptocurrencies like Bitcoin or Ethereum\n" +
	"- Recent alerts or notifications\n\n" +
	"You can also use the refresh button to update the feed data."

func containsAny(text string, words ...string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

// truncate shortens s to at most n runes so a cut through an emoji
// never produces invalid UTF-8.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
