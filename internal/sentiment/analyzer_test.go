package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xtc-labs/xtc/internal/models"
)

func TestAnalyzer_Analyze(t *testing.T) {
	analyzer := NewAnalyzer()

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "Bullish phrase",
			text:     "BTC to the moon!",
			expected: models.SentimentBullish,
		},
		{
			name:     "Bearish slang",
			text:     "ETH crashing hard, sell now",
			expected: models.SentimentBearish,
		},
		{
			name:     "Neutral text",
			text:     "just had lunch",
			expected: models.SentimentNeutral,
		},
		{
			name:     "Rocket emoji is bullish",
			text:     "solana 🚀",
			expected: models.SentimentBullish,
		},
		{
			name:     "Chart down emoji is bearish",
			text:     "btc 📉",
			expected: models.SentimentBearish,
		},
		{
			name:     "Crypto slang hodl",
			text:     "keep calm and hodl",
			expected: models.SentimentBullish,
		},
		{
			name:     "Scam accusation",
			text:     "this token is a scam, total ponzi",
			expected: models.SentimentBearish,
		},
		{
			name:     "Hashtags count as words",
			text:     "#bullish on #bitcoin",
			expected: models.SentimentBullish,
		},
		{
			name:     "URLs and handles ignored",
			text:     "@whale check https://example.com/chart",
			expected: models.SentimentNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := analyzer.Analyze(tt.text)
			assert.Equal(t, tt.expected, result.Label, "text: %q scored %f", tt.text, result.Score)
		})
	}
}

func TestAnalyzer_ScoreRange(t *testing.T) {
	analyzer := NewAnalyzer()

	texts := []string{
		"",
		"BTC to the moon! 🚀🚀🚀 mooning pumping rally ath gains",
		"scam ponzi rugpull rekt crash dump worthless 📉📉📉",
		"neutral observation about the weather",
	}

	for _, text := range texts {
		result := analyzer.Analyze(text)
		assert.GreaterOrEqual(t, result.Score, -1.0, "text: %q", text)
		assert.LessOrEqual(t, result.Score, 1.0, "text: %q", text)
	}
}

func TestAnalyzer_EmptyInput(t *testing.T) {
	analyzer := NewAnalyzer()

	for _, text := range []string{"", "   ", "@someone https://example.com"} {
		result := analyzer.Analyze(text)
		assert.Equal(t, 0.0, result.Score, "text: %q", text)
		assert.Equal(t, models.SentimentNeutral, result.Label)
	}
}

func TestAnalyzer_Deterministic(t *testing.T) {
	analyzer := NewAnalyzer()
	text := "bull market incoming, buy the dip and hodl 💎🙌 but beware the rug pull fud"

	first := analyzer.Analyze(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, analyzer.Analyze(text))
	}
}

func TestAnalyzer_Negation(t *testing.T) {
	analyzer := NewAnalyzer()

	plain := analyzer.Analyze("this coin is good")
	negated := analyzer.Analyze("this coin is not good")

	assert.Equal(t, models.SentimentBullish, plain.Label)
	assert.Less(t, negated.Score, plain.Score)
	assert.Equal(t, models.SentimentBearish, negated.Label)
}

func TestAnalyzer_Boosters(t *testing.T) {
	analyzer := NewAnalyzer()

	plain := analyzer.Analyze("bitcoin looks bullish")
	boosted := analyzer.Analyze("bitcoin looks extremely bullish")

	assert.Greater(t, boosted.Score, plain.Score)
}

func TestAnalyzer_PhraseNotDoubleCounted(t *testing.T) {
	analyzer := NewAnalyzer()

	// "bear market" scores as one phrase; "bearish" alone must not add
	// the phrase valence on top.
	phraseOnly := analyzer.Analyze("bear market")
	assert.Equal(t, models.SentimentBearish, phraseOnly.Label)

	// The phrase removes its words, so "market" contributes nothing after
	withSuffix := analyzer.Analyze("bear market market market")
	assert.Equal(t, phraseOnly.Score, withSuffix.Score)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score    float64
		expected string
	}{
		{0.05, models.SentimentBullish},
		{0.5, models.SentimentBullish},
		{1.0, models.SentimentBullish},
		{-0.05, models.SentimentBearish},
		{-0.5, models.SentimentBearish},
		{-1.0, models.SentimentBearish},
		{0.0, models.SentimentNeutral},
		{0.049, models.SentimentNeutral},
		{-0.049, models.SentimentNeutral},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Classify(tt.score), "score %f", tt.score)
	}
}
