package sentiment

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/xtc-labs/xtc/internal/models"
)

// Classification thresholds: compound >= +0.05 is bullish,
// compound <= -0.05 is bearish, anything between is neutral.
const (
	bullishThreshold = 0.05
	bearishThreshold = -0.05
)

// normalization constant, keeps the compound score inside (-1, 1)
const normAlpha = 15.0

// negated valences are dampened rather than fully inverted
const negationFactor = -0.74

var (
	urlPattern     = regexp.MustCompile(`https?://\S+|www\.\S+`)
	handlePattern  = regexp.MustCompile(`@\w+`)
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// phrase is a multi-word or emoji lexicon entry matched by substring
type phrase struct {
	text    string
	valence float64
}

// Analyzer scores post text with a crypto-augmented lexicon.
// Analyze is a pure function of the input text.
type Analyzer struct {
	tokens  map[string]float64
	phrases []phrase
}

// NewAnalyzer creates an analyzer with the built-in lexicon
func NewAnalyzer() *Analyzer {
	a := &Analyzer{tokens: make(map[string]float64)}

	for word, valence := range tokenLexicon {
		a.tokens[word] = valence
	}

	for text, valence := range phraseLexicon {
		a.phrases = append(a.phrases, phrase{text: text, valence: valence})
	}

	// Longest phrases match first so "all time high" wins over "high",
	// ties ordered lexicographically to keep scoring deterministic.
	sort.Slice(a.phrases, func(i, j int) bool {
		if len(a.phrases[i].text) != len(a.phrases[j].text) {
			return len(a.phrases[i].text) > len(a.phrases[j].text)
		}
		return a.phrases[i].text < a.phrases[j].text
	})

	return a
}

// Analyze computes a compound polarity score in [-1, 1] and a label.
// Empty or non-textual input yields a neutral zero score.
func (a *Analyzer) Analyze(text string) models.Sentiment {
	clean := preprocess(text)
	if clean == "" {
		return models.Sentiment{Score: 0, Label: models.SentimentNeutral}
	}

	var total float64

	// Phrase and emoji hits are consumed before tokenization so their
	// constituent words are not scored twice.
	for _, p := range a.phrases {
		if n := strings.Count(clean, p.text); n > 0 {
			total += float64(n) * p.valence
			clean = strings.ReplaceAll(clean, p.text, " ")
		}
	}

	tokens := tokenize(clean)
	for i, tok := range tokens {
		valence, ok := a.tokens[tok]
		if !ok {
			continue
		}

		if i > 0 {
			if boost, ok := boosters[tokens[i-1]]; ok {
				if valence < 0 {
					valence -= boost
				} else {
					valence += boost
				}
			}
		}

		// A negation up to three tokens back flips the valence
		for j := i - 3; j < i; j++ {
			if j >= 0 && negations[tokens[j]] {
				valence *= negationFactor
				break
			}
		}

		total += valence
	}

	score := total / math.Sqrt(total*total+normAlpha)
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}

	return models.Sentiment{Score: score, Label: Classify(score)}
}

// Classify maps a compound score onto a sentiment label
func Classify(score float64) string {
	switch {
	case score >= bullishThreshold:
		return models.SentimentBullish
	case score <= bearishThreshold:
		return models.SentimentBearish
	default:
		return models.SentimentNeutral
	}
}

func preprocess(text string) string {
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, "")
	text = handlePattern.ReplaceAllString(text, "")
	text = hashtagPattern.ReplaceAllString(text, "$1")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		case r == '\'':
			return false
		default:
			return true
		}
	})
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "neither": true, "nor": true,
	"don't": true, "dont": true, "doesn't": true, "doesnt": true,
	"isn't": true, "isnt": true, "won't": true, "wont": true,
	"can't": true, "cant": true, "ain't": true, "aint": true,
	"wasn't": true, "wasnt": true, "without": true,
}

var boosters = map[string]float64{
	"very": 0.293, "extremely": 0.293, "incredibly": 0.293,
	"really": 0.267, "super": 0.267, "hugely": 0.267,
	"so": 0.2, "pretty": 0.2,
	"slightly": -0.293, "somewhat": -0.2, "barely": -0.293,
}
