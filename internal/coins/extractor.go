package coins

import (
	"regexp"
	"sort"
	"strings"

	"github.com/xtc-labs/xtc/internal/models"
)

// coinAliases maps canonical ticker symbols to the names and tickers
// that count as a mention. Symbols are the stable key used everywhere
// downstream (trends, alerts, summaries).
var coinAliases = map[string][]string{
	"BTC":   {"bitcoin", "btc", "xbt", "₿"},
	"ETH":   {"ethereum", "eth", "ether"},
	"SOL":   {"solana", "sol"},
	"ADA":   {"cardano", "ada"},
	"BNB":   {"binance", "bnb", "bsc"},
	"XRP":   {"ripple", "xrp"},
	"DOGE":  {"dogecoin", "doge"},
	"DOT":   {"polkadot", "dot"},
	"AVAX":  {"avalanche", "avax"},
	"SHIB":  {"shiba", "shib"},
	"LTC":   {"litecoin", "ltc"},
	"LINK":  {"chainlink", "link"},
	"MATIC": {"polygon", "matic"},
	"TRX":   {"tron", "trx"},
	"UNI":   {"uniswap", "uni"},
	"ATOM":  {"cosmos", "atom"},
}

var cashtagPattern = regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9]{1,9})`)

// Extractor finds coin mentions in post text and tallies trends over
// a window of posts
type Extractor struct {
	aliasToSymbol map[string]string
}

// NewExtractor builds an extractor over the built-in alias table
func NewExtractor() *Extractor {
	e := &Extractor{aliasToSymbol: make(map[string]string)}
	for symbol, aliases := range coinAliases {
		for _, alias := range aliases {
			e.aliasToSymbol[alias] = symbol
		}
	}
	return e
}

// Mentions returns the sorted set of coin symbols mentioned in text.
// Names and tickers match on word boundaries; cashtags like $BTC match
// anywhere, and unknown cashtags are kept as uppercase symbols.
func (e *Extractor) Mentions(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]bool)

	for _, token := range tokenize(strings.ToLower(text)) {
		if symbol, ok := e.aliasToSymbol[token]; ok {
			seen[symbol] = true
		}
	}

	for _, match := range cashtagPattern.FindAllStringSubmatch(text, -1) {
		tag := strings.ToLower(match[1])
		if symbol, ok := e.aliasToSymbol[tag]; ok {
			seen[symbol] = true
		} else {
			seen[strings.ToUpper(tag)] = true
		}
	}

	if len(seen) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(seen))
	for symbol := range seen {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	return symbols
}

// Trends computes the per-coin mention count and mean sentiment score
// over a set of posts. Coins with zero mentions are omitted; the result
// is ranked by mention count descending, then symbol ascending.
func (e *Extractor) Trends(posts []models.Post) []models.CoinTrend {
	type tally struct {
		count        int
		sentimentSum float64
	}

	tallies := make(map[string]*tally)
	for _, post := range posts {
		for _, symbol := range post.Coins {
			t, ok := tallies[symbol]
			if !ok {
				t = &tally{}
				tallies[symbol] = t
			}
			t.count++
			t.sentimentSum += post.Sentiment.Score
		}
	}

	trends := make([]models.CoinTrend, 0, len(tallies))
	for symbol, t := range tallies {
		trends = append(trends, models.CoinTrend{
			Symbol:       symbol,
			Mentions:     t.count,
			AvgSentiment: t.sentimentSum / float64(t.count),
		})
	}

	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Mentions != trends[j].Mentions {
			return trends[i].Mentions > trends[j].Mentions
		}
		return trends[i].Symbol < trends[j].Symbol
	})

	return trends
}

// TopN returns at most n leading trends
func TopN(trends []models.CoinTrend, n int) []models.CoinTrend {
	if len(trends) <= n {
		return trends
	}
	return trends[:n]
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		case r == '₿':
			return false
		default:
			return true
		}
	})
}
