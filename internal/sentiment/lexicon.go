package sentiment

// Single-token lexicon. Valences follow the VADER convention of roughly
// -4 (most bearish) to +4 (most bullish). Crypto slang is weighted on
// top of a small core of general finance and opinion words.
var tokenLexicon = map[string]float64{
	// crypto bullish
	"hodl":         2.0,
	"mooning":      3.0,
	"bullish":      2.5,
	"fomo":         1.0,
	"rocket":       2.0,
	"accumulate":   1.0,
	"accumulating": 1.0,
	"breakout":     1.8,
	"adoption":     1.5,
	"bullrun":      2.0,
	"ath":          2.0,
	"pump":         1.5,
	"pumping":      1.8,
	"rally":        1.8,
	"rallying":     1.8,
	"surge":        1.5,
	"surging":      1.5,
	"undervalued":  1.2,
	"gains":        1.5,
	"profit":       1.5,
	"profits":      1.5,
	"moon":         2.0,

	// crypto bearish
	"bearish":    -2.5,
	"rugpull":    -3.0,
	"rug":        -2.0,
	"dump":       -2.0,
	"dumping":    -2.0,
	"crash":      -2.5,
	"crashing":   -2.5,
	"crashed":    -2.5,
	"fud":        -2.0,
	"ponzi":      -3.0,
	"scam":       -3.0,
	"shitcoin":   -2.5,
	"rekt":       -2.5,
	"liquidated": -2.0,
	"bearmarket": -2.0,
	"bubble":     -1.5,
	"correction": -1.0,
	"overvalued": -1.2,
	"sell":       -1.0,
	"selling":    -1.0,
	"tanking":    -2.0,
	"plunge":     -2.0,
	"plunging":   -2.0,
	"losses":     -1.5,
	"worthless":  -2.5,

	// general opinion words
	"good":       1.9,
	"great":      2.5,
	"excellent":  3.0,
	"amazing":    2.8,
	"awesome":    2.5,
	"love":       2.5,
	"strong":     1.5,
	"win":        2.0,
	"winning":    2.0,
	"happy":      2.0,
	"optimistic": 1.8,
	"bad":        -1.9,
	"terrible":   -2.5,
	"awful":      -2.5,
	"hate":       -2.5,
	"weak":       -1.5,
	"fear":       -1.8,
	"panic":      -2.2,
	"worried":    -1.5,
	"lose":       -2.0,
	"losing":     -2.0,
	"dead":       -2.0,
	"broken":     -1.8,
}

// Multi-word and emoji lexicon, matched by substring before tokenization
var phraseLexicon = map[string]float64{
	"to the moon":     3.0,
	"diamond hands":   2.0,
	"buy the dip":     1.5,
	"all time high":   2.0,
	"beat the market": 1.5,
	"paper hands":     -1.5,
	"sell off":        -1.5,
	"dead cat bounce": -1.5,
	"rug pull":        -3.0,
	"bear market":     -2.0,
	"bull market":     2.0,

	"🚀": 2.5,
	"🌕": 2.0,
	"💎": 1.5,
	"🙌": 1.0,
	"📈": 2.0,
	"📉": -2.0,
	"🧸": -2.0,
	"💩": -2.0,
}
