// Package sentiment scores financial news text.
//
// The lexicon scorer is deterministic and offline: bullish and bearish
// phrases carry weights, a negator shortly before a phrase flips it, and the
// raw sum is squashed into [-1, 1].
package sentiment

import (
	"math"
	"strings"
	"unicode"
)

// Scorer maps text to a polarity in [-1, 1].
type Scorer interface {
	Score(text string) float64
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(text string) float64

// Score calls f(text).
func (f ScorerFunc) Score(text string) float64 { return f(text) }

// ------------------------------------------------------------------
// Lexicon
// ------------------------------------------------------------------

// Positive weights are bullish, negative bearish. Keys are base forms;
// multi-word phrases are space separated.
var financialLexicon = map[string]float64{
	// bullish
	"bullish": 1.4, "rally": 1.2, "surge": 1.4, "soar": 1.5, "jump": 1.0,
	"upbeat": 1.0, "positive": 0.8, "growth": 0.8, "upgrade": 1.2,
	"outperform": 1.2, "buy": 1.0, "strong": 0.8, "recovery": 1.0,
	"rebound": 1.0, "breakout": 1.2, "record high": 1.4, "all-time high": 1.4,
	"beat": 1.0, "beat estimate": 1.2, "exceed": 1.0, "expansion": 0.8,
	"profit": 0.6, "dividend": 0.8, "accumulate": 1.0, "gain": 0.8,
	"raise guidance": 1.4, "approval": 0.8, "optimistic": 1.0, "win": 0.8,
	// bearish
	"bearish": -1.4, "crash": -1.6, "plunge": -1.4, "slump": -1.2,
	"tumble": -1.2, "sink": -1.0, "negative": -0.8, "downgrade": -1.2,
	"underperform": -1.2, "sell": -1.0, "weak": -0.8, "decline": -1.0,
	"loss": -0.8, "selloff": -1.4, "sell-off": -1.4, "fall": -0.8,
	"correction": -1.0, "default": -1.4, "fraud": -1.6, "scam": -1.6,
	"investigation": -1.0, "lawsuit": -1.0, "cut": -0.6, "miss": -1.0,
	"miss estimate": -1.2, "warning": -1.0, "concern": -0.6, "layoff": -1.0,
	"recall": -0.8, "bankruptcy": -1.8, "lower guidance": -1.4,
	"pessimistic": -1.0, "drop": -0.8,
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "without": true, "nor": true,
	"neither": true, "cannot": true, "hardly": true, "barely": true,
	"fail": true, "fails": true, "failed": true,
}

const (
	// negationWindow is how many preceding tokens are checked for a negator.
	negationWindow = 3
	// normalizationAlpha approximates the maximum expected raw sum.
	normalizationAlpha = 15.0
	maxPhraseLen       = 3
)

// LexiconScorer is a financial keyword scorer.
type LexiconScorer struct {
	lexicon map[string]float64
	vocab   map[string]bool
}

// NewLexiconScorer returns a scorer over the built-in financial lexicon.
// extra entries are merged on top (use a negative weight for bearish terms).
func NewLexiconScorer(extra map[string]float64) *LexiconScorer {
	lex := make(map[string]float64, len(financialLexicon)+len(extra))
	for k, v := range financialLexicon {
		lex[k] = v
	}
	for k, v := range extra {
		lex[strings.ToLower(strings.TrimSpace(k))] = v
	}
	vocab := make(map[string]bool)
	for phrase := range lex {
		for _, w := range strings.Fields(phrase) {
			vocab[w] = true
		}
	}
	return &LexiconScorer{lexicon: lex, vocab: vocab}
}

// Score returns the polarity of text in [-1, 1]. Text without any lexicon
// hit scores 0.
func (s *LexiconScorer) Score(text string) float64 {
	tokens := s.tokenize(text)
	sum := 0.0
	for i := 0; i < len(tokens); {
		weight, n := s.match(tokens, i)
		if n == 0 {
			i++
			continue
		}
		if negatedAt(tokens, i) {
			weight = -weight
		}
		sum += weight
		i += n
	}
	return normalize(sum)
}

// match finds the longest lexicon phrase starting at tokens[i].
func (s *LexiconScorer) match(tokens []string, i int) (float64, int) {
	for n := maxPhraseLen; n >= 1; n-- {
		if i+n > len(tokens) {
			continue
		}
		if w, ok := s.lexicon[strings.Join(tokens[i:i+n], " ")]; ok {
			return w, n
		}
	}
	return 0, 0
}

func negatedAt(tokens []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-negationWindow; j-- {
		t := tokens[j]
		if negators[t] || strings.HasSuffix(t, "n't") {
			return true
		}
	}
	return false
}

func normalize(sum float64) float64 {
	if sum == 0 {
		return 0
	}
	return sum / math.Sqrt(sum*sum+normalizationAlpha)
}

func (s *LexiconScorer) tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-'")
		if f == "" {
			continue
		}
		out = append(out, s.stem(f))
	}
	return out
}

// stem reduces an inflected token to a vocabulary base form when one exists.
func (s *LexiconScorer) stem(tok string) string {
	if s.vocab[tok] {
		return tok
	}
	if strings.HasSuffix(tok, "ies") {
		if base := strings.TrimSuffix(tok, "ies") + "y"; s.vocab[base] {
			return base
		}
	}
	for _, suffix := range []string{"ing", "ed", "es", "s", "d"} {
		if !strings.HasSuffix(tok, suffix) {
			continue
		}
		base := strings.TrimSuffix(tok, suffix)
		if s.vocab[base] {
			return base
		}
		// plunging -> plunge, surged handled by "d"
		if suffix == "ing" && s.vocab[base+"e"] {
			return base + "e"
		}
	}
	return tok
}
