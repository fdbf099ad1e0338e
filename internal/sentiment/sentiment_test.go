package sentiment

import (
	"math"
	"testing"

	"github.com/seenimoa/tickersent/pkg/models"
)

func TestLexiconScorerBullish(t *testing.T) {
	s := NewLexiconScorer(nil)
	score := s.Score("Apple shares rally 5% on strong growth and positive results")
	if score <= 0 {
		t.Errorf("expected positive score for bullish headline, got %.4f", score)
	}
}

func TestLexiconScorerBearish(t *testing.T) {
	s := NewLexiconScorer(nil)
	score := s.Score("Market crash: stocks plunge amid fraud investigation concerns")
	if score >= 0 {
		t.Errorf("expected negative score for bearish headline, got %.4f", score)
	}
}

func TestLexiconScorerNeutral(t *testing.T) {
	s := NewLexiconScorer(nil)
	if score := s.Score("Company announces new office location in Austin"); score != 0 {
		t.Errorf("expected zero score for neutral headline, got %.4f", score)
	}
}

func TestLexiconScorerInflections(t *testing.T) {
	s := NewLexiconScorer(nil)
	for _, text := range []string{"Stock surges", "Stock surged", "Stock rallies", "Earnings beat estimates"} {
		if score := s.Score(text); score <= 0 {
			t.Errorf("Score(%q) = %.4f, want > 0", text, score)
		}
	}
	if score := s.Score("Shares plunging"); score >= 0 {
		t.Errorf("Score(plunging) = %.4f, want < 0", score)
	}
}

func TestLexiconScorerNegation(t *testing.T) {
	s := NewLexiconScorer(nil)
	plain := s.Score("Shares fall after report")
	negated := s.Score("Shares did not fall after report")
	if plain >= 0 {
		t.Fatalf("plain = %.4f, want < 0", plain)
	}
	if negated <= 0 {
		t.Errorf("negated = %.4f, want > 0", negated)
	}
	if far := s.Score("No change seen by analysts today as shares fall"); far >= 0 {
		t.Errorf("negator outside window should not flip, got %.4f", far)
	}
}

func TestLexiconScorerRange(t *testing.T) {
	s := NewLexiconScorer(nil)
	text := "surge rally soar bullish record high upgrade outperform breakout beat surge rally soar"
	score := s.Score(text)
	if score <= 0.9 || score > 1 {
		t.Errorf("expected saturated score in (0.9, 1], got %.4f", score)
	}
}

func TestLexiconScorerExtraTerms(t *testing.T) {
	s := NewLexiconScorer(map[string]float64{"Moonshot": 2})
	if score := s.Score("A moonshot quarter"); score <= 0 {
		t.Errorf("expected custom term to score, got %.4f", score)
	}
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		text string
		want float64
	}{
		{"passthrough", 0.25, "x", 0.25},
		{"nan", math.NaN(), "x", 0},
		{"inf", math.Inf(1), "x", 0},
		{"clamp high", 3, "x", 1},
		{"clamp low", -2, "x", -1},
		{"blank input", 0.9, "   ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Guard(ScorerFunc(func(string) float64 { return tt.raw }))
			if got := g.Score(tt.text); got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	s := ScorerFunc(func(string) float64 { return 0 })

	if got := Analyze(s, ""); got.Present {
		t.Errorf("Analyze(empty) = %+v, want absent", got)
	}
	if got := Analyze(s, " \n\t"); got.Present {
		t.Errorf("Analyze(whitespace) = %+v, want absent", got)
	}
	// A genuine zero is present, not absent.
	got := Analyze(s, "flat day")
	if !got.Present || got.Value != 0 {
		t.Errorf("Analyze(text) = %+v, want present 0", got)
	}
}

func TestCombine(t *testing.T) {
	got := Combine(models.Scored(1.0), models.Scored(0.0))
	if !got.Present || math.Abs(got.Value-0.3) > 1e-12 {
		t.Errorf("Combine(1, 0) = %+v, want 0.3", got)
	}

	got = Combine(models.Scored(-0.5), models.Scored(0.5))
	if !got.Present || math.Abs(got.Value-0.2) > 1e-12 {
		t.Errorf("Combine(-0.5, 0.5) = %+v, want 0.2", got)
	}

	if got := Combine(models.Scored(0.5), models.Absent); got.Present {
		t.Errorf("Combine with absent content = %+v, want absent", got)
	}
	if got := Combine(models.Absent, models.Scored(0.5)); got.Present {
		t.Errorf("Combine with absent title = %+v, want absent", got)
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights.Validate(); err != nil {
		t.Errorf("DefaultWeights.Validate() = %v", err)
	}
	if err := (Weights{Title: 0.5, Content: 0.6}).Validate(); err == nil {
		t.Error("expected error for weights summing to 1.1")
	}
	if err := (Weights{Title: -0.5, Content: 1.5}).Validate(); err == nil {
		t.Error("expected error for negative weight")
	}
}

func TestPlaceholder(t *testing.T) {
	if got := Placeholder(models.Absent); got != 0 {
		t.Errorf("Placeholder(absent) = %v, want 0", got)
	}
	if got := Placeholder(models.Scored(-0.4)); got != -0.4 {
		t.Errorf("Placeholder(-0.4) = %v", got)
	}
}
