package sentiment

import (
	"math"
	"strings"

	"github.com/seenimoa/tickersent/pkg/models"
)

type guarded struct {
	inner Scorer
}

// Guard wraps a scorer so it never yields an unusable value: blank input
// scores 0, NaN or infinite output becomes 0 and anything outside [-1, 1] is
// clamped.
func Guard(s Scorer) Scorer {
	if g, ok := s.(guarded); ok {
		return g
	}
	return guarded{inner: s}
}

func (g guarded) Score(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	v := g.inner.Score(text)
	switch {
	case math.IsNaN(v), math.IsInf(v, 0):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}

// Analyze scores text. Empty text has no sentiment and yields an absent
// score; anything else yields a present, guarded score.
func Analyze(s Scorer, text string) models.Score {
	if strings.TrimSpace(text) == "" {
		return models.Absent
	}
	return models.Scored(Guard(s).Score(text))
}

// Placeholder returns the value written for a score in degraded-write mode,
// where absent scores are persisted as 0.0.
func Placeholder(s models.Score) float64 {
	if !s.Present {
		return 0
	}
	return s.Value
}
