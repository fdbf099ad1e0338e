package sentiment

import (
	"fmt"
	"math"

	"github.com/seenimoa/tickersent/pkg/models"
)

// Weights splits the combined score between title and body.
type Weights struct {
	Title   float64
	Content float64
}

// DefaultWeights is 30% title, 70% body.
var DefaultWeights = Weights{Title: 0.3, Content: 0.7}

// Validate checks that both weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	if w.Title < 0 || w.Content < 0 {
		return fmt.Errorf("sentiment weights must be non-negative (title=%v, content=%v)", w.Title, w.Content)
	}
	if math.Abs(w.Title+w.Content-1) > 1e-9 {
		return fmt.Errorf("sentiment weights must sum to 1 (got %v)", w.Title+w.Content)
	}
	return nil
}

// Combine weights title and content scores. The result is present only when
// both inputs are present.
func (w Weights) Combine(title, content models.Score) models.Score {
	if !title.Present || !content.Present {
		return models.Absent
	}
	return models.Scored(w.Title*title.Value + w.Content*content.Value)
}

// Combine uses DefaultWeights.
func Combine(title, content models.Score) models.Score {
	return DefaultWeights.Combine(title, content)
}
