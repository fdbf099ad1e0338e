package models

import "strconv"

// Score is a sentiment value tagged with whether it was actually computed.
// The zero value is an absent score; presence is never inferred from Value.
type Score struct {
	Value   float64 `json:"value"`
	Present bool    `json:"present"`
}

// Scored returns a present score.
func Scored(v float64) Score {
	return Score{Value: v, Present: true}
}

// Absent is the score recorded when a sentiment could not be computed.
var Absent = Score{}

// Ptr returns a pointer to the value, or nil when the score is absent.
// Used for JSON and nullable SQL columns.
func (s Score) Ptr() *float64 {
	if !s.Present {
		return nil
	}
	v := s.Value
	return &v
}

// FromPtr is the inverse of Ptr.
func FromPtr(v *float64) Score {
	if v == nil {
		return Absent
	}
	return Scored(*v)
}

// String formats a present score for table output; absent scores are empty.
func (s Score) String() string {
	if !s.Present {
		return ""
	}
	return strconv.FormatFloat(s.Value, 'f', -1, 64)
}

// Confidence labels how much of an article's sentiment was computed.
type Confidence string

const (
	// ConfidenceScored means title, content and combined scores are present.
	ConfidenceScored Confidence = "scored"
	// ConfidencePartial means only the title score is present.
	ConfidencePartial Confidence = "partial"
	// ConfidenceNone means no score could be computed.
	ConfidenceNone Confidence = "none"
	// ConfidenceDegraded marks rows whose absent scores were persisted as 0.0
	// placeholders to keep a uniform schema.
	ConfidenceDegraded Confidence = "degraded"
)

// TickerAggregate is the published per-ticker mean of combined sentiment.
type TickerAggregate struct {
	Ticker                string  `json:"ticker"`
	MeanCombinedSentiment float64 `json:"mean_combined_sentiment"`
	SampleCount           int     `json:"sample_count"`
}

// TopTicker joins a ticker's aggregate sentiment with its daily price change.
type TopTicker struct {
	Ticker                string  `json:"ticker"`
	MeanCombinedSentiment float64 `json:"mean_combined_sentiment"`
	SampleCount           int     `json:"sample_count"`
	ChangePct             float64 `json:"change_pct"`
}
