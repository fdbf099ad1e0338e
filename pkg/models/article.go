package models

import "time"

// RemoteArticle is one row of the provider's news batch. Tickers holds the
// raw comma-joined ticker list as delivered. Date is the timestamp as
// delivered; PublishedAt is zero when Date could not be parsed.
type RemoteArticle struct {
	Date        string    `json:"date"`
	PublishedAt time.Time `json:"published_at"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tickers     string    `json:"tickers"`
}

// Article is one ticker-article association together with its sentiment.
// The same story listed for two tickers is two Articles.
type Article struct {
	Ticker      string    `json:"ticker"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	Category    string    `json:"category,omitempty"`
	PublishedAt time.Time `json:"published_at"`

	TitleSentiment    Score `json:"title_sentiment"`
	ContentSentiment  Score `json:"content_sentiment"`
	CombinedSentiment Score `json:"combined_sentiment"`
}

// Key returns the article's identity key.
func (a Article) Key() Key {
	return NewKey(a.PublishedAt, a.Title, a.Ticker)
}

// Confidence derives the confidence label from which scores are present.
func (a Article) Confidence() Confidence {
	switch {
	case a.CombinedSentiment.Present:
		return ConfidenceScored
	case a.TitleSentiment.Present || a.ContentSentiment.Present:
		return ConfidencePartial
	default:
		return ConfidenceNone
	}
}

// Key identifies one ticker-article association: (timestamp, title, ticker).
type Key struct {
	PublishedAt string `json:"published_at" yaml:"published_at"`
	Title       string `json:"title"        yaml:"title"`
	Ticker      string `json:"ticker"       yaml:"ticker"`
}

// TimestampLayout is the normalized form of PublishedAt inside a Key and in
// persisted tables.
const TimestampLayout = time.RFC3339

// NewKey builds a Key with the timestamp normalized to UTC.
func NewKey(publishedAt time.Time, title, ticker string) Key {
	return Key{
		PublishedAt: publishedAt.UTC().Format(TimestampLayout),
		Title:       title,
		Ticker:      ticker,
	}
}
