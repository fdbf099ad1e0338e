// Package store persists the scored news table and the sync-state record.
//
// Two NewsStore backends exist: a flat CSV table (the default, compatible
// with the plotting tools that read news_with_sentiment.csv) and a SQL table
// on sqlite or postgres. Both are append-only and keyed by the article
// identity key; appending a known key is a silent no-op.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/seenimoa/tickersent/internal/config"
	"github.com/seenimoa/tickersent/pkg/models"
)

// NewsStore is the ordered, append-only table of scored articles.
type NewsStore interface {
	// All returns every stored article in insertion order.
	All(ctx context.Context) ([]models.Article, error)
	// Keys returns the identity keys of all stored articles.
	Keys(ctx context.Context) (KeySet, error)
	// Exists reports whether key is stored.
	Exists(ctx context.Context, key models.Key) (bool, error)
	// Append stores rows whose keys are not yet present, in order, as one
	// batch, and returns how many were added.
	Append(ctx context.Context, rows []models.Article) (int, error)
	Close() error
}

// KeySet is a set of identity keys.
type KeySet map[models.Key]struct{}

// Has reports whether k is in the set.
func (s KeySet) Has(k models.Key) bool {
	_, ok := s[k]
	return ok
}

// Add inserts k.
func (s KeySet) Add(k models.Key) {
	s[k] = struct{}{}
}

// Open returns the NewsStore selected by cfg.Store.Backend.
func Open(cfg *config.Config) (NewsStore, error) {
	switch cfg.Store.Backend {
	case "", "csv":
		return NewCSVStore(cfg.Data.Path(cfg.Data.NewsFile), cfg.Location()), nil
	case "sqlite", "postgres":
		return OpenSQL(cfg.Store.Backend, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// News table columns, in write order.
const (
	ColDate              = "Date"
	ColTitle             = "Title"
	ColSource            = "Source"
	ColURL               = "Url"
	ColCategory          = "Category"
	ColTicker            = "Ticker"
	ColTitleSentiment    = "Title_Sentiment"
	ColContentSentiment  = "Content_Sentiment"
	ColCombinedSentiment = "Combined_Sentiment"
	ColConfidence        = "Sentiment_Confidence"
)

// NewsColumns is the header of a freshly created scored news table.
var NewsColumns = []string{
	ColDate, ColTitle, ColSource, ColURL, ColCategory, ColTicker,
	ColTitleSentiment, ColContentSentiment, ColCombinedSentiment, ColConfidence,
}

// requiredNewsColumns must be present in an existing scored news table.
var requiredNewsColumns = []string{ColDate, ColTitle, ColTicker, ColCombinedSentiment}

// FormatDate renders a timestamp the way the news table stores it.
func FormatDate(t time.Time) string {
	return t.UTC().Format(models.TimestampLayout)
}
