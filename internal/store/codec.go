package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/tickersent/pkg/models"
	"github.com/seenimoa/tickersent/pkg/utils"
)

// newsCols holds resolved column indexes of a scored news table.
type newsCols struct {
	date, title, source, url, category, ticker     int
	titleScore, contentScore, combined, confidence int
}

func resolveNewsCols(t *Table) newsCols {
	return newsCols{
		date:         t.Col(ColDate),
		title:        t.Col(ColTitle),
		source:       t.Col(ColSource),
		url:          t.Col(ColURL, "Link"),
		category:     t.Col(ColCategory),
		ticker:       t.Col(ColTicker),
		titleScore:   t.Col(ColTitleSentiment),
		contentScore: t.Col(ColContentSentiment),
		combined:     t.Col(ColCombinedSentiment),
		confidence:   t.Col(ColConfidence),
	}
}

// decodeArticle converts one table row. Dates written by older tools in the
// provider's format are interpreted in loc.
func decodeArticle(t *Table, c newsCols, row []string, loc *time.Location) (models.Article, error) {
	published, err := utils.ParseProviderTime(t.Get(row, c.date), loc)
	if err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", t.Name, err)
	}
	a := models.Article{
		Ticker:      strings.ToUpper(t.Get(row, c.ticker)),
		Title:       t.Get(row, c.title),
		URL:         t.Get(row, c.url),
		Source:      t.Get(row, c.source),
		Category:    t.Get(row, c.category),
		PublishedAt: published.UTC(),
	}
	if models.Confidence(t.Get(row, c.confidence)) == models.ConfidenceDegraded {
		// Placeholders are always 0.0, so a non-zero cell is a real score.
		// The combined cell of a degraded row is never one.
		a.TitleSentiment = nonZero(parseScore(t.Get(row, c.titleScore)))
		a.ContentSentiment = nonZero(parseScore(t.Get(row, c.contentScore)))
		return a, nil
	}
	a.TitleSentiment = parseScore(t.Get(row, c.titleScore))
	a.ContentSentiment = parseScore(t.Get(row, c.contentScore))
	a.CombinedSentiment = parseScore(t.Get(row, c.combined))
	return a, nil
}

// encodeArticle maps an article onto column names.
func encodeArticle(a models.Article) map[string]string {
	return map[string]string{
		ColDate:              FormatDate(a.PublishedAt),
		ColTitle:             a.Title,
		ColSource:            a.Source,
		ColURL:               a.URL,
		ColCategory:          a.Category,
		ColTicker:            a.Ticker,
		ColTitleSentiment:    a.TitleSentiment.String(),
		ColContentSentiment:  a.ContentSentiment.String(),
		ColCombinedSentiment: a.CombinedSentiment.String(),
		ColConfidence:        string(a.Confidence()),
	}
}

func nonZero(s models.Score) models.Score {
	if s.Present && s.Value == 0 {
		return models.Absent
	}
	return s
}

// parseScore reads a score cell; empty or unparsable cells are absent.
func parseScore(s string) models.Score {
	if s == "" {
		return models.Absent
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return models.Absent
	}
	return models.Scored(v)
}
