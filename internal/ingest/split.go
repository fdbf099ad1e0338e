package ingest

import (
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
	"github.com/seenimoa/tickersent/pkg/utils"
)

// Split turns each remote row into one Article per listed ticker. A
// duplicated ticker in the list yields a row per occurrence. Rows with no
// ticker or no parsable date are skipped with a warning and counted.
func Split(remote []models.RemoteArticle, log logrus.FieldLogger) (rows []models.Article, skipped int) {
	for _, r := range remote {
		tickers := utils.SplitTickers(r.Tickers)
		if len(tickers) == 0 {
			log.WithField("title", r.Title).Warn("skipping news row without ticker")
			skipped++
			continue
		}
		if r.PublishedAt.IsZero() {
			log.WithField("title", r.Title).Warnf("skipping news row with unparsable date %q", r.Date)
			skipped++
			continue
		}
		for _, t := range tickers {
			rows = append(rows, models.Article{
				Ticker:      t,
				Title:       r.Title,
				URL:         r.URL,
				Source:      r.Source,
				Category:    r.Category,
				PublishedAt: r.PublishedAt,
			})
		}
	}
	return rows, skipped
}

// Diff returns the rows whose identity key is not in existing. Within rows
// the first occurrence of a key wins.
func Diff(rows []models.Article, existing store.KeySet) []models.Article {
	seen := make(store.KeySet, len(rows))
	var out []models.Article
	for _, a := range rows {
		k := a.Key()
		if existing.Has(k) || seen.Has(k) {
			continue
		}
		seen.Add(k)
		out = append(out, a)
	}
	return out
}
