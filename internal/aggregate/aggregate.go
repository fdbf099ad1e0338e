// Package aggregate compiles the per-ticker mean of combined sentiment and
// joins it with daily price changes.
package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/tickersent/internal/logger"
	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
)

// Compile computes the mean combined sentiment per ticker. Rows without a
// combined score are left out of both the sum and the count; tickers with no
// scored rows are omitted.
func Compile(rows []models.Article) map[string]models.TickerAggregate {
	return Fold(nil, rows)
}

// Fold adds rows to a previously compiled aggregate. Fold(Compile(a), b)
// equals Compile(a ++ b) up to float rounding. prev is not modified.
func Fold(prev map[string]models.TickerAggregate, rows []models.Article) map[string]models.TickerAggregate {
	type acc struct {
		sum   float64
		count int
	}
	sums := make(map[string]*acc, len(prev))
	for t, a := range prev {
		if a.SampleCount <= 0 {
			continue
		}
		sums[t] = &acc{sum: a.MeanCombinedSentiment * float64(a.SampleCount), count: a.SampleCount}
	}
	for _, r := range rows {
		if !r.CombinedSentiment.Present {
			continue
		}
		a, ok := sums[r.Ticker]
		if !ok {
			a = &acc{}
			sums[r.Ticker] = a
		}
		a.sum += r.CombinedSentiment.Value
		a.count++
	}

	out := make(map[string]models.TickerAggregate, len(sums))
	for t, a := range sums {
		out[t] = models.TickerAggregate{
			Ticker:                t,
			MeanCombinedSentiment: a.sum / float64(a.count),
			SampleCount:           a.count,
		}
	}
	return out
}

// Sorted returns the aggregates ordered by ticker.
func Sorted(aggs map[string]models.TickerAggregate) []models.TickerAggregate {
	out := make([]models.TickerAggregate, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Compiler publishes the aggregate table.
type Compiler struct {
	path string
	log  logrus.FieldLogger
}

// NewCompiler returns a compiler writing the aggregate table at path.
func NewCompiler(path string, log logrus.FieldLogger) *Compiler {
	return &Compiler{path: path, log: logger.OrDiscard(log)}
}

// Path returns the aggregate table file.
func (c *Compiler) Path() string { return c.path }

// Publish rewrites the aggregate table. With incremental set, newRows are
// folded into the currently published table; otherwise (or when the
// published table cannot be read) the full store is recompiled.
func (c *Compiler) Publish(ctx context.Context, ns store.NewsStore, newRows []models.Article, incremental bool) (map[string]models.TickerAggregate, error) {
	var aggs map[string]models.TickerAggregate
	if incremental {
		prev, err := ReadTable(c.path)
		if err == nil {
			aggs = Fold(prev, newRows)
		} else {
			c.log.Warnf("incremental aggregate unavailable, recompiling: %v", err)
		}
	}
	if aggs == nil {
		rows, err := ns.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("load news for aggregate: %w", err)
		}
		aggs = Compile(rows)
	}
	if err := WriteTable(c.path, aggs); err != nil {
		return nil, err
	}
	c.log.WithField("tickers", len(aggs)).Info("aggregate published")
	return aggs, nil
}
