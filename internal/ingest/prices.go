package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/tickersent/internal/aggregate"
	"github.com/seenimoa/tickersent/internal/datasource"
	"github.com/seenimoa/tickersent/internal/logger"
	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
)

// PriceReport summarizes a price refresh.
type PriceReport struct {
	Tickers int `json:"tickers"`
	Updated int `json:"updated"`
	Added   int `json:"added"`
	Failed  int `json:"failed"`
}

// PriceRefresher updates the price table for every ticker in the news store.
type PriceRefresher struct {
	source datasource.PriceFetcher
	store  store.NewsStore
	path   string
	log    logrus.FieldLogger
}

// NewPriceRefresher returns a refresher writing the price table at path.
func NewPriceRefresher(source datasource.PriceFetcher, ns store.NewsStore, path string, log logrus.FieldLogger) *PriceRefresher {
	return &PriceRefresher{source: source, store: ns, path: path, log: logger.OrDiscard(log)}
}

// Refresh fetches each ticker's price row in turn and upserts it by ticker:
// known tickers are updated in place, new ones are appended. A ticker that
// cannot be fetched keeps its previous row. Whatever was fetched before a
// cancellation is still written.
func (p *PriceRefresher) Refresh(ctx context.Context) (*PriceReport, error) {
	tickers, err := p.tickers(ctx)
	if err != nil {
		return nil, err
	}

	prices, err := aggregate.ReadPrices(p.path)
	switch {
	case errors.Is(err, store.ErrInputNotFound), errors.Is(err, store.ErrEmptyInput):
		prices = make(map[string]models.PriceRow)
	case err != nil:
		return nil, fmt.Errorf("load price table: %w", err)
	}
	order := aggregate.PriceOrder(p.path)

	rep := &PriceReport{Tickers: len(tickers)}
	for _, t := range tickers {
		if ctx.Err() != nil {
			break
		}
		row, err := p.source.FetchPrice(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.log.WithField("ticker", t).Warnf("price unavailable: %v", err)
			rep.Failed++
			continue
		}
		row.Ticker = t
		if _, ok := prices[t]; ok {
			rep.Updated++
		} else {
			rep.Added++
			order = append(order, t)
		}
		prices[t] = row
	}

	if rep.Updated+rep.Added > 0 {
		if err := aggregate.WritePrices(p.path, prices, order); err != nil {
			return rep, err
		}
	}
	p.log.WithFields(logrus.Fields{"updated": rep.Updated, "added": rep.Added, "failed": rep.Failed}).Info("prices refreshed")
	return rep, ctx.Err()
}

// tickers returns the distinct tickers in the store in first-seen order.
func (p *PriceRefresher) tickers(ctx context.Context) ([]string, error) {
	rows, err := p.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load news for prices: %w", err)
	}
	seen := make(map[string]bool)
	var out []string
	for _, a := range rows {
		if !seen[a.Ticker] {
			seen[a.Ticker] = true
			out = append(out, a.Ticker)
		}
	}
	return out, nil
}
