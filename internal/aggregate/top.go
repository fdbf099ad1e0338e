package aggregate

import (
	"sort"

	"github.com/seenimoa/tickersent/pkg/models"
)

// DefaultTopN is the number of tickers TopTickers returns when n <= 0.
const DefaultTopN = 10

// TopTickers joins aggregates with prices, keeps tickers whose price change
// is positive, and returns the n with the highest mean sentiment. Ties are
// broken by ticker.
func TopTickers(aggs map[string]models.TickerAggregate, prices map[string]models.PriceRow, n int) []models.TopTicker {
	if n <= 0 {
		n = DefaultTopN
	}
	var out []models.TopTicker
	for t, a := range aggs {
		p, ok := prices[t]
		if !ok || p.ChangePct <= 0 {
			continue
		}
		out = append(out, models.TopTicker{
			Ticker:                t,
			MeanCombinedSentiment: a.MeanCombinedSentiment,
			SampleCount:           a.SampleCount,
			ChangePct:             p.ChangePct,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanCombinedSentiment != out[j].MeanCombinedSentiment {
			return out[i].MeanCombinedSentiment > out[j].MeanCombinedSentiment
		}
		return out[i].Ticker < out[j].Ticker
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
