package aggregate

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
	"github.com/seenimoa/tickersent/pkg/utils"
)

// Aggregate table columns.
const (
	ColTicker      = "Ticker"
	ColCombined    = "Combined_Sentiment"
	ColSampleCount = "Sample_Count"
)

// Price table columns.
const (
	ColPrice  = "Price"
	ColChange = "Change"
	ColVolume = "Volume"
	ColPE     = "P/E"
)

// ReadTable loads a published aggregate table. Tables written without a
// Sample_Count column (older tools) read with a count of 1.
func ReadTable(path string) (map[string]models.TickerAggregate, error) {
	t, err := store.ReadTableFile(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require(ColTicker, ColCombined); err != nil {
		return nil, err
	}
	tick, mean, count := t.Col(ColTicker), t.Col(ColCombined), t.Col(ColSampleCount)

	out := make(map[string]models.TickerAggregate, len(t.Rows))
	for i, row := range t.Rows {
		ticker := strings.ToUpper(t.Get(row, tick))
		if ticker == "" {
			continue
		}
		m, err := strconv.ParseFloat(t.Get(row, mean), 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Name, i+2, err)
		}
		n := 1
		if count >= 0 {
			if n, err = strconv.Atoi(t.Get(row, count)); err != nil {
				return nil, fmt.Errorf("%s row %d: %w", t.Name, i+2, err)
			}
		}
		out[ticker] = models.TickerAggregate{Ticker: ticker, MeanCombinedSentiment: m, SampleCount: n}
	}
	return out, nil
}

// WriteTable atomically replaces the aggregate table, rows sorted by ticker.
func WriteTable(path string, aggs map[string]models.TickerAggregate) error {
	t := store.NewTable(filepath.Base(path), []string{ColTicker, ColCombined, ColSampleCount})
	for _, a := range Sorted(aggs) {
		t.Append(map[string]string{
			ColTicker:      a.Ticker,
			ColCombined:    strconv.FormatFloat(a.MeanCombinedSentiment, 'f', -1, 64),
			ColSampleCount: strconv.Itoa(a.SampleCount),
		})
	}
	return t.WriteFile(path)
}

// ReadPrices loads the price table keyed by ticker.
func ReadPrices(path string) (map[string]models.PriceRow, error) {
	t, err := store.ReadTableFile(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require(ColTicker, ColChange); err != nil {
		return nil, err
	}
	var (
		tick   = t.Col(ColTicker)
		price  = t.Col(ColPrice)
		change = t.Col(ColChange)
		volume = t.Col(ColVolume)
		pe     = t.Col(ColPE)
	)
	out := make(map[string]models.PriceRow, len(t.Rows))
	for i, row := range t.Rows {
		pr := models.PriceRow{Ticker: strings.ToUpper(t.Get(row, tick))}
		if pr.Ticker == "" {
			continue
		}
		if pr.ChangePct, err = utils.ParsePercent(t.Get(row, change)); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.Name, i+2, err)
		}
		if v, ok, err := utils.ParseNumber(t.Get(row, price)); err == nil && ok {
			pr.Price = v
		}
		if v, ok, err := utils.ParseNumber(t.Get(row, volume)); err == nil && ok {
			pr.Volume = int64(v)
		}
		if v, ok, err := utils.ParseNumber(t.Get(row, pe)); err == nil && ok {
			pr.PE, pr.HasPE = v, true
		}
		out[pr.Ticker] = pr
	}
	return out, nil
}

// WritePrices atomically replaces the price table. order lists tickers in
// the row order to keep; tickers in prices but not in order are appended
// sorted.
func WritePrices(path string, prices map[string]models.PriceRow, order []string) error {
	t := store.NewTable(filepath.Base(path), []string{ColTicker, ColPrice, ColChange, ColVolume, ColPE})
	written := make(map[string]bool, len(prices))
	emit := func(ticker string) {
		pr, ok := prices[ticker]
		if !ok || written[ticker] {
			return
		}
		written[ticker] = true
		pe := ""
		if pr.HasPE {
			pe = strconv.FormatFloat(pr.PE, 'f', -1, 64)
		}
		t.Append(map[string]string{
			ColTicker: pr.Ticker,
			ColPrice:  strconv.FormatFloat(pr.Price, 'f', -1, 64),
			ColChange: utils.FormatPercent(pr.ChangePct),
			ColVolume: strconv.FormatInt(pr.Volume, 10),
			ColPE:     pe,
		})
	}
	for _, tk := range order {
		emit(tk)
	}
	rest := make([]string, 0, len(prices))
	for tk := range prices {
		if !written[tk] {
			rest = append(rest, tk)
		}
	}
	sort.Strings(rest)
	for _, tk := range rest {
		emit(tk)
	}
	return t.WriteFile(path)
}

// PriceOrder returns the ticker order of an existing price table, or nil.
func PriceOrder(path string) []string {
	t, err := store.ReadTableFile(path)
	if err != nil {
		return nil
	}
	col := t.Col(ColTicker)
	var out []string
	for _, row := range t.Rows {
		if tk := strings.ToUpper(t.Get(row, col)); tk != "" {
			out = append(out, tk)
		}
	}
	return out
}
