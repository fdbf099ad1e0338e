package ingest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/seenimoa/tickersent/internal/aggregate"
	"github.com/seenimoa/tickersent/internal/datasource"
	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
)

type fakePrices map[string]models.PriceRow

func (f fakePrices) FetchPrice(_ context.Context, ticker string) (models.PriceRow, error) {
	row, ok := f[ticker]
	if !ok {
		return models.PriceRow{}, datasource.ErrTickerNotFound
	}
	return row, nil
}

func seedStore(t *testing.T, ns store.NewsStore, tickers ...string) {
	t.Helper()
	var rows []models.Article
	for i, tk := range tickers {
		rows = append(rows, models.Article{
			Ticker:            tk,
			Title:             "story " + tk,
			PublishedAt:       day.Add(time.Duration(i) * time.Minute),
			CombinedSentiment: models.Scored(0.1),
		})
	}
	if _, err := ns.Append(context.Background(), rows); err != nil {
		t.Fatal(err)
	}
}

func TestPriceRefreshUpserts(t *testing.T) {
	cfg := testConfig(t)
	ns, err := store.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer ns.Close()
	seedStore(t, ns, "NVDA", "AAPL", "NVDA", "GONE")

	path := cfg.Data.Path(cfg.Data.PriceFile)
	old := map[string]models.PriceRow{
		"MSFT": {Ticker: "MSFT", Price: 400, ChangePct: 1.5, Volume: 10},
		"NVDA": {Ticker: "NVDA", Price: 100, ChangePct: -2, Volume: 20},
	}
	if err := aggregate.WritePrices(path, old, []string{"MSFT", "NVDA"}); err != nil {
		t.Fatal(err)
	}

	src := fakePrices{
		"NVDA": {Price: 120, ChangePct: 3.25, Volume: 30, PE: 55.1, HasPE: true},
		"AAPL": {Price: 230, ChangePct: 0.5, Volume: 40},
	}
	rep, err := NewPriceRefresher(src, ns, path, nil).Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := PriceReport{Tickers: 3, Updated: 1, Added: 1, Failed: 1}
	if *rep != want {
		t.Errorf("report = %+v, want %+v", *rep, want)
	}

	if got := aggregate.PriceOrder(path); !reflect.DeepEqual(got, []string{"MSFT", "NVDA", "AAPL"}) {
		t.Errorf("order = %v", got)
	}
	prices, err := aggregate.ReadPrices(path)
	if err != nil {
		t.Fatal(err)
	}
	if p := prices["NVDA"]; p.Price != 120 || p.ChangePct != 3.25 || !p.HasPE {
		t.Errorf("NVDA = %+v", p)
	}
	if p := prices["MSFT"]; p.Price != 400 {
		t.Errorf("MSFT should be kept: %+v", p)
	}
	if _, ok := prices["GONE"]; ok {
		t.Error("failed ticker written")
	}
}

func TestPriceRefreshNothingFetched(t *testing.T) {
	cfg := testConfig(t)
	ns, _ := store.Open(cfg)
	defer ns.Close()
	seedStore(t, ns, "GONE")

	path := cfg.Data.Path(cfg.Data.PriceFile)
	rep, err := NewPriceRefresher(fakePrices{}, ns, path, nil).Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Failed != 1 {
		t.Errorf("report = %+v", rep)
	}
	if _, err := aggregate.ReadPrices(path); !errors.Is(err, store.ErrInputNotFound) {
		t.Errorf("price table written with nothing fetched: %v", err)
	}
}

func TestPriceRefreshCancelled(t *testing.T) {
	cfg := testConfig(t)
	ns, _ := store.Open(cfg)
	defer ns.Close()
	seedStore(t, ns, "NVDA")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPriceRefresher(fakePrices{"NVDA": {Price: 1}}, ns, cfg.Data.Path(cfg.Data.PriceFile), nil).Refresh(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
