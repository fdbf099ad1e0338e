package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPriceSourceFetch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintf(w, "No.,Ticker,Company,P/E,Price,Change,Volume\n1,%s,Apple Inc,31.5,227.48,3.25%%,\"52,164,712\"\n", r.URL.Query().Get("t"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Prices.ExportURLTemplate = srv.URL + "/export.ashx?t={ticker}"
	src := NewPriceSource(cfg, nil)
	ns := &noSleep{}
	src.retry.Sleep = ns.sleep

	pr, err := src.FetchPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FetchPrice: %v", err)
	}
	if pr.Ticker != "AAPL" || pr.Price != 227.48 || pr.ChangePct != 3.25 || pr.Volume != 52164712 {
		t.Errorf("row = %+v", pr)
	}
	if !pr.HasPE || pr.PE != 31.5 {
		t.Errorf("P/E = %v (%v)", pr.PE, pr.HasPE)
	}
	if calls != 2 || len(ns.delays) != 1 {
		t.Errorf("calls = %d, delays = %v", calls, ns.delays)
	}
}

func TestParsePriceCSV(t *testing.T) {
	pr, err := parsePriceCSV([]byte("Price,Change,P/E\n10.5,-1.20%,-\n"), "XYZ")
	if err != nil {
		t.Fatal(err)
	}
	if pr.Ticker != "XYZ" || pr.ChangePct != -1.2 || pr.HasPE {
		t.Errorf("row = %+v", pr)
	}

	_, err = parsePriceCSV([]byte("Price,Change\n"), "XYZ")
	if !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("header only: err = %v", err)
	}
	_, err = parsePriceCSV([]byte("Price\n1\n"), "XYZ")
	if err == nil {
		t.Error("expected schema error without Change column")
	}
}
