package ingest

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
)

func newTestOnDemand(t *testing.T, src *fakeSource, f *fakeFetcher, scores map[string]float64) (*OnDemand, string) {
	t.Helper()
	cfg := testConfig(t)
	o := NewOnDemand(cfg, Deps{Source: src, Fetcher: f, Scorer: tableScorer(scores)}, nil)
	o.now = func() time.Time { return day.Add(2 * time.Hour) }
	return o, cfg.Data.Dir
}

func TestTickerNewsKeepsTodayNewestFirst(t *testing.T) {
	src := &fakeSource{rows: []models.RemoteArticle{
		remote("Morning", "NVDA", 0),
		remote("Yesterday", "NVDA", -24*60),
		remote("Noon", "NVDA", 15),
		{Date: "garbage", Title: "Undated", Tickers: "NVDA"},
	}}
	o, _ := newTestOnDemand(t, src, newFakeFetcher(), nil)

	path, n, err := o.TickerNews(context.Background(), "nvda")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("n = %d", n)
	}
	tbl, err := store.ReadTableFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Name != "NVDA_today_news.csv" {
		t.Errorf("file = %s", tbl.Name)
	}
	title, date, link := tbl.Col(store.ColTitle), tbl.Col(store.ColDate), tbl.Col(ColLink)
	if tbl.Get(tbl.Rows[0], title) != "Noon" || tbl.Get(tbl.Rows[1], title) != "Morning" {
		t.Errorf("rows = %v", tbl.Rows)
	}
	if got := tbl.Get(tbl.Rows[0], date); got != "10/14/2026 01:45:00 PM" {
		t.Errorf("date = %q", got)
	}
	if got := tbl.Get(tbl.Rows[1], link); got != "https://news.example/Morning" {
		t.Errorf("link = %q", got)
	}
}

func TestTickerNewsRejectsInvalidTicker(t *testing.T) {
	o, _ := newTestOnDemand(t, &fakeSource{}, newFakeFetcher(), nil)
	if _, _, err := o.TickerNews(context.Background(), "not a ticker"); err == nil {
		t.Error("want error")
	}
}

func TestAnalyzeTickerInputErrors(t *testing.T) {
	tests := []struct {
		name    string
		content *string
		check   func(error) bool
	}{
		{"missing file", nil, func(err error) bool { return errors.Is(err, store.ErrInputNotFound) }},
		{"zero bytes", strPtr(""), func(err error) bool { return errors.Is(err, store.ErrEmptyInput) }},
		{"header only", strPtr("Date,Title,Link\n"), func(err error) bool { return errors.Is(err, store.ErrEmptyInput) }},
		{"no link column", strPtr("Date,Title\nx,y\n"), func(err error) bool {
			var se *store.SchemaError
			return errors.As(err, &se)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, dir := newTestOnDemand(t, &fakeSource{}, newFakeFetcher(), nil)
			if tt.content != nil {
				if err := os.WriteFile(dir+"/AAA_today_news.csv", []byte(*tt.content), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			_, _, err := o.AnalyzeTicker(context.Background(), "AAA")
			if err == nil || !tt.check(err) {
				t.Errorf("err = %v", err)
			}
			if _, statErr := os.Stat(dir + "/AAA_with_sentiment.csv"); statErr == nil {
				t.Error("output written on invalid input")
			}
		})
	}
}

func TestAnalyzeTickerDegradedRows(t *testing.T) {
	f := newFakeFetcher()
	f.pages["https://a.example/1"] = "strong body"
	o, dir := newTestOnDemand(t, &fakeSource{}, f, map[string]float64{
		"Upbeat":      0.5,
		"strong body": 0.5,
		"Dead link":   -0.2,
	})
	in := "Date,Title,Link,Source\n" +
		"10/14/2026 09:30:00 AM,Upbeat,https://a.example/1,Reuters\n" +
		"10/14/2026 09:00:00 AM,Dead link,https://a.example/2,Reuters\n"
	if err := os.WriteFile(dir+"/AAA_today_news.csv", []byte(in), 0o644); err != nil {
		t.Fatal(err)
	}

	path, n, err := o.AnalyzeTicker(context.Background(), "aaa")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("n = %d", n)
	}
	tbl, err := store.ReadTableFile(path)
	if err != nil {
		t.Fatal(err)
	}
	wantHeader := []string{"Date", "Title", "Link", "Source",
		store.ColTitleSentiment, store.ColContentSentiment, store.ColCombinedSentiment, store.ColConfidence}
	if len(tbl.Header) != len(wantHeader) {
		t.Fatalf("header = %v", tbl.Header)
	}
	for i, h := range wantHeader {
		if tbl.Header[i] != h {
			t.Fatalf("header = %v", tbl.Header)
		}
	}

	get := func(row int, col string) string { return tbl.Get(tbl.Rows[row], tbl.Col(col)) }
	if get(0, "Source") != "Reuters" {
		t.Error("input columns not carried over")
	}
	combined, err := strconv.ParseFloat(get(0, store.ColCombinedSentiment), 64)
	if err != nil || !near(combined, 0.5) {
		t.Errorf("combined = %q", get(0, store.ColCombinedSentiment))
	}
	if get(0, store.ColConfidence) != string(models.ConfidenceScored) {
		t.Errorf("confidence = %q", get(0, store.ColConfidence))
	}

	if get(1, store.ColTitleSentiment) != "-0.2" {
		t.Errorf("title = %q", get(1, store.ColTitleSentiment))
	}
	if get(1, store.ColContentSentiment) != "0.0" || get(1, store.ColCombinedSentiment) != "0.0" {
		t.Errorf("degraded row = %v", tbl.Rows[1])
	}
	if get(1, store.ColConfidence) != string(models.ConfidenceDegraded) {
		t.Errorf("confidence = %q", get(1, store.ColConfidence))
	}
}

func strPtr(s string) *string { return &s }
