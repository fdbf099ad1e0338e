package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/seenimoa/tickersent/internal/config"
	"github.com/seenimoa/tickersent/internal/sentiment"
	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
)

var day = time.Date(2026, 10, 14, 13, 30, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Data = config.DataConfig{
		Dir:           t.TempDir(),
		RawNewsFile:   "news.csv",
		NewsFile:      "news_with_sentiment.csv",
		AggregateFile: "average_sentiment_per_ticker.csv",
		PriceFile:     "export.csv",
		StateFile:     "sync_state.yaml",
	}
	cfg.Store.Backend = "csv"
	cfg.Provider.Timezone = "UTC"
	cfg.Fetch.Workers = 1
	cfg.Fetch.SecondPass = true
	cfg.Sentiment.TitleWeight = 0.3
	cfg.Sentiment.ContentWeight = 0.7
	return cfg
}

func remote(title, tickers string, minute int) models.RemoteArticle {
	ts := day.Add(time.Duration(minute) * time.Minute)
	return models.RemoteArticle{
		Date:        ts.Format(time.RFC3339),
		PublishedAt: ts,
		Title:       title,
		URL:         "https://news.example/" + title,
		Source:      "Reuters",
		Tickers:     tickers,
	}
}

// fakeSource serves rows. When gate is set, Fetch blocks until it is closed.
type fakeSource struct {
	mu    sync.Mutex
	rows  []models.RemoteArticle
	err   error
	calls int
	gate  chan struct{}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(context.Context) ([]models.RemoteArticle, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]models.RemoteArticle(nil), f.rows...), f.err
}

func (f *fakeSource) FetchTicker(_ context.Context, ticker string) ([]models.RemoteArticle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RemoteArticle(nil), f.rows...), f.err
}

func (f *fakeSource) set(rows ...models.RemoteArticle) {
	f.mu.Lock()
	f.rows = rows
	f.mu.Unlock()
}

// fakeFetcher returns pages[url]. hook, when set, runs before each fetch.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
	hook  func(ctx context.Context, url string, n int)
}

// echoFetcher serves each article's title as its content.
func echoFetcher(batches ...[]models.RemoteArticle) *fakeFetcher {
	f := newFakeFetcher()
	for _, b := range batches {
		for _, r := range b {
			f.pages[r.URL] = r.Title
		}
	}
	return f
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) string {
	f.mu.Lock()
	f.calls[url]++
	n := f.calls[url]
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(ctx, url, n)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[url]
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// tableScorer scores known texts; anything else scores 0.
func tableScorer(scores map[string]float64) sentiment.Scorer {
	return sentiment.ScorerFunc(func(text string) float64 { return scores[text] })
}

func newTestSyncer(t *testing.T, cfg *config.Config, src *fakeSource, f *fakeFetcher, scores map[string]float64) (*Syncer, store.NewsStore) {
	t.Helper()
	ns, err := store.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ns.Close() })
	s := NewSyncer(cfg, Deps{Source: src, Fetcher: f, Scorer: tableScorer(scores), Store: ns}, nil)
	return s, ns
}
