package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/tickersent/internal/config"
	"github.com/seenimoa/tickersent/internal/infra"
	"github.com/seenimoa/tickersent/internal/logger"
	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
	"github.com/seenimoa/tickersent/pkg/utils"
)

// NewsSource delivers the provider's news batch.
type NewsSource interface {
	// Name identifies the source in logs.
	Name() string
	// Fetch returns the full current batch. Each row carries the raw
	// comma-joined ticker list.
	Fetch(ctx context.Context) ([]models.RemoteArticle, error)
	// FetchTicker returns the rows that list ticker.
	FetchTicker(ctx context.Context, ticker string) ([]models.RemoteArticle, error)
}

// NewNewsSource returns the source selected by news.source.
func NewNewsSource(cfg *config.Config, log logrus.FieldLogger) (NewsSource, error) {
	switch cfg.News.Source {
	case "", "csv":
		return NewCSVExportSource(cfg, log), nil
	case "rss":
		return NewRSSSource(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown news source %q", cfg.News.Source)
	}
}

// --- CSV export ---

// CSVExportSource downloads the provider's news export as one CSV table
// with columns Date, Title, Source, Url (or Link), Category and Ticker.
type CSVExportSource struct {
	exportURL string
	authToken string
	loc       *time.Location
	http      *httpClient
	retry     RetryPolicy
	log       logrus.FieldLogger
}

// NewCSVExportSource builds the export source from news and provider settings.
func NewCSVExportSource(cfg *config.Config, log logrus.FieldLogger) *CSVExportSource {
	log = logger.OrDiscard(log)
	return &CSVExportSource{
		exportURL: cfg.News.ExportURL,
		authToken: cfg.Provider.AuthToken,
		loc:       cfg.Location(),
		http:      newHTTPClient(cfg.Fetch.Timeout, cfg.Provider.UserAgent),
		retry:     RetryPolicyFromConfig(cfg.Fetch, log),
		log:       log,
	}
}

// Name returns the source name.
func (s *CSVExportSource) Name() string { return "csv-export" }

// Fetch downloads and parses the full export.
func (s *CSVExportSource) Fetch(ctx context.Context) ([]models.RemoteArticle, error) {
	return s.fetch(ctx, nil)
}

// FetchTicker downloads the export filtered to ticker.
func (s *CSVExportSource) FetchTicker(ctx context.Context, ticker string) ([]models.RemoteArticle, error) {
	ticker = utils.NormalizeTicker(ticker)
	rows, err := s.fetch(ctx, url.Values{"t": {ticker}})
	if err != nil {
		return nil, err
	}
	return filterTicker(rows, ticker), nil
}

func (s *CSVExportSource) fetch(ctx context.Context, extra url.Values) ([]models.RemoteArticle, error) {
	u, err := s.buildURL(extra)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = s.http.getBytes(ctx, u, map[string]string{"Accept": "text/csv,*/*"})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch news export: %w", err)
	}
	return parseNewsCSV(data, s.loc, s.log)
}

func (s *CSVExportSource) buildURL(extra url.Values) (string, error) {
	u, err := url.Parse(s.exportURL)
	if err != nil {
		return "", fmt.Errorf("invalid news export url: %w", err)
	}
	q := u.Query()
	for k, vs := range extra {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	if s.authToken != "" {
		q.Set("auth", s.authToken)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseNewsCSV converts an export body into remote rows. An empty body is
// an empty batch.
func parseNewsCSV(data []byte, loc *time.Location, log logrus.FieldLogger) ([]models.RemoteArticle, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	t, err := store.ParseTable("news export", bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, store.ErrEmptyInput) {
			return nil, nil
		}
		return nil, err
	}
	if err := t.Require("Date", "Title", "Url|Link", "Ticker"); err != nil {
		return nil, err
	}
	var (
		date     = t.Col("Date")
		title    = t.Col("Title")
		source   = t.Col("Source")
		link     = t.Col("Url", "Link")
		category = t.Col("Category")
		ticker   = t.Col("Ticker")
	)
	out := make([]models.RemoteArticle, 0, len(t.Rows))
	for _, row := range t.Rows {
		ra := models.RemoteArticle{
			Date:     t.Get(row, date),
			Title:    t.Get(row, title),
			URL:      t.Get(row, link),
			Source:   t.Get(row, source),
			Category: t.Get(row, category),
			Tickers:  t.Get(row, ticker),
		}
		if ts, err := utils.ParseProviderTime(ra.Date, loc); err == nil {
			ra.PublishedAt = ts
		} else {
			logger.OrDiscard(log).WithField("title", ra.Title).Debugf("unparsable date %q", ra.Date)
		}
		out = append(out, ra)
	}
	return out, nil
}

// --- RSS ---

// RSSSource reads one RSS feed per configured ticker. Items that appear in
// several tickers' feeds are merged into one row listing all of them.
type RSSSource struct {
	template string
	tickers  []string
	http     *httpClient
	limiter  *infra.RateLimiter
	retry    RetryPolicy
	parser   *gofeed.Parser
	log      logrus.FieldLogger
}

// NewRSSSource builds the RSS source over news.tickers.
func NewRSSSource(cfg *config.Config, log logrus.FieldLogger) *RSSSource {
	log = logger.OrDiscard(log)
	tickers := make([]string, 0, len(cfg.News.Tickers))
	for _, t := range cfg.News.Tickers {
		if t = utils.NormalizeTicker(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	return &RSSSource{
		template: cfg.News.RSSURLTemplate,
		tickers:  tickers,
		http:     newHTTPClient(cfg.Fetch.Timeout, cfg.Provider.UserAgent),
		limiter:  infra.NewRateLimiter(cfg.Fetch.RequestInterval),
		retry:    RetryPolicyFromConfig(cfg.Fetch, log),
		parser:   gofeed.NewParser(),
		log:      log,
	}
}

// Name returns the source name.
func (s *RSSSource) Name() string { return "rss" }

// Fetch reads every ticker's feed. A failing feed is skipped with a
// warning; the call fails only when every feed failed.
func (s *RSSSource) Fetch(ctx context.Context) ([]models.RemoteArticle, error) {
	m := newFeedMerger()
	var failed int
	var last error
	for _, ticker := range s.tickers {
		items, err := s.fetchFeed(ctx, ticker)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.WithField("ticker", ticker).Warnf("skipping feed: %v", err)
			failed++
			last = err
			continue
		}
		m.add(ticker, items)
	}
	if len(s.tickers) > 0 && failed == len(s.tickers) {
		return nil, fmt.Errorf("all %d feeds failed: %w", failed, last)
	}
	return m.rows(), nil
}

// FetchTicker reads a single ticker's feed.
func (s *RSSSource) FetchTicker(ctx context.Context, ticker string) ([]models.RemoteArticle, error) {
	ticker = utils.NormalizeTicker(ticker)
	items, err := s.fetchFeed(ctx, ticker)
	if err != nil {
		return nil, err
	}
	m := newFeedMerger()
	m.add(ticker, items)
	return m.rows(), nil
}

func (s *RSSSource) fetchFeed(ctx context.Context, ticker string) (*gofeed.Feed, error) {
	u := strings.ReplaceAll(s.template, "{ticker}", url.QueryEscape(ticker))
	var feed *gofeed.Feed
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		data, err := s.http.getBytes(ctx, u, map[string]string{"Accept": "application/rss+xml,application/xml,*/*"})
		if err != nil {
			return err
		}
		feed, err = s.parser.Parse(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("parse RSS %s: %w", ticker, err)
		}
		return nil
	})
	return feed, err
}

type feedKey struct {
	published time.Time
	title     string
	link      string
}

// feedMerger collects feed items in first-seen order, joining the tickers
// of identical items.
type feedMerger struct {
	order   []feedKey
	byKey   map[feedKey]*models.RemoteArticle
	tickers map[feedKey][]string
}

func newFeedMerger() *feedMerger {
	return &feedMerger{
		byKey:   make(map[feedKey]*models.RemoteArticle),
		tickers: make(map[feedKey][]string),
	}
}

func (m *feedMerger) add(ticker string, feed *gofeed.Feed) {
	if feed == nil {
		return
	}
	for _, item := range feed.Items {
		ra := models.RemoteArticle{
			Title:   strings.TrimSpace(item.Title),
			URL:     item.Link,
			Source:  strings.TrimSpace(feed.Title),
			Tickers: ticker,
		}
		if len(item.Categories) > 0 {
			ra.Category = item.Categories[0]
		}
		if item.PublishedParsed != nil {
			ra.PublishedAt = *item.PublishedParsed
			ra.Date = ra.PublishedAt.Format(time.RFC3339)
		} else {
			ra.Date = item.Published
		}
		if ra.Title == "" {
			ra.Title = cleanHTML(item.Description)
		}

		k := feedKey{published: ra.PublishedAt.UTC(), title: ra.Title, link: ra.URL}
		if _, ok := m.byKey[k]; ok {
			if !slices.Contains(m.tickers[k], ticker) {
				m.tickers[k] = append(m.tickers[k], ticker)
			}
			continue
		}
		m.order = append(m.order, k)
		m.byKey[k] = &ra
		m.tickers[k] = []string{ticker}
	}
}

func (m *feedMerger) rows() []models.RemoteArticle {
	out := make([]models.RemoteArticle, 0, len(m.order))
	for _, k := range m.order {
		ra := *m.byKey[k]
		ra.Tickers = utils.JoinTickers(m.tickers[k])
		out = append(out, ra)
	}
	return out
}

// --- helpers ---

// filterTicker keeps rows whose ticker list contains ticker.
func filterTicker(rows []models.RemoteArticle, ticker string) []models.RemoteArticle {
	var out []models.RemoteArticle
	for _, r := range rows {
		for _, t := range utils.SplitTickers(r.Tickers) {
			if t == ticker {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// SortByDateDesc sorts rows newest first; rows with equal times keep their
// order.
func SortByDateDesc(rows []models.RemoteArticle) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].PublishedAt.After(rows[j].PublishedAt)
	})
}
