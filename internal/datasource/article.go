package datasource

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/tickersent/internal/config"
	"github.com/seenimoa/tickersent/internal/infra"
	"github.com/seenimoa/tickersent/internal/logger"
)

// ContentFetcher returns the body text of an article, or "" when it cannot
// be retrieved. It never fails the caller.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) string
}

// ArticleFetcher downloads article pages and extracts their body text.
type ArticleFetcher struct {
	http      *httpClient
	limiter   *infra.RateLimiter
	retry     RetryPolicy
	extractor Extractor
	log       logrus.FieldLogger
}

// NewArticleFetcher builds a fetcher from the fetch and provider settings.
// The rate limiter is shared by every request the fetcher makes.
func NewArticleFetcher(cfg *config.Config, log logrus.FieldLogger) (*ArticleFetcher, error) {
	ex, err := NewExtractor(cfg.Fetch.Extractor)
	if err != nil {
		return nil, err
	}
	log = logger.OrDiscard(log)
	return &ArticleFetcher{
		http:      newHTTPClient(cfg.Fetch.Timeout, cfg.Provider.UserAgent),
		limiter:   infra.NewRateLimiter(cfg.Fetch.RequestInterval),
		retry:     RetryPolicyFromConfig(cfg.Fetch, log),
		extractor: ex,
		log:       log,
	}, nil
}

var htmlHeaders = map[string]string{"Accept": "text/html,application/xhtml+xml,*/*;q=0.8"}

// Fetch returns the extracted body text of the page at url. After the retry
// policy gives up it logs a warning and returns "".
func (f *ArticleFetcher) Fetch(ctx context.Context, url string) string {
	if strings.TrimSpace(url) == "" {
		return ""
	}
	var text string
	err := f.retry.Do(ctx, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		body, _, err := f.http.doGet(ctx, url, htmlHeaders)
		if err != nil {
			return err
		}
		defer body.Close()
		t, err := f.extractor.Extract(body, url)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		f.log.WithField("url", url).Warnf("article content unavailable: %v", err)
		return ""
	}
	return text
}
