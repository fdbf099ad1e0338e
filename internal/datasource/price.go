package datasource

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/tickersent/internal/config"
	"github.com/seenimoa/tickersent/internal/infra"
	"github.com/seenimoa/tickersent/internal/logger"
	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
	"github.com/seenimoa/tickersent/pkg/utils"
)

// PriceFetcher returns the current price row for one ticker.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, ticker string) (models.PriceRow, error)
}

// PriceSource downloads a ticker's price export: a CSV table with at least
// Price and Change columns (Volume and P/E when available).
type PriceSource struct {
	template  string
	authToken string
	http      *httpClient
	limiter   *infra.RateLimiter
	retry     RetryPolicy
	log       logrus.FieldLogger
}

// NewPriceSource builds the price source from prices and provider settings.
// Requests are spaced by prices.request_interval.
func NewPriceSource(cfg *config.Config, log logrus.FieldLogger) *PriceSource {
	log = logger.OrDiscard(log)
	return &PriceSource{
		template:  cfg.Prices.ExportURLTemplate,
		authToken: cfg.Provider.AuthToken,
		http:      newHTTPClient(cfg.Fetch.Timeout, cfg.Provider.UserAgent),
		limiter:   infra.NewRateLimiter(cfg.Prices.RequestInterval),
		retry:     RetryPolicyFromConfig(cfg.Fetch, log),
		log:       log,
	}
}

// FetchPrice downloads and parses the price row for ticker.
func (s *PriceSource) FetchPrice(ctx context.Context, ticker string) (models.PriceRow, error) {
	u, err := s.buildURL(ticker)
	if err != nil {
		return models.PriceRow{}, err
	}
	var data []byte
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		data, err = s.http.getBytes(ctx, u, map[string]string{"Accept": "text/csv,*/*"})
		return err
	})
	if err != nil {
		return models.PriceRow{}, fmt.Errorf("fetch price %s: %w", ticker, err)
	}
	return parsePriceCSV(data, ticker)
}

func (s *PriceSource) buildURL(ticker string) (string, error) {
	raw := strings.ReplaceAll(s.template, "{ticker}", url.QueryEscape(ticker))
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid price url: %w", err)
	}
	if s.authToken != "" {
		q := u.Query()
		q.Set("auth", s.authToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// parsePriceCSV reads the first data row of a price export.
func parsePriceCSV(data []byte, ticker string) (models.PriceRow, error) {
	t, err := store.ParseTable("price export "+ticker, bytes.NewReader(data))
	if err != nil {
		return models.PriceRow{}, err
	}
	if err := t.Require("Price", "Change"); err != nil {
		return models.PriceRow{}, err
	}
	if len(t.Rows) == 0 {
		return models.PriceRow{}, fmt.Errorf("%s: %w", ticker, ErrTickerNotFound)
	}
	row := t.Rows[0]

	pr := models.PriceRow{Ticker: ticker}
	if sym := t.Get(row, t.Col("Ticker")); sym != "" {
		pr.Ticker = strings.ToUpper(sym)
	}
	price, ok, err := utils.ParseNumber(t.Get(row, t.Col("Price")))
	if err != nil {
		return models.PriceRow{}, fmt.Errorf("%s price: %w", ticker, err)
	}
	if !ok {
		return models.PriceRow{}, fmt.Errorf("%s: no price: %w", ticker, ErrTickerNotFound)
	}
	pr.Price = price
	if pr.ChangePct, err = utils.ParsePercent(t.Get(row, t.Col("Change"))); err != nil {
		return models.PriceRow{}, fmt.Errorf("%s change: %w", ticker, err)
	}
	if v, ok, err := utils.ParseNumber(t.Get(row, t.Col("Volume"))); err == nil && ok {
		pr.Volume = int64(v)
	}
	if v, ok, err := utils.ParseNumber(t.Get(row, t.Col("P/E"))); err == nil && ok {
		pr.PE, pr.HasPE = v, true
	}
	return pr, nil
}
