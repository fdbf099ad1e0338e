package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/tickersent/internal/config"
	"github.com/seenimoa/tickersent/internal/datasource"
	"github.com/seenimoa/tickersent/internal/logger"
	"github.com/seenimoa/tickersent/internal/sentiment"
	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
	"github.com/seenimoa/tickersent/pkg/utils"
)

// ColLink is the article URL column of the per-ticker tables.
const ColLink = "Link"

// TodayNewsFile names the per-ticker news table.
func TodayNewsFile(ticker string) string { return ticker + "_today_news.csv" }

// WithSentimentFile names the per-ticker scored table.
func WithSentimentFile(ticker string) string { return ticker + "_with_sentiment.csv" }

// OnDemand is the per-ticker path: fetch today's news for one ticker, then
// score that file.
type OnDemand struct {
	source  datasource.NewsSource
	fetcher datasource.ContentFetcher
	scorer  sentiment.Scorer
	weights sentiment.Weights
	dir     string
	loc     *time.Location
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewOnDemand wires the per-ticker path from cfg. Scorer defaults to the
// lexicon scorer.
func NewOnDemand(cfg *config.Config, deps Deps, log logrus.FieldLogger) *OnDemand {
	scorer := deps.Scorer
	if scorer == nil {
		scorer = sentiment.NewLexiconScorer(nil)
	}
	return &OnDemand{
		source:  deps.Source,
		fetcher: deps.Fetcher,
		scorer:  sentiment.Guard(scorer),
		weights: sentiment.Weights{Title: cfg.Sentiment.TitleWeight, Content: cfg.Sentiment.ContentWeight},
		dir:     cfg.Data.Dir,
		loc:     cfg.Location(),
		log:     logger.OrDiscard(log),
		now:     time.Now,
	}
}

func (o *OnDemand) path(name string) string {
	return config.DataConfig{Dir: o.dir}.Path(name)
}

func checkTicker(ticker string) (string, error) {
	t := utils.NormalizeTicker(ticker)
	if !utils.IsValidTicker(t) {
		return "", fmt.Errorf("invalid ticker %q", ticker)
	}
	return t, nil
}

// TickerNews writes today's articles for ticker, newest first, to
// <TICKER>_today_news.csv and returns the file path and row count.
func (o *OnDemand) TickerNews(ctx context.Context, ticker string) (string, int, error) {
	t, err := checkTicker(ticker)
	if err != nil {
		return "", 0, err
	}
	rows, err := o.source.FetchTicker(ctx, t)
	if err != nil {
		return "", 0, fmt.Errorf("fetch news for %s: %w", t, err)
	}

	now := o.now()
	today := make([]models.RemoteArticle, 0, len(rows))
	for _, r := range rows {
		if !r.PublishedAt.IsZero() && utils.SameDay(r.PublishedAt, now, o.loc) {
			today = append(today, r)
		}
	}
	datasource.SortByDateDesc(today)

	out := store.NewTable(TodayNewsFile(t), []string{store.ColDate, store.ColTitle, ColLink, store.ColSource, store.ColTicker})
	for _, r := range today {
		out.Append(map[string]string{
			store.ColDate:   utils.FormatProviderTime(r.PublishedAt, o.loc),
			store.ColTitle:  r.Title,
			ColLink:         r.URL,
			store.ColSource: r.Source,
			store.ColTicker: t,
		})
	}
	path := o.path(TodayNewsFile(t))
	if err := out.WriteFile(path); err != nil {
		return "", 0, err
	}
	o.log.WithFields(logrus.Fields{"ticker": t, "articles": len(today)}).Info("today's news saved")
	return path, len(today), nil
}

// AnalyzeTicker scores every row of <TICKER>_today_news.csv and overwrites
// <TICKER>_with_sentiment.csv. The input must exist, have a Link (or Url)
// and a Title column and at least one row. Scores that cannot be computed
// are written as 0.0 with Sentiment_Confidence "degraded". Readers keep the
// non-zero scores of a degraded row; a real 0.0 there reads back absent.
func (o *OnDemand) AnalyzeTicker(ctx context.Context, ticker string) (string, int, error) {
	t, err := checkTicker(ticker)
	if err != nil {
		return "", 0, err
	}
	in, err := store.ReadTableFile(o.path(TodayNewsFile(t)))
	if err != nil {
		return "", 0, err
	}
	if err := in.Require(ColLink+"|"+store.ColURL, store.ColTitle); err != nil {
		return "", 0, err
	}
	if len(in.Rows) == 0 {
		return "", 0, fmt.Errorf("%s: %w", in.Name, store.ErrEmptyInput)
	}

	header := append([]string{}, in.Header...)
	for _, c := range []string{store.ColTitleSentiment, store.ColContentSentiment, store.ColCombinedSentiment, store.ColConfidence} {
		if in.Col(c) < 0 {
			header = append(header, c)
		}
	}
	out := store.NewTable(WithSentimentFile(t), header)
	link, title := in.Col(ColLink, store.ColURL), in.Col(store.ColTitle)
	content := newContentCache(o.fetcher)

	for _, row := range in.Rows {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		ts := sentiment.Analyze(o.scorer, in.Get(row, title))
		cs := sentiment.Analyze(o.scorer, content.get(ctx, in.Get(row, link)))
		combined := o.weights.Combine(ts, cs)

		confidence := models.ConfidenceScored
		if !combined.Present {
			confidence = models.ConfidenceDegraded
		}
		values := make(map[string]string, len(header))
		for i, h := range in.Header {
			if i < len(row) {
				values[h] = row[i]
			}
		}
		values[store.ColTitleSentiment] = placeholder(ts)
		values[store.ColContentSentiment] = placeholder(cs)
		values[store.ColCombinedSentiment] = placeholder(combined)
		values[store.ColConfidence] = string(confidence)
		out.Append(values)
	}

	path := o.path(WithSentimentFile(t))
	if err := out.WriteFile(path); err != nil {
		return "", 0, err
	}
	o.log.WithFields(logrus.Fields{"ticker": t, "articles": len(out.Rows)}).Info("sentiment analysis saved")
	return path, len(out.Rows), nil
}

// placeholder formats a score for the degraded-write table.
func placeholder(s models.Score) string {
	if !s.Present {
		return "0.0"
	}
	return strconv.FormatFloat(sentiment.Placeholder(s), 'f', -1, 64)
}
