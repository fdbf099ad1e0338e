// Package ingest runs the news sentiment sync: it splits the provider's
// batch into per-ticker rows, scores the rows not seen before, appends them
// to the news store in one batch and republishes the per-ticker aggregate.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/tickersent/internal/aggregate"
	"github.com/seenimoa/tickersent/internal/config"
	"github.com/seenimoa/tickersent/internal/datasource"
	"github.com/seenimoa/tickersent/internal/infra"
	"github.com/seenimoa/tickersent/internal/logger"
	"github.com/seenimoa/tickersent/internal/sentiment"
	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
)

// ErrRunInProgress is returned when a sync is requested while one is running.
var ErrRunInProgress = errors.New("sync run already in progress")

// Report summarizes one sync run.
type Report struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Fetched    int       `json:"fetched"`  // remote rows
	Emitted    int       `json:"emitted"`  // per-ticker rows after split
	Skipped    int       `json:"skipped"`  // remote rows without ticker or date
	New        int       `json:"new"`      // rows with unseen keys
	Appended   int       `json:"appended"` // rows written to the store
	Degraded   int       `json:"degraded"` // appended rows without a combined score
	Tickers    int       `json:"tickers"`  // tickers in the published aggregate
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Deps are the collaborators of a Syncer. Scorer defaults to the lexicon
// scorer.
type Deps struct {
	Source  datasource.NewsSource
	Fetcher datasource.ContentFetcher
	Scorer  sentiment.Scorer
	Store   store.NewsStore
}

// Syncer runs the ingestion sync. At most one Run executes at a time.
type Syncer struct {
	source   datasource.NewsSource
	fetcher  datasource.ContentFetcher
	scorer   sentiment.Scorer
	weights  sentiment.Weights
	store    store.NewsStore
	state    *store.StateFile
	compiler *aggregate.Compiler

	rawPath     string
	workers     int
	secondPass  bool
	incremental bool

	log logrus.FieldLogger
	now func() time.Time

	running sync.Mutex
	stop    atomic.Bool
}

// NewSyncer wires a Syncer from cfg.
func NewSyncer(cfg *config.Config, deps Deps, log logrus.FieldLogger) *Syncer {
	scorer := deps.Scorer
	if scorer == nil {
		scorer = sentiment.NewLexiconScorer(nil)
	}
	log = logger.OrDiscard(log)
	workers := cfg.Fetch.Workers
	if workers < 1 {
		workers = 1
	}
	raw := ""
	if cfg.Data.RawNewsFile != "" {
		raw = cfg.Data.Path(cfg.Data.RawNewsFile)
	}
	return &Syncer{
		source:      deps.Source,
		fetcher:     deps.Fetcher,
		scorer:      sentiment.Guard(scorer),
		weights:     sentiment.Weights{Title: cfg.Sentiment.TitleWeight, Content: cfg.Sentiment.ContentWeight},
		store:       deps.Store,
		state:       store.NewStateFile(cfg.Data.Path(cfg.Data.StateFile)),
		compiler:    aggregate.NewCompiler(cfg.Data.Path(cfg.Data.AggregateFile), log),
		rawPath:     raw,
		workers:     workers,
		secondPass:  cfg.Fetch.SecondPass,
		incremental: cfg.Aggregate.Incremental,
		log:         log,
		now:         time.Now,
	}
}

// Stop asks a running sync to stop after the articles in flight. Rows that
// finished are still appended.
func (s *Syncer) Stop() {
	s.stop.Store(true)
}

// State returns the last saved sync state.
func (s *Syncer) State() (store.SyncState, bool, error) {
	return s.state.Load()
}

// Run performs one sync. An empty batch or a batch with nothing new is a
// no-op that writes nothing.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()
	defer s.stop.Store(false)

	rep := &Report{RunID: uuid.NewString(), StartedAt: s.now()}
	log := s.log.WithField("run_id", rep.RunID)

	remote, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch news batch from %s: %w", s.source.Name(), err)
	}
	rep.Fetched = len(remote)

	rows, skipped := Split(remote, log)
	rep.Emitted, rep.Skipped = len(rows), skipped

	existing, err := s.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stored keys: %w", err)
	}
	fresh := Diff(rows, existing)
	rep.New = len(fresh)
	if len(fresh) == 0 {
		rep.Status = store.StatusNoOp
		rep.FinishedAt = s.now()
		log.WithField("fetched", rep.Fetched).Info("nothing new to sync")
		return rep, nil
	}
	s.writeRaw(rows, log)

	log.WithField("new", len(fresh)).Info("scoring new articles")
	processed, stopped := s.score(ctx, fresh, log)
	if len(processed) == 0 {
		rep.Status = store.StatusStopped
		rep.FinishedAt = s.now()
		log.Info("sync stopped before any article finished")
		return rep, nil
	}

	// Finished rows are persisted even when the run was cancelled.
	persistCtx := context.WithoutCancel(ctx)
	added, err := s.store.Append(persistCtx, processed)
	if err != nil {
		return nil, fmt.Errorf("append scored news: %w", err)
	}
	rep.Appended = added
	for _, a := range processed {
		if !a.CombinedSentiment.Present {
			rep.Degraded++
		}
	}
	rep.Status = store.StatusCompleted
	if stopped {
		rep.Status = store.StatusStopped
	}

	prev, _, err := s.state.Load()
	if err != nil {
		log.Warnf("ignoring unreadable sync state: %v", err)
	}
	// Rows appended by a run that died before publishing are not in the
	// table yet, so the store must hold exactly what the state recorded.
	incremental := s.incremental && prev.AggregateCurrent && prev.TotalRows == len(existing)
	aggs, pubErr := s.compiler.Publish(persistCtx, s.store, processed, incremental)
	rep.Tickers = len(aggs)
	rep.FinishedAt = s.now()

	state := store.SyncState{
		LastRunID:        rep.RunID,
		LastRunAt:        rep.StartedAt,
		LastSuccessAt:    prev.LastSuccessAt,
		LastStatus:       rep.Status,
		LastAdded:        added,
		TotalRows:        len(existing) + added,
		AggregateCurrent: pubErr == nil,
		ProcessedKeys:    keysOf(processed),
	}
	if pubErr == nil {
		state.LastSuccessAt = rep.FinishedAt
	} else {
		state.LastStatus = store.StatusFailed
	}
	if err := s.state.Save(state); err != nil {
		return rep, fmt.Errorf("save sync state: %w", err)
	}
	if pubErr != nil {
		return rep, fmt.Errorf("publish aggregate: %w", pubErr)
	}

	log.WithFields(logrus.Fields{
		"status":   rep.Status,
		"appended": rep.Appended,
		"degraded": rep.Degraded,
		"tickers":  rep.Tickers,
	}).Info("sync finished")
	return rep, nil
}

// score fetches and scores rows, keeping input order. The second return is
// true when the run was stopped or cancelled before every row finished.
func (s *Syncer) score(ctx context.Context, rows []models.Article, log logrus.FieldLogger) ([]models.Article, bool) {
	out := make([]models.Article, len(rows))
	copy(out, rows)
	done := make([]bool, len(rows))
	content := newContentCache(s.fetcher)

	all := make([]int, len(rows))
	for i := range all {
		all[i] = i
	}
	s.scoreIndexes(ctx, out, done, all, content)

	if s.secondPass && !s.halted(ctx) {
		var retry []int
		for i, a := range out {
			if done[i] && !a.ContentSentiment.Present && a.URL != "" {
				retry = append(retry, i)
				content.forget(a.URL)
			}
		}
		if len(retry) > 0 {
			log.WithField("rows", len(retry)).Info("retrying articles without content")
			s.scoreIndexes(ctx, out, done, retry, content)
		}
	}

	finished := make([]models.Article, 0, len(out))
	for i, a := range out {
		if done[i] {
			finished = append(finished, a)
		}
	}
	return finished, len(finished) < len(rows)
}

func (s *Syncer) halted(ctx context.Context) bool {
	return s.stop.Load() || ctx.Err() != nil
}

// scoreIndexes scores out[i] for each i in idx on a bounded pool. A result
// is kept only when it was not cut short by cancellation.
func (s *Syncer) scoreIndexes(ctx context.Context, out []models.Article, done []bool, idx []int, content *contentCache) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, i := range idx {
		if s.halted(ctx) {
			break
		}
		g.Go(func() error {
			if s.halted(gctx) {
				return nil
			}
			scored := s.scoreOne(gctx, out[i], content)
			if gctx.Err() != nil {
				return nil
			}
			out[i] = scored
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Syncer) scoreOne(ctx context.Context, a models.Article, content *contentCache) models.Article {
	text := content.get(ctx, a.URL)
	a.TitleSentiment = sentiment.Analyze(s.scorer, a.Title)
	a.ContentSentiment = sentiment.Analyze(s.scorer, text)
	a.CombinedSentiment = s.weights.Combine(a.TitleSentiment, a.ContentSentiment)
	return a
}

// writeRaw records the split batch for audit. Failures only warn.
func (s *Syncer) writeRaw(rows []models.Article, log logrus.FieldLogger) {
	if s.rawPath == "" {
		return
	}
	t := store.NewTable("raw news", []string{
		store.ColDate, store.ColTitle, store.ColSource, store.ColURL, store.ColCategory, store.ColTicker,
	})
	for _, a := range rows {
		t.Append(map[string]string{
			store.ColDate:     store.FormatDate(a.PublishedAt),
			store.ColTitle:    a.Title,
			store.ColSource:   a.Source,
			store.ColURL:      a.URL,
			store.ColCategory: a.Category,
			store.ColTicker:   a.Ticker,
		})
	}
	if err := t.WriteFile(s.rawPath); err != nil {
		log.Warnf("write raw news table: %v", err)
	}
}

func keysOf(rows []models.Article) []models.Key {
	out := make([]models.Key, 0, len(rows))
	for _, a := range rows {
		out = append(out, a.Key())
	}
	return out
}

// contentCache fetches each URL once per run, even when several rows (one
// story listed for several tickers) ask for it concurrently.
type contentCache struct {
	fetcher datasource.ContentFetcher
	cache   *infra.Cache[string]
	group   singleflight.Group
}

func newContentCache(f datasource.ContentFetcher) *contentCache {
	return &contentCache{fetcher: f, cache: infra.NewCache[string](24 * time.Hour)}
}

func (c *contentCache) get(ctx context.Context, url string) string {
	if url == "" || c.fetcher == nil {
		return ""
	}
	if text, ok := c.cache.Get(url); ok {
		return text
	}
	v, _, _ := c.group.Do(url, func() (any, error) {
		text := c.fetcher.Fetch(ctx, url)
		if ctx.Err() == nil {
			c.cache.Set(url, text)
		}
		return text, nil
	})
	return v.(string)
}

func (c *contentCache) forget(url string) {
	c.cache.Invalidate(url)
}
