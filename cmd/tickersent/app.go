package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/tickersent/api"
	"github.com/seenimoa/tickersent/internal/aggregate"
	"github.com/seenimoa/tickersent/internal/config"
	"github.com/seenimoa/tickersent/internal/datasource"
	"github.com/seenimoa/tickersent/internal/ingest"
	"github.com/seenimoa/tickersent/internal/store"
	"github.com/seenimoa/tickersent/pkg/models"
	"github.com/seenimoa/tickersent/pkg/utils"
)

// app holds the wired pipeline for commands that touch the news store.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    store.NewsStore
	runner   *ingest.Runner
	prices   *ingest.PriceRefresher
	compiler *aggregate.Compiler
}

func newApp(cfg *config.Config, log *logrus.Logger) (*app, error) {
	source, err := datasource.NewNewsSource(cfg, log)
	if err != nil {
		return nil, err
	}
	fetcher, err := datasource.NewArticleFetcher(cfg, log)
	if err != nil {
		return nil, err
	}
	ns, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	syncer := ingest.NewSyncer(cfg, ingest.Deps{Source: source, Fetcher: fetcher, Store: ns}, log)
	pricePath := cfg.Data.Path(cfg.Data.PriceFile)
	return &app{
		cfg:      cfg,
		log:      log,
		store:    ns,
		runner:   ingest.NewRunner(syncer),
		prices:   ingest.NewPriceRefresher(datasource.NewPriceSource(cfg, log), ns, pricePath, log),
		compiler: aggregate.NewCompiler(cfg.Data.Path(cfg.Data.AggregateFile), log),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) server() *api.Server {
	api.Version = version
	return api.NewServer(a.cfg, a.runner, a.log)
}

// scheduler runs a sync, then a price refresh when the sync added rows.
func (a *app) scheduler() (*ingest.Scheduler, error) {
	job := func(ctx context.Context) error {
		rep, err := a.runner.RunNow(ctx)
		if errors.Is(err, ingest.ErrRunInProgress) {
			a.log.Info("sync already running, skipping scheduled run")
			return nil
		}
		if err != nil {
			return err
		}
		if rep.Appended == 0 {
			return nil
		}
		_, err = a.prices.Refresh(ctx)
		return err
	}
	return ingest.NewScheduler(a.cfg.Schedule.Times, a.cfg.Schedule.Interval, time.Local, job, a.log)
}

// runServe runs serve alongside the background jobs. When serve returns the
// jobs are cancelled and awaited, so none outlives the store.
func runServe(ctx context.Context, serve func(context.Context) error, jobs ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	for _, job := range jobs {
		g.Go(func() error {
			if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	err := serve(ctx)
	cancel()
	if jobErr := g.Wait(); err == nil {
		err = jobErr
	}
	return err
}

func newOnDemand(cfg *config.Config, log *logrus.Logger) (*ingest.OnDemand, error) {
	source, err := datasource.NewNewsSource(cfg, log)
	if err != nil {
		return nil, err
	}
	fetcher, err := datasource.NewArticleFetcher(cfg, log)
	if err != nil {
		return nil, err
	}
	return ingest.NewOnDemand(cfg, ingest.Deps{Source: source, Fetcher: fetcher}, log), nil
}

func topTickers(cfg *config.Config, n int) ([]models.TopTicker, error) {
	aggs, err := aggregate.ReadTable(cfg.Data.Path(cfg.Data.AggregateFile))
	if err != nil {
		return nil, fmt.Errorf("load aggregate: %w", err)
	}
	prices, err := aggregate.ReadPrices(cfg.Data.Path(cfg.Data.PriceFile))
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	return aggregate.TopTickers(aggs, prices, n), nil
}

func printReport(r *ingest.Report) {
	fmt.Printf("sync %s: %s\n", r.RunID, r.Status)
	fmt.Printf("  fetched %d, split %d, skipped %d, new %d\n", r.Fetched, r.Emitted, r.Skipped, r.New)
	fmt.Printf("  appended %d (%d without content), %d tickers published\n", r.Appended, r.Degraded, r.Tickers)
}

func printTop(w io.Writer, top []models.TopTicker) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tSENTIMENT\tARTICLES\tCHANGE")
	for _, t := range top {
		fmt.Fprintf(tw, "%s\t%.4f\t%d\t%.2f%%\n", t.Ticker, t.MeanCombinedSentiment, t.SampleCount, t.ChangePct)
	}
	tw.Flush()
}

func printStatus(w io.Writer, cfg *config.Config) error {
	state, ok, err := store.NewStateFile(cfg.Data.Path(cfg.Data.StateFile)).Load()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "═══════════════════════════════════════")
	fmt.Fprintln(w, "  tickersent status")
	fmt.Fprintln(w, "═══════════════════════════════════════")
	fmt.Fprintf(w, "  Version:       %s (%s)\n", version, commit)
	fmt.Fprintf(w, "  Market Status: %s\n", utils.MarketStatus())
	fmt.Fprintf(w, "  Time (ET):     %s\n", utils.FormatDateTimeET(utils.NowET()))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  Last sync:")
	if !ok {
		fmt.Fprintln(w, "    never run")
	} else {
		fmt.Fprintf(w, "    Run:           %s (%s)\n", state.LastRunID, state.LastStatus)
		fmt.Fprintf(w, "    Started:       %s\n", state.LastRunAt.Format(time.RFC3339))
		fmt.Fprintf(w, "    Last success:  %s\n", state.LastSuccessAt.Format(time.RFC3339))
		fmt.Fprintf(w, "    Rows:          %d (+%d)\n", state.TotalRows, state.LastAdded)
		fmt.Fprintf(w, "    Aggregate:     current=%t\n", state.AggregateCurrent)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  Configuration:")
	fmt.Fprintf(w, "    Data dir:      %s\n", cfg.Data.Dir)
	fmt.Fprintf(w, "    Store:         %s\n", cfg.Store.Backend)
	fmt.Fprintf(w, "    News source:   %s\n", cfg.News.Source)
	fmt.Fprintf(w, "    Extractor:     %s (workers: %d)\n", cfg.Fetch.Extractor, cfg.Fetch.Workers)
	fmt.Fprintf(w, "    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  Secrets:")
	for _, k := range config.CheckSecrets(cfg) {
		status := "not set"
		if k.IsSet {
			status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
		}
		fmt.Fprintf(w, "    %-25s %s\n", k.Name+":", status)
	}
	fmt.Fprintln(w, "═══════════════════════════════════════")
	return nil
}
