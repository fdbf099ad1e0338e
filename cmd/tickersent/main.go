// tickersent keeps a per-ticker news sentiment table in sync with a remote
// news provider.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seenimoa/tickersent/internal/config"
	"github.com/seenimoa/tickersent/internal/logger"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root command.
var (
	cfg *config.Config
	log *logrus.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tickersent",
	Short: "News sentiment per stock ticker",
	Long: `tickersent downloads the provider's news batch, scores the articles it
has not seen before, appends them to the news table and republishes the
mean sentiment per ticker.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		log, err = logger.New(cfg.Logging)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(pricesCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(tickerNewsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Runs without a config file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tickersent %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Sync Command ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the news batch, score new articles and republish the aggregate",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.runner.RunNow(cmd.Context())
		if err != nil {
			return err
		}
		printReport(rep)
		if skip, _ := cmd.Flags().GetBool("skip-prices"); skip || rep.Appended == 0 {
			return nil
		}
		pr, err := a.prices.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("prices: %d updated, %d added, %d failed\n", pr.Updated, pr.Added, pr.Failed)
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("skip-prices", false, "do not refresh the price table after new articles")
}

// --- Compile Command ---

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Recompute the per-ticker aggregate from the news table",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		aggs, err := a.compiler.Publish(cmd.Context(), a.store, nil, false)
		if err != nil {
			return err
		}
		fmt.Printf("aggregate: %d tickers -> %s\n", len(aggs), a.compiler.Path())
		return nil
	},
}

// --- Prices Command ---

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Refresh the price table for every ticker in the news table",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		pr, err := a.prices.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("prices: %d tickers, %d updated, %d added, %d failed\n", pr.Tickers, pr.Updated, pr.Added, pr.Failed)
		return nil
	},
}

// --- Top Command ---

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the most positive tickers whose price rose today",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("n")
		if n <= 0 {
			n = cfg.Aggregate.TopN
		}
		top, err := topTickers(cfg, n)
		if err != nil {
			return err
		}
		printTop(os.Stdout, top)
		return nil
	},
}

func init() {
	topCmd.Flags().IntP("n", "n", 0, "number of tickers (default: aggregate.top_n)")
}

// --- Ticker News Command ---

var tickerNewsCmd = &cobra.Command{
	Use:   "tickernews [ticker]",
	Short: "Save today's news for one ticker to <TICKER>_today_news.csv",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		od, err := newOnDemand(cfg, log)
		if err != nil {
			return err
		}
		path, n, err := od.TickerNews(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%d articles -> %s\n", n, path)
		return nil
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [ticker]",
	Short: "Score <TICKER>_today_news.csv into <TICKER>_with_sentiment.csv",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		od, err := newOnDemand(cfg, log)
		if err != nil {
			return err
		}
		path, n, err := od.AnalyzeTicker(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%d articles scored -> %s\n", n, path)
		return nil
	},
}

// --- Watch Command ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run sync and price refresh on the configured schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		sched, err := a.scheduler()
		if err != nil {
			return err
		}
		if err := sched.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		a.runner.Wait()
		return nil
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		var jobs []func(context.Context) error
		if withSchedule, _ := cmd.Flags().GetBool("schedule"); withSchedule {
			sched, err := a.scheduler()
			if err != nil {
				return err
			}
			jobs = append(jobs, sched.Run)
		}
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		srv := a.server()
		return runServe(cmd.Context(), func(ctx context.Context) error {
			return srv.ListenAndServe(ctx, addr)
		}, jobs...)
	},
}

func init() {
	serveCmd.Flags().Bool("schedule", false, "also run the sync schedule in the background")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last sync and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printStatus(os.Stdout, cfg)
	},
}
