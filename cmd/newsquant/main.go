package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmarche/newsquant/internal/backtest"
	"github.com/dmarche/newsquant/internal/collect"
	"github.com/dmarche/newsquant/internal/config"
	"github.com/dmarche/newsquant/internal/database"
	"github.com/dmarche/newsquant/internal/fetch"
	"github.com/dmarche/newsquant/internal/logging"
	"github.com/dmarche/newsquant/internal/report"
	"github.com/dmarche/newsquant/internal/score"
	"github.com/dmarche/newsquant/internal/signal"
	"github.com/dmarche/newsquant/internal/tag"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsquant",
	Short:   "Financial news sentiment signals and backtesting",
	Long:    "newsquant ingests financial news, scores and tags it, aggregates daily sentiment panels, and backtests them against forward returns.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logging.Setup(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(signalsCmd)
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(reportCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsquant", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsquant/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, the scorer endpoint, and the ticker universe.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Articles:")
		fmt.Printf("  Collected: %d\n", stats.TotalArticles)
		fmt.Printf("  Scored: %d\n", stats.ScoredDocs)
		fmt.Printf("  Tagged: %d\n", stats.TaggedDocs)
		fmt.Println("\nPanels:")
		fmt.Printf("  Entity rows: %d\n", stats.EntityPanel)
		fmt.Printf("  Industry rows: %d\n", stats.IndustryPanel)
		fmt.Printf("  Market rows: %d\n", stats.MarketPanel)
		fmt.Println("\nBacktests:")
		fmt.Printf("  Price rows: %d\n", stats.PriceRows)
		fmt.Printf("  Runs: %d\n", stats.BacktestRuns)
		fmt.Printf("  Metric rows: %d\n", stats.MetricRows)
		fmt.Printf("  Event rows: %d\n", stats.EventRows)
		return nil
	},
}

// --- ingest command ---

var ingestDaysBack int

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Collect articles from configured sources and fetch missing content",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		collector := collect.NewCollector(cfg, db, ingestDaysBack)
		result := collector.Collect()

		fetcher := fetch.NewContentFetcher(db, 0)
		fetched := fetcher.FetchMissingContent()

		fmt.Println("Ingest complete:")
		fmt.Printf("  Found: %d\n", result.TotalFound)
		fmt.Printf("  New: %d\n", result.NewArticles)
		fmt.Printf("  Duplicates: %d\n", result.Duplicates)
		fmt.Printf("  Content fetched: %d (failed %d)\n", fetched.Fetched, fetched.Failed)

		if len(result.Sources) > 0 {
			fmt.Println("\nArticles by source:")
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range result.Sources {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestDaysBack, "days-back", 1, "Lookback window for feed entries (days)")
}

// --- score command ---

var scoreLimit int

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score and tag unscored articles via the external scorer",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		provider := score.NewHTTPProvider(cfg.Scorer.URL,
			time.Duration(cfg.Scorer.TimeoutSeconds)*time.Second, cfg.Scorer.MaxRetries)
		tagger := tag.New(cfg.Universe)

		runner := score.NewRunner(db, provider, tagger, scoreLimit)
		result, err := runner.Run(context.Background())
		if err != nil {
			return err
		}

		fmt.Println("Scoring complete:")
		fmt.Printf("  Scored: %d\n", result.Scored)
		fmt.Printf("  Tagged: %d\n", result.Tagged)
		fmt.Printf("  Failed: %d\n", result.Failed)
		return nil
	},
}

func init() {
	scoreCmd.Flags().IntVar(&scoreLimit, "limit", 500, "Maximum articles to score in one run")
}

// --- signals command ---

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Aggregate scored documents into the daily signal panels",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		params, err := signal.ParamsFromConfig(cfg)
		if err != nil {
			return err
		}
		agg := signal.NewAggregator(db, cfg.Authority, params)
		return agg.Run(context.Background())
	},
}

// --- backtest command ---

var (
	btStart string
	btEnd   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Evaluate signals against forward returns, one fold per year",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		end := btEnd
		if end == "" {
			end = time.Now().UTC().Format("2006-01-02")
		}
		start := btStart
		if start == "" {
			endDate, err := time.Parse("2006-01-02", end)
			if err != nil {
				return fmt.Errorf("invalid end date %q: %w", end, err)
			}
			start = endDate.AddDate(-1, 0, 0).Format("2006-01-02")
		}

		runner := backtest.NewRunner(db, cfg.Backtest, cfg.Output.OutDir)
		return runner.Run(context.Background(), start, end)
	},
}

func init() {
	backtestCmd.Flags().StringVar(&btStart, "start", "", "Start date (YYYY-MM-DD, default one year before end)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "End date (YYYY-MM-DD, default today)")
}

// --- report command ---

var reportOut string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a markdown and HTML summary of the latest runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		out := reportOut
		if out == "" {
			out = cfg.Output.OutDir
		}
		return report.NewReporter(db).Write(out)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "", "Output directory (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "newsquant.db")
	return database.Open(dbPath)
}
