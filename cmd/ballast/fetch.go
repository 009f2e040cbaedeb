package main

import (
	"context"
	"fmt"
	"time"

	"ballast/internal/config"
	"ballast/internal/feed"
	"ballast/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fetchSymbol    string
	fetchInterval  string
	fetchStart     string
	fetchEnd       string
	fetchOut       string
	fetchFearGreed bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch candles into a CSV cache",
	Long:  "Fetch historical candles from the exchange into a CSV file that backtest and sweep can replay offline.",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchSymbol, "symbol", "", "Symbol to fetch (default from config)")
	fetchCmd.Flags().StringVar(&fetchInterval, "interval", "", "Candle interval, e.g. 1d or 4h (default from config)")
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "Start date YYYY-MM-DD (required)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "End date YYYY-MM-DD (required)")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "Output CSV path (required)")
	fetchCmd.Flags().BoolVar(&fetchFearGreed, "feargreed", false, "Also refresh the fear & greed cache")

	fetchCmd.MarkFlagRequired("start")
	fetchCmd.MarkFlagRequired("end")
	fetchCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer func() { log.Sync() }()

	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}
	log = configuredLogger(log, cfg)

	start, err := time.Parse("2006-01-02", fetchStart)
	if err != nil {
		return fmt.Errorf("invalid start date format (expected YYYY-MM-DD): %w", err)
	}
	end, err := time.Parse("2006-01-02", fetchEnd)
	if err != nil {
		return fmt.Errorf("invalid end date format (expected YYYY-MM-DD): %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("end date must be after start date")
	}

	symbol := fetchSymbol
	if symbol == "" {
		symbol = cfg.Feed.Symbol
	}
	interval := fetchInterval
	if interval == "" {
		interval = cfg.Feed.Interval
	}

	var provider feed.CandleProvider
	switch cfg.Feed.Source {
	case "okx":
		provider = feed.NewOKX()
		if cfg.Feed.BaseURL != "" {
			provider = feed.NewOKXWithBaseURL(cfg.Feed.BaseURL)
		}
	default:
		provider = feed.NewBinance()
		if cfg.Feed.BaseURL != "" {
			provider = feed.NewBinanceWithBaseURL(cfg.Feed.BaseURL)
		}
	}

	ctx := context.Background()
	candles, err := provider.Candles(ctx, symbol, interval, start, end)
	if err != nil {
		return fmt.Errorf("fetching candles: %w", err)
	}

	if err := feed.NewCSV(fetchOut).WriteCandles(candles); err != nil {
		return fmt.Errorf("writing %s: %w", fetchOut, err)
	}

	fmt.Printf("Wrote %d candles for %s (%s) to %s\n", len(candles), symbol, interval, fetchOut)
	log.Info("candles fetched",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("count", len(candles)),
		zap.String("out", fetchOut),
	)

	if fetchFearGreed {
		fg := feed.NewFearGreed(cfg.Feed.FearGreed.CachePath)
		if cfg.Feed.FearGreed.BaseURL != "" {
			fg = feed.NewFearGreedWithBaseURL(cfg.Feed.FearGreed.BaseURL, cfg.Feed.FearGreed.CachePath)
		}
		days, err := fg.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("refreshing fear & greed cache: %w", err)
		}
		fmt.Printf("Refreshed fear & greed cache (%d days) at %s\n", days, cfg.Feed.FearGreed.CachePath)
		log.Info("fear & greed cache refreshed", zap.Int("days", days))
	}

	return nil
}
