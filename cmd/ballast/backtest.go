package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"ballast/internal/app"
	"ballast/internal/backtest"
	"ballast/internal/config"
	"ballast/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backtestCSV     string
	backtestSymbol  string
	backtestArchive bool
	backtestNotify  bool
	backtestAdvise  bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest from a candle CSV",
	Long:  "Replay a candle CSV through the configured strategy and print the resulting report.",
	RunE:  runBacktestCmd,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestCSV, "csv", "", "Candle CSV file (required)")
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "Symbol label for the run (default from config)")
	backtestCmd.Flags().BoolVar(&backtestArchive, "archive", false, "Archive the JSON report to cold storage")
	backtestCmd.Flags().BoolVar(&backtestNotify, "notify", false, "Dispatch run events to the configured notifiers")
	backtestCmd.Flags().BoolVar(&backtestAdvise, "advise", false, "Request advisor commentary on the report")

	backtestCmd.MarkFlagRequired("csv")

	rootCmd.AddCommand(backtestCmd)
}

// withApp handles common application setup and teardown.
func withApp(fn func(a *app.App, log *zap.Logger) error) error {
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

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	log = configuredLogger(log, cfg)

	application, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}
	defer application.Close()

	return fn(application, log)
}

// configuredLogger rebuilds the bootstrap logger from the log section.
// The --debug flag wins over the config.
func configuredLogger(log *zap.Logger, cfg *config.Config) *zap.Logger {
	if debug {
		return log
	}
	configured, err := logger.NewWithLevel(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Warn("invalid log level in config, keeping defaults",
			zap.String("level", cfg.Log.Level))
		return log
	}
	log.Sync()
	return configured
}

func runBacktestCmd(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App, log *zap.Logger) error {
		report, err := a.RunBacktest(context.Background(), app.RunOptions{
			Symbol:  backtestSymbol,
			CSVPath: backtestCSV,
			Archive: backtestArchive,
			Notify:  backtestNotify,
			Advise:  backtestAdvise,
		})
		if err != nil {
			return fmt.Errorf("running backtest: %w", err)
		}

		printReport(report)
		log.Info("backtest finished",
			zap.String("run_id", report.Result.ID),
			zap.Int("trades", len(report.Result.Trades)),
		)
		return nil
	})
}

// metricOrder fixes the display order of the metrics table. Percent
// metrics are stored as fractions and rendered as percentages.
var metricOrder = []string{
	backtest.MetricTotalReturn,
	backtest.MetricBuyHoldReturn,
	backtest.MetricSharpe,
	backtest.MetricSortino,
	backtest.MetricCalmar,
	backtest.MetricMaxDrawdown,
	backtest.MetricWinRate,
	backtest.MetricProfitFactor,
	backtest.MetricAvgTradePnL,
	backtest.MetricNumTrades,
	backtest.MetricNumClosingTrades,
}

func printReport(report *app.Report) {
	res := report.Result

	fmt.Println("=== Backtest Report ===")
	fmt.Printf("Run ID:  %s\n", res.ID)
	fmt.Printf("Symbol:  %s\n", res.Symbol)
	fmt.Printf("Period:  %s to %s\n",
		res.StartDate.Format("2006-01-02"), res.EndDate.Format("2006-01-02"))
	fmt.Printf("Capital: $%.2f -> $%.2f\n", res.InitialCapital, res.FinalValue)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE\t")
	fmt.Fprintln(w, "------\t-----\t")
	for _, name := range metricOrder {
		value, ok := res.Metrics[name]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t\n", name, formatMetric(name, value))
	}
	w.Flush()
	fmt.Println()

	fmt.Println("Criteria")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXPRESSION\tACTUAL\tRESULT\t")
	fmt.Fprintln(w, "----------\t------\t------\t")
	for _, v := range report.Criteria.Verdicts {
		result := "PASS"
		if !v.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(w, "%s\t%.4f\t%s\t\n", v.Expression, v.Actual, result)
	}
	w.Flush()

	if report.Commentary != "" {
		fmt.Println()
		fmt.Println("Commentary")
		fmt.Println(report.Commentary)
	}
}

func formatMetric(name string, value float64) string {
	switch name {
	case backtest.MetricTotalReturn, backtest.MetricBuyHoldReturn,
		backtest.MetricMaxDrawdown, backtest.MetricWinRate:
		return fmt.Sprintf("%.2f%%", value*100)
	case backtest.MetricNumTrades, backtest.MetricNumClosingTrades:
		return fmt.Sprintf("%.0f", value)
	case backtest.MetricAvgTradePnL:
		return fmt.Sprintf("$%.2f", value)
	default:
		return fmt.Sprintf("%.4f", value)
	}
}
