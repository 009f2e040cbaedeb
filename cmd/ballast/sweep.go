package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"ballast/internal/app"
	"ballast/internal/backtest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sweepCSV     string
	sweepSymbol  string
	sweepParam   string
	sweepValues  string
	sweepWorkers int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one backtest per parameter value and rank the results",
	Long: `Run the same candle CSV through the strategy once per parameter value,
concurrently, and print a comparison table ranked by total return.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepCSV, "csv", "", "Candle CSV file (required)")
	sweepCmd.Flags().StringVar(&sweepSymbol, "symbol", "", "Symbol label for the runs (default from config)")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "Strategy parameter to sweep, e.g. dca_buy_fraction (required)")
	sweepCmd.Flags().StringVar(&sweepValues, "values", "", "Comma-separated parameter values (required)")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 4, "Concurrent backtest runs")

	sweepCmd.MarkFlagRequired("csv")
	sweepCmd.MarkFlagRequired("param")
	sweepCmd.MarkFlagRequired("values")

	rootCmd.AddCommand(sweepCmd)
}

type sweepOutcome struct {
	value  float64
	report *app.Report
	err    error
}

func runSweep(cmd *cobra.Command, args []string) error {
	values, err := parseSweepValues(sweepValues)
	if err != nil {
		return err
	}
	if sweepWorkers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	return withApp(func(a *app.App, log *zap.Logger) error {
		log.Info("starting sweep",
			zap.String("param", sweepParam),
			zap.Int("runs", len(values)),
			zap.Int("workers", sweepWorkers),
		)

		// Each run owns its own portfolio and ledger; only the result
		// slot is shared, and each goroutine writes a distinct index.
		outcomes := make([]sweepOutcome, len(values))
		sem := make(chan struct{}, sweepWorkers)
		var wg sync.WaitGroup

		for i, value := range values {
			wg.Add(1)
			go func(i int, value float64) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				report, err := a.RunBacktest(context.Background(), app.RunOptions{
					Symbol:  sweepSymbol,
					CSVPath: sweepCSV,
					Params:  map[string]float64{sweepParam: value},
				})
				outcomes[i] = sweepOutcome{value: value, report: report, err: err}
			}(i, value)
		}
		wg.Wait()

		printSweepTable(sweepParam, outcomes)

		for _, o := range outcomes {
			if o.err == nil {
				return nil
			}
		}
		return fmt.Errorf("all %d runs failed, first error: %w", len(outcomes), outcomes[0].err)
	})
}

func parseSweepValues(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", part, err)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no values given")
	}
	return values, nil
}

func printSweepTable(param string, outcomes []sweepOutcome) {
	ranked := make([]sweepOutcome, 0, len(outcomes))
	failed := make([]sweepOutcome, 0)
	for _, o := range outcomes {
		if o.err != nil {
			failed = append(failed, o)
			continue
		}
		ranked = append(ranked, o)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].report.Result.TotalReturn() > ranked[j].report.Result.TotalReturn()
	})

	fmt.Printf("=== Sweep: %s ===\n", param)
	fmt.Println()

	if len(ranked) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tVALUE\tRETURN\tSHARPE\tMAX DD\tWIN RATE\tTRADES\t")
		fmt.Fprintln(w, "----\t-----\t------\t------\t------\t--------\t------\t")
		for i, o := range ranked {
			m := o.report.Result.Metrics
			fmt.Fprintf(w, "%d\t%g\t%+.2f%%\t%.2f\t%.2f%%\t%.1f%%\t%.0f\t\n",
				i+1, o.value,
				m[backtest.MetricTotalReturn]*100,
				m[backtest.MetricSharpe],
				m[backtest.MetricMaxDrawdown]*100,
				m[backtest.MetricWinRate]*100,
				m[backtest.MetricNumTrades],
			)
		}
		w.Flush()
	}

	for _, o := range failed {
		fmt.Printf("value %g failed: %v\n", o.value, o.err)
	}
}
