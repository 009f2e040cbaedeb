package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ballast/internal/alert"
	"ballast/internal/backtest"
	"ballast/internal/config"
	"ballast/internal/core"
	"ballast/internal/feed"
	"ballast/internal/strategy"

	"go.uber.org/zap"
)

// RunOptions selects the data source and post-run actions of one
// backtest.
type RunOptions struct {
	Symbol   string
	Source   string // feed provider name; empty uses the configured source
	CSVPath  string // read candles from this file instead of the configured feed
	Interval string
	Start    time.Time
	End      time.Time
	Archive  bool
	Notify   bool
	Advise   bool
	Params   map[string]float64 // strategy threshold overrides by config name
}

// Report is the full outcome of one run: simulation result, criteria
// verdicts and optional advisor commentary.
type Report struct {
	Result     *backtest.Result `json:"result"`
	Criteria   alert.Result     `json:"criteria"`
	Commentary string           `json:"commentary,omitempty"`
}

// RunBacktest loads candles, runs one simulation and applies the
// requested post-run actions. The returned error covers the run itself;
// failures of post-run actions (persisting, archiving, notifying,
// commentary) are logged and do not discard a finished result.
func (a *App) RunBacktest(ctx context.Context, opts RunOptions) (*Report, error) {
	cfg := *a.cfg
	for name, value := range opts.Params {
		if err := cfg.SetStrategyParam(name, value); err != nil {
			return nil, err
		}
	}

	symbol := opts.Symbol
	if symbol == "" {
		symbol = cfg.Feed.Symbol
	}
	interval := opts.Interval
	if interval == "" {
		interval = cfg.Feed.Interval
	}

	candles, err := a.loadCandles(ctx, symbol, interval, opts)
	if err != nil {
		return nil, err
	}

	snapshots, err := a.builder.Snapshots(ctx, candles)
	if err != nil {
		return nil, err
	}

	runCfg := backtest.Config{
		Symbol:         symbol,
		Strategy:       strategyParams(&cfg),
		PeriodsPerYear: cfg.Backtest.PeriodsPerYear,
		RiskFreeRate:   cfg.Backtest.RiskFreeRate,
	}

	started := time.Now()
	result, err := a.backtester.Run(snapshots, runCfg)
	if a.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordBacktest(status, time.Since(started).Seconds())
	}
	if err != nil {
		return nil, err
	}

	if a.metrics != nil {
		for _, t := range result.Trades {
			a.metrics.RecordTrade(string(t.Tag), string(t.Action))
		}
	}

	report := &Report{
		Result:   result,
		Criteria: a.criteria.Evaluate(result.Metrics),
	}

	if err := a.runs.SaveRun(ctx, result.Record(cfg.Digest())); err != nil {
		a.logger.Error("saving run record failed",
			zap.String("run_id", result.ID), zap.Error(err))
	}
	if opts.Archive {
		a.archiveReport(ctx, report)
	}
	if opts.Notify {
		a.dispatchEvents(ctx, report)
	}
	if opts.Advise && a.advisor != nil {
		a.advise(ctx, report)
	}

	return report, nil
}

func (a *App) loadCandles(ctx context.Context, symbol, interval string, opts RunOptions) ([]core.Candle, error) {
	var provider feed.CandleProvider
	if opts.CSVPath != "" {
		provider = feed.NewCSV(opts.CSVPath)
	} else {
		source := opts.Source
		if source == "" {
			source = a.cfg.Feed.Source
		}
		p, err := a.feeds.Get(source)
		if err != nil {
			return nil, err
		}
		provider = p
	}
	return provider.Candles(ctx, symbol, interval, opts.Start, opts.End)
}

func (a *App) archiveReport(ctx context.Context, report *Report) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		a.logger.Error("encoding report failed", zap.Error(err))
		return
	}

	key := fmt.Sprintf("reports/%s.json", report.Result.ID)
	if err := a.archive.Store(ctx, key, bytes.NewReader(data)); err != nil {
		a.logger.Error("archiving report failed", zap.String("key", key), zap.Error(err))
		return
	}
	a.logger.Info("report archived", zap.String("key", key), zap.Int("bytes", len(data)))
}

// dispatchEvents sends one event per executed trade, the report event,
// and a criteria_failed event when any criterion failed.
func (a *App) dispatchEvents(ctx context.Context, report *Report) {
	result := report.Result

	for _, trade := range result.Trades {
		a.dispatch(ctx, tradeEvent(result.Symbol, trade))
	}
	a.dispatch(ctx, reportEvent(report))
	if !report.Criteria.Passed {
		a.dispatch(ctx, criteriaFailedEvent(report))
	}
}

func (a *App) dispatch(ctx context.Context, event core.Event) {
	err := a.router.Dispatch(ctx, event)
	if a.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordEventDispatch(string(event.Type), status)
	}
	if err != nil {
		a.logger.Error("event dispatch failed",
			zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func (a *App) advise(ctx context.Context, report *Report) {
	started := time.Now()
	comment, err := a.advisor.Comment(ctx, RenderReport(report))
	if a.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordAdvisorRequest(a.advisor.Name(), status, time.Since(started).Seconds())
	}
	if err != nil {
		a.logger.Error("advisor commentary failed",
			zap.String("provider", a.advisor.Name()), zap.Error(err))
		return
	}
	report.Commentary = comment
}

func tradeEvent(symbol string, t core.Trade) core.Event {
	return core.Event{
		Type:     core.EventTrade,
		Symbol:   symbol,
		Tag:      t.Tag,
		Notional: t.Quantity * t.Price,
		Title:    fmt.Sprintf("%s %s", t.Action, symbol),
		Body:     fmt.Sprintf("%.6f @ $%.2f (%s)", t.Quantity, t.Price, t.Tag),
		Time:     t.Time,
	}
}

func reportEvent(report *Report) core.Event {
	result := report.Result
	return core.Event{
		Type:   core.EventReport,
		Symbol: result.Symbol,
		Title:  fmt.Sprintf("Backtest report: %s", result.Symbol),
		Body:   RenderReport(report),
		Time:   result.FinishedAt,
	}
}

func criteriaFailedEvent(report *Report) core.Event {
	var failed []string
	for _, v := range report.Criteria.Verdicts {
		if !v.Passed {
			failed = append(failed, v.Expression)
		}
	}
	return core.Event{
		Type:   core.EventCriteriaFailed,
		Symbol: report.Result.Symbol,
		Title:  fmt.Sprintf("Criteria failed: %s", report.Result.Symbol),
		Body:   "Failed criteria:\n" + strings.Join(failed, "\n"),
		Time:   report.Result.FinishedAt,
	}
}

// RenderReport produces the compact plain-text report used for
// notification bodies and advisor input.
func RenderReport(report *Report) string {
	r := report.Result
	var b strings.Builder
	fmt.Fprintf(&b, "symbol: %s\n", r.Symbol)
	fmt.Fprintf(&b, "period: %s to %s\n",
		r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "initial_capital: $%.2f\n", r.InitialCapital)
	fmt.Fprintf(&b, "final_value: $%.2f\n", r.FinalValue)
	fmt.Fprintf(&b, "total_return: %.1f%%\n", r.Metrics["total_return"]*100)
	fmt.Fprintf(&b, "buy_hold_return: %.1f%%\n", r.Metrics["buy_hold_return"]*100)
	fmt.Fprintf(&b, "sharpe: %.2f\n", r.Metrics["sharpe"])
	fmt.Fprintf(&b, "max_drawdown: %.1f%%\n", r.Metrics["max_drawdown"]*100)
	fmt.Fprintf(&b, "win_rate: %.1f%%\n", r.Metrics["win_rate"]*100)
	fmt.Fprintf(&b, "trades: %d\n", len(r.Trades))

	passed := 0
	for _, v := range report.Criteria.Verdicts {
		if v.Passed {
			passed++
		}
	}
	status := "PASSED"
	if !report.Criteria.Passed {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "criteria: %s (%d/%d)", status, passed, len(report.Criteria.Verdicts))

	if report.Commentary != "" {
		fmt.Fprintf(&b, "\n\n%s", report.Commentary)
	}
	return b.String()
}

// strategyParams maps config thresholds onto engine parameters.
func strategyParams(cfg *config.Config) strategy.Params {
	return strategy.Params{
		InitialCapital:        cfg.Backtest.InitialCapital,
		CircuitBreakerRatio:   cfg.Strategy.CircuitBreakerRatio,
		ATRStopMultiplier:     cfg.Strategy.ATRStopMultiplier,
		TakeProfitThreshold:   cfg.Strategy.TakeProfitThreshold,
		RSIOversold:           cfg.Strategy.RSIOversold,
		RSIOverbought:         cfg.Strategy.RSIOverbought,
		FearGreedBuyThreshold: cfg.Strategy.FearGreedBuyThreshold,
		SwingBuyFraction:      cfg.Strategy.SwingBuyFraction,
		DCABuyFraction:        cfg.Strategy.DCABuyFraction,
	}
}
