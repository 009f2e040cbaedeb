// Package app wires the configured components into a runnable
// application and drives single backtest runs end to end.
package app

import (
	"fmt"
	"time"

	"ballast/internal/advisor"
	"ballast/internal/advisor/factory"
	"ballast/internal/alert"
	"ballast/internal/backtest"
	"ballast/internal/config"
	"ballast/internal/core"
	"ballast/internal/feed"
	"ballast/internal/metrics"
	"ballast/internal/notifier"
	"ballast/internal/notifier/email"
	"ballast/internal/notifier/telegram"
	"ballast/internal/notifier/webhook"
	"ballast/internal/predictor"
	"ballast/internal/router"
	"ballast/internal/storage/archive"
	"ballast/internal/storage/runs"
	"ballast/internal/strategy"

	"go.uber.org/zap"
)

// App owns every long-lived component built from configuration.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	feeds      *feed.Registry
	builder    *feed.Builder
	backtester *backtest.Backtester
	criteria   *alert.Criteria
	notifiers  *notifier.Registry
	router     *router.Router
	runs       runs.Store
	archive    archive.Storage
	advisor    advisor.Provider
	metrics    *metrics.Registry
}

// New builds an App from configuration. The config must already have
// passed Validate.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pred, err := predictor.New(cfg.Predictor.Kind, cfg.Predictor.Window)
	if err != nil {
		return nil, err
	}

	var sentiment feed.SentimentProvider
	if cfg.Feed.FearGreed.Enabled {
		if cfg.Feed.FearGreed.BaseURL != "" {
			sentiment = feed.NewFearGreedWithBaseURL(cfg.Feed.FearGreed.BaseURL, cfg.Feed.FearGreed.CachePath)
		} else {
			sentiment = feed.NewFearGreed(cfg.Feed.FearGreed.CachePath)
		}
	}

	// Both exchanges are always registered; the BaseURL override applies
	// to the configured source.
	feeds := feed.NewRegistry()
	feeds.Register(feed.NewBinance())
	feeds.Register(feed.NewOKX())
	if cfg.Feed.BaseURL != "" {
		switch cfg.Feed.Source {
		case "okx":
			feeds.Register(feed.NewOKXWithBaseURL(cfg.Feed.BaseURL))
		default:
			feeds.Register(feed.NewBinanceWithBaseURL(cfg.Feed.BaseURL))
		}
	}
	if cfg.Feed.CSVPath != "" {
		feeds.Register(feed.NewCSV(cfg.Feed.CSVPath))
	}

	criteria := alert.Default()
	if len(cfg.Criteria.Rules) > 0 {
		criteria, err = alert.Parse(cfg.Criteria.Rules)
		if err != nil {
			return nil, err
		}
	}

	notifiers, err := buildNotifiers(cfg.Notifiers)
	if err != nil {
		return nil, err
	}

	runStore, err := buildRunStore(cfg.Storage.Hot)
	if err != nil {
		return nil, err
	}

	reportStore, err := buildArchive(cfg.Storage.Cold)
	if err != nil {
		runStore.Close()
		return nil, err
	}

	adv, err := factory.New(cfg.Advisor)
	if err != nil {
		runStore.Close()
		return nil, err
	}

	var registry *metrics.Registry
	if cfg.Metrics.Enabled {
		registry = metrics.NewRegistry()
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		feeds:      feeds,
		builder:    feed.NewBuilder(sentiment, pred),
		backtester: backtest.New(strategy.New(), logger),
		criteria:   criteria,
		notifiers:  notifiers,
		router:     buildRouter(cfg.Router, notifiers, logger),
		runs:       runStore,
		archive:    reportStore,
		advisor:    adv,
		metrics:    registry,
	}

	logger.Info("application wired",
		zap.Strings("feeds", feeds.Providers()),
		zap.Strings("notifiers", notifiers.Names()),
		zap.String("run_store", cfg.Storage.Hot.Driver),
		zap.String("archive", cfg.Storage.Cold.Type),
		zap.String("advisor", advisorName(adv)),
	)
	return a, nil
}

// Close releases the run store. Safe to call once.
func (a *App) Close() error {
	return a.runs.Close()
}

// Runs exposes the run-history store for the API server.
func (a *App) Runs() runs.Store { return a.runs }

// Metrics returns the Prometheus registry, nil when metrics are
// disabled.
func (a *App) Metrics() *metrics.Registry { return a.metrics }

func advisorName(p advisor.Provider) string {
	if p == nil {
		return "none"
	}
	return p.Name()
}

// buildNotifiers constructs the enabled notifiers from the config map.
// The map key selects the notifier type.
func buildNotifiers(cfgs map[string]config.NotifierConfig) (*notifier.Registry, error) {
	registry := notifier.NewRegistry()
	for name, nc := range cfgs {
		if !nc.Enabled {
			continue
		}

		var n notifier.Notifier
		switch name {
		case "telegram":
			n = telegram.New(nc.BotToken, nc.ChatID)
		case "email":
			n = email.New(nc.Host, nc.Port, nc.Username, nc.Password, nc.From, nc.To)
		case "webhook":
			n = webhook.New(nc.URL, nc.Headers)
		default:
			return nil, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown notifier %q", name))
		}

		if err := registry.Register(n); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	return registry, nil
}

// buildRouter creates one route per enabled event type so the cooldown
// of a chatty type never silences the others.
func buildRouter(rc config.RouterConfig, registry *notifier.Registry, logger *zap.Logger) *router.Router {
	r := router.New(registry, logger)
	names := registry.Names()
	for _, event := range rc.EnabledEvents {
		r.AddRoute(router.Route{
			Name:        event,
			EventTypes:  []core.EventType{core.EventType(event)},
			MinNotional: rc.MinNotional,
			Cooldown:    time.Duration(rc.CooldownMinutes) * time.Minute,
			Notifiers:   names,
		})
	}
	return r
}

func buildRunStore(hc config.HotStorageConfig) (runs.Store, error) {
	switch hc.Driver {
	case "sqlite":
		return runs.NewSQLite(hc.DSN, hc.RetentionDays)
	case "memory", "":
		return runs.NewMemoryStore(), nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown run store driver %q", hc.Driver))
	}
}

func buildArchive(cc config.ColdStorageConfig) (archive.Storage, error) {
	switch cc.Type {
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cc.S3.Bucket,
			Endpoint:  cc.S3.Endpoint,
			Region:    cc.S3.Region,
			AccessKey: cc.S3.AccessKey,
			SecretKey: cc.S3.SecretKey,
			Prefix:    cc.S3.Prefix,
		})
	case "localfs", "":
		return archive.NewLocalFS(cc.Path)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", cc.Type))
	}
}
