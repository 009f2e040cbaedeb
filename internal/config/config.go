package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"ballast/internal/core"

	"github.com/spf13/viper"
)

type Config struct {
	Log       LogConfig                 `mapstructure:"log"`
	Strategy  StrategyConfig            `mapstructure:"strategy"`
	Backtest  BacktestConfig            `mapstructure:"backtest"`
	Feed      FeedConfig                `mapstructure:"feed"`
	Predictor PredictorConfig           `mapstructure:"predictor"`
	Criteria  CriteriaConfig            `mapstructure:"criteria"`
	Notifiers map[string]NotifierConfig `mapstructure:"notifiers"`
	Router    RouterConfig              `mapstructure:"router"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Advisor   AdvisorConfig             `mapstructure:"advisor"`
	Server    ServerConfig              `mapstructure:"server"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// StrategyConfig holds the decision-engine thresholds. Every value is
// independently overridable; zero values are replaced by Defaults.
type StrategyConfig struct {
	CircuitBreakerRatio   float64 `mapstructure:"circuit_breaker_ratio"`
	ATRStopMultiplier     float64 `mapstructure:"atr_stop_multiplier"`
	TakeProfitThreshold   float64 `mapstructure:"take_profit_threshold"`
	RSIOversold           float64 `mapstructure:"rsi_oversold"`
	RSIOverbought         float64 `mapstructure:"rsi_overbought"`
	FearGreedBuyThreshold float64 `mapstructure:"fear_greed_buy_threshold"`
	SwingBuyFraction      float64 `mapstructure:"swing_buy_fraction"`
	DCABuyFraction        float64 `mapstructure:"dca_buy_fraction"`
}

type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	PeriodsPerYear int     `mapstructure:"periods_per_year"`
	RiskFreeRate   float64 `mapstructure:"risk_free_rate"`
}

type FeedConfig struct {
	Source    string          `mapstructure:"source"` // "csv", "binance" or "okx"
	CSVPath   string          `mapstructure:"csv_path"`
	Symbol    string          `mapstructure:"symbol"`
	Interval  string          `mapstructure:"interval"`
	BaseURL   string          `mapstructure:"base_url"` // exchange endpoint override, empty for production
	FearGreed FearGreedConfig `mapstructure:"fear_greed"`
}

type FearGreedConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	CachePath string `mapstructure:"cache_path"`
	BaseURL   string `mapstructure:"base_url"`
}

type PredictorConfig struct {
	Kind   string `mapstructure:"kind"` // "trend" or "none"
	Window int    `mapstructure:"window"`
}

type CriteriaConfig struct {
	Rules []string `mapstructure:"rules"`
}

type NotifierConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	URL      string `mapstructure:"url"`
	// Email notifier fields
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	// Webhook notifier fields
	Headers map[string]string `mapstructure:"headers"`
}

type RouterConfig struct {
	CooldownMinutes int      `mapstructure:"cooldown_minutes"`
	MinNotional     float64  `mapstructure:"min_notional"`
	EnabledEvents   []string `mapstructure:"enabled_events"`
}

type StorageConfig struct {
	Hot  HotStorageConfig  `mapstructure:"hot"`
	Cold ColdStorageConfig `mapstructure:"cold"`
}

// HotStorageConfig configures the run-history store.
type HotStorageConfig struct {
	Driver        string `mapstructure:"driver"` // "memory" or "sqlite"
	DSN           string `mapstructure:"dsn"`    // sqlite file path
	RetentionDays int    `mapstructure:"retention_days"`
}

// ColdStorageConfig configures the report archive.
type ColdStorageConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type AdvisorConfig struct {
	Provider string       `mapstructure:"provider"`
	Claude   ClaudeConfig `mapstructure:"claude"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	Ollama   OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Mode        string `mapstructure:"mode"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Strategy: StrategyConfig{
			CircuitBreakerRatio:   0.75,
			ATRStopMultiplier:     2.0,
			TakeProfitThreshold:   0.15,
			RSIOversold:           30,
			RSIOverbought:         70,
			FearGreedBuyThreshold: 40,
			SwingBuyFraction:      0.10,
			DCABuyFraction:        0.10,
		},
		Backtest: BacktestConfig{
			InitialCapital: 10000,
			PeriodsPerYear: 252,
			RiskFreeRate:   0.02,
		},
		Feed: FeedConfig{
			Source:   "csv",
			Symbol:   "BTCUSDT",
			Interval: "1d",
			FearGreed: FearGreedConfig{
				Enabled:   true,
				CachePath: "data/fear_greed.csv",
			},
		},
		Predictor: PredictorConfig{
			Kind:   "trend",
			Window: 20,
		},
		Criteria: CriteriaConfig{
			Rules: []string{
				"total_return > 0",
				"sharpe > 0.5",
				"max_drawdown > -0.30",
				"win_rate >= 0.5",
			},
		},
		Router: RouterConfig{
			CooldownMinutes: 0,
			MinNotional:     0,
			EnabledEvents:   []string{"trade", "report", "criteria_failed"},
		},
		Storage: StorageConfig{
			Hot: HotStorageConfig{
				Driver:        "memory",
				RetentionDays: 90,
			},
			Cold: ColdStorageConfig{
				Type: "localfs",
				Path: "data/reports",
			},
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Mode:        "release",
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	s := c.Strategy
	if s.CircuitBreakerRatio <= 0 || s.CircuitBreakerRatio >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("circuit_breaker_ratio must be in (0,1), got %f", s.CircuitBreakerRatio))
	}
	if s.ATRStopMultiplier < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("atr_stop_multiplier cannot be negative, got %f", s.ATRStopMultiplier))
	}
	if s.TakeProfitThreshold <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("take_profit_threshold must be positive, got %f", s.TakeProfitThreshold))
	}
	if s.RSIOversold < 0 || s.RSIOversold > 100 || s.RSIOverbought < 0 || s.RSIOverbought > 100 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("rsi thresholds must be in [0,100], got oversold %f overbought %f", s.RSIOversold, s.RSIOverbought))
	}
	if s.RSIOversold >= s.RSIOverbought {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("rsi_oversold %f must be below rsi_overbought %f", s.RSIOversold, s.RSIOverbought))
	}
	if s.FearGreedBuyThreshold < 0 || s.FearGreedBuyThreshold > 100 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fear_greed_buy_threshold must be in [0,100], got %f", s.FearGreedBuyThreshold))
	}
	if s.SwingBuyFraction <= 0 || s.SwingBuyFraction > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("swing_buy_fraction must be in (0,1], got %f", s.SwingBuyFraction))
	}
	if s.DCABuyFraction <= 0 || s.DCABuyFraction > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("dca_buy_fraction must be in (0,1], got %f", s.DCABuyFraction))
	}

	if c.Backtest.InitialCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %f", c.Backtest.InitialCapital))
	}
	if c.Backtest.PeriodsPerYear <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("periods_per_year must be positive, got %d", c.Backtest.PeriodsPerYear))
	}

	switch c.Feed.Source {
	case "csv", "binance", "okx":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown feed source %q", c.Feed.Source))
	}

	switch c.Predictor.Kind {
	case "trend", "none", "":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown predictor kind %q", c.Predictor.Kind))
	}
	if c.Predictor.Kind == "trend" && c.Predictor.Window < 3 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("predictor window must be at least 3, got %d", c.Predictor.Window))
	}

	if c.Router.CooldownMinutes < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cooldown_minutes cannot be negative, got %d", c.Router.CooldownMinutes))
	}
	if c.Router.MinNotional < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_notional cannot be negative, got %f", c.Router.MinNotional))
	}

	switch c.Storage.Hot.Driver {
	case "memory", "sqlite", "":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown run store driver %q", c.Storage.Hot.Driver))
	}
	if c.Storage.Hot.Driver == "sqlite" && c.Storage.Hot.DSN == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("storage.hot.dsn required when driver is sqlite"))
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	// Advisor validation - if provider set, check config exists
	if c.Advisor.Provider != "" {
		switch c.Advisor.Provider {
		case "claude":
			if c.Advisor.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.Advisor.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		case "ollama":
			if c.Advisor.Ollama.Endpoint == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("ollama endpoint required when provider is ollama"))
			}
		}
	}

	return nil
}

// strategyParams maps override names to strategy fields. Shared by
// SetStrategyParam and Digest so the two stay in sync.
func (s *StrategyConfig) strategyParams() map[string]*float64 {
	return map[string]*float64{
		"circuit_breaker_ratio":    &s.CircuitBreakerRatio,
		"atr_stop_multiplier":      &s.ATRStopMultiplier,
		"take_profit_threshold":    &s.TakeProfitThreshold,
		"rsi_oversold":             &s.RSIOversold,
		"rsi_overbought":           &s.RSIOverbought,
		"fear_greed_buy_threshold": &s.FearGreedBuyThreshold,
		"swing_buy_fraction":       &s.SwingBuyFraction,
		"dca_buy_fraction":         &s.DCABuyFraction,
	}
}

// SetStrategyParam overrides a single threshold by its config name.
// Used by parameter sweeps.
func (c *Config) SetStrategyParam(name string, value float64) error {
	p, ok := c.Strategy.strategyParams()[name]
	if !ok {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown strategy parameter %q", name))
	}
	*p = value
	return nil
}

// StrategyParamNames returns the valid sweep parameter names, sorted.
func StrategyParamNames() []string {
	var s StrategyConfig
	params := s.strategyParams()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Digest returns a short hash of the strategy and backtest parameters,
// stored with run records so runs with identical settings can be
// recognized.
func (c *Config) Digest() string {
	var b strings.Builder
	params := c.Strategy.strategyParams()
	for _, name := range StrategyParamNames() {
		fmt.Fprintf(&b, "%s=%v;", name, *params[name])
	}
	fmt.Fprintf(&b, "initial_capital=%v;periods_per_year=%d;risk_free_rate=%v",
		c.Backtest.InitialCapital, c.Backtest.PeriodsPerYear, c.Backtest.RiskFreeRate)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}
