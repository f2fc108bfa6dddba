package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the complete trader configuration.
type Config struct {
	Trader  TraderConfig  `yaml:"trader"`
	Risk    RiskConfig    `yaml:"risk"`
	Signal  SignalConfig  `yaml:"signal"`
	Venue   VenueConfig   `yaml:"venue"`
	Notify  NotifyConfig  `yaml:"notify"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// TraderConfig controls the cycle driver and the execution manager.
type TraderConfig struct {
	IntervalSeconds     int      `yaml:"interval_seconds"`
	MakerTickOffset     int      `yaml:"maker_tick_offset"`     // cents inside the spread
	MinSpreadCents      int      `yaml:"min_spread_cents"`      // skip maker pricing below this
	BatchThreshold      int      `yaml:"batch_threshold"`       // batch submissions at or above this many tickers
	PriceToleranceCents int      `yaml:"price_tolerance_cents"` // dual-source disagreement tolerance
	RequestTimeoutSecs  int      `yaml:"request_timeout_seconds"`
	SpreadProbPerPoint  float64  `yaml:"spread_probability_per_point"`
	Markets             []string `yaml:"markets"` // tickers evaluated each cycle
}

// RiskConfig holds the hard money-safety limits. These gates run before any
// order regardless of how good a prediction looks.
type RiskConfig struct {
	SpendCap           string   `yaml:"spend_cap"` // currency units per window
	SpendWindowSeconds int      `yaml:"spend_window_seconds"`
	MaxOpenTrades      int      `yaml:"max_open_trades"`
	AllowedOrigins     []string `yaml:"allowed_execution_origins"`
	Environment        string   `yaml:"environment"` // demo | live, default demo
	StakePerTrade      string   `yaml:"stake_per_trade"`
}

// SignalConfig exposes the detector constants. The defaults were observed in
// US sports markets and are not assumed calibrated for other domains.
type SignalConfig struct {
	PublicMoneyThreshold float64 `yaml:"public_money_threshold"`
	FreezeMaxLineMove    float64 `yaml:"freeze_max_line_move"`
	StableConfidence     float64 `yaml:"stable_confidence"`
	FreezeConfidence     float64 `yaml:"freeze_confidence"`
	ReverseConfidence    float64 `yaml:"reverse_confidence"`
	ChaosPenaltyWeight   float64 `yaml:"chaos_penalty_weight"`
	HighConfidenceNotify float64 `yaml:"high_confidence_notify"`
	MinConfidence        float64 `yaml:"min_confidence"` // picks below this never reach the risk gate
	MinEdge              float64 `yaml:"min_edge"`       // minimum fair-vs-implied edge to act on
}

// VenueConfig contains the exchange endpoints and the account-wide rate tier.
type VenueConfig struct {
	APIBase          string  `yaml:"api_base"`
	FeedURL          string  `yaml:"feed_url"` // streaming second price source
	RateLimitPerSec  float64 `yaml:"rate_limit_requests_per_second"`
	RateLimitBurst   int     `yaml:"rate_limit_burst"`
	BookCacheSeconds int     `yaml:"book_cache_seconds"`
}

// NotifyConfig controls the high-confidence push channel.
type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
}

// StorageConfig controls where the trade ledger is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // listen address for /metrics, "off" disables
}

// Load reads the YAML config file and the .env file if present.
// Values from the environment override the YAML for the keys that apply.
func Load(path string) (*Config, error) {
	// Load .env if present (error silenced when there is no file)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// CycleInterval returns the cycle interval as a time.Duration.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Trader.IntervalSeconds) * time.Second
}

// SpendWindow returns the sliding spend window as a time.Duration.
func (c *Config) SpendWindow() time.Duration {
	return time.Duration(c.Risk.SpendWindowSeconds) * time.Second
}

// SpendCap returns the parsed spend cap. The string was validated in Load.
func (c *Config) SpendCap() decimal.Decimal {
	d, _ := decimal.NewFromString(c.Risk.SpendCap)
	return d
}

// StakePerTrade returns the parsed per-trade stake.
func (c *Config) StakePerTrade() decimal.Decimal {
	d, _ := decimal.NewFromString(c.Risk.StakePerTrade)
	return d
}

// IsLive reports whether real-money execution was explicitly opted into.
func (c *Config) IsLive() bool {
	return c.Risk.Environment == "live"
}

// applyEnvOverrides overrides values with environment variables when present.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("TRADER_ENVIRONMENT"); v != "" {
		cfg.Risk.Environment = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Notify.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.TelegramChatID = v
	}
	if v := os.Getenv("VENUE_API_BASE"); v != "" {
		cfg.Venue.APIBase = v
	}
	if v := os.Getenv("VENUE_FEED_URL"); v != "" {
		cfg.Venue.FeedURL = v
	}
}

// setDefaults ensures required values have sensible defaults.
func setDefaults(cfg *Config) {
	if cfg.Trader.IntervalSeconds <= 0 {
		cfg.Trader.IntervalSeconds = 60
	}
	if cfg.Trader.MakerTickOffset <= 0 {
		cfg.Trader.MakerTickOffset = 1
	}
	if cfg.Trader.MinSpreadCents <= 0 {
		cfg.Trader.MinSpreadCents = 2
	}
	if cfg.Trader.BatchThreshold <= 0 {
		cfg.Trader.BatchThreshold = 3
	}
	if cfg.Trader.PriceToleranceCents <= 0 {
		cfg.Trader.PriceToleranceCents = 2
	}
	if cfg.Trader.RequestTimeoutSecs <= 0 {
		cfg.Trader.RequestTimeoutSecs = 10
	}
	if cfg.Trader.SpreadProbPerPoint <= 0 {
		cfg.Trader.SpreadProbPerPoint = 0.03
	}
	if cfg.Risk.SpendCap == "" {
		cfg.Risk.SpendCap = "10"
	}
	if cfg.Risk.SpendWindowSeconds <= 0 {
		cfg.Risk.SpendWindowSeconds = 300
	}
	if cfg.Risk.MaxOpenTrades <= 0 {
		cfg.Risk.MaxOpenTrades = 10
	}
	if cfg.Risk.Environment == "" {
		// Live trading is an explicit opt-in, never a fallback.
		cfg.Risk.Environment = "demo"
	}
	if cfg.Risk.StakePerTrade == "" {
		cfg.Risk.StakePerTrade = "5"
	}
	if len(cfg.Risk.AllowedOrigins) == 0 {
		cfg.Risk.AllowedOrigins = []string{"https://demo-api.kalshi.co"}
	}
	if cfg.Signal.PublicMoneyThreshold <= 0 {
		cfg.Signal.PublicMoneyThreshold = 70
	}
	if cfg.Signal.FreezeMaxLineMove <= 0 {
		cfg.Signal.FreezeMaxLineMove = 0.5
	}
	if cfg.Signal.StableConfidence <= 0 {
		cfg.Signal.StableConfidence = 50
	}
	if cfg.Signal.FreezeConfidence <= 0 {
		cfg.Signal.FreezeConfidence = 78
	}
	if cfg.Signal.ReverseConfidence <= 0 {
		cfg.Signal.ReverseConfidence = 92
	}
	if cfg.Signal.ChaosPenaltyWeight <= 0 {
		cfg.Signal.ChaosPenaltyWeight = 0.25
	}
	if cfg.Signal.HighConfidenceNotify <= 0 {
		cfg.Signal.HighConfidenceNotify = 85
	}
	if cfg.Signal.MinConfidence <= 0 {
		cfg.Signal.MinConfidence = 60
	}
	if cfg.Signal.MinEdge <= 0 {
		cfg.Signal.MinEdge = 0.02
	}
	if cfg.Venue.APIBase == "" {
		cfg.Venue.APIBase = "https://demo-api.kalshi.co"
	}
	if cfg.Venue.RateLimitPerSec <= 0 {
		// Basic tier is 10 req/s; stay under it.
		cfg.Venue.RateLimitPerSec = 8
	}
	if cfg.Venue.RateLimitBurst <= 0 {
		cfg.Venue.RateLimitBurst = 4
	}
	if cfg.Venue.BookCacheSeconds <= 0 {
		cfg.Venue.BookCacheSeconds = 5
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "alphabot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":2112"
	}
}

// validate rejects values that cannot be repaired with a default.
func (c *Config) validate() error {
	if _, err := decimal.NewFromString(c.Risk.SpendCap); err != nil {
		return fmt.Errorf("invalid spend_cap %q: %w", c.Risk.SpendCap, err)
	}
	if _, err := decimal.NewFromString(c.Risk.StakePerTrade); err != nil {
		return fmt.Errorf("invalid stake_per_trade %q: %w", c.Risk.StakePerTrade, err)
	}
	switch c.Risk.Environment {
	case "demo", "live":
	default:
		return fmt.Errorf("invalid environment %q: must be demo or live", c.Risk.Environment)
	}
	for _, origin := range c.Risk.AllowedOrigins {
		if !strings.HasPrefix(origin, "https://") && !strings.HasPrefix(origin, "http://") {
			return fmt.Errorf("invalid allowed origin %q: must include scheme", origin)
		}
	}
	return nil
}
