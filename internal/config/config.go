package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the AdX agent.
type Config struct {
	Agent      AgentConfig
	Strategy   StrategyConfig
	Estimator  EstimatorConfig
	History    HistoryConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Harness    HarnessConfig
	Log        LogConfig
	Metrics    MetricsConfig
}

// AgentConfig holds game-level parameters.
type AgentConfig struct {
	// Name is the agent identity reported to the game server.
	Name string
	// GameHorizonDays is the length of one simulated game.
	GameHorizonDays int
	// Env selects development or production behaviour (logging).
	Env string
}

// StrategyConfig tunes the campaign bidding strategies.
type StrategyConfig struct {
	// StartupWindowDays is the day range the starting strategy covers.
	StartupWindowDays int
	// GridMin/GridMax/GridStep bound the impression-target search as
	// multiples of contracted reach.
	GridMin  float64
	GridMax  float64
	GridStep float64
	// QualityLearningRate blends current quality with projected
	// delivery fraction when estimating next-day quality.
	QualityLearningRate float64
	// ReservePerImp is the auction's implicit reserve price per
	// impression (the advertiser pays at most this rate).
	ReservePerImp float64
	// FloorPerImp scales the lower clamp on campaign bids.
	FloorPerImp float64
	// TooHighPercentile sets the percentile-based bid ceiling.
	TooHighPercentile float64
	// BidEpsilon nudges clamped bids off their bound.
	BidEpsilon float64
	// UCSInitialBid is the classification-service bid before any
	// service level has been reported.
	UCSInitialBid float64
}

// EstimatorConfig tunes the cost and profit estimators.
type EstimatorConfig struct {
	// ImpressionCostRate is the placeholder per-impression cost.
	ImpressionCostRate float64
	// UCSDailyCost is the placeholder classification-service cost per day.
	UCSDailyCost float64
	// FallbackCPI is the cost-per-impression assumed when no
	// historical record matches a statistics query.
	FallbackCPI float64
	// HistoricDailyIncome is the flat daily-income assumption blended
	// into the quality-effect estimate early in the game.
	HistoricDailyIncome float64
	// MinRecordCost filters near-zero outcome cells out of the
	// impression history.
	MinRecordCost float64
}

// HistoryConfig locates the flat-file stores.
type HistoryConfig struct {
	// Path is the impression-history file.
	Path string
	// CampaignLogPath is the finalized-campaign log file.
	CampaignLogPath string
}

// DatabaseConfig configures the optional Postgres campaign log.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// RedisConfig configures the optional Redis history cache.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// ClickHouseConfig configures the optional analytical archive.
type ClickHouseConfig struct {
	Enabled  bool
	Addr     string
	Database string
	Username string
	Password string
}

// HarnessConfig locates the game server.
type HarnessConfig struct {
	// ServerURL is the websocket endpoint events arrive on.
	ServerURL string
	// DialTimeout bounds the initial connection attempt.
	DialTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
	Port    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Agent: AgentConfig{
			Name:            getEnv("ADX_AGENT_NAME", "adx-agent"),
			GameHorizonDays: getIntEnv("ADX_AGENT_GAME_HORIZON_DAYS", 60),
			Env:             getEnv("ADX_AGENT_ENV", "development"),
		},
		Strategy: StrategyConfig{
			StartupWindowDays:   getIntEnv("ADX_AGENT_STARTUP_WINDOW_DAYS", 5),
			GridMin:             getFloatEnv("ADX_AGENT_GRID_MIN", 0.6),
			GridMax:             getFloatEnv("ADX_AGENT_GRID_MAX", 2.0),
			GridStep:            getFloatEnv("ADX_AGENT_GRID_STEP", 0.02),
			QualityLearningRate: getFloatEnv("ADX_AGENT_QUALITY_LEARNING_RATE", 0.6),
			ReservePerImp:       getFloatEnv("ADX_AGENT_RESERVE_PER_IMP", 0.001),
			FloorPerImp:         getFloatEnv("ADX_AGENT_FLOOR_PER_IMP", 0.0001),
			TooHighPercentile:   getFloatEnv("ADX_AGENT_TOO_HIGH_PERCENTILE", 95),
			BidEpsilon:          getFloatEnv("ADX_AGENT_BID_EPSILON", 0.001),
			UCSInitialBid:       getFloatEnv("ADX_AGENT_UCS_INITIAL_BID", 0.2),
		},
		Estimator: EstimatorConfig{
			ImpressionCostRate:  getFloatEnv("ADX_AGENT_IMPRESSION_COST_RATE", 0.0006),
			UCSDailyCost:        getFloatEnv("ADX_AGENT_UCS_DAILY_COST", 0.15),
			FallbackCPI:         getFloatEnv("ADX_AGENT_FALLBACK_CPI", 0.000005),
			HistoricDailyIncome: getFloatEnv("ADX_AGENT_HISTORIC_DAILY_INCOME", 1.0),
			MinRecordCost:       getFloatEnv("ADX_AGENT_MIN_RECORD_COST", 0.0001),
		},
		History: HistoryConfig{
			Path:            getEnv("ADX_AGENT_HISTORY_PATH", "impression-history.csv"),
			CampaignLogPath: getEnv("ADX_AGENT_CAMPAIGN_LOG_PATH", "campaign-log.csv"),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolEnv("ADX_AGENT_DB_ENABLED", false),
			Host:     getEnv("ADX_AGENT_DB_HOST", "localhost"),
			Port:     getIntEnv("ADX_AGENT_DB_PORT", 5432),
			User:     getEnv("ADX_AGENT_DB_USER", "adxagent"),
			Password: getEnv("ADX_AGENT_DB_PASSWORD", ""),
			DBName:   getEnv("ADX_AGENT_DB_NAME", "adxagent"),
			SSLMode:  getEnv("ADX_AGENT_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("ADX_AGENT_DB_MAX_CONNS", 5),
			MinConns: getIntEnv("ADX_AGENT_DB_MIN_CONNS", 1),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("ADX_AGENT_REDIS_ENABLED", false),
			Addr:     getEnv("ADX_AGENT_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("ADX_AGENT_REDIS_PASSWORD", ""),
			DB:       getIntEnv("ADX_AGENT_REDIS_DB", 0),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:  getBoolEnv("ADX_AGENT_CLICKHOUSE_ENABLED", false),
			Addr:     getEnv("ADX_AGENT_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("ADX_AGENT_CLICKHOUSE_DATABASE", "adxagent"),
			Username: getEnv("ADX_AGENT_CLICKHOUSE_USER", "default"),
			Password: getEnv("ADX_AGENT_CLICKHOUSE_PASSWORD", ""),
		},
		Harness: HarnessConfig{
			ServerURL:   getEnv("ADX_AGENT_SERVER_URL", "ws://localhost:6502/events"),
			DialTimeout: getDurationEnv("ADX_AGENT_DIAL_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("ADX_AGENT_LOG_LEVEL", "info"),
			Format: getEnv("ADX_AGENT_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("ADX_AGENT_METRICS_ENABLED", true),
			Path:    getEnv("ADX_AGENT_METRICS_PATH", "/metrics"),
			Port:    getEnv("ADX_AGENT_METRICS_PORT", "9090"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Strategy.GridMin <= 0 || c.Strategy.GridMax <= c.Strategy.GridMin {
		return fmt.Errorf("grid bounds must satisfy 0 < min < max, got [%g, %g]",
			c.Strategy.GridMin, c.Strategy.GridMax)
	}
	if c.Strategy.GridStep <= 0 {
		return fmt.Errorf("grid step must be positive, got %g", c.Strategy.GridStep)
	}
	if lr := c.Strategy.QualityLearningRate; lr < 0 || lr > 1 {
		return fmt.Errorf("quality learning rate must be in [0, 1], got %g", lr)
	}
	if c.Agent.GameHorizonDays <= 0 {
		return fmt.Errorf("game horizon must be positive, got %d", c.Agent.GameHorizonDays)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Agent.Env == "development"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
