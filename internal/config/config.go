// Package config defines the top-level configuration for the backtester and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BACKTESTER_* environment
// variables.
type Config struct {
	Data     DataConfig     `toml:"data"`
	Backtest BacktestConfig `toml:"backtest"`
	Risk     RiskConfig     `toml:"risk"`
	Matching MatchingConfig `toml:"matching"`
	Strategy StrategyConfig `toml:"strategy"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Results  ResultsConfig  `toml:"results"`
	Replay   ReplayConfig   `toml:"replay"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DataConfig selects where the bar series comes from.
type DataConfig struct {
	// Source is one of "csv", "postgres", "ws".
	Source  string `toml:"source"`
	CSVPath string `toml:"csv_path"`
	Symbol  string `toml:"symbol"`
	WSURL   string `toml:"ws_url"`
}

// BacktestConfig holds the engine parameters shared by every run.
type BacktestConfig struct {
	StartingCash float64 `toml:"starting_cash"`
	BarsPerDay   int     `toml:"bars_per_day"`
	DaysPerYear  int     `toml:"days_per_year"`
	OrderLogPath string  `toml:"order_log_path"`
}

// RiskConfig holds the order manager's pre-trade limits.
type RiskConfig struct {
	MaxNotional     float64 `toml:"max_notional"`
	MaxPosition     int64   `toml:"max_position"`
	MaxOrdersPerMin int     `toml:"max_orders_per_min"`
}

// MatchingConfig selects the matching outcome policy.
type MatchingConfig struct {
	// Mode is "random" (seeded uniform fill/partial/cancel) or "fill"
	// (deterministic always-filled, for reproducible runs).
	Mode string `toml:"mode"`
	Seed int64  `toml:"seed"`
}

// StrategyConfig selects and parameterizes the strategies.
type StrategyConfig struct {
	Name  string `toml:"name"`
	Units int64  `toml:"units"`
	// Active is the list of strategy names to run concurrently in compare
	// mode. If empty, compare mode falls back to Name alone.
	Active []string `toml:"active"`

	MACrossover  MACrossoverConfig  `toml:"ma_crossover"`
	RSIReversion RSIReversionConfig `toml:"rsi_reversion"`
	Breakout     BreakoutConfig     `toml:"breakout"`
}

// MACrossoverConfig holds config for the ma_crossover strategy.
type MACrossoverConfig struct {
	Fast int `toml:"fast"`
	Slow int `toml:"slow"`
}

// RSIReversionConfig holds config for the rsi_reversion strategy.
type RSIReversionConfig struct {
	Period     int     `toml:"period"`
	Oversold   float64 `toml:"oversold"`
	Overbought float64 `toml:"overbought"`
}

// BreakoutConfig holds config for the breakout strategy.
type BreakoutConfig struct {
	Lookback    int     `toml:"lookback"`
	BreakoutPct float64 `toml:"breakout_pct"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters and series-cache settings.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ResultsConfig controls what happens to a finished run.
type ResultsConfig struct {
	// Persist writes the run record to Postgres (requires postgres.enabled).
	Persist bool `toml:"persist"`
	// Archive uploads the run artifacts to object storage (requires
	// s3.enabled).
	Archive bool `toml:"archive"`
}

// ReplayConfig holds the websocket replay server parameters.
type ReplayConfig struct {
	Addr         string   `toml:"addr"`
	TickInterval duration `toml:"tick_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Data: DataConfig{
			Source:  "csv",
			CSVPath: "data/bars.csv",
			Symbol:  "SPY",
			WSURL:   "ws://localhost:8765/ws",
		},
		Backtest: BacktestConfig{
			StartingCash: 100_000,
			BarsPerDay:   78,
			DaysPerYear:  252,
			OrderLogPath: "results/order_log.csv",
		},
		Risk: RiskConfig{
			MaxNotional:     50_000,
			MaxPosition:     1_000,
			MaxOrdersPerMin: 30,
		},
		Matching: MatchingConfig{
			Mode: "random",
			Seed: 42,
		},
		Strategy: StrategyConfig{
			Name:  "ma_crossover",
			Units: 10,
			MACrossover: MACrossoverConfig{
				Fast: 10,
				Slow: 30,
			},
			RSIReversion: RSIReversionConfig{
				Period:     14,
				Oversold:   30,
				Overbought: 70,
			},
			Breakout: BreakoutConfig{
				Lookback:    20,
				BreakoutPct: 0.01,
			},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "backtester",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			CacheTTL:   duration{30 * time.Minute},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "backtester-runs",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Results: ResultsConfig{
			Persist: false,
			Archive: false,
		},
		Replay: ReplayConfig{
			Addr:         "localhost:8765",
			TickInterval: duration{10 * time.Millisecond},
		},
		Mode:     "backtest",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"backtest": true,
	"compare":  true,
	"import":   true,
	"replay":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSources enumerates the accepted values for DataConfig.Source.
var validSources = map[string]bool{
	"csv":      true,
	"postgres": true,
	"ws":       true,
}

// validStrategies enumerates the selectable strategy names.
var validStrategies = map[string]bool{
	"ma_crossover":  true,
	"rsi_reversion": true,
	"breakout":      true,
}

// validMatchingModes enumerates the accepted values for MatchingConfig.Mode.
var validMatchingModes = map[string]bool{
	"random": true,
	"fill":   true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: backtest, compare, import, replay)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Data
	if !validSources[strings.ToLower(c.Data.Source)] {
		errs = append(errs, fmt.Sprintf("data: unknown source %q (valid: csv, postgres, ws)", c.Data.Source))
	}
	if c.Data.Source == "csv" && c.Data.CSVPath == "" {
		errs = append(errs, "data: csv_path must not be empty when source is csv")
	}
	if c.Data.Source == "ws" && c.Data.WSURL == "" {
		errs = append(errs, "data: ws_url must not be empty when source is ws")
	}
	if c.Data.Source == "postgres" && !c.Postgres.Enabled {
		errs = append(errs, "data: postgres source requires postgres.enabled")
	}
	if c.Data.Symbol == "" {
		errs = append(errs, "data: symbol must not be empty")
	}

	// Backtest
	if c.Backtest.StartingCash <= 0 {
		errs = append(errs, "backtest: starting_cash must be > 0")
	}
	if c.Backtest.BarsPerDay < 1 {
		errs = append(errs, "backtest: bars_per_day must be >= 1")
	}
	if c.Backtest.DaysPerYear < 1 {
		errs = append(errs, "backtest: days_per_year must be >= 1")
	}
	if c.Backtest.OrderLogPath == "" {
		errs = append(errs, "backtest: order_log_path must not be empty")
	}

	// Risk
	if c.Risk.MaxNotional <= 0 {
		errs = append(errs, "risk: max_notional must be > 0")
	}
	if c.Risk.MaxPosition < 1 {
		errs = append(errs, "risk: max_position must be >= 1")
	}
	if c.Risk.MaxOrdersPerMin < 1 {
		errs = append(errs, "risk: max_orders_per_min must be >= 1")
	}

	// Matching
	if !validMatchingModes[strings.ToLower(c.Matching.Mode)] {
		errs = append(errs, fmt.Sprintf("matching: unknown mode %q (valid: random, fill)", c.Matching.Mode))
	}

	// Strategy
	if !validStrategies[c.Strategy.Name] {
		errs = append(errs, fmt.Sprintf("strategy: unknown name %q (valid: ma_crossover, rsi_reversion, breakout)", c.Strategy.Name))
	}
	for _, name := range c.Strategy.Active {
		if !validStrategies[name] {
			errs = append(errs, fmt.Sprintf("strategy: unknown active entry %q", name))
		}
	}
	if c.Strategy.Units < 1 {
		errs = append(errs, "strategy: units must be >= 1")
	}
	if c.Strategy.MACrossover.Fast < 1 || c.Strategy.MACrossover.Slow < 1 {
		errs = append(errs, "strategy: ma_crossover windows must be >= 1")
	}
	if c.Strategy.MACrossover.Fast >= c.Strategy.MACrossover.Slow {
		errs = append(errs, "strategy: ma_crossover fast window must be smaller than slow")
	}
	if c.Strategy.RSIReversion.Period < 1 {
		errs = append(errs, "strategy: rsi_reversion period must be >= 1")
	}
	if c.Strategy.RSIReversion.Oversold >= c.Strategy.RSIReversion.Overbought {
		errs = append(errs, "strategy: rsi_reversion oversold must be below overbought")
	}
	if c.Strategy.Breakout.Lookback < 1 {
		errs = append(errs, "strategy: breakout lookback must be >= 1")
	}
	if c.Strategy.Breakout.BreakoutPct < 0 {
		errs = append(errs, "strategy: breakout breakout_pct must be >= 0")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.CacheTTL.Duration <= 0 {
			errs = append(errs, "redis: cache_ttl must be > 0")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Results
	if c.Results.Persist && !c.Postgres.Enabled {
		errs = append(errs, "results: persist requires postgres.enabled")
	}
	if c.Results.Archive && !c.S3.Enabled {
		errs = append(errs, "results: archive requires s3.enabled")
	}

	// Replay and import modes have extra requirements.
	if c.Mode == "replay" {
		if c.Replay.Addr == "" {
			errs = append(errs, "replay: addr must not be empty for replay mode")
		}
		if c.Replay.TickInterval.Duration < 0 {
			errs = append(errs, "replay: tick_interval must be >= 0")
		}
	}
	if c.Mode == "import" && !c.Postgres.Enabled {
		errs = append(errs, "import mode requires postgres.enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
