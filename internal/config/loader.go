package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BACKTESTER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BACKTESTER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Data ──
	setStr(&cfg.Data.Source, "BACKTESTER_DATA_SOURCE")
	setStr(&cfg.Data.CSVPath, "BACKTESTER_DATA_CSV_PATH")
	setStr(&cfg.Data.Symbol, "BACKTESTER_DATA_SYMBOL")
	setStr(&cfg.Data.WSURL, "BACKTESTER_DATA_WS_URL")

	// ── Backtest ──
	setFloat64(&cfg.Backtest.StartingCash, "BACKTESTER_BACKTEST_STARTING_CASH")
	setInt(&cfg.Backtest.BarsPerDay, "BACKTESTER_BACKTEST_BARS_PER_DAY")
	setInt(&cfg.Backtest.DaysPerYear, "BACKTESTER_BACKTEST_DAYS_PER_YEAR")
	setStr(&cfg.Backtest.OrderLogPath, "BACKTESTER_BACKTEST_ORDER_LOG_PATH")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxNotional, "BACKTESTER_RISK_MAX_NOTIONAL")
	setInt64(&cfg.Risk.MaxPosition, "BACKTESTER_RISK_MAX_POSITION")
	setInt(&cfg.Risk.MaxOrdersPerMin, "BACKTESTER_RISK_MAX_ORDERS_PER_MIN")

	// ── Matching ──
	setStr(&cfg.Matching.Mode, "BACKTESTER_MATCHING_MODE")
	setInt64(&cfg.Matching.Seed, "BACKTESTER_MATCHING_SEED")

	// ── Strategy ──
	setStr(&cfg.Strategy.Name, "BACKTESTER_STRATEGY_NAME")
	setInt64(&cfg.Strategy.Units, "BACKTESTER_STRATEGY_UNITS")
	setStringSlice(&cfg.Strategy.Active, "BACKTESTER_STRATEGY_ACTIVE")
	setInt(&cfg.Strategy.MACrossover.Fast, "BACKTESTER_STRATEGY_MA_CROSSOVER_FAST")
	setInt(&cfg.Strategy.MACrossover.Slow, "BACKTESTER_STRATEGY_MA_CROSSOVER_SLOW")
	setInt(&cfg.Strategy.RSIReversion.Period, "BACKTESTER_STRATEGY_RSI_REVERSION_PERIOD")
	setFloat64(&cfg.Strategy.RSIReversion.Oversold, "BACKTESTER_STRATEGY_RSI_REVERSION_OVERSOLD")
	setFloat64(&cfg.Strategy.RSIReversion.Overbought, "BACKTESTER_STRATEGY_RSI_REVERSION_OVERBOUGHT")
	setInt(&cfg.Strategy.Breakout.Lookback, "BACKTESTER_STRATEGY_BREAKOUT_LOOKBACK")
	setFloat64(&cfg.Strategy.Breakout.BreakoutPct, "BACKTESTER_STRATEGY_BREAKOUT_BREAKOUT_PCT")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "BACKTESTER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "BACKTESTER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BACKTESTER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BACKTESTER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BACKTESTER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BACKTESTER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BACKTESTER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BACKTESTER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BACKTESTER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BACKTESTER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BACKTESTER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BACKTESTER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BACKTESTER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BACKTESTER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BACKTESTER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BACKTESTER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BACKTESTER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BACKTESTER_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "BACKTESTER_REDIS_CACHE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BACKTESTER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BACKTESTER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BACKTESTER_S3_REGION")
	setStr(&cfg.S3.Bucket, "BACKTESTER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BACKTESTER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BACKTESTER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BACKTESTER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BACKTESTER_S3_FORCE_PATH_STYLE")

	// ── Results ──
	setBool(&cfg.Results.Persist, "BACKTESTER_RESULTS_PERSIST")
	setBool(&cfg.Results.Archive, "BACKTESTER_RESULTS_ARCHIVE")

	// ── Replay ──
	setStr(&cfg.Replay.Addr, "BACKTESTER_REPLAY_ADDR")
	setDuration(&cfg.Replay.TickInterval, "BACKTESTER_REPLAY_TICK_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.Mode, "BACKTESTER_MODE")
	setStr(&cfg.LogLevel, "BACKTESTER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
