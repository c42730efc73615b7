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
// built-in defaults, applies ARBSCAN_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ARBSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBSCAN_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBSCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBSCAN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBSCAN_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBSCAN_REDIS_TLS_ENABLED")
	setInt64(&cfg.Redis.StreamMaxLen, "ARBSCAN_REDIS_STREAM_MAX_LEN")
	setDuration(&cfg.Redis.CacheTTL, "ARBSCAN_REDIS_CACHE_TTL")
	setDuration(&cfg.Redis.LockTTL, "ARBSCAN_REDIS_LOCK_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBSCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBSCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBSCAN_S3_FORCE_PATH_STYLE")

	// ── Analysis ──
	setFloat64(&cfg.Analysis.ProfitThresholdUSDT, "ARBSCAN_ANALYSIS_PROFIT_THRESHOLD_USDT")
	setFloat64(&cfg.Analysis.DexFeePct, "ARBSCAN_ANALYSIS_DEX_FEE_PCT")
	setFloat64(&cfg.Analysis.CexFeePct, "ARBSCAN_ANALYSIS_CEX_FEE_PCT")
	setFloat64(&cfg.Analysis.SlippageDampening, "ARBSCAN_ANALYSIS_SLIPPAGE_DAMPENING")
	setFloat64(&cfg.Analysis.ConfidenceScale, "ARBSCAN_ANALYSIS_CONFIDENCE_SCALE")
	setDuration(&cfg.Analysis.BucketWidth, "ARBSCAN_ANALYSIS_BUCKET_WIDTH")
	setDuration(&cfg.Analysis.Interval, "ARBSCAN_ANALYSIS_INTERVAL")

	// ── Backtest ──
	setFloat64(&cfg.Backtest.DexFeePct, "ARBSCAN_BACKTEST_DEX_FEE_PCT")
	setFloat64(&cfg.Backtest.CexFeePct, "ARBSCAN_BACKTEST_CEX_FEE_PCT")
	setFloat64(&cfg.Backtest.FixedGasEstimate, "ARBSCAN_BACKTEST_FIXED_GAS_ESTIMATE")
	setFloat64(&cfg.Backtest.StartingCapital, "ARBSCAN_BACKTEST_STARTING_CAPITAL")
	setFloat64(&cfg.Backtest.DefaultZThreshold, "ARBSCAN_BACKTEST_DEFAULT_Z_THRESHOLD")
	setFloat64(&cfg.Backtest.DefaultTradeSize, "ARBSCAN_BACKTEST_DEFAULT_TRADE_SIZE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBSCAN_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBSCAN_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBSCAN_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBSCAN_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "ARBSCAN_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "ARBSCAN_SERVER_RATE_WINDOW")

	// ── Export ──
	setStr(&cfg.Export.Prefix, "ARBSCAN_EXPORT_PREFIX")
	setStr(&cfg.Export.DefaultFormat, "ARBSCAN_EXPORT_DEFAULT_FORMAT")
	setInt64(&cfg.Export.PartSize, "ARBSCAN_EXPORT_PART_SIZE")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBSCAN_MODE")
	setStr(&cfg.LogLevel, "ARBSCAN_LOG_LEVEL")
	setStr(&cfg.PoolAddress, "ARBSCAN_POOL_ADDRESS")
	setStr(&cfg.Symbol, "ARBSCAN_SYMBOL")
	setDuration(&cfg.ConnectTimeout, "ARBSCAN_CONNECT_TIMEOUT")
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
