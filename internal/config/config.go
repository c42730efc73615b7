// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBSCAN_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Analysis AnalysisConfig `toml:"analysis"`
	Backtest BacktestConfig `toml:"backtest"`
	Server   ServerConfig   `toml:"server"`
	Export   ExportConfig   `toml:"export"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
	// PoolAddress is the DEX pool whose swaps are merged into buckets.
	PoolAddress string `toml:"pool_address"`
	// Symbol is the CEX spot market the pool is compared against.
	Symbol string `toml:"symbol"`
	// ConnectTimeout bounds the startup retry loop for Postgres and Redis.
	ConnectTimeout duration `toml:"connect_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	StreamMaxLen int64    `toml:"stream_max_len"`
	CacheTTL     duration `toml:"cache_ttl"`
	LockTTL      duration `toml:"lock_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// AnalysisConfig holds the signal detector parameters.
type AnalysisConfig struct {
	ProfitThresholdUSDT float64 `toml:"profit_threshold_usdt"`
	DexFeePct           float64 `toml:"dex_fee_pct"`
	CexFeePct           float64 `toml:"cex_fee_pct"`
	// SlippageDampening is the K in dexQuoteVolume / (cexQuoteVolume * K).
	SlippageDampening float64  `toml:"slippage_dampening"`
	ConfidenceScale   float64  `toml:"confidence_scale"`
	BucketWidth       duration `toml:"bucket_width"`
	// Interval is how often full mode re-runs merge and detection. Zero
	// disables the loop.
	Interval duration `toml:"interval"`
}

// BacktestConfig holds the simulator cost model and request defaults.
type BacktestConfig struct {
	DexFeePct         float64 `toml:"dex_fee_pct"`
	CexFeePct         float64 `toml:"cex_fee_pct"`
	FixedGasEstimate  float64 `toml:"fixed_gas_estimate"`
	StartingCapital   float64 `toml:"starting_capital"`
	DefaultZThreshold float64 `toml:"default_z_threshold"`
	DefaultTradeSize  float64 `toml:"default_trade_size"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is the per-client request budget per RateWindow on the
	// compute endpoints. Zero disables limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// ExportConfig holds signal export parameters.
type ExportConfig struct {
	Prefix        string `toml:"prefix"`
	DefaultFormat string `toml:"default_format"`
	// PartSize switches uploads to multipart above this many bytes.
	PartSize int64 `toml:"part_size"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbscan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 100_000,
			CacheTTL:     duration{10 * time.Minute},
			LockTTL:      duration{5 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbscan-data",
			ForcePathStyle: true,
		},
		Analysis: AnalysisConfig{
			ProfitThresholdUSDT: 50,
			DexFeePct:           0.003,
			CexFeePct:           0.001,
			SlippageDampening:   10,
			ConfidenceScale:     1000,
			BucketWidth:         duration{time.Minute},
			Interval:            duration{15 * time.Minute},
		},
		Backtest: BacktestConfig{
			DexFeePct:         0.003,
			CexFeePct:         0.001,
			FixedGasEstimate:  50,
			StartingCapital:   10000,
			DefaultZThreshold: 2,
			DefaultTradeSize:  10000,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Export: ExportConfig{
			Prefix:        "exports/signals",
			DefaultFormat: "csv",
			PartSize:      16 << 20,
		},
		Mode:           "full",
		LogLevel:       "info",
		PoolAddress:    "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640",
		Symbol:         "ETHUSDT",
		ConnectTimeout: duration{time.Minute},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"analyze":  true,
	"backtest": true,
	"merge":    true,
	"server":   true,
	"full":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validExportFormats = map[string]bool{
	"csv":   true,
	"jsonl": true,
	"json":  true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: analyze, backtest, merge, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// The merge job filters swaps by pool address.
	if c.Mode == "merge" || c.Mode == "full" {
		if !common.IsHexAddress(c.PoolAddress) {
			errs = append(errs, fmt.Sprintf("pool_address %q is not a hex address", c.PoolAddress))
		}
		if c.Symbol == "" {
			errs = append(errs, "symbol must not be empty")
		}
	}
	if c.ConnectTimeout.Duration <= 0 {
		errs = append(errs, "connect_timeout must be > 0")
	}

	// Postgres
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

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}
	if c.Redis.LockTTL.Duration <= 0 {
		errs = append(errs, "redis: lock_ttl must be > 0")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Analysis
	if c.Analysis.DexFeePct < 0 || c.Analysis.CexFeePct < 0 {
		errs = append(errs, "analysis: fee percentages must be >= 0")
	}
	if c.Analysis.SlippageDampening <= 0 {
		errs = append(errs, "analysis: slippage_dampening must be > 0")
	}
	if c.Analysis.ConfidenceScale <= 0 {
		errs = append(errs, "analysis: confidence_scale must be > 0")
	}
	if c.Analysis.BucketWidth.Duration < time.Second {
		errs = append(errs, "analysis: bucket_width must be at least 1s")
	}
	if c.Analysis.Interval.Duration < 0 {
		errs = append(errs, "analysis: interval must be >= 0")
	}

	// Backtest
	if c.Backtest.DexFeePct < 0 || c.Backtest.CexFeePct < 0 {
		errs = append(errs, "backtest: fee percentages must be >= 0")
	}
	if c.Backtest.FixedGasEstimate < 0 {
		errs = append(errs, "backtest: fixed_gas_estimate must be >= 0")
	}
	if c.Backtest.StartingCapital <= 0 {
		errs = append(errs, "backtest: starting_capital must be > 0")
	}
	if c.Backtest.DefaultZThreshold < 0 {
		errs = append(errs, "backtest: default_z_threshold must be >= 0")
	}
	if c.Backtest.DefaultTradeSize <= 0 {
		errs = append(errs, "backtest: default_trade_size must be > 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Export
	if !validExportFormats[c.Export.DefaultFormat] {
		errs = append(errs, fmt.Sprintf("export: unknown default_format %q (valid: csv, jsonl, json)", c.Export.DefaultFormat))
	}
	if strings.TrimSpace(c.Export.Prefix) == "" {
		errs = append(errs, "export: prefix must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
