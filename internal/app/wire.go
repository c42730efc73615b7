package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alanyoungcy/arbscan/internal/arbitrage"
	s3blob "github.com/alanyoungcy/arbscan/internal/blob/s3"
	"github.com/alanyoungcy/arbscan/internal/cache/redis"
	"github.com/alanyoungcy/arbscan/internal/config"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/metrics"
	"github.com/alanyoungcy/arbscan/internal/service"
	"github.com/alanyoungcy/arbscan/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	BucketStore domain.BucketStore
	SwapStore   domain.SwapStore
	SignalStore domain.SignalStore
	AuditStore  domain.AuditStore

	// Caches
	BacktestCache domain.BacktestCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus

	// Blob storage, only wired for modes that export.
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	Clock   clock.Clock
	Metrics *metrics.Metrics

	// Services
	Dataset  *service.Dataset
	Analysis *service.AnalysisService
	Backtest *service.BacktestService
	Exports  *service.ExportService
}

// needsS3 returns true for modes that serve the export endpoints.
func needsS3(mode string) bool {
	switch mode {
	case "server", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Clock: clock.New()}
	connectTimeout := cfg.ConnectTimeout.Duration

	// --- PostgreSQL ---
	pgClient, err := postgres.Connect(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	}, connectTimeout, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.BucketStore = postgres.NewBucketStore(pool)
	deps.SwapStore = postgres.NewSwapStore(pool, cfg.PoolAddress)
	deps.SignalStore = postgres.NewSignalStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.Connect(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	}, connectTimeout, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.BacktestCache = redis.NewBacktestCache(redisClient, cfg.Redis.CacheTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)

	// --- S3 blob storage ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			logger.WarnContext(ctx, "wire: s3 bucket not reachable, exports will fail",
				slog.String("bucket", cfg.S3.Bucket),
				slog.String("error", err.Error()),
			)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
	}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = metrics.New(reg)

	buildServices(deps, cfg, logger)
	return deps, cleanup, nil
}

// buildServices constructs the services on top of the wired adapters.
func buildServices(deps *Dependencies, cfg *config.Config, logger *slog.Logger) {
	svcLogger := logger.With(slog.String("component", "service"))

	deps.Dataset = service.NewDataset(deps.BucketStore, deps.SignalStore, deps.Clock, deps.Metrics, logger)

	detector := arbitrage.NewDetector(arbitrage.DetectorConfig{
		ProfitThreshold:   cfg.Analysis.ProfitThresholdUSDT,
		DexFeePct:         cfg.Analysis.DexFeePct,
		CexFeePct:         cfg.Analysis.CexFeePct,
		SlippageDampening: cfg.Analysis.SlippageDampening,
		ConfidenceScale:   cfg.Analysis.ConfidenceScale,
		BucketWidth:       cfg.Analysis.BucketWidth.Duration,
		Logger:            logger,
	})
	deps.Analysis = service.NewAnalysisService(
		deps.BucketStore, deps.SwapStore, deps.SignalStore, deps.AuditStore,
		deps.SignalBus, deps.LockManager, detector, deps.Dataset,
		deps.Clock, deps.Metrics,
		service.AnalysisConfig{
			BucketWidth: cfg.Analysis.BucketWidth.Duration,
			PoolAddress: cfg.PoolAddress,
			Symbol:      cfg.Symbol,
			LockTTL:     cfg.Redis.LockTTL.Duration,
		},
		svcLogger,
	)

	deps.Backtest = service.NewBacktestService(deps.Dataset, deps.BacktestCache, deps.Clock, deps.Metrics,
		service.BacktestConfig{
			Simulator: arbitrage.SimulatorConfig{
				DexFeePct:        cfg.Backtest.DexFeePct,
				CexFeePct:        cfg.Backtest.CexFeePct,
				FixedGasEstimate: cfg.Backtest.FixedGasEstimate,
				StartingCapital:  cfg.Backtest.StartingCapital,
			},
			DefaultZThreshold: cfg.Backtest.DefaultZThreshold,
			DefaultTradeSize:  cfg.Backtest.DefaultTradeSize,
		},
		svcLogger,
	)

	if deps.BlobWriter != nil && deps.BlobReader != nil {
		exporter := s3blob.NewExporter(deps.BlobWriter, cfg.Export.Prefix, cfg.Export.PartSize)
		deps.Exports = service.NewExportService(deps.SignalStore, exporter, deps.BlobReader,
			deps.AuditStore, deps.Clock, deps.Metrics, cfg.Export.DefaultFormat, svcLogger)
	}
}
