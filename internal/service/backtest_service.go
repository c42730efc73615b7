package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/benbjohnson/clock"

	"github.com/alanyoungcy/arbscan/internal/arbitrage"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/metrics"
)

// BacktestConfig holds the simulator cost model and the request defaults.
type BacktestConfig struct {
	Simulator         arbitrage.SimulatorConfig
	DefaultZThreshold float64
	DefaultTradeSize  float64
}

// BacktestService replays the loaded signals through the simulator, caching
// results by their inputs.
type BacktestService struct {
	dataset   *Dataset
	cache     domain.BacktestCache
	simulator *arbitrage.Simulator
	clock     clock.Clock
	metrics   *metrics.Metrics
	cfg       BacktestConfig
	logger    *slog.Logger
}

// NewBacktestService creates a BacktestService with all required dependencies.
func NewBacktestService(
	dataset *Dataset,
	cache domain.BacktestCache,
	clk clock.Clock,
	m *metrics.Metrics,
	cfg BacktestConfig,
	logger *slog.Logger,
) *BacktestService {
	if cfg.DefaultTradeSize <= 0 {
		cfg.DefaultTradeSize = 1
	}
	return &BacktestService{
		dataset:   dataset,
		cache:     cache,
		simulator: arbitrage.NewSimulator(cfg.Simulator),
		clock:     clk,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
	}
}

// DefaultRequest returns a request over the whole dataset with the configured
// threshold and trade size.
func (s *BacktestService) DefaultRequest() domain.BacktestRequest {
	return domain.BacktestRequest{
		ZThreshold: s.cfg.DefaultZThreshold,
		TradeSize:  s.cfg.DefaultTradeSize,
	}
}

// Run simulates req against the dataset. Cache failures are logged and the
// simulation proceeds uncached.
func (s *BacktestService) Run(ctx context.Context, req domain.BacktestRequest) (domain.BacktestResult, error) {
	if err := ValidateRange(req.Start, req.End); err != nil {
		return domain.BacktestResult{}, fmt.Errorf("backtest_service: %w", err)
	}

	// Signals and version come from one read so a concurrent Reload cannot
	// cache new data under the old key.
	signals, version := s.dataset.Snapshot(req.Start, req.End)
	key := s.cacheKey(version, req)
	cached, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		s.metrics.BacktestRuns.WithLabelValues("hit").Inc()
		return cached, nil
	case !errors.Is(err, domain.ErrNotFound):
		s.logger.WarnContext(ctx, "backtest_service: cache read failed",
			slog.String("error", err.Error()),
		)
	}
	s.metrics.BacktestRuns.WithLabelValues("miss").Inc()

	started := s.clock.Now()
	result := s.simulator.Run(signals, req)
	s.metrics.BacktestDuration.Observe(s.clock.Since(started).Seconds())

	if err := s.cache.Set(ctx, key, result); err != nil {
		s.logger.WarnContext(ctx, "backtest_service: cache write failed",
			slog.String("error", err.Error()),
		)
	}

	s.logger.DebugContext(ctx, "backtest_service: simulation complete",
		slog.Int("trades", result.TotalTrades),
		slog.Float64("total_profit", result.TotalProfit),
		slog.Float64("z_threshold", req.ZThreshold),
	)
	return result, nil
}

// cacheKey hashes every input the result depends on, including the dataset
// version, so a reload never serves stale results.
func (s *BacktestService) cacheKey(version string, req domain.BacktestRequest) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	ts := func(v int64) string { return strconv.FormatInt(v, 10) }

	var start, end int64
	if !req.Start.IsZero() {
		start = req.Start.Unix()
	}
	if !req.End.IsZero() {
		end = req.End.Unix()
	}
	sim := s.cfg.Simulator
	parts := []string{
		version,
		ts(start), ts(end), f(req.ZThreshold), f(req.TradeSize),
		f(sim.DexFeePct), f(sim.CexFeePct), f(sim.FixedGasEstimate), f(sim.StartingCapital),
	}

	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
