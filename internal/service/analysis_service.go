package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/alanyoungcy/arbscan/internal/arbitrage"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/metrics"
)

// Bus channels, streams and lock keys used by the analysis pipeline.
const (
	ChannelSignalsDetected = "signals_detected"
	StreamSignals          = "signals"
	lockAnalysisRun        = "analysis:run"
)

// AnalysisConfig holds the scheduling parameters of the analysis pipeline.
type AnalysisConfig struct {
	BucketWidth time.Duration
	PoolAddress string
	Symbol      string
	LockTTL     time.Duration
}

// DetectionEvent is published on ChannelSignalsDetected after each run.
type DetectionEvent struct {
	RunAt          time.Time `json:"run_at"`
	BucketsScanned int       `json:"buckets_scanned"`
	SignalsEmitted int       `json:"signals_emitted"`
	SwapsConsumed  int       `json:"swaps_consumed"`
	TotalNetProfit float64   `json:"total_net_profit"`
}

// SignalMessage is the stream entry appended for each detected signal.
type SignalMessage struct {
	ID         string   `json:"id"`
	Timestamp  int64    `json:"timestamp"`
	Direction  string   `json:"direction"`
	NetProfit  float64  `json:"net_profit"`
	ZScore     *float64 `json:"z_score"`
	Confidence float64  `json:"confidence"`
}

// AnalysisService runs the detector over the stored buckets and publishes
// the result.
type AnalysisService struct {
	buckets  domain.BucketStore
	swaps    domain.SwapStore
	signals  domain.SignalStore
	audit    domain.AuditStore
	bus      domain.SignalBus
	locks    domain.LockManager
	detector *arbitrage.Detector
	dataset  *Dataset
	clock    clock.Clock
	metrics  *metrics.Metrics
	cfg      AnalysisConfig
	logger   *slog.Logger
}

// NewAnalysisService creates an AnalysisService with all required dependencies.
func NewAnalysisService(
	buckets domain.BucketStore,
	swaps domain.SwapStore,
	signals domain.SignalStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	locks domain.LockManager,
	detector *arbitrage.Detector,
	dataset *Dataset,
	clk clock.Clock,
	m *metrics.Metrics,
	cfg AnalysisConfig,
	logger *slog.Logger,
) *AnalysisService {
	if cfg.BucketWidth <= 0 {
		cfg.BucketWidth = domain.DefaultBucketWidth
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &AnalysisService{
		buckets:  buckets,
		swaps:    swaps,
		signals:  signals,
		audit:    audit,
		bus:      bus,
		locks:    locks,
		detector: detector,
		dataset:  dataset,
		clock:    clk,
		metrics:  m,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run performs one detection pass: load, detect, replace the stored signal
// set, publish, audit and reload the dataset. A consistency failure aborts
// before anything is written. Returns domain.ErrLockHeld when another run is
// in progress.
func (s *AnalysisService) Run(ctx context.Context) (domain.DetectionReport, error) {
	unlock, err := s.locks.Acquire(ctx, lockAnalysisRun, s.cfg.LockTTL)
	if err != nil {
		return domain.DetectionReport{}, fmt.Errorf("analysis_service: run: %w", err)
	}
	defer unlock()

	started := s.clock.Now()
	report, err := s.run(ctx, started)
	s.metrics.DetectionDuration.Observe(s.clock.Since(started).Seconds())
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrDataConsistency) {
			result = "inconsistent"
		}
		s.metrics.DetectionRuns.WithLabelValues(result).Inc()
		return report, err
	}

	s.metrics.DetectionRuns.WithLabelValues("ok").Inc()
	s.metrics.BucketsScanned.Add(float64(report.BucketsScanned))
	s.metrics.SignalsEmitted.Add(float64(report.SignalsEmitted))
	return report, nil
}

func (s *AnalysisService) run(ctx context.Context, started time.Time) (domain.DetectionReport, error) {
	buckets, err := s.buckets.ListRange(ctx, domain.ListOpts{})
	if err != nil {
		return domain.DetectionReport{}, fmt.Errorf("analysis_service: load buckets: %w", err)
	}
	swaps, err := s.swaps.ListRange(ctx, domain.ListOpts{})
	if err != nil {
		return domain.DetectionReport{}, fmt.Errorf("analysis_service: load swaps: %w", err)
	}

	signals, report, err := s.detector.Detect(buckets, swaps)
	if err != nil {
		s.logger.ErrorContext(ctx, "analysis_service: detection aborted",
			slog.Int("buckets", len(buckets)),
			slog.Int("swaps", len(swaps)),
			slog.String("error", err.Error()),
		)
		return report, fmt.Errorf("analysis_service: detect: %w", err)
	}

	createdAt := started.UTC()
	var totalNet float64
	for i := range signals {
		signals[i].CreatedAt = createdAt
		totalNet += signals[i].NetProfit
	}

	if err := s.signals.Replace(ctx, signals); err != nil {
		return report, fmt.Errorf("analysis_service: store signals: %w", err)
	}

	s.publish(ctx, signals, DetectionEvent{
		RunAt:          createdAt,
		BucketsScanned: report.BucketsScanned,
		SignalsEmitted: report.SignalsEmitted,
		SwapsConsumed:  report.SwapsConsumed,
		TotalNetProfit: totalNet,
	})

	if err := s.audit.Log(ctx, "analysis.run", map[string]any{
		"buckets_scanned":  report.BucketsScanned,
		"signals_emitted":  report.SignalsEmitted,
		"swaps_consumed":   report.SwapsConsumed,
		"skipped_empty":    report.SkippedEmpty,
		"unprofitable":     report.Unprofitable,
		"total_net_profit": totalNet,
	}); err != nil {
		s.logger.WarnContext(ctx, "analysis_service: failed to write audit log",
			slog.String("error", err.Error()),
		)
	}

	if err := s.dataset.Reload(ctx); err != nil {
		return report, fmt.Errorf("analysis_service: reload dataset: %w", err)
	}

	s.logger.InfoContext(ctx, "analysis_service: detection complete",
		slog.Int("buckets_scanned", report.BucketsScanned),
		slog.Int("signals_emitted", report.SignalsEmitted),
		slog.Float64("total_net_profit", totalNet),
	)
	return report, nil
}

// publish announces the run and streams each signal. Bus failures are
// non-fatal; the signals are already stored.
func (s *AnalysisService) publish(ctx context.Context, signals []domain.Signal, event DetectionEvent) {
	payload, err := json.Marshal(event)
	if err == nil {
		err = s.bus.Publish(ctx, ChannelSignalsDetected, payload)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "analysis_service: failed to publish detection event",
			slog.String("error", err.Error()),
		)
	}

	for _, sig := range signals {
		msg, err := json.Marshal(SignalMessage{
			ID:         sig.ID,
			Timestamp:  sig.Timestamp,
			Direction:  string(sig.Direction),
			NetProfit:  sig.NetProfit,
			ZScore:     sig.ZScore,
			Confidence: sig.Confidence,
		})
		if err != nil {
			continue
		}
		if err := s.bus.StreamAppend(ctx, StreamSignals, msg); err != nil {
			s.logger.WarnContext(ctx, "analysis_service: failed to stream signal",
				slog.String("signal_id", sig.ID),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// Merge rebuilds the bucket table from raw swaps and klines.
func (s *AnalysisService) Merge(ctx context.Context) (int64, error) {
	unlock, err := s.locks.Acquire(ctx, lockAnalysisRun, s.cfg.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("analysis_service: merge: %w", err)
	}
	defer unlock()

	n, err := s.buckets.Merge(ctx, s.cfg.BucketWidth, s.cfg.PoolAddress, s.cfg.Symbol)
	if err != nil {
		return 0, fmt.Errorf("analysis_service: merge: %w", err)
	}

	if err := s.audit.Log(ctx, "analysis.merge", map[string]any{
		"buckets":      n,
		"bucket_width": s.cfg.BucketWidth.String(),
		"pool_address": s.cfg.PoolAddress,
		"symbol":       s.cfg.Symbol,
	}); err != nil {
		s.logger.WarnContext(ctx, "analysis_service: failed to write audit log",
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "analysis_service: buckets merged",
		slog.Int64("buckets", n),
		slog.String("bucket_width", s.cfg.BucketWidth.String()),
	)
	return n, nil
}

// RecentSignals reads up to count entries from the signal stream after lastID.
func (s *AnalysisService) RecentSignals(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error) {
	if lastID == "" {
		lastID = "0"
	}
	msgs, err := s.bus.StreamRead(ctx, StreamSignals, lastID, count)
	if err != nil {
		return nil, fmt.Errorf("analysis_service: read stream: %w", err)
	}
	return msgs, nil
}
