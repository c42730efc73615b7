package arbitrage

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// Default detector parameters.
const (
	DefaultSlippageDampening = 10.0
	DefaultConfidenceScale   = 1000.0
)

// signalNamespace seeds deterministic signal IDs so that re-running detection
// over the same buckets yields the same IDs.
var signalNamespace = uuid.MustParse("6f1c8a52-3b0e-4d7a-9a41-2f64f0f1d0c3")

// DetectorConfig configures the signal detector.
type DetectorConfig struct {
	// ProfitThreshold is the minimum net profit in quote currency (USDT) a
	// bucket must clear to emit a signal.
	ProfitThreshold float64
	DexFeePct       float64
	CexFeePct       float64
	// SlippageDampening is K in slippage = dexQuoteVolume / (cexQuoteVolume * K).
	SlippageDampening float64
	// ConfidenceScale is the stddev at which confidence decays to 1/e.
	ConfidenceScale float64
	BucketWidth     time.Duration
	Logger          *slog.Logger
}

// Detector scans aligned time buckets and emits a Signal wherever the
// slippage-adjusted cross-venue spread survives fees and gas.
type Detector struct {
	cfg    DetectorConfig
	logger *slog.Logger
}

// NewDetector creates a detector, filling zero-valued tunables with defaults.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.SlippageDampening <= 0 {
		cfg.SlippageDampening = DefaultSlippageDampening
	}
	if cfg.ConfidenceScale <= 0 {
		cfg.ConfidenceScale = DefaultConfidenceScale
	}
	if cfg.BucketWidth <= 0 {
		cfg.BucketWidth = domain.DefaultBucketWidth
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "signal_detector")),
	}
}

// Detect evaluates buckets in order against the swaps grouped under each
// bucket's key. Buckets must be ascending by BucketStart.
//
// A bucket whose declared swap count differs from the swaps found for it
// aborts the whole run with domain.ErrDataConsistency; no partial result is
// returned. Empty input yields no signals and no error.
func (d *Detector) Detect(buckets []domain.TimeBucket, swaps []domain.SwapEvent) ([]domain.Signal, domain.DetectionReport, error) {
	var report domain.DetectionReport
	if len(buckets) == 0 || len(swaps) == 0 {
		return nil, report, nil
	}

	groups := groupSwaps(swaps, d.cfg.BucketWidth)
	var signals []domain.Signal

	for _, b := range buckets {
		report.BucketsScanned++

		if b.DexSwapCount == 0 {
			report.SkippedEmpty++
			continue
		}

		key := b.BucketStart.UTC().Unix()
		group := groups[key]
		if len(group) != b.DexSwapCount {
			return nil, report, fmt.Errorf("arbitrage: bucket %s declares %d swaps, found %d: %w",
				b.BucketStart.UTC().Format(time.RFC3339), b.DexSwapCount, len(group), domain.ErrDataConsistency)
		}
		report.SwapsConsumed += len(group)

		if b.CexQuoteVolume <= 0 || b.CexClose <= 0 {
			report.SkippedNoCexLiquidity++
			d.logger.Debug("bucket has no cex liquidity",
				slog.Time("bucket", b.BucketStart),
				slog.Float64("cex_quote_volume", b.CexQuoteVolume),
			)
			continue
		}

		diff := d.adjustedDifference(b)
		if diff <= 0 {
			report.SkippedNoSpread++
			continue
		}

		gross := math.Abs(diff) * b.DexTotalVolumeBase
		costs := d.accumulateCosts(b, group)
		net := gross - costs.total()

		if net <= d.cfg.ProfitThreshold {
			report.Unprofitable++
			continue
		}

		signals = append(signals, d.newSignal(b, diff, gross, net, costs))
		report.SignalsEmitted++
	}

	d.logger.Debug("detection pass complete",
		slog.Int("buckets", report.BucketsScanned),
		slog.Int("signals", report.SignalsEmitted),
		slog.Int("swaps", report.SwapsConsumed),
	)
	return signals, report, nil
}

// Slippage estimates the price impact of absorbing the bucket's DEX flow on
// the CEX side. Callers must ensure CexQuoteVolume is positive.
func (d *Detector) Slippage(b domain.TimeBucket) float64 {
	return b.DexTotalVolumeQuote / (b.CexQuoteVolume * d.cfg.SlippageDampening)
}

// adjustedDifference charges slippage on the cheaper venue before comparing.
func (d *Detector) adjustedDifference(b domain.TimeBucket) float64 {
	slip := d.Slippage(b)
	if b.DexAvgPrice > b.CexClose {
		return b.DexAvgPrice - (1+slip)*b.CexClose
	}
	return b.CexClose - (1+slip)*b.DexAvgPrice
}

type bucketCosts struct {
	dexFee float64
	cexFee float64
	gas    float64
}

func (c bucketCosts) total() float64 {
	return c.dexFee + c.cexFee + c.gas
}

func (d *Detector) accumulateCosts(b domain.TimeBucket, swaps []domain.SwapEvent) bucketCosts {
	var c bucketCosts
	for _, s := range swaps {
		c.dexFee += math.Abs(s.BaseAmount) * b.DexAvgPrice * d.cfg.DexFeePct
		c.cexFee += math.Abs(s.QuoteAmount) * d.cfg.CexFeePct
		c.gas += GasCostQuote(s.GasUsed, s.GasPrice, b.DexAvgPrice)
	}
	return c
}

func (d *Detector) newSignal(b domain.TimeBucket, diff, gross, net float64, costs bucketCosts) domain.Signal {
	direction := domain.DirectionDexToCex
	if b.DexAvgPrice > b.CexClose {
		direction = domain.DirectionCexToDex
	}

	var z *float64
	if b.DexPriceStdDev != 0 {
		v := diff / b.DexPriceStdDev
		z = &v
	}

	start := b.BucketStart.UTC()
	return domain.Signal{
		ID:              uuid.NewSHA1(signalNamespace, []byte(start.Format(time.RFC3339))).String(),
		TimeBucket:      start,
		Timestamp:       start.Unix(),
		Direction:       direction,
		TradeSize:       b.CexVolume,
		SwapCount:       b.DexSwapCount,
		ZScore:          z,
		GrossProfit:     gross,
		CexFee:          costs.cexFee,
		DexFee:          costs.dexFee,
		GasCost:         costs.gas,
		NetProfit:       net,
		Confidence:      math.Exp(-b.DexPriceStdDev / d.cfg.ConfidenceScale),
		DexAvgPrice:     b.DexAvgPrice,
		CexClosePrice:   b.CexClose,
		PriceDifference: diff,
	}
}

// groupSwaps indexes swaps by the unix second of their bucket start,
// preserving input order inside each bucket.
func groupSwaps(swaps []domain.SwapEvent, width time.Duration) map[int64][]domain.SwapEvent {
	groups := make(map[int64][]domain.SwapEvent)
	for _, s := range swaps {
		key := s.Bucket(width).Unix()
		groups[key] = append(groups[key], s)
	}
	return groups
}
