package arbitrage

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

var baseTime = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDetector(threshold float64) *Detector {
	return NewDetector(DetectorConfig{
		ProfitThreshold: threshold,
		DexFeePct:       0.003,
		CexFeePct:       0.001,
		Logger:          quietLogger(),
	})
}

// scenarioBucket is a bucket with a 50 USDT gap and negligible slippage.
func scenarioBucket(start time.Time) domain.TimeBucket {
	return domain.TimeBucket{
		BucketStart:         start,
		DexSwapCount:        1,
		DexTotalVolumeBase:  2,
		DexTotalVolumeQuote: 6100,
		DexAvgPrice:         3050,
		DexMinPrice:         3050,
		DexMaxPrice:         3050,
		DexPriceStdDev:      0.5,
		CexOpen:             2998,
		CexHigh:             3002,
		CexLow:              2995,
		CexClose:            3000,
		CexVolume:           120,
		CexQuoteVolume:      1e12,
		CexTradeCount:       900,
	}
}

func scenarioSwap(ts time.Time) domain.SwapEvent {
	return domain.SwapEvent{
		ID:           "swap-" + ts.Format(time.RFC3339),
		Timestamp:    ts,
		BaseAmount:   2,
		QuoteAmount:  -6100,
		GasUsed:      21000,
		GasPrice:     20_000_000_000,
		ImpliedPrice: 3050,
	}
}

func TestDetect_ScenarioA(t *testing.T) {
	d := newTestDetector(50)

	signals, report, err := d.Detect(
		[]domain.TimeBucket{scenarioBucket(baseTime)},
		[]domain.SwapEvent{scenarioSwap(baseTime.Add(12 * time.Second))},
	)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	s := signals[0]
	assert.Equal(t, domain.DirectionCexToDex, s.Direction)
	assert.InDelta(t, 50, s.PriceDifference, 1e-3)
	assert.InDelta(t, 100, s.GrossProfit, 1e-2)
	assert.InDelta(t, 18.3, s.DexFee, 1e-9)
	assert.InDelta(t, 6.1, s.CexFee, 1e-9)
	assert.InDelta(t, 1.281, s.GasCost, 1e-9)
	assert.InDelta(t, 74.32, s.NetProfit, 1e-2)
	assert.Equal(t, 1, s.SwapCount)
	assert.Equal(t, 3050.0, s.DexAvgPrice)
	assert.Equal(t, 3000.0, s.CexClosePrice)
	assert.Equal(t, baseTime.Unix(), s.Timestamp)
	assert.Equal(t, 120.0, s.TradeSize)
	require.NotNil(t, s.ZScore)
	assert.InDelta(t, 100, *s.ZScore, 1e-2)
	assert.InDelta(t, math.Exp(-0.5/1000), s.Confidence, 1e-12)
	assert.NotEmpty(t, s.ID)

	assert.Equal(t, 1, report.SignalsEmitted)
	assert.Equal(t, 1, report.SwapsConsumed)
}

func TestDetect_DexToCexDirection(t *testing.T) {
	d := newTestDetector(10)
	b := scenarioBucket(baseTime)
	b.DexAvgPrice = 2950
	b.CexClose = 3000

	signals, _, err := d.Detect([]domain.TimeBucket{b}, []domain.SwapEvent{scenarioSwap(baseTime)})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.DirectionDexToCex, signals[0].Direction)
	assert.Greater(t, signals[0].PriceDifference, 0.0)
}

func TestDetect_EmptyBucketDoesNotConsumeSwaps(t *testing.T) {
	d := newTestDetector(50)
	empty := domain.TimeBucket{BucketStart: baseTime, CexClose: 3000, CexQuoteVolume: 1e9}
	priced := scenarioBucket(baseTime.Add(time.Minute))

	signals, report, err := d.Detect(
		[]domain.TimeBucket{empty, priced},
		[]domain.SwapEvent{scenarioSwap(baseTime.Add(time.Minute + 5*time.Second))},
	)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, priced.BucketStart.Unix(), signals[0].Timestamp)
	assert.Equal(t, 1, report.SkippedEmpty)
	assert.Equal(t, 1, report.SwapsConsumed)
}

func TestDetect_UnprofitableBucketStillConsumesSwaps(t *testing.T) {
	d := newTestDetector(50)
	thin := scenarioBucket(baseTime)
	thin.DexAvgPrice = 3001 // gross ~2, far below costs
	thin.DexSwapCount = 2
	next := scenarioBucket(baseTime.Add(time.Minute))

	swaps := []domain.SwapEvent{
		scenarioSwap(baseTime.Add(1 * time.Second)),
		scenarioSwap(baseTime.Add(2 * time.Second)),
		scenarioSwap(baseTime.Add(time.Minute + time.Second)),
	}

	signals, report, err := d.Detect([]domain.TimeBucket{thin, next}, swaps)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, next.BucketStart.Unix(), signals[0].Timestamp)
	assert.Equal(t, 1, report.Unprofitable)
	assert.Equal(t, 3, report.SwapsConsumed)
}

func TestDetect_NoSpreadAfterSlippage(t *testing.T) {
	d := newTestDetector(0)
	b := scenarioBucket(baseTime)
	// slippage = 6100 / (6100 * 10) = 0.1, which swamps a 50 USDT gap.
	b.CexQuoteVolume = 6100

	signals, report, err := d.Detect([]domain.TimeBucket{b}, []domain.SwapEvent{scenarioSwap(baseTime)})
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Equal(t, 1, report.SkippedNoSpread)
	assert.Equal(t, 1, report.SwapsConsumed)
}

func TestDetect_EqualPricesNeverSignal(t *testing.T) {
	d := newTestDetector(-1e9)
	b := scenarioBucket(baseTime)
	b.DexAvgPrice = 3000

	signals, _, err := d.Detect([]domain.TimeBucket{b}, []domain.SwapEvent{scenarioSwap(baseTime)})
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestDetect_ZeroStdDevGivesNilZScore(t *testing.T) {
	d := newTestDetector(50)
	b := scenarioBucket(baseTime)
	b.DexPriceStdDev = 0

	signals, _, err := d.Detect([]domain.TimeBucket{b}, []domain.SwapEvent{scenarioSwap(baseTime)})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Nil(t, signals[0].ZScore)
	assert.Equal(t, 1.0, signals[0].Confidence)
}

func TestDetect_ZeroCexQuoteVolumeSkipsBucket(t *testing.T) {
	d := newTestDetector(0)
	dry := scenarioBucket(baseTime)
	dry.CexQuoteVolume = 0
	next := scenarioBucket(baseTime.Add(time.Minute))

	signals, report, err := d.Detect(
		[]domain.TimeBucket{dry, next},
		[]domain.SwapEvent{scenarioSwap(baseTime), scenarioSwap(baseTime.Add(time.Minute))},
	)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, next.BucketStart.Unix(), signals[0].Timestamp)
	assert.Equal(t, 1, report.SkippedNoCexLiquidity)
}

func TestDetect_ZeroCexCloseSkipsBucket(t *testing.T) {
	d := newTestDetector(0)
	unpriced := scenarioBucket(baseTime)
	unpriced.CexClose = 0
	next := scenarioBucket(baseTime.Add(time.Minute))

	signals, report, err := d.Detect(
		[]domain.TimeBucket{unpriced, next},
		[]domain.SwapEvent{scenarioSwap(baseTime), scenarioSwap(baseTime.Add(time.Minute))},
	)
	require.NoError(t, err)
	require.Len(t, signals, 1, "a zero close would otherwise read as a 3050 USDT gap")
	assert.Equal(t, next.BucketStart.Unix(), signals[0].Timestamp)
	assert.Equal(t, 1, report.SkippedNoCexLiquidity)
	assert.Equal(t, 2, report.SwapsConsumed)
}

func TestDetect_MissingSwapsAbortsRun(t *testing.T) {
	d := newTestDetector(50)
	first := scenarioBucket(baseTime)
	second := scenarioBucket(baseTime.Add(time.Minute))
	second.DexSwapCount = 2

	signals, _, err := d.Detect(
		[]domain.TimeBucket{first, second},
		[]domain.SwapEvent{scenarioSwap(baseTime), scenarioSwap(baseTime.Add(time.Minute))},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDataConsistency))
	assert.Nil(t, signals, "no partial result on consistency failure")
}

func TestDetect_SurplusSwapsAbortRun(t *testing.T) {
	d := newTestDetector(50)
	_, _, err := d.Detect(
		[]domain.TimeBucket{scenarioBucket(baseTime)},
		[]domain.SwapEvent{scenarioSwap(baseTime), scenarioSwap(baseTime.Add(time.Second))},
	)
	assert.ErrorIs(t, err, domain.ErrDataConsistency)
}

func TestDetect_EmptyInput(t *testing.T) {
	d := newTestDetector(50)

	signals, _, err := d.Detect(nil, []domain.SwapEvent{scenarioSwap(baseTime)})
	require.NoError(t, err)
	assert.Empty(t, signals)

	signals, _, err = d.Detect([]domain.TimeBucket{scenarioBucket(baseTime)}, nil)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestDetect_ExplicitBucketKeyOverridesTimestamp(t *testing.T) {
	d := newTestDetector(50)
	swap := scenarioSwap(baseTime.Add(59*time.Second + 900*time.Millisecond))
	swap.BucketStart = baseTime.Add(time.Minute)

	signals, _, err := d.Detect(
		[]domain.TimeBucket{scenarioBucket(baseTime.Add(time.Minute))},
		[]domain.SwapEvent{swap},
	)
	require.NoError(t, err)
	assert.Len(t, signals, 1)
}

func TestDetect_IsIdempotent(t *testing.T) {
	d := newTestDetector(50)
	buckets := []domain.TimeBucket{scenarioBucket(baseTime), scenarioBucket(baseTime.Add(time.Minute))}
	swaps := []domain.SwapEvent{scenarioSwap(baseTime), scenarioSwap(baseTime.Add(time.Minute))}

	first, _, err := d.Detect(buckets, swaps)
	require.NoError(t, err)
	second, _, err := d.Detect(buckets, swaps)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGasCostQuote(t *testing.T) {
	assert.InDelta(t, 1.281, GasCostQuote(21000, 20_000_000_000, 3050), 1e-12)
	assert.Equal(t, 0.0, GasCostQuote(0, 20_000_000_000, 3050))
	// 30M gas at 1000 gwei overflows uint64 wei arithmetic.
	assert.InDelta(t, 30.0, GasCostQuote(30_000_000, 1_000_000_000_000, 1), 1e-9)
}
