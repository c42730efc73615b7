package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/arbitrage"
	"github.com/alanyoungcy/arbscan/internal/domain"
)

func profitableBucket(start time.Time) domain.TimeBucket {
	return domain.TimeBucket{
		BucketStart:         start,
		DexSwapCount:        1,
		DexTotalVolumeBase:  2,
		DexTotalVolumeQuote: 6100,
		DexAvgPrice:         3050,
		DexMinPrice:         3050,
		DexMaxPrice:         3050,
		DexPriceStdDev:      0.5,
		CexClose:            3000,
		CexVolume:           120,
		CexQuoteVolume:      1e12,
	}
}

func swapAt(ts time.Time) domain.SwapEvent {
	return domain.SwapEvent{
		ID:           ts.Format(time.RFC3339),
		Timestamp:    ts,
		BaseAmount:   2,
		QuoteAmount:  -6100,
		GasUsed:      21000,
		GasPrice:     20_000_000_000,
		ImpliedPrice: 3050,
	}
}

type analysisFixture struct {
	svc     *AnalysisService
	buckets *fakeBucketStore
	swaps   *fakeSwapStore
	signals *fakeSignalStore
	audit   *fakeAuditStore
	bus     *fakeBus
	locks   *fakeLocks
	dataset *Dataset
	clock   *clock.Mock
}

func newAnalysisFixture() *analysisFixture {
	f := &analysisFixture{
		buckets: &fakeBucketStore{},
		swaps:   &fakeSwapStore{},
		signals: &fakeSignalStore{},
		audit:   &fakeAuditStore{},
		bus:     newFakeBus(),
		locks:   newFakeLocks(),
		clock:   clock.NewMock(),
	}
	f.clock.Set(baseTime.Add(time.Hour))
	m := newMetrics()
	f.dataset = NewDataset(f.buckets, f.signals, f.clock, m, quietLogger())
	detector := arbitrage.NewDetector(arbitrage.DetectorConfig{
		ProfitThreshold: 50,
		DexFeePct:       0.003,
		CexFeePct:       0.001,
		Logger:          quietLogger(),
	})
	f.svc = NewAnalysisService(f.buckets, f.swaps, f.signals, f.audit, f.bus, f.locks,
		detector, f.dataset, f.clock, m,
		AnalysisConfig{PoolAddress: "0xpool", Symbol: "ETHUSDT"}, quietLogger())
	return f
}

func TestAnalysisService_Run(t *testing.T) {
	f := newAnalysisFixture()
	f.buckets.buckets = []domain.TimeBucket{profitableBucket(baseTime), profitableBucket(baseTime.Add(time.Minute))}
	f.swaps.swaps = []domain.SwapEvent{swapAt(baseTime), swapAt(baseTime.Add(time.Minute))}

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.SignalsEmitted)

	require.Len(t, f.signals.signals, 2)
	for _, s := range f.signals.signals {
		assert.Equal(t, f.clock.Now().UTC(), s.CreatedAt)
	}

	require.Len(t, f.bus.published[ChannelSignalsDetected], 1)
	var event DetectionEvent
	require.NoError(t, json.Unmarshal(f.bus.published[ChannelSignalsDetected][0], &event))
	assert.Equal(t, 2, event.SignalsEmitted)
	assert.InDelta(t, 2*74.32, event.TotalNetProfit, 0.05)
	assert.Len(t, f.bus.streamed[StreamSignals], 2)

	assert.Equal(t, []string{"analysis.run"}, f.audit.events)
	assert.Len(t, f.dataset.Signals(time.Time{}, time.Time{}), 2, "dataset reloaded")
	assert.Empty(t, f.locks.held, "lock released")
	assertMetric(t, f.svc.metrics, `arbscan_detection_runs_total{result="ok"} 1`)
	assertMetric(t, f.svc.metrics, "arbscan_signals_emitted_total 2")
}

func TestAnalysisService_InconsistentDataWritesNothing(t *testing.T) {
	f := newAnalysisFixture()
	f.signals.signals = []domain.Signal{{ID: "previous", Timestamp: 1}}
	b := profitableBucket(baseTime)
	b.DexSwapCount = 3
	f.buckets.buckets = []domain.TimeBucket{b}
	f.swaps.swaps = []domain.SwapEvent{swapAt(baseTime)}

	_, err := f.svc.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrDataConsistency)

	assert.Equal(t, 0, f.signals.replaced)
	assert.Equal(t, "previous", f.signals.signals[0].ID)
	assert.Empty(t, f.bus.published)
	assert.Empty(t, f.audit.events)
	assert.Empty(t, f.locks.held)
	assertMetric(t, f.svc.metrics, `arbscan_detection_runs_total{result="inconsistent"} 1`)
}

func TestAnalysisService_LockHeld(t *testing.T) {
	f := newAnalysisFixture()
	f.locks.held[lockAnalysisRun] = true

	_, err := f.svc.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Equal(t, 0, f.signals.replaced)
}

func TestAnalysisService_BusFailureIsNotFatal(t *testing.T) {
	f := newAnalysisFixture()
	f.bus.err = errBoom
	f.audit.err = errBoom
	f.buckets.buckets = []domain.TimeBucket{profitableBucket(baseTime)}
	f.swaps.swaps = []domain.SwapEvent{swapAt(baseTime)}

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SignalsEmitted)
	assert.Len(t, f.signals.signals, 1)
}

func TestAnalysisService_StoreFailureSkipsPublish(t *testing.T) {
	f := newAnalysisFixture()
	f.signals.replaceErr = errBoom
	f.buckets.buckets = []domain.TimeBucket{profitableBucket(baseTime)}
	f.swaps.swaps = []domain.SwapEvent{swapAt(baseTime)}

	_, err := f.svc.Run(context.Background())
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.bus.published)
	assertMetric(t, f.svc.metrics, `arbscan_detection_runs_total{result="error"} 1`)
}

func TestAnalysisService_Merge(t *testing.T) {
	f := newAnalysisFixture()
	f.buckets.merged = 42

	n, err := f.svc.Merge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.Equal(t, []any{time.Minute, "0xpool", "ETHUSDT"}, f.buckets.mergeArgs)
	assert.Equal(t, []string{"analysis.merge"}, f.audit.events)
}

func TestAnalysisService_RecentSignals(t *testing.T) {
	f := newAnalysisFixture()
	f.buckets.buckets = []domain.TimeBucket{profitableBucket(baseTime), profitableBucket(baseTime.Add(time.Minute))}
	f.swaps.swaps = []domain.SwapEvent{swapAt(baseTime), swapAt(baseTime.Add(time.Minute))}
	_, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	msgs, err := f.svc.RecentSignals(context.Background(), "", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var msg SignalMessage
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &msg))
	assert.Equal(t, baseTime.Unix(), msg.Timestamp)
	assert.Equal(t, string(domain.DirectionCexToDex), msg.Direction)
}
