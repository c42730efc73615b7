package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/config"
	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/metrics"
)

type memStore struct {
	buckets []domain.TimeBucket
	swaps   []domain.SwapEvent
	signals []domain.Signal
	merges  int
}

func (m *memStore) ListRange(context.Context, domain.ListOpts) ([]domain.TimeBucket, error) {
	return m.buckets, nil
}

func (m *memStore) Merge(context.Context, time.Duration, string, string) (int64, error) {
	m.merges++
	return int64(len(m.buckets)), nil
}

type memSwaps struct{ m *memStore }

func (s memSwaps) ListRange(context.Context, domain.ListOpts) ([]domain.SwapEvent, error) {
	return s.m.swaps, nil
}

type memSignals struct{ m *memStore }

func (s memSignals) Replace(_ context.Context, signals []domain.Signal) error {
	s.m.signals = signals
	return nil
}

func (s memSignals) ListRange(context.Context, domain.ListOpts) ([]domain.Signal, error) {
	return s.m.signals, nil
}

func (s memSignals) Count(context.Context) (int64, error) { return int64(len(s.m.signals)), nil }

type nopAudit struct{}

func (nopAudit) Log(context.Context, string, map[string]any) error { return nil }
func (nopAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (domain.BacktestResult, error) {
	return domain.BacktestResult{}, domain.ErrNotFound
}
func (nopCache) Set(context.Context, string, domain.BacktestResult) error { return nil }

type nopLocks struct{}

func (nopLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

type nopBus struct{}

func (nopBus) Publish(context.Context, string, []byte) error      { return nil }
func (nopBus) StreamAppend(context.Context, string, []byte) error { return nil }
func (nopBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func newTestApp(t *testing.T, mode string) (*App, *Dependencies, *memStore, *bytes.Buffer) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Mode = mode
	cfg.Analysis.ProfitThresholdUSDT = 10
	cfg.Backtest.DefaultZThreshold = 1
	cfg.Backtest.DefaultTradeSize = 10000
	cfg.Backtest.FixedGasEstimate = 5

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &memStore{}
	deps := &Dependencies{
		BucketStore:   store,
		SwapStore:     memSwaps{store},
		SignalStore:   memSignals{store},
		AuditStore:    nopAudit{},
		BacktestCache: nopCache{},
		LockManager:   nopLocks{},
		SignalBus:     nopBus{},
		Clock:         clock.NewMock(),
		Metrics:       metrics.New(prometheus.NewRegistry()),
	}
	buildServices(deps, &cfg, logger)

	var out bytes.Buffer
	a := New(&cfg, logger)
	a.stdout = &out
	return a, deps, store, &out
}

func seed(store *memStore) {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	store.buckets = []domain.TimeBucket{{
		BucketStart:         start,
		DexSwapCount:        1,
		DexTotalVolumeBase:  2,
		DexTotalVolumeQuote: 6100,
		DexAvgPrice:         3050,
		DexPriceStdDev:      5,
		CexClose:            3000,
		CexVolume:           120,
		CexQuoteVolume:      1e12,
	}}
	store.swaps = []domain.SwapEvent{{
		ID: "s", Timestamp: start.Add(time.Second), GasUsed: 21000, GasPrice: 20_000_000_000,
	}}
}

func TestAnalyzeThenBacktest(t *testing.T) {
	a, deps, store, out := newTestApp(t, "analyze")
	seed(store)
	ctx := context.Background()

	require.NoError(t, a.runMode(ctx, deps))
	require.Len(t, store.signals, 1)

	a.cfg.Mode = "backtest"
	require.NoError(t, a.runMode(ctx, deps))

	var summary backtestSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalTrades)
	assert.Equal(t, 10000.0, summary.TradeSize)
	// 10000 * 50/3000 - (10000 * 0.004 + 5)
	assert.InDelta(t, 121.6667, summary.TotalProfit, 1e-3)
	assert.InDelta(t, 10121.6667, summary.FinalEquity, 1e-3)
}

func TestMergeMode(t *testing.T) {
	a, deps, store, _ := newTestApp(t, "merge")
	require.NoError(t, a.runMode(context.Background(), deps))
	assert.Equal(t, 1, store.merges)
}

func TestUnsupportedMode(t *testing.T) {
	a, deps, _, _ := newTestApp(t, "trade")
	assert.ErrorContains(t, a.runMode(context.Background(), deps), `unsupported mode "trade"`)
}

func TestNeedsS3(t *testing.T) {
	assert.True(t, needsS3("server"))
	assert.True(t, needsS3("full"))
	assert.False(t, needsS3("analyze"))
	assert.False(t, needsS3("backtest"))
}
