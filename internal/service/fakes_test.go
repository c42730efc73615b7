package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/metrics"
)

var (
	baseTime = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	errBoom  = errors.New("boom")
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// assertMetric scrapes m and checks the exposition contains line.
func assertMetric(t *testing.T, m *metrics.Metrics, line string) {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), line)
}

func zptr(v float64) *float64 { return &v }

type fakeBucketStore struct {
	buckets   []domain.TimeBucket
	listErr   error
	merged    int64
	mergeErr  error
	mergeArgs []any
}

func (f *fakeBucketStore) ListRange(_ context.Context, _ domain.ListOpts) ([]domain.TimeBucket, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.TimeBucket(nil), f.buckets...), nil
}

func (f *fakeBucketStore) Merge(_ context.Context, width time.Duration, pool, symbol string) (int64, error) {
	f.mergeArgs = []any{width, pool, symbol}
	return f.merged, f.mergeErr
}

type fakeSwapStore struct {
	swaps []domain.SwapEvent
}

func (f *fakeSwapStore) ListRange(_ context.Context, _ domain.ListOpts) ([]domain.SwapEvent, error) {
	return append([]domain.SwapEvent(nil), f.swaps...), nil
}

type fakeSignalStore struct {
	mu         sync.Mutex
	signals    []domain.Signal
	replaceErr error
	replaced   int
}

func (f *fakeSignalStore) Replace(_ context.Context, signals []domain.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced++
	f.signals = append([]domain.Signal(nil), signals...)
	return nil
}

func (f *fakeSignalStore) ListRange(_ context.Context, _ domain.ListOpts) ([]domain.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Signal(nil), f.signals...), nil
}

func (f *fakeSignalStore) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.signals)), nil
}

type fakeAuditStore struct {
	events []string
	err    error
}

func (f *fakeAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeBus struct {
	published map[string][][]byte
	streamed  map[string][][]byte
	err       error
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.streamed[stream] = append(f.streamed[stream], payload)
	return nil
}

func (f *fakeBus) StreamRead(_ context.Context, stream string, _ string, count int) ([]domain.StreamMessage, error) {
	var out []domain.StreamMessage
	for i, p := range f.streamed[stream] {
		if count > 0 && len(out) == count {
			break
		}
		out = append(out, domain.StreamMessage{ID: time.Unix(int64(i), 0).Format("150405"), Payload: p})
	}
	return out, nil
}

type fakeLocks struct {
	held     map[string]bool
	acquired int
}

func newFakeLocks() *fakeLocks { return &fakeLocks{held: map[string]bool{}} }

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	f.acquired++
	return func() { delete(f.held, key) }, nil
}

type fakeBacktestCache struct {
	entries map[string]domain.BacktestResult
	getErr  error
	setErr  error
	sets    int
}

func newFakeBacktestCache() *fakeBacktestCache {
	return &fakeBacktestCache{entries: map[string]domain.BacktestResult{}}
}

func (f *fakeBacktestCache) Get(_ context.Context, key string) (domain.BacktestResult, error) {
	if f.getErr != nil {
		return domain.BacktestResult{}, f.getErr
	}
	r, ok := f.entries[key]
	if !ok {
		return domain.BacktestResult{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeBacktestCache) Set(_ context.Context, key string, result domain.BacktestResult) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.sets++
	f.entries[key] = result
	return nil
}
