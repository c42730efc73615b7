package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/metrics"
)

// Dataset holds the buckets and signals the query surface and the backtester
// read. It is constructed once and injected; Reload replaces the contents
// atomically.
type Dataset struct {
	buckets domain.BucketStore
	signals domain.SignalStore
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu         sync.RWMutex
	bucketData []domain.TimeBucket
	signalData []domain.Signal
	loadedAt   time.Time
	version    string
}

// NewDataset creates an empty Dataset. Call Reload before serving reads.
func NewDataset(
	buckets domain.BucketStore,
	signals domain.SignalStore,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Dataset {
	return &Dataset{
		buckets: buckets,
		signals: signals,
		clock:   clk,
		metrics: m,
		logger:  logger.With(slog.String("component", "dataset")),
	}
}

// Reload reads every bucket and signal from the stores and swaps them in.
// On error the previous contents are kept.
func (d *Dataset) Reload(ctx context.Context) error {
	buckets, err := d.buckets.ListRange(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("dataset: load buckets: %w", err)
	}
	signals, err := d.signals.ListRange(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("dataset: load signals: %w", err)
	}

	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].BucketStart.Before(buckets[j].BucketStart) })
	sort.SliceStable(signals, func(i, j int) bool { return signals[i].Timestamp < signals[j].Timestamp })
	version := fingerprint(signals)
	now := d.clock.Now().UTC()

	d.mu.Lock()
	d.bucketData = buckets
	d.signalData = signals
	d.loadedAt = now
	d.version = version
	d.mu.Unlock()

	d.metrics.DatasetBuckets.Set(float64(len(buckets)))
	d.metrics.DatasetSignals.Set(float64(len(signals)))
	d.logger.InfoContext(ctx, "dataset reloaded",
		slog.Int("buckets", len(buckets)),
		slog.Int("signals", len(signals)),
		slog.String("version", version),
	)
	return nil
}

// Buckets returns a copy of the buckets whose start lies in [start, end].
// A zero bound is open.
func (d *Dataset) Buckets(start, end time.Time) []domain.TimeBucket {
	d.mu.RLock()
	defer d.mu.RUnlock()

	lo, hi := 0, len(d.bucketData)
	if !start.IsZero() {
		lo = sort.Search(len(d.bucketData), func(i int) bool { return !d.bucketData[i].BucketStart.Before(start) })
	}
	if !end.IsZero() {
		hi = sort.Search(len(d.bucketData), func(i int) bool { return d.bucketData[i].BucketStart.After(end) })
	}
	if lo >= hi {
		return []domain.TimeBucket{}
	}
	out := make([]domain.TimeBucket, hi-lo)
	copy(out, d.bucketData[lo:hi])
	return out
}

// Signals returns a copy of the signals whose bucket lies in [start, end].
// A zero bound is open.
func (d *Dataset) Signals(start, end time.Time) []domain.Signal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.signalRange(start, end)
}

// Snapshot returns the signals in [start, end] together with the version they
// were read under.
func (d *Dataset) Snapshot(start, end time.Time) ([]domain.Signal, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.signalRange(start, end), d.version
}

// signalRange must be called with mu held.
func (d *Dataset) signalRange(start, end time.Time) []domain.Signal {
	lo, hi := 0, len(d.signalData)
	if !start.IsZero() {
		from := start.Unix()
		lo = sort.Search(len(d.signalData), func(i int) bool { return d.signalData[i].Timestamp >= from })
	}
	if !end.IsZero() {
		to := end.Unix()
		hi = sort.Search(len(d.signalData), func(i int) bool { return d.signalData[i].Timestamp > to })
	}
	if lo >= hi {
		return []domain.Signal{}
	}
	out := make([]domain.Signal, hi-lo)
	copy(out, d.signalData[lo:hi])
	return out
}

// LoadedAt returns when Reload last succeeded, or the zero time.
func (d *Dataset) LoadedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loadedAt
}

// Version identifies the loaded signal set. Equal signal sets in different
// processes share a version, so it can key shared caches.
func (d *Dataset) Version() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// fingerprint hashes the fields of each signal that the simulator reads.
func fingerprint(signals []domain.Signal) string {
	h := sha256.New()
	var buf [8]byte
	putFloat := func(v float64) {
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, s := range signals {
		h.Write([]byte(s.ID))
		binary.BigEndian.PutUint64(buf[:], uint64(s.Timestamp))
		h.Write(buf[:])
		z, ok := s.AbsZScore()
		if !ok {
			z = math.NaN()
		}
		putFloat(z)
		putFloat(s.PriceDifference)
		putFloat(s.CexClosePrice)
		h.Write([]byte(s.Direction))
	}
	return hex.EncodeToString(h.Sum(nil)[:12])
}

// ValidateRange rejects a range whose start is after its end.
func ValidateRange(start, end time.Time) error {
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf("start %s after end %s: %w",
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339), domain.ErrInvalidRange)
	}
	return nil
}
