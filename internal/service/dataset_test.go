package service

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

func TestDataset_ReloadAndRanges(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(baseTime.Add(time.Hour))
	buckets := &fakeBucketStore{buckets: []domain.TimeBucket{
		{BucketStart: baseTime.Add(2 * time.Minute)},
		{BucketStart: baseTime},
		{BucketStart: baseTime.Add(time.Minute)},
	}}
	signals := &fakeSignalStore{signals: testSignals()}
	ds := NewDataset(buckets, signals, clk, newMetrics(), quietLogger())

	assert.True(t, ds.LoadedAt().IsZero())
	assert.Empty(t, ds.Buckets(time.Time{}, time.Time{}))

	require.NoError(t, ds.Reload(context.Background()))
	assert.Equal(t, baseTime.Add(time.Hour), ds.LoadedAt())
	assert.NotEmpty(t, ds.Version())

	all := ds.Buckets(time.Time{}, time.Time{})
	require.Len(t, all, 3)
	assert.Equal(t, baseTime, all[0].BucketStart, "sorted on load")

	mid := ds.Buckets(baseTime.Add(time.Minute), baseTime.Add(time.Minute))
	require.Len(t, mid, 1, "bounds are inclusive")

	assert.Len(t, ds.Signals(baseTime.Add(time.Minute), time.Time{}), 3)
	assert.Empty(t, ds.Signals(baseTime.Add(time.Hour), time.Time{}))
	assertMetric(t, ds.metrics, "arbscan_dataset_buckets 3")
}

func TestDataset_ReturnsCopies(t *testing.T) {
	ds := NewDataset(&fakeBucketStore{}, &fakeSignalStore{signals: testSignals()}, clock.NewMock(), newMetrics(), quietLogger())
	require.NoError(t, ds.Reload(context.Background()))

	got := ds.Signals(time.Time{}, time.Time{})
	got[0].ID = "mutated"
	assert.Equal(t, "a", ds.Signals(time.Time{}, time.Time{})[0].ID)
}

func TestDataset_FailedReloadKeepsContents(t *testing.T) {
	buckets := &fakeBucketStore{buckets: []domain.TimeBucket{{BucketStart: baseTime}}}
	ds := NewDataset(buckets, &fakeSignalStore{}, clock.NewMock(), newMetrics(), quietLogger())
	require.NoError(t, ds.Reload(context.Background()))

	buckets.listErr = errBoom
	require.ErrorIs(t, ds.Reload(context.Background()), errBoom)
	assert.Len(t, ds.Buckets(time.Time{}, time.Time{}), 1)
}

func TestDataset_VersionIsContentAddressed(t *testing.T) {
	a := NewDataset(&fakeBucketStore{}, &fakeSignalStore{signals: testSignals()}, clock.NewMock(), newMetrics(), quietLogger())
	b := NewDataset(&fakeBucketStore{}, &fakeSignalStore{signals: testSignals()}, clock.NewMock(), newMetrics(), quietLogger())
	require.NoError(t, a.Reload(context.Background()))
	require.NoError(t, b.Reload(context.Background()))
	assert.Equal(t, a.Version(), b.Version())

	changed := testSignals()
	changed[0].ZScore = zptr(9)
	c := NewDataset(&fakeBucketStore{}, &fakeSignalStore{signals: changed}, clock.NewMock(), newMetrics(), quietLogger())
	require.NoError(t, c.Reload(context.Background()))
	assert.NotEqual(t, a.Version(), c.Version())
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(time.Time{}, time.Time{}))
	assert.NoError(t, ValidateRange(baseTime, baseTime))
	assert.ErrorIs(t, ValidateRange(baseTime.Add(time.Second), baseTime), domain.ErrInvalidRange)
}
