package arbitrage

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

func seriesBuckets(n int) []domain.TimeBucket {
	out := make([]domain.TimeBucket, n)
	for i := range out {
		out[i] = domain.TimeBucket{
			BucketStart:        baseTime.Add(time.Duration(i) * time.Minute),
			DexSwapCount:       1,
			DexAvgPrice:        3010,
			DexTotalVolumeBase: 1,
			DexPriceStdDev:     5,
			CexClose:           3000,
			CexVolume:          10,
		}
	}
	return out
}

func TestBuildPriceSeries_SamplesToLimit(t *testing.T) {
	s := BuildPriceSeries(seriesBuckets(2500), 1000)
	// step = 2500/1000 = 2
	assert.Len(t, s.Cex, 1250)
	assert.Len(t, s.Dex, 1250)
	assert.Equal(t, baseTime.Unix(), s.Cex[0].T)
	assert.Equal(t, baseTime.Add(2*time.Minute).Unix(), s.Cex[1].T)
}

func TestBuildPriceSeries_SkipsMissingDexPrice(t *testing.T) {
	buckets := seriesBuckets(3)
	buckets[1].DexAvgPrice = 0
	buckets[2].CexClose = math.NaN()

	s := BuildPriceSeries(buckets, 0)
	assert.Len(t, s.Cex, 2)
	assert.Len(t, s.Dex, 2)
}

func TestBuildSpreadSeries(t *testing.T) {
	buckets := seriesBuckets(2)
	buckets[1].DexPriceStdDev = 0

	pts := BuildSpreadSeries(buckets, DefaultSeriesLimit)
	require.Len(t, pts, 2)
	assert.InDelta(t, 10, pts[0].Spread, 1e-12)
	assert.InDelta(t, 2, pts[0].Z, 1e-12)
	assert.InDelta(t, 3010.0/3000.0, pts[0].SpreadPct, 1e-12)
	assert.Zero(t, pts[1].Z)
}

func TestBuildSpreadSeries_EmptyIsNotNil(t *testing.T) {
	pts := BuildSpreadSeries(nil, 10)
	assert.NotNil(t, pts)
	assert.Empty(t, pts)
}
