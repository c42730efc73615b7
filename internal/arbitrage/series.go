package arbitrage

import (
	"math"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// DefaultSeriesLimit caps the number of points a chart series returns.
const DefaultSeriesLimit = 1000

// PricePoint is one venue price sample.
type PricePoint struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
	V float64 `json:"v"`
}

// PriceSeries holds the per-venue price samples of a range.
type PriceSeries struct {
	Cex []PricePoint `json:"cex"`
	Dex []PricePoint `json:"dex"`
}

// SpreadPoint is one raw (unadjusted) cross-venue spread sample.
type SpreadPoint struct {
	T         int64   `json:"t"`
	Spread    float64 `json:"spread"`
	SpreadPct float64 `json:"spreadPct"`
	Z         float64 `json:"z"`
	CexPrice  float64 `json:"cexPrice"`
	DexPrice  float64 `json:"dexPrice"`
}

// sample keeps every step-th bucket so that at most limit remain.
func sample(buckets []domain.TimeBucket, limit int) []domain.TimeBucket {
	if limit <= 0 {
		limit = DefaultSeriesLimit
	}
	step := len(buckets) / limit
	if step <= 1 {
		return buckets
	}
	out := make([]domain.TimeBucket, 0, len(buckets)/step+1)
	for i := 0; i < len(buckets); i += step {
		out = append(out, buckets[i])
	}
	return out
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// BuildPriceSeries samples CEX closes and DEX average prices. Buckets without
// a DEX price contribute only a CEX point.
func BuildPriceSeries(buckets []domain.TimeBucket, limit int) PriceSeries {
	out := PriceSeries{Cex: []PricePoint{}, Dex: []PricePoint{}}
	for _, b := range sample(buckets, limit) {
		ts := b.BucketStart.Unix()
		if b.CexClose > 0 && finite(b.CexClose, b.CexVolume) {
			out.Cex = append(out.Cex, PricePoint{T: ts, P: b.CexClose, V: b.CexVolume})
		}
		if b.DexAvgPrice > 0 && finite(b.DexAvgPrice, b.DexTotalVolumeBase) {
			out.Dex = append(out.Dex, PricePoint{T: ts, P: b.DexAvgPrice, V: b.DexTotalVolumeBase})
		}
	}
	return out
}

// BuildSpreadSeries samples the raw price gap between venues. Z is
// |gap / dex stddev|, or 0 when the stddev is zero.
func BuildSpreadSeries(buckets []domain.TimeBucket, limit int) []SpreadPoint {
	out := []SpreadPoint{}
	for _, b := range sample(buckets, limit) {
		if b.DexAvgPrice <= 0 {
			continue
		}
		diff := b.PriceDifference()
		var z float64
		if b.DexPriceStdDev != 0 {
			z = math.Abs(diff / b.DexPriceStdDev)
		}
		p := SpreadPoint{
			T:         b.BucketStart.Unix(),
			Spread:    diff,
			SpreadPct: b.PriceRatio(),
			Z:         z,
			CexPrice:  b.CexClose,
			DexPrice:  b.DexAvgPrice,
		}
		if !finite(p.Spread, p.SpreadPct, p.Z, p.CexPrice, p.DexPrice) {
			continue
		}
		out = append(out, p)
	}
	return out
}
