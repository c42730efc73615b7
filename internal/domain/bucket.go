package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultBucketWidth is the alignment interval used by the merge job.
const DefaultBucketWidth = time.Minute

// TimeBucket is the aggregated market state of one fixed-width interval.
// DEX fields are aggregated from pool swaps, CEX fields from spot klines.
type TimeBucket struct {
	BucketStart time.Time

	DexSwapCount        int
	DexTotalVolumeBase  float64
	DexTotalVolumeQuote float64
	DexAvgPrice         float64
	DexMinPrice         float64
	DexMaxPrice         float64
	DexPriceStdDev      float64

	CexOpen        float64
	CexHigh        float64
	CexLow         float64
	CexClose       float64
	CexVolume      float64
	CexQuoteVolume float64
	CexTradeCount  int64
}

// PriceDifference returns the raw DEX minus CEX price gap, without slippage.
func (b TimeBucket) PriceDifference() float64 {
	return b.DexAvgPrice - b.CexClose
}

// PriceRatio returns DexAvgPrice / CexClose, or 0 when the CEX close is unknown.
func (b TimeBucket) PriceRatio() float64 {
	if b.CexClose == 0 {
		return 0
	}
	return b.DexAvgPrice / b.CexClose
}

// SwapEvent is a single DEX trade. Amounts are signed from the pool's view.
type SwapEvent struct {
	ID        string
	TxHash    common.Hash
	Timestamp time.Time
	// BucketStart is the bucket this swap was aggregated into. When zero it is
	// derived from Timestamp.
	BucketStart  time.Time
	BaseAmount   float64
	QuoteAmount  float64
	GasUsed      uint64
	GasPrice     uint64 // wei
	ImpliedPrice float64
}

// Bucket returns the start of the bucket the swap belongs to.
func (s SwapEvent) Bucket(width time.Duration) time.Time {
	if !s.BucketStart.IsZero() {
		return s.BucketStart.UTC()
	}
	if width <= 0 {
		width = DefaultBucketWidth
	}
	return s.Timestamp.UTC().Truncate(width)
}
