package domain

import "time"

// Direction names the venue the base asset is bought on and the venue it is
// sold on.
type Direction string

const (
	// DirectionCexToDex buys on the CEX and sells into the DEX pool; emitted
	// when the pool trades above the CEX close.
	DirectionCexToDex Direction = "CEX_TO_DEX"
	// DirectionDexToCex buys from the pool and sells on the CEX.
	DirectionDexToCex Direction = "DEX_TO_CEX"
)

// ParseDirection accepts the canonical names and the labels older clients
// still send.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case string(DirectionCexToDex), "CEX->DEX", "Long", "Long DEX":
		return DirectionCexToDex, true
	case string(DirectionDexToCex), "DEX->CEX", "Short", "Short DEX":
		return DirectionDexToCex, true
	default:
		return "", false
	}
}

// Signal is one detected arbitrage opportunity. It is written once by the
// detector and never mutated.
type Signal struct {
	ID         string
	TimeBucket time.Time
	Timestamp  int64 // unix seconds of TimeBucket
	Direction  Direction
	TradeSize  float64
	SwapCount  int
	// ZScore is nil when the bucket's DEX price stddev is zero.
	ZScore          *float64
	GrossProfit     float64
	CexFee          float64
	DexFee          float64
	GasCost         float64
	NetProfit       float64
	Confidence      float64
	DexAvgPrice     float64
	CexClosePrice   float64
	PriceDifference float64
	CreatedAt       time.Time
}

// AbsZScore returns |ZScore| and whether a z-score is present.
func (s Signal) AbsZScore() (float64, bool) {
	if s.ZScore == nil {
		return 0, false
	}
	z := *s.ZScore
	if z < 0 {
		z = -z
	}
	return z, true
}

// DetectionReport summarises one detector pass.
type DetectionReport struct {
	BucketsScanned        int
	SkippedEmpty          int
	SkippedNoCexLiquidity int
	SkippedNoSpread       int
	Unprofitable          int
	SignalsEmitted        int
	SwapsConsumed         int
}
