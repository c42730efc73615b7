package arbitrage

import (
	"math"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// MaxDrawdown returns the largest peak-to-trough decline of the curve as a
// fraction of the running peak.
func MaxDrawdown(curve []domain.EquityPoint) float64 {
	if len(curve) <= 1 {
		return 0
	}
	peak := curve[0].Equity
	var maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// SharpeRatio returns mean/stddev of the period-over-period percentage
// returns of the curve, unannualized. The stddev is the sample (n-1)
// estimate; fewer than two returns or a zero stddev yield 0.
func SharpeRatio(curve []domain.EquityPoint) float64 {
	returns := make([]float64, 0, len(curve))
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	std := math.Sqrt(sq / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std
}
