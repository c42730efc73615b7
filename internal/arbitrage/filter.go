package arbitrage

import (
	"math"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// TradeFilter narrows a list of backtest trades. Nil bounds are ignored.
type TradeFilter struct {
	MinProfit *float64
	MaxProfit *float64
	MinZScore *float64
	MaxZScore *float64
	MinSpread *float64
	MaxSpread *float64
	// Direction is a domain.Direction name or alias; "" and "both" match all.
	Direction string
}

// Empty reports whether the filter has no constraints.
func (f TradeFilter) Empty() bool {
	return f.MinProfit == nil && f.MaxProfit == nil &&
		f.MinZScore == nil && f.MaxZScore == nil &&
		f.MinSpread == nil && f.MaxSpread == nil &&
		(f.Direction == "" || f.Direction == "both")
}

// Match reports whether t satisfies every bound of the filter.
func (f TradeFilter) Match(t domain.BacktestTrade) bool {
	if f.MinProfit != nil && t.NetProfit < *f.MinProfit {
		return false
	}
	if f.MaxProfit != nil && t.NetProfit > *f.MaxProfit {
		return false
	}
	if f.MinZScore != nil && t.AbsZScore < *f.MinZScore {
		return false
	}
	if f.MaxZScore != nil && t.AbsZScore > *f.MaxZScore {
		return false
	}
	spread := math.Abs(t.Signal.PriceDifference)
	if f.MinSpread != nil && spread < *f.MinSpread {
		return false
	}
	if f.MaxSpread != nil && spread > *f.MaxSpread {
		return false
	}
	if f.Direction != "" && f.Direction != "both" {
		want, ok := domain.ParseDirection(f.Direction)
		if !ok || t.Signal.Direction != want {
			return false
		}
	}
	return true
}

// Apply returns the trades matching the filter, in their original order.
func (f TradeFilter) Apply(trades []domain.BacktestTrade) []domain.BacktestTrade {
	if f.Empty() {
		return trades
	}
	out := make([]domain.BacktestTrade, 0, len(trades))
	for _, t := range trades {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}
