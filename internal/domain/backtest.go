package domain

import "time"

// EquityPoint is one sample of the simulated account value.
type EquityPoint struct {
	Time   int64 // unix seconds
	Equity float64
}

// BacktestTrade is an admitted signal together with the outcome the
// fixed-size strategy would have realised on it.
type BacktestTrade struct {
	Signal      Signal
	AbsZScore   float64
	SpreadPct   float64
	Size        float64
	GrossProfit float64
	TotalCost   float64
	NetProfit   float64
	Confidence  float64
	ZThreshold  float64
}

// BacktestRequest holds the caller-supplied simulation inputs.
type BacktestRequest struct {
	Start      time.Time
	End        time.Time
	ZThreshold float64
	TradeSize  float64
}

// BacktestResult is the outcome of one simulation. It is never persisted.
type BacktestResult struct {
	TotalTrades   int
	WinningTrades int
	WinRate       float64
	TotalProfit   float64
	AvgProfit     float64
	MaxDrawdown   float64
	SharpeRatio   float64
	EquityCurve   []EquityPoint
	Trades        []BacktestTrade
}
