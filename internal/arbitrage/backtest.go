package arbitrage

import (
	"math"
	"sort"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// Default simulator parameters.
const (
	DefaultStartingCapital  = 10000.0
	DefaultFixedGasEstimate = 50.0
)

// SimulatorConfig holds the cost model of the fixed-size strategy.
type SimulatorConfig struct {
	DexFeePct        float64
	CexFeePct        float64
	FixedGasEstimate float64
	StartingCapital  float64
}

// Simulator replays detected signals as fixed-notional trades.
type Simulator struct {
	cfg SimulatorConfig
}

// NewSimulator creates a simulator. A non-positive StartingCapital falls back
// to DefaultStartingCapital.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.StartingCapital <= 0 {
		cfg.StartingCapital = DefaultStartingCapital
	}
	return &Simulator{cfg: cfg}
}

// Run admits every signal with |zscore| >= req.ZThreshold, trades
// req.TradeSize on each in chronological order and returns the aggregate
// statistics. Signals outside [req.Start, req.End] are ignored when the
// bound is set. The result depends only on its inputs.
func (s *Simulator) Run(signals []domain.Signal, req domain.BacktestRequest) domain.BacktestResult {
	startTS := req.Start.Unix()
	if req.Start.IsZero() {
		startTS = 0
	}

	admitted := s.admit(signals, req)

	equity := s.cfg.StartingCapital
	res := domain.BacktestResult{
		EquityCurve: make([]domain.EquityPoint, 0, len(admitted)+1),
		Trades:      make([]domain.BacktestTrade, 0, len(admitted)),
	}
	res.EquityCurve = append(res.EquityCurve, domain.EquityPoint{Time: startTS, Equity: equity})

	for _, sig := range admitted {
		t := s.trade(sig, req)
		equity += t.NetProfit
		res.TotalProfit += t.NetProfit
		if t.NetProfit > 0 {
			res.WinningTrades++
		}
		res.Trades = append(res.Trades, t)
		res.EquityCurve = append(res.EquityCurve, domain.EquityPoint{Time: sig.Timestamp, Equity: equity})
	}

	res.TotalTrades = len(res.Trades)
	if res.TotalTrades > 0 {
		res.WinRate = float64(res.WinningTrades) / float64(res.TotalTrades)
		res.AvgProfit = res.TotalProfit / float64(res.TotalTrades)
	}
	res.MaxDrawdown = MaxDrawdown(res.EquityCurve)
	res.SharpeRatio = SharpeRatio(res.EquityCurve)
	return res
}

// admit filters by range and z-score and orders the survivors by time.
// The input slice is not modified.
func (s *Simulator) admit(signals []domain.Signal, req domain.BacktestRequest) []domain.Signal {
	out := make([]domain.Signal, 0, len(signals))
	for _, sig := range signals {
		if !req.Start.IsZero() && sig.Timestamp < req.Start.Unix() {
			continue
		}
		if !req.End.IsZero() && sig.Timestamp > req.End.Unix() {
			continue
		}
		z, ok := sig.AbsZScore()
		if !ok || z < req.ZThreshold {
			continue
		}
		out = append(out, sig)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

func (s *Simulator) trade(sig domain.Signal, req domain.BacktestRequest) domain.BacktestTrade {
	z, _ := sig.AbsZScore()

	var spreadPct float64
	if sig.CexClosePrice > 0 {
		spreadPct = math.Abs(sig.PriceDifference) / sig.CexClosePrice
	}
	gross := req.TradeSize * spreadPct
	cost := req.TradeSize*(s.cfg.DexFeePct+s.cfg.CexFeePct) + s.cfg.FixedGasEstimate

	return domain.BacktestTrade{
		Signal:      sig,
		AbsZScore:   z,
		SpreadPct:   spreadPct,
		Size:        req.TradeSize,
		GrossProfit: gross,
		TotalCost:   cost,
		NetProfit:   gross - cost,
		Confidence:  math.Min(0.99, 0.5+z/10),
		ZThreshold:  req.ZThreshold,
	}
}
