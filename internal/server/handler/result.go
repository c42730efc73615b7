package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbscan/internal/arbitrage"
	"github.com/alanyoungcy/arbscan/internal/domain"
)

// BacktestRunner simulates the fixed-size strategy over stored signals.
type BacktestRunner interface {
	Run(ctx context.Context, req domain.BacktestRequest) (domain.BacktestResult, error)
	DefaultRequest() domain.BacktestRequest
}

// ResultHandler serves backtest statistics and the trades behind them.
type ResultHandler struct {
	backtest BacktestRunner
	logger   *slog.Logger
}

// NewResultHandler creates a ResultHandler.
func NewResultHandler(backtest BacktestRunner, logger *slog.Logger) *ResultHandler {
	return &ResultHandler{backtest: backtest, logger: logHandler(logger, "result")}
}

type tradeParams struct {
	ZThreshold float64 `json:"zThreshold"`
}

type tradeResponse struct {
	ID          string      `json:"id"`
	Time        int64       `json:"time"`
	Direction   string      `json:"direction"`
	Spread      float64     `json:"spread"`
	SpreadPct   float64     `json:"spreadPct"`
	ZScore      float64     `json:"zScore"`
	Size        float64     `json:"size"`
	GrossProfit float64     `json:"grossProfit"`
	TotalCost   float64     `json:"totalCost"`
	NetProfit   float64     `json:"netProfit"`
	Confidence  float64     `json:"confidence"`
	CexPrice    float64     `json:"cexPrice"`
	DexPrice    float64     `json:"dexPrice"`
	Params      tradeParams `json:"params"`
}

type equityResponse struct {
	Time   int64   `json:"time"`
	Equity float64 `json:"equity"`
}

type backtestResponse struct {
	TotalTrades   int              `json:"totalTrades"`
	WinningTrades int              `json:"winningTrades"`
	WinRate       float64          `json:"winRate"`
	TotalProfit   float64          `json:"totalProfit"`
	AvgProfit     float64          `json:"avgProfit"`
	MaxDrawdown   float64          `json:"maxDrawdown"`
	SharpeRatio   float64          `json:"sharpeRatio"`
	Equity        []equityResponse `json:"equity"`
	Signals       []tradeResponse  `json:"signals"`
}

func toTradeResponse(t domain.BacktestTrade) tradeResponse {
	return tradeResponse{
		ID:          t.Signal.ID,
		Time:        t.Signal.Timestamp,
		Direction:   string(t.Signal.Direction),
		Spread:      round(t.Signal.PriceDifference, 6),
		SpreadPct:   round(t.SpreadPct, 8),
		ZScore:      round(t.AbsZScore, 4),
		Size:        t.Size,
		GrossProfit: round(t.GrossProfit, 2),
		TotalCost:   round(t.TotalCost, 2),
		NetProfit:   round(t.NetProfit, 2),
		Confidence:  round(t.Confidence, 2),
		CexPrice:    round(t.Signal.CexClosePrice, 6),
		DexPrice:    round(t.Signal.DexAvgPrice, 6),
		Params:      tradeParams{ZThreshold: t.ZThreshold},
	}
}

func toTradeResponses(trades []domain.BacktestTrade) []tradeResponse {
	out := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, toTradeResponse(t))
	}
	return out
}

func toBacktestResponse(res domain.BacktestResult) backtestResponse {
	equity := make([]equityResponse, 0, len(res.EquityCurve))
	for _, p := range res.EquityCurve {
		equity = append(equity, equityResponse{Time: p.Time, Equity: round(p.Equity, 2)})
	}
	return backtestResponse{
		TotalTrades:   res.TotalTrades,
		WinningTrades: res.WinningTrades,
		WinRate:       round(res.WinRate, 4),
		TotalProfit:   round(res.TotalProfit, 2),
		AvgProfit:     round(res.AvgProfit, 2),
		MaxDrawdown:   round(res.MaxDrawdown, 4),
		SharpeRatio:   round(res.SharpeRatio, 4),
		Equity:        equity,
		Signals:       toTradeResponses(res.Trades),
	}
}

// parseBacktestRequest overlays the query parameters on the service defaults.
func (h *ResultHandler) parseBacktestRequest(r *http.Request) (domain.BacktestRequest, error) {
	req := h.backtest.DefaultRequest()
	start, end, err := parseRange(r)
	if err != nil {
		return req, err
	}
	req.Start, req.End = start, end

	z, err := parseFloat(r, "zThreshold")
	if err != nil {
		return req, err
	}
	if z != nil {
		req.ZThreshold = *z
	}
	size, err := parseFloat(r, "tradeSize")
	if err != nil {
		return req, err
	}
	if size != nil {
		req.TradeSize = *size
	}
	return req, nil
}

func parseTradeFilter(r *http.Request) (arbitrage.TradeFilter, error) {
	var (
		f   arbitrage.TradeFilter
		err error
	)
	bounds := []struct {
		name string
		dst  **float64
	}{
		{"minProfit", &f.MinProfit},
		{"maxProfit", &f.MaxProfit},
		{"minZScore", &f.MinZScore},
		{"maxZScore", &f.MaxZScore},
		{"minSpread", &f.MinSpread},
		{"maxSpread", &f.MaxSpread},
	}
	for _, b := range bounds {
		if *b.dst, err = parseFloat(r, b.name); err != nil {
			return f, err
		}
	}

	f.Direction = r.URL.Query().Get("direction")
	if f.Direction != "" && f.Direction != "both" {
		if _, ok := domain.ParseDirection(f.Direction); !ok {
			return f, errUnknownDirection(f.Direction)
		}
	}
	return f, nil
}

// GetResult runs a backtest and returns either the statistics or the
// filtered list of admitted trades.
// GET /app/getresult?type=backtest|signals&start=&end=&zThreshold=&tradeSize=
func (h *ResultHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	if kind != "" && kind != "backtest" && kind != "signals" {
		writeError(w, http.StatusBadRequest, "unknown result type "+kind)
		return
	}

	req, err := h.parseBacktestRequest(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var filter arbitrage.TradeFilter
	if kind == "signals" {
		if filter, err = parseTradeFilter(r); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
	}

	res, err := h.backtest.Run(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if kind == "signals" {
		writeJSON(w, http.StatusOK, toTradeResponses(filter.Apply(res.Trades)))
		return
	}
	writeJSON(w, http.StatusOK, toBacktestResponse(res))
}
