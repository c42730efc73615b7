package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// SignalSource returns the detected signals of a time range.
type SignalSource interface {
	Signals(start, end time.Time) []domain.Signal
}

// SignalStream reads the signal stream published by detection runs.
type SignalStream interface {
	RecentSignals(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error)
}

// SignalHandler serves raw detected signals.
type SignalHandler struct {
	signals SignalSource
	stream  SignalStream
	logger  *slog.Logger
}

// NewSignalHandler creates a SignalHandler.
func NewSignalHandler(signals SignalSource, stream SignalStream, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{signals: signals, stream: stream, logger: logHandler(logger, "signals")}
}

type signalResponse struct {
	ID          string   `json:"id"`
	Time        int64    `json:"time"`
	Direction   string   `json:"direction"`
	TradeSize   float64  `json:"tradeSize"`
	SwapCount   int      `json:"swapCount"`
	ZScore      *float64 `json:"zScore"`
	Spread      float64  `json:"spread"`
	GrossProfit float64  `json:"grossProfit"`
	CexFee      float64  `json:"cexFee"`
	DexFee      float64  `json:"dexFee"`
	GasCost     float64  `json:"gasCost"`
	NetProfit   float64  `json:"netProfit"`
	Confidence  float64  `json:"confidence"`
	CexPrice    float64  `json:"cexPrice"`
	DexPrice    float64  `json:"dexPrice"`
	CreatedAt   string   `json:"createdAt,omitempty"`
}

func toSignalResponse(s domain.Signal) signalResponse {
	resp := signalResponse{
		ID:          s.ID,
		Time:        s.Timestamp,
		Direction:   string(s.Direction),
		TradeSize:   s.TradeSize,
		SwapCount:   s.SwapCount,
		Spread:      round(s.PriceDifference, 6),
		GrossProfit: round(s.GrossProfit, 2),
		CexFee:      round(s.CexFee, 2),
		DexFee:      round(s.DexFee, 2),
		GasCost:     round(s.GasCost, 4),
		NetProfit:   round(s.NetProfit, 2),
		Confidence:  round(s.Confidence, 4),
		CexPrice:    s.CexClosePrice,
		DexPrice:    s.DexAvgPrice,
	}
	if s.ZScore != nil {
		z := round(*s.ZScore, 4)
		resp.ZScore = &z
	}
	if !s.CreatedAt.IsZero() {
		resp.CreatedAt = s.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// ListSignals returns up to limit signals of the range in time order.
// GET /api/signals?start=&end=&limit=
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	limit := parseLimit(r, 500, 5000)

	signals := h.signals.Signals(start, end)
	if len(signals) > limit {
		signals = signals[:limit]
	}
	out := make([]signalResponse, 0, len(signals))
	for _, s := range signals {
		out = append(out, toSignalResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

type streamEntry struct {
	ID     string          `json:"id"`
	Signal json.RawMessage `json:"signal"`
}

// StreamSignals returns signal stream entries after the given id, so clients
// can follow new detections incrementally.
// GET /api/signals/stream?after=&count=
func (h *SignalHandler) StreamSignals(w http.ResponseWriter, r *http.Request) {
	count := 100
	if v := r.URL.Query().Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			count = n
		}
	}

	msgs, err := h.stream.RecentSignals(r.Context(), r.URL.Query().Get("after"), count)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]streamEntry, 0, len(msgs))
	for _, m := range msgs {
		if !json.Valid(m.Payload) {
			continue
		}
		out = append(out, streamEntry{ID: m.ID, Signal: m.Payload})
	}
	writeJSON(w, http.StatusOK, out)
}
