package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbscan/internal/arbitrage"
	"github.com/alanyoungcy/arbscan/internal/domain"
)

const maxSeriesLimit = 5000

// BucketSource returns the aligned buckets of a time range.
type BucketSource interface {
	Buckets(start, end time.Time) []domain.TimeBucket
}

// DataHandler serves chart series built from the aligned buckets.
type DataHandler struct {
	buckets BucketSource
	logger  *slog.Logger
}

// NewDataHandler creates a DataHandler.
func NewDataHandler(buckets BucketSource, logger *slog.Logger) *DataHandler {
	return &DataHandler{buckets: buckets, logger: logHandler(logger, "data")}
}

// GetData returns a price or spread series for the requested range.
// GET /app/getdata?type=price|spread&start=&end=&limit=
func (h *DataHandler) GetData(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	limit := parseLimit(r, arbitrage.DefaultSeriesLimit, maxSeriesLimit)
	buckets := h.buckets.Buckets(start, end)

	switch kind := r.URL.Query().Get("type"); kind {
	case "", "price":
		writeJSON(w, http.StatusOK, arbitrage.BuildPriceSeries(buckets, limit))
	case "spread":
		writeJSON(w, http.StatusOK, arbitrage.BuildSpreadSeries(buckets, limit))
	default:
		writeError(w, http.StatusBadRequest, "unknown data type "+kind)
	}
}
