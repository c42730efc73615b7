package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// AnalysisRunner triggers detection and bucket alignment.
type AnalysisRunner interface {
	Run(ctx context.Context) (domain.DetectionReport, error)
	Merge(ctx context.Context) (int64, error)
}

// DatasetReloader reloads the in-memory dataset from the stores.
type DatasetReloader interface {
	DatasetStatus
	Reload(ctx context.Context) error
}

// AnalysisHandler serves the operational endpoints that recompute data.
type AnalysisHandler struct {
	analysis AnalysisRunner
	dataset  DatasetReloader
	logger   *slog.Logger
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(analysis AnalysisRunner, dataset DatasetReloader, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis, dataset: dataset, logger: logHandler(logger, "analysis")}
}

type reportResponse struct {
	BucketsScanned        int `json:"bucketsScanned"`
	SkippedEmpty          int `json:"skippedEmpty"`
	SkippedNoCexLiquidity int `json:"skippedNoCexLiquidity"`
	SkippedNoSpread       int `json:"skippedNoSpread"`
	Unprofitable          int `json:"unprofitable"`
	SignalsEmitted        int `json:"signalsEmitted"`
	SwapsConsumed         int `json:"swapsConsumed"`
}

// RunAnalysis performs one synchronous detection run.
// POST /api/analysis/run
func (h *AnalysisHandler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "handler: analysis run requested")
	report, err := h.analysis.Run(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse(report))
}

// MergeBuckets rebuilds the aligned bucket table.
// POST /api/analysis/merge
func (h *AnalysisHandler) MergeBuckets(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "handler: bucket merge requested")
	n, err := h.analysis.Merge(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"buckets": n})
}

// ReloadDataset re-reads buckets and signals into memory.
// POST /api/dataset/reload
func (h *AnalysisHandler) ReloadDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.dataset.Reload(r.Context()); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded_at": h.dataset.LoadedAt().UTC().Format(time.RFC3339),
		"version":   h.dataset.Version(),
	})
}
