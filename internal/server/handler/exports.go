package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// SignalExporter writes signal exports to object storage and lists them.
type SignalExporter interface {
	Export(ctx context.Context, format string) (domain.BlobInfo, error)
	List(ctx context.Context) ([]domain.BlobInfo, error)
	Open(ctx context.Context, name string) (io.ReadCloser, domain.BlobInfo, error)
}

// ExportHandler serves signal export endpoints.
type ExportHandler struct {
	exports SignalExporter
	logger  *slog.Logger
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(exports SignalExporter, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{exports: exports, logger: logHandler(logger, "exports")}
}

type blobResponse struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType,omitempty"`
	LastModified string `json:"lastModified"`
}

func toBlobResponse(b domain.BlobInfo) blobResponse {
	return blobResponse{
		Path:         b.Path,
		Size:         b.Size,
		ContentType:  b.ContentType,
		LastModified: b.LastModified.UTC().Format(time.RFC3339),
	}
}

// CreateExport uploads the stored signals in the requested format.
// POST /api/exports?format=csv|jsonl|json
func (h *ExportHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	info, err := h.exports.Export(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlobResponse(info))
}

// ListExports lists stored exports, newest first.
// GET /api/exports
func (h *ExportHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	infos, err := h.exports.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]blobResponse, 0, len(infos))
	for _, b := range infos {
		out = append(out, toBlobResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

// DownloadExport streams a stored export.
// GET /api/exports/{name}
func (h *ExportHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	body, info, err := h.exports.Open(r.Context(), name)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "download interrupted",
			slog.String("path", info.Path),
			slog.String("error", err.Error()),
		)
	}
}
