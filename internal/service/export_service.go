package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/metrics"
)

// SignalExporter encodes signals and writes them to object storage.
type SignalExporter interface {
	Supports(format string) bool
	Export(ctx context.Context, signals []domain.Signal, format string, at time.Time) (domain.BlobInfo, error)
	Prefix() string
	ContentType(key string) string
}

// ExportService writes the stored signal set to object storage.
type ExportService struct {
	signals       domain.SignalStore
	exporter      SignalExporter
	blobs         domain.BlobReader
	audit         domain.AuditStore
	clock         clock.Clock
	metrics       *metrics.Metrics
	defaultFormat string
	logger        *slog.Logger
}

// NewExportService creates an ExportService with all required dependencies.
func NewExportService(
	signals domain.SignalStore,
	exporter SignalExporter,
	blobs domain.BlobReader,
	audit domain.AuditStore,
	clk clock.Clock,
	m *metrics.Metrics,
	defaultFormat string,
	logger *slog.Logger,
) *ExportService {
	return &ExportService{
		signals:       signals,
		exporter:      exporter,
		blobs:         blobs,
		audit:         audit,
		clock:         clk,
		metrics:       m,
		defaultFormat: defaultFormat,
		logger:        logger,
	}
}

// Export uploads every stored signal in format. An empty format selects the
// configured default.
func (s *ExportService) Export(ctx context.Context, format string) (domain.BlobInfo, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = s.defaultFormat
	}
	if !s.exporter.Supports(format) {
		return domain.BlobInfo{}, fmt.Errorf("export_service: format %q: %w", format, domain.ErrUnsupportedFormat)
	}

	signals, err := s.signals.ListRange(ctx, domain.ListOpts{})
	if err != nil {
		return domain.BlobInfo{}, fmt.Errorf("export_service: load signals: %w", err)
	}

	info, err := s.exporter.Export(ctx, signals, format, s.clock.Now())
	if err != nil {
		return domain.BlobInfo{}, fmt.Errorf("export_service: %w", err)
	}
	s.metrics.Exports.WithLabelValues(format).Inc()

	if err := s.audit.Log(ctx, "signals.export", map[string]any{
		"path":    info.Path,
		"format":  format,
		"signals": len(signals),
		"bytes":   info.Size,
	}); err != nil {
		s.logger.WarnContext(ctx, "export_service: failed to write audit log",
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "export_service: signals exported",
		slog.String("path", info.Path),
		slog.Int("signals", len(signals)),
		slog.Int64("bytes", info.Size),
	)
	return info, nil
}

// List returns the stored exports, newest first.
func (s *ExportService) List(ctx context.Context) ([]domain.BlobInfo, error) {
	prefix := s.exporter.Prefix()
	if prefix != "" {
		prefix += "/"
	}
	infos, err := s.blobs.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("export_service: list: %w", err)
	}
	sort.SliceStable(infos, func(i, j int) bool {
		if !infos[i].LastModified.Equal(infos[j].LastModified) {
			return infos[i].LastModified.After(infos[j].LastModified)
		}
		return infos[i].Path > infos[j].Path
	})
	return infos, nil
}

// Open returns the body of the export called name. Only plain file names
// under the export prefix resolve; anything else is domain.ErrNotFound.
// The caller closes the returned reader.
func (s *ExportService) Open(ctx context.Context, name string) (io.ReadCloser, domain.BlobInfo, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return nil, domain.BlobInfo{}, fmt.Errorf("export_service: open %q: %w", name, domain.ErrNotFound)
	}
	key := name
	if prefix := s.exporter.Prefix(); prefix != "" {
		key = prefix + "/" + name
	}

	body, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, domain.BlobInfo{}, fmt.Errorf("export_service: open: %w", err)
	}
	return body, domain.BlobInfo{Path: key, ContentType: s.exporter.ContentType(key)}, nil
}
