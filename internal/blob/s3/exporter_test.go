package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

type fakeWriter struct {
	puts       map[string][]byte
	multiparts map[string]int64
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{puts: map[string][]byte{}, multiparts: map[string]int64{}}
}

func (f *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	f.puts[path] = b
	return err
}

func (f *fakeWriter) PutMultipart(_ context.Context, path string, data io.Reader, partSize int64) error {
	b, err := io.ReadAll(data)
	f.puts[path] = b
	f.multiparts[path] = partSize
	return err
}

func exportSignals() []domain.Signal {
	z := 2.5
	ts := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	return []domain.Signal{
		{ID: "a", TimeBucket: ts, Timestamp: ts.Unix(), Direction: domain.DirectionCexToDex, ZScore: &z, NetProfit: 74.32},
		{ID: "b", TimeBucket: ts.Add(time.Minute), Timestamp: ts.Add(time.Minute).Unix(), Direction: domain.DirectionDexToCex, NetProfit: 51},
	}
}

var exportAt = time.Date(2025, 9, 2, 8, 30, 15, 0, time.UTC)

func TestExporter_CSV(t *testing.T) {
	w := newFakeWriter()
	info, err := NewExporter(w, "/exports/signals/", 0).Export(context.Background(), exportSignals(), FormatCSV, exportAt)
	require.NoError(t, err)

	assert.Equal(t, "exports/signals/20250902T083015Z.csv", info.Path)
	assert.Equal(t, "text/csv", info.ContentType)

	rows, err := csv.NewReader(bytes.NewReader(w.puts[info.Path])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "a", rows[1][0])
	assert.Equal(t, "2.5", rows[1][6])
	assert.Equal(t, "", rows[2][6], "nil z-score is an empty cell")
	assert.Equal(t, "74.32", rows[1][11])
}

func TestExporter_JSONL(t *testing.T) {
	w := newFakeWriter()
	info, err := NewExporter(w, "exports/signals", 0).Export(context.Background(), exportSignals(), FormatJSONL, exportAt)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(w.puts[info.Path])), "\n")
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "DEX_TO_CEX", rec["direction"])
	assert.Nil(t, rec["z_score"])
}

func TestExporter_MultipartAboveThreshold(t *testing.T) {
	w := newFakeWriter()
	info, err := NewExporter(w, "exports", 16).Export(context.Background(), exportSignals(), FormatJSON, exportAt)
	require.NoError(t, err)
	assert.Equal(t, int64(16), w.multiparts[info.Path])
}

func TestEncodeSignals_UnsupportedFormat(t *testing.T) {
	_, err := EncodeSignals(exportSignals(), "parquet")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestEncodeSignals_EmptyJSONIsArray(t *testing.T) {
	buf, err := EncodeSignals(nil, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(buf))
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "http://minio.local", normaliseEndpoint("minio.local", false))
	assert.Equal(t, "https://minio.local", normaliseEndpoint("minio.local", true))
	assert.Equal(t, "http://x", normaliseEndpoint("http://x", true))
}

func TestExporter_ContentType(t *testing.T) {
	e := NewExporter(newFakeWriter(), "exports/signals", 0)
	assert.Equal(t, "text/csv", e.ContentType("exports/signals/a.csv"))
	assert.Equal(t, "application/x-ndjson", e.ContentType("exports/signals/a.jsonl"))
	assert.Equal(t, "application/json", e.ContentType("exports/signals/a.json"))
	assert.Equal(t, "application/octet-stream", e.ContentType("exports/signals/a.bin"))
}
