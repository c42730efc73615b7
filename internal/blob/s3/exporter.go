package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// Export formats.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
)

// exportTimeLayout names export objects by their UTC creation second.
const exportTimeLayout = "20060102T150405Z"

// Exporter serialises signals and uploads them under a fixed prefix.
type Exporter struct {
	writer   domain.BlobWriter
	prefix   string
	partSize int64
}

// SupportedFormat reports whether format can be exported.
func SupportedFormat(format string) bool {
	switch format {
	case FormatCSV, FormatJSONL, FormatJSON:
		return true
	}
	return false
}

// NewExporter creates an Exporter. Payloads larger than partSize are sent
// with a multipart upload; partSize <= 0 always uses a single PutObject.
func NewExporter(writer domain.BlobWriter, prefix string, partSize int64) *Exporter {
	return &Exporter{
		writer:   writer,
		prefix:   strings.Trim(prefix, "/"),
		partSize: partSize,
	}
}

// Supports reports whether the exporter can encode format.
func (e *Exporter) Supports(format string) bool {
	return SupportedFormat(format)
}

// ContentType returns the media type served for an export key.
func (e *Exporter) ContentType(key string) string {
	return contentTypeFor(key)
}

// Prefix returns the key prefix exports are written under.
func (e *Exporter) Prefix() string {
	return e.prefix
}

// Export encodes signals in format and uploads them to
// <prefix>/<YYYYMMDDTHHMMSSZ>.<format>. It returns the written object's info.
func (e *Exporter) Export(ctx context.Context, signals []domain.Signal, format string, at time.Time) (domain.BlobInfo, error) {
	buf, err := EncodeSignals(signals, format)
	if err != nil {
		return domain.BlobInfo{}, err
	}

	key := exportPath(e.prefix, format, at)
	contentType := contentTypeFor(key)
	if e.partSize > 0 && int64(len(buf)) > e.partSize {
		err = e.writer.PutMultipart(ctx, key, bytes.NewReader(buf), e.partSize)
	} else {
		err = e.writer.Put(ctx, key, bytes.NewReader(buf), contentType)
	}
	if err != nil {
		return domain.BlobInfo{}, fmt.Errorf("s3blob: export upload: %w", err)
	}

	return domain.BlobInfo{
		Path:         key,
		Size:         int64(len(buf)),
		ContentType:  contentType,
		LastModified: at.UTC(),
	}, nil
}

// EncodeSignals renders signals as CSV, JSONL or a JSON array. Any other
// format yields domain.ErrUnsupportedFormat.
func EncodeSignals(signals []domain.Signal, format string) ([]byte, error) {
	records := make([]signalRecord, len(signals))
	for i, s := range signals {
		records[i] = toRecord(s)
	}

	switch format {
	case FormatCSV:
		return marshalCSV(records)
	case FormatJSONL:
		return marshalJSONL(records)
	case FormatJSON:
		buf, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("s3blob: json encode signals: %w", err)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("s3blob: export format %q: %w", format, domain.ErrUnsupportedFormat)
	}
}

// signalRecord is the flat export shape of a domain.Signal.
type signalRecord struct {
	ID              string   `json:"id"`
	Time            string   `json:"time"`
	Timestamp       int64    `json:"timestamp"`
	Direction       string   `json:"direction"`
	TradeSize       float64  `json:"trade_size"`
	SwapCount       int      `json:"swap_count"`
	ZScore          *float64 `json:"z_score"`
	GrossProfit     float64  `json:"gross_profit"`
	CexFee          float64  `json:"cex_fee"`
	DexFee          float64  `json:"dex_fee"`
	GasCost         float64  `json:"gas_cost"`
	NetProfit       float64  `json:"net_profit"`
	Confidence      float64  `json:"confidence"`
	DexAvgPrice     float64  `json:"dex_avg_price"`
	CexClosePrice   float64  `json:"cex_close_price"`
	PriceDifference float64  `json:"price_difference"`
}

var csvHeader = []string{
	"id", "time", "timestamp", "direction", "trade_size", "swap_count", "z_score",
	"gross_profit", "cex_fee", "dex_fee", "gas_cost", "net_profit",
	"confidence", "dex_avg_price", "cex_close_price", "price_difference",
}

func toRecord(s domain.Signal) signalRecord {
	return signalRecord{
		ID:              s.ID,
		Time:            s.TimeBucket.UTC().Format(time.RFC3339),
		Timestamp:       s.Timestamp,
		Direction:       string(s.Direction),
		TradeSize:       s.TradeSize,
		SwapCount:       s.SwapCount,
		ZScore:          s.ZScore,
		GrossProfit:     s.GrossProfit,
		CexFee:          s.CexFee,
		DexFee:          s.DexFee,
		GasCost:         s.GasCost,
		NetProfit:       s.NetProfit,
		Confidence:      s.Confidence,
		DexAvgPrice:     s.DexAvgPrice,
		CexClosePrice:   s.CexClosePrice,
		PriceDifference: s.PriceDifference,
	}
}

func (r signalRecord) csvRow() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	z := ""
	if r.ZScore != nil {
		z = f(*r.ZScore)
	}
	return []string{
		r.ID, r.Time, strconv.FormatInt(r.Timestamp, 10), r.Direction,
		f(r.TradeSize), strconv.Itoa(r.SwapCount), z,
		f(r.GrossProfit), f(r.CexFee), f(r.DexFee), f(r.GasCost), f(r.NetProfit),
		f(r.Confidence), f(r.DexAvgPrice), f(r.CexClosePrice), f(r.PriceDifference),
	}
}

func marshalCSV(records []signalRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("s3blob: csv header: %w", err)
	}
	for i, r := range records {
		if err := w.Write(r.csvRow()); err != nil {
			return nil, fmt.Errorf("s3blob: csv record %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("s3blob: csv flush: %w", err)
	}
	return buf.Bytes(), nil
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("s3blob: jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// exportPath builds the object key of an export, e.g.
//
//	exports/signals/20250901T120000Z.csv
func exportPath(prefix, format string, at time.Time) string {
	return path.Join(prefix, at.UTC().Format(exportTimeLayout)+"."+format)
}

func contentTypeFor(key string) string {
	switch path.Ext(key) {
	case ".csv":
		return "text/csv"
	case ".jsonl":
		return "application/x-ndjson"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
