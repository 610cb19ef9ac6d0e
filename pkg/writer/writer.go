// Package writer exports action records to JSONL, CSV, XLSX and Parquet.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/logflow/actionlog/internal/model"
	"github.com/logflow/actionlog/pkg/util"
)

// Writer defines the interface for writing action records to an output format.
type Writer interface {
	// Write drains records until the channel closes or ctx is done.
	Write(ctx context.Context, records <-chan *model.ActionRecord) error

	// WriteRecord writes a single record.
	WriteRecord(rec *model.ActionRecord) error

	// Close flushes buffered data and finishes the output.
	Close() error

	// RowsWritten returns the number of records written so far.
	RowsWritten() int64
}

// Format names an export format.
type Format string

const (
	FormatJSONL   Format = "jsonl"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// Formats lists the supported export formats.
var Formats = []Format{FormatJSONL, FormatCSV, FormatXLSX, FormatParquet}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSONL, FormatCSV, FormatXLSX, FormatParquet:
		return f, nil
	case "ndjson", "json":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("writer: unknown format %q", s)
	}
}

// FormatFromPath picks the format implied by the output file extension.
func FormatFromPath(path string) (Format, error) {
	ext := util.BaseFormat(path)
	if ext == "" {
		return "", fmt.Errorf("writer: cannot infer format from %q", path)
	}
	return ParseFormat(strings.TrimPrefix(ext, "."))
}

// ContentType returns the MIME type used when uploading f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/x-ndjson"
	}
}

// Config holds writer configuration.
type Config struct {
	// BatchSize is the number of records per Parquet record batch.
	BatchSize int

	// Compression type for Parquet output.
	Compression CompressionType

	// RunID identifies the export in file metadata. Generated when empty.
	RunID string

	// Source is the scanned input, recorded in file metadata.
	Source string
}

// CompressionType represents Parquet compression options.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionGzip
	CompressionZstd
	CompressionLZ4
)

// String returns the compression type name.
func (c CompressionType) String() string {
	switch c {
	case CompressionSnappy:
		return "snappy"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "none"
	}
}

// ParseCompression parses a compression type string.
func ParseCompression(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "gzip":
		return CompressionGzip
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:   1024,
		Compression: CompressionSnappy,
	}
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultConfig().BatchSize
	}
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	return c
}

// New creates a writer for format that writes to out.
func New(format Format, out io.Writer, cfg Config) (Writer, error) {
	cfg = cfg.withDefaults()
	switch format {
	case FormatJSONL:
		return NewJSONLWriter(out), nil
	case FormatCSV:
		return NewCSVWriter(out)
	case FormatXLSX:
		return NewXLSXWriter(out, cfg)
	case FormatParquet:
		return NewParquetWriter(out, cfg)
	default:
		return nil, fmt.Errorf("writer: unknown format %q", format)
	}
}

// Columns is the tabular layout shared by the CSV, XLSX and Parquet writers.
var Columns = []string{
	"line",
	"timestamp",
	"guid",
	"operation",
	"feature_name",
	"text_category",
	"layers_source",
	"source_line",
	"extra",
}

// row flattens rec in Columns order. Extra is JSON-encoded, or empty.
func row(rec *model.ActionRecord) ([]string, error) {
	extra, err := encodeExtra(rec.Extra)
	if err != nil {
		return nil, err
	}
	return []string{
		strconv.FormatInt(rec.Line, 10),
		rec.Timestamp,
		rec.GUID,
		rec.Operation,
		rec.FeatureName,
		rec.TextCategory,
		rec.LayersSource,
		strconv.Itoa(rec.SourceLine),
		extra,
	}, nil
}

func encodeExtra(extra map[string]string) (string, error) {
	if len(extra) == 0 {
		return "", nil
	}
	// encoding/json sorts map keys.
	b, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("writer: encode extra: %w", err)
	}
	return string(b), nil
}

// drain feeds records from the channel to write until it closes.
func drain(ctx context.Context, records <-chan *model.ActionRecord, write func(*model.ActionRecord) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-records:
			if !ok {
				return nil
			}
			if err := write(rec); err != nil {
				return err
			}
		}
	}
}
