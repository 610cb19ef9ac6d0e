package writer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/logflow/actionlog/internal/model"
)

// Metadata keys stored in the Parquet schema.
const (
	MetaRunID  = "actionlog.run_id"
	MetaSource = "actionlog.source"
)

// ParquetWriter writes records to Parquet format using Apache Arrow.
type ParquetWriter struct {
	cfg    Config
	schema *arrow.Schema
	writer *pqarrow.FileWriter

	// Arrow builders, one per column
	lineBuilder       *array.Int64Builder
	timestampBuilder  *array.StringBuilder
	guidBuilder       *array.StringBuilder
	operationBuilder  *array.StringBuilder
	featureBuilder    *array.StringBuilder
	categoryBuilder   *array.StringBuilder
	layersBuilder     *array.StringBuilder
	sourceLineBuilder *array.Int64Builder
	extraBuilder      *array.StringBuilder

	mu               sync.Mutex
	rowCount         int
	totalRowsWritten int64
	closed           bool
}

// recordSchema returns the Arrow schema for action records.
func recordSchema(cfg Config) *arrow.Schema {
	md := arrow.NewMetadata(
		[]string{MetaRunID, MetaSource},
		[]string{cfg.RunID, cfg.Source},
	)
	return arrow.NewSchema([]arrow.Field{
		{Name: "line", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "timestamp", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "guid", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "operation", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "feature_name", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "text_category", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "layers_source", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "source_line", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "extra", Type: arrow.BinaryTypes.String, Nullable: true},
	}, &md)
}

// NewParquetWriter creates a new Parquet writer.
func NewParquetWriter(output io.Writer, cfg Config) (*ParquetWriter, error) {
	cfg = cfg.withDefaults()
	allocator := memory.NewGoAllocator()
	schema := recordSchema(cfg)

	var codec compress.Compression
	switch cfg.Compression {
	case CompressionSnappy:
		codec = compress.Codecs.Snappy
	case CompressionGzip:
		codec = compress.Codecs.Gzip
	case CompressionZstd:
		codec = compress.Codecs.Zstd
	case CompressionLZ4:
		codec = compress.Codecs.Lz4
	default:
		codec = compress.Codecs.Uncompressed
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
	)

	writer, err := pqarrow.NewFileWriter(schema, output, writerProps, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	pw := &ParquetWriter{
		cfg:               cfg,
		schema:            schema,
		writer:            writer,
		lineBuilder:       array.NewInt64Builder(allocator),
		timestampBuilder:  array.NewStringBuilder(allocator),
		guidBuilder:       array.NewStringBuilder(allocator),
		operationBuilder:  array.NewStringBuilder(allocator),
		featureBuilder:    array.NewStringBuilder(allocator),
		categoryBuilder:   array.NewStringBuilder(allocator),
		layersBuilder:     array.NewStringBuilder(allocator),
		sourceLineBuilder: array.NewInt64Builder(allocator),
		extraBuilder:      array.NewStringBuilder(allocator),
	}
	return pw, nil
}

// Write implements the Writer interface.
func (w *ParquetWriter) Write(ctx context.Context, records <-chan *model.ActionRecord) error {
	return drain(ctx, records, w.WriteRecord)
}

// WriteRecord buffers a record, writing a batch when BatchSize is reached.
func (w *ParquetWriter) WriteRecord(rec *model.ActionRecord) error {
	extra, err := encodeExtra(rec.Extra)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.lineBuilder.Append(rec.Line)
	w.timestampBuilder.Append(rec.Timestamp)
	w.guidBuilder.Append(rec.GUID)
	w.operationBuilder.Append(rec.Operation)
	w.featureBuilder.Append(rec.FeatureName)
	w.categoryBuilder.Append(rec.TextCategory)
	w.layersBuilder.Append(rec.LayersSource)
	w.sourceLineBuilder.Append(int64(rec.SourceLine))
	if extra != "" {
		w.extraBuilder.Append(extra)
	} else {
		w.extraBuilder.AppendNull()
	}
	w.rowCount++

	if w.rowCount >= w.cfg.BatchSize {
		return w.flushBatch()
	}
	return nil
}

// flushBatch writes the current batch to Parquet.
func (w *ParquetWriter) flushBatch() error {
	if w.rowCount == 0 {
		return nil
	}

	cols := []arrow.Array{
		w.lineBuilder.NewArray(),
		w.timestampBuilder.NewArray(),
		w.guidBuilder.NewArray(),
		w.operationBuilder.NewArray(),
		w.featureBuilder.NewArray(),
		w.categoryBuilder.NewArray(),
		w.layersBuilder.NewArray(),
		w.sourceLineBuilder.NewArray(),
		w.extraBuilder.NewArray(),
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	batch := array.NewRecord(w.schema, cols, int64(w.rowCount))
	defer batch.Release()

	if err := w.writer.Write(batch); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}

	w.totalRowsWritten += int64(w.rowCount)
	w.rowCount = 0
	return nil
}

// Close flushes remaining rows and writes the Parquet footer.
func (w *ParquetWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	if err := w.flushBatch(); err != nil {
		return err
	}
	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	w.lineBuilder.Release()
	w.timestampBuilder.Release()
	w.guidBuilder.Release()
	w.operationBuilder.Release()
	w.featureBuilder.Release()
	w.categoryBuilder.Release()
	w.layersBuilder.Release()
	w.sourceLineBuilder.Release()
	w.extraBuilder.Release()

	w.closed = true
	return nil
}

// RowsWritten returns the number of records written, including buffered rows.
func (w *ParquetWriter) RowsWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalRowsWritten + int64(w.rowCount)
}
