package writer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"github.com/logflow/actionlog/internal/model"
)

// CSVWriter writes records as CSV with a header row.
type CSVWriter struct {
	mu   sync.Mutex
	w    *csv.Writer
	rows int64
}

// NewCSVWriter creates a CSV writer and writes the header.
func NewCSVWriter(out io.Writer) (*CSVWriter, error) {
	w := csv.NewWriter(out)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	return &CSVWriter{w: w}, nil
}

// Write implements the Writer interface.
func (w *CSVWriter) Write(ctx context.Context, records <-chan *model.ActionRecord) error {
	return drain(ctx, records, w.WriteRecord)
}

// WriteRecord writes a single record.
func (w *CSVWriter) WriteRecord(rec *model.ActionRecord) error {
	fields, err := row(rec)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Write(fields); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	w.rows++
	return nil
}

// Close flushes buffered output.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.w.Flush()
	return w.w.Error()
}

// RowsWritten returns the number of records written.
func (w *CSVWriter) RowsWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}
