package writer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/logflow/actionlog/internal/model"
)

// SheetName is the worksheet that holds exported records.
const SheetName = "Actions"

// XLSXWriter streams records into a single worksheet.
// The workbook is written to the output on Close.
type XLSXWriter struct {
	mu     sync.Mutex
	out    io.Writer
	file   *excelize.File
	stream *excelize.StreamWriter
	rows   int64
	closed bool
}

// NewXLSXWriter creates an XLSX writer with a header row.
func NewXLSXWriter(out io.Writer, cfg Config) (*XLSXWriter, error) {
	cfg = cfg.withDefaults()

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name worksheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Creator:     "actionlog",
		Identifier:  cfg.RunID,
		Title:       "Action records",
		Description: cfg.Source,
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set workbook properties: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}
	// Column widths must be set before the first row.
	if err := sw.SetColWidth(3, 3, 40); err != nil {
		f.Close()
		return nil, err
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	return &XLSXWriter{out: out, file: f, stream: sw}, nil
}

// Write implements the Writer interface.
func (w *XLSXWriter) Write(ctx context.Context, records <-chan *model.ActionRecord) error {
	return drain(ctx, records, w.WriteRecord)
}

// WriteRecord appends a row for rec.
func (w *XLSXWriter) WriteRecord(rec *model.ActionRecord) error {
	extra, err := encodeExtra(rec.Extra)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cell, err := excelize.CoordinatesToCellName(1, int(w.rows)+2)
	if err != nil {
		return err
	}
	values := []interface{}{
		rec.Line,
		rec.Timestamp,
		rec.GUID,
		rec.Operation,
		rec.FeatureName,
		rec.TextCategory,
		rec.LayersSource,
		rec.SourceLine,
		extra,
	}
	if err := w.stream.SetRow(cell, values); err != nil {
		return fmt.Errorf("failed to write row %s: %w", cell, err)
	}
	w.rows++
	return nil
}

// Close finishes the worksheet and writes the workbook.
func (w *XLSXWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	defer w.file.Close()

	if err := w.stream.Flush(); err != nil {
		return fmt.Errorf("failed to flush worksheet: %w", err)
	}
	if err := w.file.Write(w.out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// RowsWritten returns the number of records written.
func (w *XLSXWriter) RowsWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}
