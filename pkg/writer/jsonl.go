package writer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/logflow/actionlog/internal/model"
)

// JSONLWriter writes one JSON object per line.
type JSONLWriter struct {
	mu   sync.Mutex
	buf  *bufio.Writer
	enc  *json.Encoder
	rows int64
}

// NewJSONLWriter creates a JSON Lines writer.
func NewJSONLWriter(out io.Writer) *JSONLWriter {
	buf := bufio.NewWriter(out)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{buf: buf, enc: enc}
}

// Write implements the Writer interface.
func (w *JSONLWriter) Write(ctx context.Context, records <-chan *model.ActionRecord) error {
	return drain(ctx, records, w.WriteRecord)
}

// WriteRecord writes a single record.
func (w *JSONLWriter) WriteRecord(rec *model.ActionRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode record at line %d: %w", rec.Line, err)
	}
	w.rows++
	return nil
}

// Close flushes buffered output.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// RowsWritten returns the number of records written.
func (w *JSONLWriter) RowsWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}
