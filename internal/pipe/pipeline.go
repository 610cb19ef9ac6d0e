// Package pipe connects log readers, the action parser and record writers.
package pipe

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/logflow/actionlog/internal/model"
	"github.com/logflow/actionlog/pkg/parser"
	"github.com/logflow/actionlog/pkg/writer"
)

// progressInterval is the minimum time between progress callbacks.
const progressInterval = 100 * time.Millisecond

// Pipeline orchestrates the Reader -> Parser -> Writer data flow.
type Pipeline struct {
	parserCfg parser.Config

	// RecordBufferSize is the channel buffer between parser and writer.
	recordBufferSize int

	// Statistics (atomic for lock-free access)
	bytesRead      atomic.Int64
	recordsWritten atomic.Int64

	progressFn func(stats ProgressStats)
}

// ProgressStats provides real-time pipeline statistics.
type ProgressStats struct {
	BytesRead      int64
	RecordsWritten int64
	BytesPerSecond float64
	ElapsedTime    time.Duration
}

// Config holds pipeline configuration.
type Config struct {
	ParserConfig parser.Config

	// RecordBufferSize is the channel buffer size between stages.
	RecordBufferSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ParserConfig:     parser.DefaultConfig(),
		RecordBufferSize: 256,
	}
}

// NewPipeline creates a new pipeline with the given configuration.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.RecordBufferSize <= 0 {
		cfg.RecordBufferSize = DefaultConfig().RecordBufferSize
	}
	return &Pipeline{
		parserCfg:        cfg.ParserConfig,
		recordBufferSize: cfg.RecordBufferSize,
	}
}

// SetProgressCallback sets a callback for progress updates.
func (p *Pipeline) SetProgressCallback(fn func(stats ProgressStats)) {
	p.progressFn = fn
}

// ExportResult contains the results of an export.
type ExportResult struct {
	BytesRead      int64
	RecordsWritten int64
	Duration       time.Duration
}

// Export streams every action record in input to w and closes w.
// Uses errgroup so a failure on either side cancels the other.
func (p *Pipeline) Export(ctx context.Context, input io.Reader, w writer.Writer) (*ExportResult, error) {
	closed := false
	defer func() {
		if !closed {
			w.Close()
		}
	}()

	records := make(chan *model.ActionRecord, p.recordBufferSize)
	counted := &countingReader{r: input, n: &p.bytesRead}
	actions := parser.NewActionParser(p.parserCfg)

	g, ctx := errgroup.WithContext(ctx)
	startTime := time.Now()

	// Parser goroutine (Reader + Parser)
	g.Go(func() error {
		defer close(records)
		if err := actions.Parse(ctx, counted, records); err != nil {
			return fmt.Errorf("parser error at byte %d: %w", p.bytesRead.Load(), err)
		}
		return nil
	})

	// Writer goroutine with progress tracking
	g.Go(func() error {
		lastReport := time.Now()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rec, ok := <-records:
				if !ok {
					return nil
				}
				if err := w.WriteRecord(rec); err != nil {
					return fmt.Errorf("writer error at record %d: %w", p.recordsWritten.Load(), err)
				}
				p.recordsWritten.Add(1)

				if p.progressFn != nil && time.Since(lastReport) > progressInterval {
					p.progressFn(p.stats(startTime))
					lastReport = time.Now()
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	closed = true
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish output: %w", err)
	}

	if p.progressFn != nil {
		p.progressFn(p.stats(startTime))
	}

	return &ExportResult{
		BytesRead:      p.bytesRead.Load(),
		RecordsWritten: p.recordsWritten.Load(),
		Duration:       time.Since(startTime),
	}, nil
}

func (p *Pipeline) stats(start time.Time) ProgressStats {
	elapsed := time.Since(start)
	return ProgressStats{
		BytesRead:      p.bytesRead.Load(),
		RecordsWritten: p.recordsWritten.Load(),
		BytesPerSecond: float64(p.bytesRead.Load()) / elapsed.Seconds(),
		ElapsedTime:    elapsed,
	}
}

type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
