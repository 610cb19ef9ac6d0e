package parser

import (
	"context"
	"io"

	"github.com/logflow/actionlog/internal/model"
)

// ActionParser streams action records out of a log.
type ActionParser struct {
	cfg Config
}

// NewActionParser creates a new action parser.
func NewActionParser(cfg Config) *ActionParser {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &ActionParser{cfg: cfg}
}

// Parse implements the Parser interface.
// Records are sent in the order their blocks close. A block still open at
// end of input yields nothing.
func (p *ActionParser) Parse(ctx context.Context, r io.Reader, out chan<- *model.ActionRecord) error {
	acc := NewAccumulator(p.cfg)

	_, err := forEachLine(ctx, r, p.cfg.BufferSize, func(n int, raw string) error {
		line, numbered := Classify(raw, n)
		rec, ok := acc.Feed(line, numbered)
		if !ok {
			return nil
		}
		select {
		case out <- rec:
			return nil
		case <-ctx.Done():
			return ErrContextCanceled
		}
	})
	return err
}

// ExtractActions reads the whole of r and returns every emitted record in
// close order. The record count is len of the result.
func ExtractActions(ctx context.Context, r io.Reader, cfg Config) ([]model.ActionRecord, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	acc := NewAccumulator(cfg)
	var records []model.ActionRecord

	_, err := forEachLine(ctx, r, cfg.BufferSize, func(n int, raw string) error {
		line, numbered := Classify(raw, n)
		if rec, ok := acc.Feed(line, numbered); ok {
			records = append(records, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
