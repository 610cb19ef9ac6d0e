package parser

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/logflow/actionlog/internal/model"
)

// ScanOption configures a Scanner.
type ScanOption func(*Scanner)

// WithFrames enables frame and render size extraction.
func WithFrames(enabled bool) ScanOption {
	return func(s *Scanner) {
		if enabled {
			s.frames = NewFrameExtractor()
		} else {
			s.frames = nil
		}
	}
}

// WithLogger traces block transitions at debug level.
func WithLogger(log logrus.FieldLogger) ScanOption {
	return func(s *Scanner) {
		s.log = log
	}
}

// Scanner runs the classifier, the block accumulator and, optionally, the
// frame extractor over a log in a single forward pass.
type Scanner struct {
	cfg    Config
	frames *FrameExtractor
	log    logrus.FieldLogger
}

// NewScanner creates a Scanner. Frame extraction is off unless WithFrames
// is given.
func NewScanner(cfg Config, opts ...ScanOption) *Scanner {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	s := &Scanner{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	return s
}

// Config returns the grammar the scanner was built with.
func (s *Scanner) Config() Config {
	return s.cfg
}

// Scan reads the whole of r and returns what it found.
// Frame lines are only inspected outside action blocks.
func (s *Scanner) Scan(ctx context.Context, r io.Reader) (*model.Report, error) {
	acc := NewAccumulator(s.cfg)
	report := &model.Report{}
	var openedAt int

	n, err := forEachLine(ctx, r, s.cfg.BufferSize, func(n int, raw string) error {
		line, numbered := Classify(raw, n)

		wasInBlock := acc.State() == StateInBlock
		opener := acc.opens(line, numbered)

		rec, ok := acc.Feed(line, numbered)
		switch {
		case opener:
			if wasInBlock {
				report.Blocks.Superseded++
				s.log.WithFields(logrus.Fields{"line": n, "opened_at": openedAt}).Debug("block superseded by new opener")
			}
			report.Blocks.Opened++
			openedAt = n
			s.log.WithFields(logrus.Fields{"line": n, "record": line.RecordNumber}).Debug("block opened")
		case ok:
			report.Blocks.Emitted++
			report.Actions = append(report.Actions, *rec)
			s.log.WithFields(logrus.Fields{"line": n, "guid": rec.GUID}).Debug("block closed")
		case wasInBlock && acc.State() == StateIdle:
			report.Blocks.MissingIdentifier++
			s.log.WithFields(logrus.Fields{"line": n, "opened_at": openedAt}).Debug("block closed without identifier")
		}

		if s.frames == nil || !numbered || wasInBlock || acc.State() == StateInBlock {
			return nil
		}

		frames, render := s.frames.Inspect(line)
		report.FrameChanges = append(report.FrameChanges, frames...)
		if render != nil {
			report.RenderSizes = append(report.RenderSizes, *render)
		}
		return nil
	})
	report.LinesRead = n
	if err != nil {
		return nil, err
	}

	if acc.State() == StateInBlock {
		report.Blocks.Unterminated++
		s.log.WithField("opened_at", openedAt).Debug("block unterminated at end of input")
	}
	return report, nil
}
