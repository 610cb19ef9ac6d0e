package pipe

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/logflow/actionlog/internal/model"
	"github.com/logflow/actionlog/pkg/parser"
)

// Opener opens a scan input by path.
type Opener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// BatchResult is the outcome of scanning one input.
type BatchResult struct {
	Path     string
	Report   *model.Report
	Error    error
	Duration time.Duration
}

// BatchOptions configures ScanAll.
type BatchOptions struct {
	// Workers bounds concurrent scans. Non-positive means one.
	Workers int

	// FailFast cancels outstanding scans after the first failure.
	FailFast bool

	// OnDone is called after each input finishes, from the worker goroutine.
	OnDone func(done, total int64, res BatchResult)
}

// ScanAll scans every path with its own Scanner state. Results are returned
// in the order of paths. Each input is scanned independently, so a block
// left open at the end of one file never continues into the next.
//
// Inputs skipped after a FailFast failure or cancellation of ctx keep a zero
// BatchResult, and scans cut short by that cancellation are not reported as
// failures of their own.
func ScanAll(ctx context.Context, open Opener, scanner *parser.Scanner, paths []string, opts BatchOptions) ([]BatchResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]BatchResult, len(paths))
	total := int64(len(paths))
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path // capture
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := scanOne(gctx, open, scanner, path)
			if gctx.Err() != nil && isCanceled(res.Error) {
				return nil
			}
			results[i] = res

			done := completed.Add(1)
			if opts.OnDone != nil {
				opts.OnDone(done, total, res)
			}
			if res.Error != nil && opts.FailFast {
				return res.Error
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func isCanceled(err error) bool {
	return errors.Is(err, parser.ErrContextCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func scanOne(ctx context.Context, open Opener, scanner *parser.Scanner, path string) BatchResult {
	start := time.Now()
	res := BatchResult{Path: path}

	rc, err := open.Open(ctx, path)
	if err != nil {
		res.Error = err
		res.Duration = time.Since(start)
		return res
	}
	defer rc.Close()

	report, err := scanner.Scan(ctx, rc)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	report.Source = path
	res.Report = report
	return res
}
