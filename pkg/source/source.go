// Package source opens scan inputs: local files, gzip files, stdin and S3 objects.
package source

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/logflow/actionlog/pkg/errors"
	"github.com/logflow/actionlog/pkg/storage/s3"
	"github.com/logflow/actionlog/pkg/util"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// Retry defaults for S3 calls.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// Opener resolves input paths to readers.
// The S3 client is created on first use.
type Opener struct {
	stdin      io.Reader
	s3cfg      s3.Config
	attempts   int
	retryDelay time.Duration

	once     sync.Once
	client   *s3.Client
	clientEr error
}

// NewOpener creates an Opener that uses s3cfg for s3:// paths.
func NewOpener(s3cfg s3.Config) *Opener {
	return &Opener{
		stdin:      os.Stdin,
		s3cfg:      s3cfg,
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
	}
}

// WithStdin replaces os.Stdin as the reader for "-".
func (o *Opener) WithStdin(r io.Reader) *Opener {
	o.stdin = r
	return o
}

// Open returns a reader for path. Gzip input is decompressed transparently.
// Errors carry codes from pkg/errors.
func (o *Opener) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	switch {
	case path == Stdin:
		r, err := util.MaybeGzip(o.stdin)
		if err != nil {
			return nil, errors.WrapIO(err, "stdin")
		}
		return io.NopCloser(r), nil

	case s3.IsURL(path):
		return o.openS3(ctx, path)

	default:
		rc, err := util.OpenFile(path)
		if err != nil {
			return nil, errors.WrapIO(err, path)
		}
		return rc, nil
	}
}

func (o *Opener) openS3(ctx context.Context, path string) (io.ReadCloser, error) {
	loc, err := s3.ParseURL(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidFormat, "invalid S3 path").WithContext("path", path)
	}
	client, err := o.s3Client(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSourceFailed, "S3 client unavailable").WithContext("path", path)
	}

	var body io.ReadCloser
	err = Retry(ctx, o.attempts, o.retryDelay, func() error {
		var err error
		body, _, err = client.Open(ctx, loc)
		return remoteError(err, path)
	})
	if err != nil {
		return nil, err
	}
	if !util.IsGzipFile(loc.Key) {
		return body, nil
	}
	rc, err := util.NewGzipReadCloser(body)
	if err != nil {
		body.Close()
		return nil, errors.WrapIO(err, path)
	}
	return rc, nil
}

// Upload stores the contents of body at the s3:// URL path. body is rewound
// before every attempt.
func (o *Opener) Upload(ctx context.Context, path string, body io.ReadSeeker, contentType string) error {
	loc, err := s3.ParseURL(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidFormat, "invalid S3 path").WithContext("path", path)
	}
	client, err := o.s3Client(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeSourceFailed, "S3 client unavailable").WithContext("path", path)
	}
	return Retry(ctx, o.attempts, o.retryDelay, func() error {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return errors.Wrap(err, errors.CodeWriteFailed, "failed to rewind upload").WithContext("path", path)
		}
		return remoteError(client.Upload(ctx, loc, body, contentType), path)
	})
}

func remoteError(err error, path string) error {
	if err == nil {
		return nil
	}
	if s3.IsNotFound(err) {
		return errors.Wrap(err, errors.CodeFileNotFound, "S3 object not found").WithContext("path", path)
	}
	return errors.WrapRemote(err, path)
}

// Retry calls fn up to attempts times while it fails with a retryable error,
// waiting delay, then twice delay, and so on between calls.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || !errors.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.WrapIO(ctx.Err(), "")
		case <-time.After(time.Duration(attempt) * delay):
		}
	}
	return errors.Wrapf(err, errors.GetCode(err), "giving up after %d attempts", attempts)
}

func (o *Opener) s3Client(ctx context.Context) (*s3.Client, error) {
	o.once.Do(func() {
		o.client, o.clientEr = s3.NewClient(ctx, o.s3cfg)
	})
	return o.client, o.clientEr
}

// Name returns a display name for path.
func Name(path string) string {
	if path == Stdin {
		return "stdin"
	}
	return path
}
