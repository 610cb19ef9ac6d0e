package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/logflow/actionlog/pkg/errors"
	"github.com/logflow/actionlog/pkg/storage/s3"
)

func TestOpener_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	if err := os.WriteFile(path, []byte("1 | T | x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	rc, err := NewOpener(s3.DefaultConfig("us-east-1")).Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "1 | T | x\n" {
		t.Errorf("read %q", got)
	}
}

func TestOpener_Stdin(t *testing.T) {
	o := NewOpener(s3.DefaultConfig("")).WithStdin(strings.NewReader("piped\n"))
	rc, err := o.Open(context.Background(), Stdin)
	if err != nil {
		t.Fatalf("Open(-) = %v", err)
	}
	got, _ := io.ReadAll(rc)
	if string(got) != "piped\n" {
		t.Errorf("read %q", got)
	}
}

func TestOpener_MissingFile(t *testing.T) {
	_, err := NewOpener(s3.DefaultConfig("")).Open(context.Background(), filepath.Join(t.TempDir(), "nope.log"))
	if !errors.IsCode(err, errors.CodeFileNotFound) {
		t.Errorf("Open(missing) code = %s, want %s", errors.GetCode(err), errors.CodeFileNotFound)
	}
}

func TestOpener_BadS3URL(t *testing.T) {
	_, err := NewOpener(s3.DefaultConfig("")).Open(context.Background(), "s3://bucket-only")
	if !errors.IsCode(err, errors.CodeInvalidFormat) {
		t.Errorf("Open(bad url) code = %s, want %s", errors.GetCode(err), errors.CodeInvalidFormat)
	}
}

func TestName(t *testing.T) {
	if Name(Stdin) != "stdin" || Name("a.log") != "a.log" {
		t.Errorf("Name() mismatch")
	}
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		wantCalls int
		wantCode  errors.Code
	}{
		{"first try", nil, 1, ""},
		{"recovers", []error{errors.New(errors.CodeSourceFailed, "503"), errors.New(errors.CodeTimeout, "slow")}, 3, ""},
		{"gives up", []error{
			errors.New(errors.CodeSourceFailed, "503"),
			errors.New(errors.CodeSourceFailed, "503"),
			errors.New(errors.CodeSourceFailed, "503"),
		}, 3, errors.CodeSourceFailed},
		{"not retryable", []error{errors.New(errors.CodeFileNotFound, "no such key")}, 1, errors.CodeFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), 3, time.Millisecond, func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("Retry() = %v, want nil", err)
				}
				return
			}
			if got := errors.GetCode(err); got != tt.wantCode {
				t.Errorf("GetCode(Retry()) = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestRetry_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return errors.New(errors.CodeSourceFailed, "503")
	})
	if calls != 1 || !errors.IsCode(err, errors.CodeContextCanceled) {
		t.Errorf("calls = %d, err = %v, want one call and a canceled error", calls, err)
	}
}
