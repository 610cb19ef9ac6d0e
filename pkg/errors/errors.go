// Package errors provides coded errors for ActionLog's input and output
// collaborators. The scanner itself never fails on log content; everything
// here describes failures to open, read or write files and remote objects.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"sort"
	"strings"
)

// Error codes for programmatic handling
type Code string

const (
	// Input errors (1xx)
	CodeFileNotFound   Code = "E101"
	CodeFilePermission Code = "E102"
	CodeInvalidFormat  Code = "E103"
	CodeReadFailed     Code = "E106"

	// Configuration errors (2xx)
	CodeInvalidConfig Code = "E201"

	// Output errors (3xx)
	CodeWriteFailed Code = "E301"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"
	CodeTimeout         Code = "E402"

	// Remote source errors (6xx)
	CodeSourceFailed Code = "E601"

	// Unknown
	CodeUnknown Code = "E999"
)

// ActionLogError is the base error type for all ActionLog errors.
type ActionLogError struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
// Context keys are printed in sorted order.
func (e *ActionLogError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *ActionLogError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target error.
func (e *ActionLogError) Is(target error) bool {
	if t, ok := target.(*ActionLogError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *ActionLogError) WithContext(key string, value interface{}) *ActionLogError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new ActionLogError.
func New(code Code, message string) *ActionLogError {
	return &ActionLogError{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *ActionLogError {
	if err == nil {
		return nil
	}

	return &ActionLogError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *ActionLogError {
	if err == nil {
		return nil
	}
	e := Wrap(err, code, fmt.Sprintf(format, args...))
	e.StackTrace = captureStack(2)
	return e
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *ActionLogError) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// InvalidConfig creates a configuration error.
func InvalidConfig(err error, source string) *ActionLogError {
	return Wrap(err, CodeInvalidConfig, "invalid configuration").WithContext("source", source)
}

// WrapIO classifies a failure to open or read path.
// Missing files, permission problems and cancellation get their own codes;
// anything else is a read failure. Errors that already carry a code are
// returned unchanged.
func WrapIO(err error, path string) error {
	return classify(err, path, CodeReadFailed, "failed to read input")
}

// WrapRemote classifies a failed call to remote storage for path.
// Cancellation and timeouts get their own codes; anything else is a
// retryable source failure.
func WrapRemote(err error, path string) error {
	return classify(err, path, CodeSourceFailed, "remote storage request failed")
}

func classify(err error, path string, fallback Code, message string) error {
	if err == nil {
		return nil
	}
	var alErr *ActionLogError
	if errors.As(err, &alErr) {
		return err
	}

	var e *ActionLogError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		e = Wrap(err, CodeFileNotFound, "file not found")
	case errors.Is(err, fs.ErrPermission):
		e = Wrap(err, CodeFilePermission, "permission denied")
	case errors.Is(err, context.Canceled):
		e = Wrap(err, CodeContextCanceled, "operation canceled")
	case errors.Is(err, context.DeadlineExceeded):
		e = Wrap(err, CodeTimeout, "operation timed out")
	default:
		e = Wrap(err, fallback, message)
	}
	e.StackTrace = captureStack(3)
	return e.WithContext("path", path)
}

// Stack returns the formatted stack trace of the first ActionLogError in
// err's chain, or "" if there is none.
func Stack(err error) string {
	var alErr *ActionLogError
	if errors.As(err, &alErr) {
		return alErr.FormatStack()
	}
	return ""
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var alErr *ActionLogError
	if errors.As(err, &alErr) {
		return alErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var alErr *ActionLogError
	if errors.As(err, &alErr) {
		return alErr.Code
	}
	return CodeUnknown
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeSourceFailed:
		return true
	default:
		return false
	}
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
