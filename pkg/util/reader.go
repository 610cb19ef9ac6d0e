// Package util provides utility functions for file operations.
package util

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// gzipMagic is the two-byte header of a gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// OpenFile opens a file, automatically decompressing if it's gzip-compressed.
// The caller must close the returned reader.
func OpenFile(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !IsGzipFile(path) {
		return file, nil
	}
	rc, err := NewGzipReadCloser(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return rc, nil
}

// NewGzipReadCloser decompresses rc. Closing the result closes rc.
func NewGzipReadCloser(rc io.ReadCloser) (io.ReadCloser, error) {
	gz, err := gzip.NewReader(rc)
	if err != nil {
		return nil, err
	}
	return &gzipReadCloser{Reader: gz, under: rc}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	under io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	g.Reader.Close()
	return g.under.Close()
}

// MaybeGzip peeks at r and decompresses it when it starts with a gzip header.
// It is used for stdin, where no file name says whether the stream is compressed.
func MaybeGzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil || head[0] != gzipMagic[0] || head[1] != gzipMagic[1] {
		// Short or empty streams are passed through as plain text.
		return br, nil
	}
	return gzip.NewReader(br)
}

// IsGzipFile returns true if the file path indicates gzip compression.
func IsGzipFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// StripCompression removes compression extensions (.gz) from a path.
func StripCompression(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".gz") {
		return path[:len(path)-3]
	}
	return path
}

// BaseFormat extracts the format extension after stripping compression.
// e.g., "session.log.gz" -> ".log", "actions.csv" -> ".csv"
func BaseFormat(path string) string {
	stripped := StripCompression(path)
	return strings.ToLower(filepath.Ext(stripped))
}
