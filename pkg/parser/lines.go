package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/logflow/actionlog/internal/pool"
)

// lineFunc is called once per input line with its 1-based position.
type lineFunc func(lineNumber int, raw string) error

// utf8BOM is dropped from the start of the first line.
const utf8BOM = "\ufeff"

// forEachLine reads r line by line and calls fn for each line, in order.
// "\n", "\r\n" and a lone "\r" all end a line, and terminators are removed;
// no other trimming is done apart from a leading byte order mark. It returns
// the number of lines read.
func forEachLine(ctx context.Context, r io.Reader, bufferSize int, fn lineFunc) (int, error) {
	readers := pool.Shared(bufferSize)
	reader := readers.Get(r)
	defer readers.Put(reader)

	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, ErrContextCanceled
		default:
		}

		chunk, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return n, fmt.Errorf("parser: read after line %d: %w", n, err)
		}
		if len(chunk) == 0 && err == io.EOF {
			return n, nil
		}

		chunk = strings.TrimSuffix(chunk, "\n")
		chunk = strings.TrimSuffix(chunk, "\r")
		for _, line := range strings.Split(chunk, "\r") {
			n++
			if n == 1 {
				line = strings.TrimPrefix(line, utf8BOM)
			}
			if ferr := fn(n, line); ferr != nil {
				return n, ferr
			}
		}

		if err == io.EOF {
			return n, nil
		}
	}
}
