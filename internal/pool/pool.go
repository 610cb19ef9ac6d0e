// Package pool provides reusable read buffers using sync.Pool.
package pool

import (
	"bufio"
	"io"
	"sync"
)

// DefaultBufferSize is the default size for line reader buffers.
const DefaultBufferSize = 64 * 1024 // 64KB

// ReaderPool manages reusable bufio.Readers of a fixed size.
// Watch mode rescans the same log repeatedly, and multi-file scans run
// one reader per worker, so buffers are recycled between passes.
type ReaderPool struct {
	pool sync.Pool
	size int
}

// NewReaderPool creates a new reader pool with the specified buffer size.
func NewReaderPool(bufferSize int) *ReaderPool {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	rp := &ReaderPool{size: bufferSize}
	rp.pool.New = func() any {
		return bufio.NewReaderSize(nil, bufferSize)
	}
	return rp
}

// Get retrieves a reader from the pool, reset to read from r.
func (p *ReaderPool) Get(r io.Reader) *bufio.Reader {
	br := p.pool.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// Put returns a reader to the pool.
func (p *ReaderPool) Put(br *bufio.Reader) {
	br.Reset(nil)
	p.pool.Put(br)
}

// Size returns the buffer size of pooled readers.
func (p *ReaderPool) Size() int {
	return p.size
}

var (
	sharedMu    sync.Mutex
	sharedPools = make(map[int]*ReaderPool)
)

// Shared returns the process-wide pool for the given buffer size.
func Shared(bufferSize int) *ReaderPool {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if p, ok := sharedPools[bufferSize]; ok {
		return p
	}
	p := NewReaderPool(bufferSize)
	sharedPools[bufferSize] = p
	return p
}
