package hostfuncs

import (
	"bytes"
	"sync"
)

// DefaultMaxOutputSize is the default limit for the unread stdout and
// stderr kept for each child process (10MB).
const DefaultMaxOutputSize = 10 * 1024 * 1024

// BoundedBuffer is a pipe-like byte queue holding at most limit unread
// bytes. Bytes written while the queue is full are dropped and counted.
// Reading with Next releases room for later writes. A writer and a reader
// may use it concurrently.
type BoundedBuffer struct {
	mu      sync.Mutex
	buffer  bytes.Buffer
	limit   int
	dropped int
}

// NewBoundedBuffer creates a BoundedBuffer holding at most limit unread
// bytes.
func NewBoundedBuffer(limit int) *BoundedBuffer {
	return &BoundedBuffer{limit: limit}
}

// Write implements io.Writer. It queues what fits and drops the rest, but
// always reports len(p) so a copying goroutine keeps draining the source.
func (b *BoundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := max(b.limit-b.buffer.Len(), 0)
	if len(p) > room {
		b.dropped += len(p) - room
		if _, err := b.buffer.Write(p[:room]); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	return b.buffer.Write(p)
}

// Next removes and returns up to n unread bytes, or all of them when n is
// not positive. The result is a copy owned by the caller.
func (b *BoundedBuffer) Next(n int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 {
		n = b.buffer.Len()
	}
	return bytes.Clone(b.buffer.Next(n))
}

// Len returns the number of unread bytes.
func (b *BoundedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Len()
}

// Dropped returns how many written bytes did not fit.
func (b *BoundedBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Reset discards unread bytes and clears the dropped count.
func (b *BoundedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffer.Reset()
	b.dropped = 0
}
