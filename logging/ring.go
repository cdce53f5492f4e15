package logging

import (
	"io"
	"sync"
	"sync/atomic"
)

// ring is a byte ring with one consumer. Producers are serialised by the
// owner; indices are monotonic and wrap through mask.
type ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32
	wr   atomic.Uint32

	readable chan struct{} // data written since the consumer last woke
}

func newRing(size int) *ring {
	if size < 2 || size&(size-1) != 0 {
		panic("logging: ring size must be a power of two >= 2")
	}
	return &ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
	}
}

func (r *ring) space() int {
	return len(r.buf) - int(r.wr.Load()-r.rd.Load())
}

// write copies as much of src as fits and returns the count.
func (r *ring) write(src []byte) int {
	rd, wr := r.rd.Load(), r.wr.Load()
	n := len(r.buf) - int(wr-rd)
	if n > len(src) {
		n = len(src)
	}
	if n <= 0 {
		return 0
	}
	i := wr & r.mask
	first := copy(r.buf[i:], src[:n])
	copy(r.buf, src[first:n])
	r.wr.Store(wr + uint32(n))
	select {
	case r.readable <- struct{}{}:
	default:
	}
	return n
}

func (r *ring) read(dst []byte) int {
	rd, wr := r.rd.Load(), r.wr.Load()
	n := int(wr - rd)
	if n > len(dst) {
		n = len(dst)
	}
	if n <= 0 {
		return 0
	}
	i := rd & r.mask
	end := int(i) + n
	if end <= len(r.buf) {
		copy(dst, r.buf[i:end])
	} else {
		first := copy(dst, r.buf[i:])
		copy(dst[first:n], r.buf[:n-first])
	}
	r.rd.Store(rd + uint32(n))
	return n
}

// AsyncWriter buffers log records in a ring and drains them to the
// underlying writer on its own goroutine. A record that does not fit
// whole is dropped and counted.
type AsyncWriter struct {
	mu      sync.Mutex
	r       *ring
	dst     io.Writer
	dropped atomic.Uint32
}

// NewAsyncWriter starts the drain goroutine. size must be a power of two.
func NewAsyncWriter(dst io.Writer, size int) *AsyncWriter {
	w := &AsyncWriter{r: newRing(size), dst: dst}
	go w.drain()
	return w
}

func (w *AsyncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.r.space() < len(p) {
		w.dropped.Add(1)
		return len(p), nil
	}
	w.r.write(p)
	return len(p), nil
}

// Dropped is the number of records discarded on overflow.
func (w *AsyncWriter) Dropped() uint32 { return w.dropped.Load() }

func (w *AsyncWriter) drain() {
	buf := make([]byte, 128)
	for range w.r.readable {
		for {
			n := w.r.read(buf)
			if n == 0 {
				break
			}
			_, _ = w.dst.Write(buf[:n])
		}
	}
}
