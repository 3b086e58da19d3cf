package pools

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

// BytePool recycles byte slices in power-of-two size classes between a
// minimum and a maximum size. Buffers handed out have len == cap.
type BytePool struct {
	minShift int
	classes  []sync.Pool

	// buffers allocated because their class was empty or too large
	allocs atomic.Uint64
}

// NewBytePool creates a pool whose classes run from minSize up to maxSize,
// both rounded up to a power of two.
func NewBytePool(minSize, maxSize int) *BytePool {
	minShift := shiftFor(max(minSize, 1))
	maxShift := shiftFor(max(maxSize, minSize, 1))

	return &BytePool{
		minShift: minShift,
		classes:  make([]sync.Pool, maxShift-minShift+1),
	}
}

// shiftFor returns the exponent of the smallest power of two >= n.
func shiftFor(n int) int {
	return bits.Len(uint(n - 1))
}

// Get returns a buffer of at least size bytes. Sizes above the largest
// class are allocated directly and never pooled.
func (bp *BytePool) Get(size int) *[]byte {
	class := shiftFor(max(size, 1)) - bp.minShift
	if class < 0 {
		class = 0
	}
	if class >= len(bp.classes) {
		bp.allocs.Add(1)
		buf := make([]byte, size)
		return &buf
	}

	if buf, ok := bp.classes[class].Get().(*[]byte); ok {
		return buf
	}
	bp.allocs.Add(1)
	buf := make([]byte, 1<<(class+bp.minShift))
	return &buf
}

// Put returns a buffer obtained from Get. Buffers whose capacity is not
// exactly one of the pool's classes are left to the GC.
func (bp *BytePool) Put(buf *[]byte) {
	if buf == nil {
		return
	}

	c := cap(*buf)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	class := bits.TrailingZeros(uint(c)) - bp.minShift
	if class < 0 || class >= len(bp.classes) {
		return
	}

	*buf = (*buf)[:c]
	bp.classes[class].Put(buf)
}

// Allocs reports how many buffers Get had to allocate.
func (bp *BytePool) Allocs() uint64 {
	return bp.allocs.Load()
}
