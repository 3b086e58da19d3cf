package pools

import "sync"

// Frame buffers hold one serialized response at a time. Responses larger
// than the biggest class are built in a fresh slice and not pooled.
var (
	smallFramePool = sync.Pool{
		New: func() any {
			buf := make([]byte, 0, 2048)
			return &buf
		},
	}

	mediumFramePool = sync.Pool{
		New: func() any {
			buf := make([]byte, 0, 8192)
			return &buf
		},
	}

	largeFramePool = sync.Pool{
		New: func() any {
			buf := make([]byte, 0, 32768)
			return &buf
		},
	}
)

// AcquireFrameBuffer returns an empty buffer sized for estimatedSize bytes.
func AcquireFrameBuffer(estimatedSize int) *[]byte {
	switch {
	case estimatedSize <= 2048:
		return smallFramePool.Get().(*[]byte)
	case estimatedSize <= 8192:
		return mediumFramePool.Get().(*[]byte)
	case estimatedSize <= 32768:
		return largeFramePool.Get().(*[]byte)
	}
	buf := make([]byte, 0, estimatedSize)
	return &buf
}

// ReleaseFrameBuffer returns buf to the pool matching its capacity.
func ReleaseFrameBuffer(buf *[]byte) {
	if buf == nil {
		return
	}

	*buf = (*buf)[:0]

	c := cap(*buf)
	switch {
	case c <= 2048:
		smallFramePool.Put(buf)
	case c <= 8192:
		mediumFramePool.Put(buf)
	case c <= 32768:
		largeFramePool.Put(buf)
	}
	// Oversized buffers are not pooled
}
