package core

import (
	"errors"
	"time"
)

// Protocol limits
const (
	// MaxHeaderBytes bounds the request line plus headers, terminator
	// included. Larger heads are answered with 431.
	MaxHeaderBytes = 8 << 10

	// MaxBodyBytes bounds the declared Content-Length. Larger bodies are
	// answered with 413 before any of the body is read.
	MaxBodyBytes = 10 << 20

	// MaxKeepAliveRequests is the number of exchanges served on one
	// connection; the last one is sent with "Connection: close".
	MaxKeepAliveRequests = 1000

	// ReadTimeout is advertised in the Keep-Alive header. Reads are not
	// bounded by it.
	ReadTimeout = 5 * time.Second
)

// ServerName is sent in the Server header.
const ServerName = "Tez/1.0"

// KeepAliveParams is the Keep-Alive header value on persistent connections.
var KeepAliveParams = "timeout=" + itoa(int(ReadTimeout/time.Second)) + ", max=" + itoa(MaxKeepAliveRequests)

// pollInterval bounds each poller wait so shutdown is noticed promptly.
const pollInterval = 100 * time.Millisecond

// Error definitions
var (
	ErrNotListening = errors.New("engine is not listening")
	ErrServerClosed = errors.New("engine closed")
)

func itoa(i int) string {
	return string(appendInt(nil, i))
}

// Helper function to append int to byte slice
func appendInt(b []byte, i int) []byte {
	if i == 0 {
		return append(b, '0')
	}

	if i < 0 {
		b = append(b, '-')
		i = -i
	}

	var digits [20]byte
	n := 0
	for i > 0 {
		digits[n] = byte('0' + i%10)
		i /= 10
		n++
	}

	for n > 0 {
		n--
		b = append(b, digits[n])
	}

	return b
}
