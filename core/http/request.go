package http

import (
	"strconv"
	"strings"
	"sync"
)

// Request is a parsed HTTP/1.x request.
type Request struct {
	Method  string
	Path    string
	Version string

	// Headers maps lowercase header names to trimmed values. A repeated
	// header name keeps only its last value.
	Headers map[string]string

	Body []byte
}

var requestPool = sync.Pool{
	New: func() any {
		return &Request{
			Headers: make(map[string]string, 8),
			Body:    make([]byte, 0, 1024),
		}
	},
}

// AcquireRequest returns an empty Request from the pool.
func AcquireRequest() *Request {
	return requestPool.Get().(*Request)
}

// Reset resets the request for reuse (memory not freed, just reset)
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.Version = ""

	for k := range r.Headers {
		delete(r.Headers, k)
	}

	r.Body = r.Body[:0]
}

// ReleaseRequest returns req to the pool. req must not be used afterwards.
func ReleaseRequest(req *Request) {
	if req == nil {
		return
	}
	// Oversized bodies are left to the GC
	if cap(req.Body) > 64<<10 {
		req.Body = make([]byte, 0, 1024)
	}
	req.Reset()
	requestPool.Put(req)
}

// Header returns the value of the named header, case-insensitively.
func (r *Request) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// ContentLength reports the declared Content-Length. present is false when
// the header is absent. A value that does not parse as a base-10 integer
// counts as 0; a negative value is returned as is for the caller to reject.
func (r *Request) ContentLength() (n int64, present bool) {
	v, ok := r.Headers["content-length"]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, true
	}
	return n, true
}

// KeepAlive applies the persistence rules: HTTP/1.1 defaults to a
// persistent connection, anything else does not, and a Connection header of
// "close" or "keep-alive" overrides the default.
func (r *Request) KeepAlive() bool {
	keepAlive := r.Version == "HTTP/1.1"

	switch strings.ToLower(r.Headers["connection"]) {
	case "close":
		keepAlive = false
	case "keep-alive":
		keepAlive = true
	}

	return keepAlive
}
