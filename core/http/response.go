package http

import (
	"strconv"
	"time"
)

// Status codes produced by the server.
const (
	StatusOK                          = 200
	StatusCreated                     = 201
	StatusBadRequest                  = 400
	StatusForbidden                   = 403
	StatusNotFound                    = 404
	StatusMethodNotAllowed            = 405
	StatusRequestEntityTooLarge       = 413
	StatusRequestHeaderFieldsTooLarge = 431
	StatusInternalServerError         = 500
)

var statusText = map[int]string{
	StatusOK:                          "OK",
	StatusCreated:                     "Created",
	StatusBadRequest:                  "Bad Request",
	StatusForbidden:                   "Forbidden",
	StatusNotFound:                    "Not Found",
	StatusMethodNotAllowed:            "Method Not Allowed",
	StatusRequestEntityTooLarge:       "Payload Too Large",
	StatusRequestHeaderFieldsTooLarge: "Request Header Fields Too Large",
	StatusInternalServerError:         "Internal Server Error",
}

// StatusText returns the reason phrase for code, or "" if unknown.
func StatusText(code int) string {
	return statusText[code]
}

// Content types
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeJSON = "application/json"
)

// TimeFormat is the RFC 1123 layout used for the Date header, always in GMT.
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Response is an immutable response value. Responses are stored in and
// returned from caches by value, so Body must never be modified after
// construction.
type Response struct {
	Status      string // e.g. "200 OK"
	ContentType string
	Body        []byte
}

// NewResponse builds a Response with a status line derived from code.
func NewResponse(code int, contentType string, body []byte) Response {
	return Response{
		Status:      strconv.Itoa(code) + " " + StatusText(code),
		ContentType: contentType,
		Body:        body,
	}
}

// Code returns the numeric status, or 0 if the status line does not start
// with one.
func (r Response) Code() int {
	if len(r.Status) < 3 {
		return 0
	}
	code, err := strconv.Atoi(r.Status[:3])
	if err != nil {
		return 0
	}
	return code
}

// Empty reports whether the response has no body. Cache call sites treat
// an empty response as "no cached entry".
func (r Response) Empty() bool {
	return len(r.Body) == 0
}

// FrameOptions carries the per-exchange values of the response head.
type FrameOptions struct {
	KeepAlive bool
	Server    string
	Date      time.Time
	// KeepAliveParams is sent as the Keep-Alive header value on persistent
	// connections, e.g. "timeout=5, max=1000". Empty omits the header.
	KeepAliveParams string
}

// AppendFrame appends the full wire form of r (status line, headers, blank
// line, body) to buf.
func (r Response) AppendFrame(buf []byte, opts FrameOptions) []byte {
	buf = append(buf, "HTTP/1.1 "...)
	buf = append(buf, r.Status...)
	buf = append(buf, "\r\nContent-Type: "...)
	buf = append(buf, r.ContentType...)
	buf = append(buf, "\r\nDate: "...)
	buf = opts.Date.UTC().AppendFormat(buf, TimeFormat)
	buf = append(buf, "\r\nServer: "...)
	buf = append(buf, opts.Server...)

	if opts.KeepAlive {
		buf = append(buf, "\r\nConnection: keep-alive"...)
		if opts.KeepAliveParams != "" {
			buf = append(buf, "\r\nKeep-Alive: "...)
			buf = append(buf, opts.KeepAliveParams...)
		}
	} else {
		buf = append(buf, "\r\nConnection: close"...)
	}

	buf = append(buf, "\r\nContent-Length: "...)
	buf = strconv.AppendInt(buf, int64(len(r.Body)), 10)
	buf = append(buf, "\r\n\r\n"...)
	buf = append(buf, r.Body...)

	return buf
}
