package http

import (
	"errors"
	"strconv"
)

// StatusError is a request failure that maps onto an HTTP status code.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return strconv.Itoa(e.Code) + " " + e.Reason
}

// Error definitions
var (
	// ErrMalformedRequest: unreadable head or bad request line (400).
	ErrMalformedRequest = &StatusError{Code: StatusBadRequest, Reason: "malformed request"}
	// ErrInvalidContentLength: a negative Content-Length (400).
	ErrInvalidContentLength = &StatusError{Code: StatusBadRequest, Reason: "invalid content-length"}
	// ErrNotStaticPath: static handler called for a non-static path (400).
	ErrNotStaticPath = &StatusError{Code: StatusBadRequest, Reason: "not a static file request"}
	// ErrForbiddenPath: static path rejected by sanitization (403).
	ErrForbiddenPath = &StatusError{Code: StatusForbidden, Reason: "forbidden path"}
	// ErrNotFound: route or file miss (404).
	ErrNotFound = &StatusError{Code: StatusNotFound, Reason: "not found"}
	// ErrMethodNotAllowed: known path, unsupported method (405).
	ErrMethodNotAllowed = &StatusError{Code: StatusMethodNotAllowed, Reason: "method not allowed"}
	// ErrBodyTooLarge: declared body above MaxBodyBytes (413).
	ErrBodyTooLarge = &StatusError{Code: StatusRequestEntityTooLarge, Reason: "request body too large"}
	// ErrHeaderTooLarge: head above MaxHeaderBytes (431).
	ErrHeaderTooLarge = &StatusError{Code: StatusRequestHeaderFieldsTooLarge, Reason: "request header fields too large"}
	// ErrInternal: failure while resolving a route (500).
	ErrInternal = &StatusError{Code: StatusInternalServerError, Reason: "internal server error"}
)

// StatusCode extracts the status carried by err, or 500 when err is not a
// *StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return StatusInternalServerError
}

// ErrorResponse renders err as a plain-text response.
func ErrorResponse(err error) Response {
	code := StatusCode(err)
	return NewResponse(code, ContentTypeText, []byte(StatusText(code)+"\r\n"))
}
