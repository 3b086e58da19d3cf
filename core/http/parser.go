package http

import (
	"bytes"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ParseRequest parses a request head and whatever body bytes followed it in
// the same read.
//
// The request line is split on whitespace into method, path and version.
// Header lines are split at the first colon; lines without one are skipped.
// Everything after the first empty line becomes the body.
func ParseRequest(data []byte) (*Request, error) {
	lineEnd := bytes.IndexByte(data, '\n')
	var line []byte
	if lineEnd == -1 {
		line = data
		data = nil
	} else {
		line = data[:lineEnd]
		data = data[lineEnd+1:]
	}
	line = bytes.TrimSuffix(line, []byte{'\r'})

	fields := strings.Fields(string(line))
	if len(fields) < 3 || !httpguts.ValidHeaderFieldName(fields[0]) {
		return nil, ErrMalformedRequest
	}

	req := AcquireRequest()
	req.Method = fields[0]
	req.Path = fields[1]
	req.Version = fields[2]

	data = parseHeaders(req, data)

	if len(data) > 0 {
		req.Body = append(req.Body[:0], data...)
	}

	return req, nil
}

// parseHeaders consumes header lines up to and including the first empty
// line and returns the bytes that follow it.
func parseHeaders(req *Request, data []byte) []byte {
	for len(data) > 0 {
		lineEnd := bytes.IndexByte(data, '\n')
		var line []byte
		if lineEnd == -1 {
			line = data
			data = nil
		} else {
			line = data[:lineEnd]
			data = data[lineEnd+1:]
		}

		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			return data
		}

		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			continue
		}

		key := strings.ToLower(string(bytes.TrimSpace(line[:colon])))
		value := string(bytes.TrimSpace(line[colon+1:]))
		req.Headers[key] = value
	}

	return nil
}
