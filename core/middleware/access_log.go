package middleware

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AccessLog appends one JSON line per request to a file. The file is opened
// in append mode for each entry and closed right after, so the log can be
// rotated or removed underneath a running server.
type AccessLog struct {
	path   string
	now    func() time.Time
	failed atomic.Uint64
}

// NewAccessLog returns a logger writing to path. An empty path disables it.
func NewAccessLog(path string) *AccessLog {
	return &AccessLog{path: path, now: time.Now}
}

// Path returns the log file path.
func (a *AccessLog) Path() string {
	return a.path
}

// Failures returns how many entries could not be written.
func (a *AccessLog) Failures() uint64 {
	return a.failed.Load()
}

// Log records one request. Errors are counted and reported through the
// process logger, never returned.
func (a *AccessLog) Log(client, method, path string) {
	if a == nil || a.path == "" {
		return
	}

	f, err := os.OpenFile(a.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		if a.failed.Add(1) == 1 {
			log.Warn().Err(err).Str("file", a.path).Msg("Access log unavailable")
		}
		return
	}
	defer f.Close()

	l := zerolog.New(f)
	l.Log().
		Time("time", a.now()).
		Str("client", client).
		Str("method", method).
		Str("path", path).
		Send()
}

// Logging records every request in al before dispatch.
func Logging(al *AccessLog) HandlerFunc {
	return func(ex *Exchange) {
		if ex.Request == nil {
			return
		}
		al.Log(ex.Client, ex.Request.Method, ex.Request.Path)
	}
}
