// Package middleware runs per-request hooks around dispatch.
package middleware

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Amogh-2404/Tez/core/http"
)

// Exchange is one request/response pair on a connection.
type Exchange struct {
	Client   string
	Request  *http.Request
	Response http.Response
	// Kind names the dispatch target, "static" or "route".
	Kind  string
	Start time.Time

	aborted bool
}

// IsAborted reports whether a before-handler already responded.
func (ex *Exchange) IsAborted() bool {
	return ex.aborted
}

// Respond sets the response and skips the remaining before-handlers and
// the final handler.
func (ex *Exchange) Respond(resp http.Response) {
	ex.Response = resp
	ex.aborted = true
}

// HandlerFunc is the signature for middleware handlers
type HandlerFunc func(*Exchange)

// Pipeline runs before-handlers, a final handler and after-handlers.
// After-handlers always run, also when the exchange was aborted or the
// final handler panicked, and see the response that will be written.
type Pipeline struct {
	before []HandlerFunc
	after  []HandlerFunc
	log    zerolog.Logger
}

// NewPipeline creates a new middleware pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{
		before: make([]HandlerFunc, 0, 4),
		log:    log.Logger,
	}
}

// WithLogger sets the logger used to report recovered panics.
func (p *Pipeline) WithLogger(l zerolog.Logger) *Pipeline {
	p.log = l
	return p
}

// Use adds a middleware that runs before the final handler.
func (p *Pipeline) Use(handler HandlerFunc) *Pipeline {
	p.before = append(p.before, handler)
	return p
}

// UseAfter adds a middleware that runs after the final handler.
func (p *Pipeline) UseAfter(handler HandlerFunc) *Pipeline {
	p.after = append(p.after, handler)
	return p
}

// Execute runs the pipeline for ex. A panic in a before-handler or the
// final handler is recovered and turned into a 500 response.
func (p *Pipeline) Execute(ex *Exchange, finalHandler HandlerFunc) {
	p.run(ex, finalHandler)

	for _, h := range p.after {
		p.safe(ex, h)
	}
}

func (p *Pipeline) run(ex *Exchange, finalHandler HandlerFunc) {
	defer func() {
		if r := recover(); r != nil {
			ev := p.log.Error().Interface("panic", r).Str("client", ex.Client)
			if ex.Request != nil {
				ev = ev.Str("method", ex.Request.Method).Str("path", ex.Request.Path)
			}
			ev.Msg("Panic recovered")
			ex.Respond(http.ErrorResponse(http.ErrInternal))
		}
	}()

	for _, h := range p.before {
		h(ex)

		if ex.IsAborted() {
			return
		}
	}

	finalHandler(ex)
}

// safe runs an after-handler; its panics are logged and dropped so the
// response already computed is still written.
func (p *Pipeline) safe(ex *Exchange, h HandlerFunc) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("Panic in after-handler")
		}
	}()
	h(ex)
}

// Observe reports each finished exchange to fn with its elapsed time.
func Observe(fn func(ex *Exchange, elapsed time.Duration)) HandlerFunc {
	return func(ex *Exchange) {
		fn(ex, time.Since(ex.Start))
	}
}
