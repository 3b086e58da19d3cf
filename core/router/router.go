// Package router dispatches non-static requests by exact path and method.
//
// Paths with registered handlers are served by those handlers. Any other GET
// is answered from the route table through the route-response cache; other
// methods on unknown paths get 405.
package router

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Amogh-2404/Tez/core/cache"
	"github.com/Amogh-2404/Tez/core/http"
)

// Handler produces the response for a request to a registered path.
type Handler func(method string, body []byte) http.Response

type entry struct {
	handlers map[string]Handler
	// restricted paths answer 405 for methods without a handler instead
	// of falling back to the route table
	restricted bool
}

var (
	notFoundPage = []byte("<html><head><title>404</title></head><body><h1>Page Not Found</h1></body></html>")

	methodNotAllowedJSON = http.NewResponse(http.StatusMethodNotAllowed, http.ContentTypeJSON,
		[]byte("{\"error\":\"Method not allowed\"}\n"))
	methodNotAllowedText = http.NewResponse(http.StatusMethodNotAllowed, http.ContentTypeText,
		[]byte("Method not allowed for this path\n"))
)

// Router is safe for concurrent use once registration is done.
type Router struct {
	routes map[string]*entry
	table  *Table
	cache  *cache.Cache[http.Response]
	log    zerolog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) {
		r.log = l
	}
}

// New creates a router answering table lookups through c. Either may be
// nil: a nil table behaves as empty, a nil cache disables caching.
func New(table *Table, c *cache.Cache[http.Response], opts ...Option) *Router {
	if table == nil {
		table = NewTable(nil)
	}
	r := &Router{
		routes: make(map[string]*entry),
		table:  table,
		cache:  c,
		log:    log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers h for method on path.
func (r *Router) Handle(method, path string, h Handler) {
	e := r.entry(path)
	e.handlers[method] = h
}

// Restrict marks path as fully owned by its handlers: a method with no
// handler gets a 405 instead of a route table lookup.
func (r *Router) Restrict(path string) {
	r.entry(path).restricted = true
}

func (r *Router) entry(path string) *entry {
	e, ok := r.routes[path]
	if !ok {
		e = &entry{handlers: make(map[string]Handler)}
		r.routes[path] = e
	}
	return e
}

// Table returns the route table backing GET lookups.
func (r *Router) Table() *Table {
	return r.table
}

// Route computes the response for a request.
func (r *Router) Route(method, path string, body []byte) http.Response {
	if e, ok := r.routes[path]; ok {
		if h, ok := e.handlers[method]; ok {
			return h(method, body)
		}
		if e.restricted {
			return methodNotAllowedJSON
		}
	}

	if method == "GET" {
		return r.lookup(path)
	}
	return methodNotAllowedText
}

// lookup serves a GET from the route cache or the table. The result,
// including a 404, is written through to the cache.
func (r *Router) lookup(path string) http.Response {
	if r.cache != nil {
		if cached, ok := r.cache.Get(path); ok && !cached.Empty() {
			return cached
		}
	}

	var resp http.Response
	if route, ok := r.table.Lookup(path); ok {
		resp = route.Response()
	} else {
		r.log.Debug().Str("path", path).Msg("No route")
		resp = http.NewResponse(http.StatusNotFound, http.ContentTypeHTML, notFoundPage)
	}

	if r.cache != nil {
		r.cache.Put(path, resp)
	}
	return resp
}
