// Package static serves files below a fixed root directory.
//
// Requests arrive as "/static/<name>". The name is sanitized, resolved
// against the canonical root and read fully into memory. Every outcome,
// including 403 and 404, is written through to a response cache keyed by
// the original request path; a negative result therefore stays cached until
// it expires, even if the file appears in the meantime.
package static

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Amogh-2404/Tez/core/cache"
	"github.com/Amogh-2404/Tez/core/http"
)

// Prefix is the request path prefix routed to the resolver.
const Prefix = "/static/"

// Response bodies
var (
	bodyNotStatic = []byte("Not a static file request.\r\n")
	bodyForbidden = []byte("Forbidden.\r\n")
	bodyNotFound  = []byte("File not found.\r\n")
)

// Resolver maps static request paths to file contents.
type Resolver struct {
	root  string // canonical absolute root
	cache *cache.Cache[http.Response]
	log   zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver's logger. The global zerolog logger is used
// otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// NewResolver canonicalizes root once and returns a resolver that caches
// outcomes in c. A root that does not exist yet is accepted in absolute
// form; every lookup below it then fails with 404.
func NewResolver(root string, c *cache.Cache[http.Response], opts ...Option) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("static root %q: %w", root, err)
	}
	if canon, err := filepath.EvalSymlinks(abs); err == nil {
		abs = canon
	}

	r := &Resolver{
		root:  abs,
		cache: c,
		log:   log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Root returns the canonical absolute root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Serve resolves a "/static/..." request path to a response.
func (r *Resolver) Serve(path string) http.Response {
	if !strings.HasPrefix(path, Prefix) {
		return http.NewResponse(http.StatusBadRequest, http.ContentTypeText, bodyNotStatic)
	}

	if r.cache != nil {
		if cached, ok := r.cache.Get(path); ok && !cached.Empty() {
			return cached
		}
	}

	resp := r.resolve(path)

	if r.cache != nil {
		r.cache.Put(path, resp)
	}
	return resp
}

func (r *Resolver) resolve(path string) http.Response {
	name := path[len(Prefix):]

	full, err := r.Resolve(name)
	if errors.Is(err, http.ErrNotFound) {
		r.log.Debug().Str("path", path).Err(err).Msg("Static file not found")
		return http.NewResponse(http.StatusNotFound, http.ContentTypeText, bodyNotFound)
	}
	if err != nil {
		r.log.Debug().Str("path", path).Err(err).Msg("Static path rejected")
		return http.NewResponse(http.StatusForbidden, http.ContentTypeText, bodyForbidden)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		r.log.Debug().Str("path", path).Err(err).Msg("Static file not readable")
		return http.NewResponse(http.StatusNotFound, http.ContentTypeText, bodyNotFound)
	}

	return http.NewResponse(http.StatusOK, ContentType(full), data)
}

// Resolve sanitizes name, joins it to the root and returns the canonical
// path of the result. It fails with http.ErrForbiddenPath when the name is
// unsafe or the canonical result does not start with the root, and with
// http.ErrNotFound when the target cannot be canonicalized (typically
// because it does not exist).
//
// Containment is a textual prefix check against the root, so a sibling
// directory whose name extends the root's ("/srv/static-old" next to
// "/srv/static") passes it.
func (r *Resolver) Resolve(name string) (string, error) {
	if err := Sanitize(name); err != nil {
		return "", err
	}

	joined := filepath.Join(r.root, name)
	canon, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", fmt.Errorf("%w: %v", http.ErrNotFound, err)
	}
	canon, err = filepath.Abs(canon)
	if err != nil {
		return "", fmt.Errorf("%w: %v", http.ErrNotFound, err)
	}

	if !strings.HasPrefix(canon, r.root) {
		return "", http.ErrForbiddenPath
	}
	return canon, nil
}

// Sanitize rejects names that are empty, contain a parent-directory
// segment or a home-directory marker, start with a path separator, or
// contain a drive-letter colon.
func Sanitize(name string) error {
	switch {
	case name == "":
		return http.ErrForbiddenPath
	case strings.Contains(name, ".."):
		return http.ErrForbiddenPath
	case strings.Contains(name, "~"):
		return http.ErrForbiddenPath
	case name[0] == '/' || name[0] == '\\':
		return http.ErrForbiddenPath
	case strings.Contains(name, ":"):
		return http.ErrForbiddenPath
	}
	return nil
}
