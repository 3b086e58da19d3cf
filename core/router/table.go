package router

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Amogh-2404/Tez/core/http"
)

// Route is one entry of the route table. Status is a full status line such
// as "200 OK".
type Route struct {
	Status      string `json:"status" yaml:"status" toml:"status"`
	ContentType string `json:"content_type" yaml:"content_type" toml:"content_type"`
	Body        string `json:"body" yaml:"body" toml:"body"`
}

// Response converts the entry to a response value.
func (r Route) Response() http.Response {
	return http.Response{
		Status:      r.Status,
		ContentType: r.ContentType,
		Body:        []byte(r.Body),
	}
}

// Table maps request paths to fixed responses. It is loaded once and only
// read afterwards.
type Table struct {
	mu     sync.RWMutex
	routes map[string]Route
	source string
}

// NewTable returns a table holding routes. A nil map yields an empty table.
func NewTable(routes map[string]Route) *Table {
	if routes == nil {
		routes = make(map[string]Route)
	}
	return &Table{routes: routes}
}

// LoadTable reads a route table from path. The format follows the file
// extension: ".yaml"/".yml" and ".toml" are decoded as such, anything else
// as JSON. The returned table is never nil; on error it is empty and the
// caller decides whether to log and continue.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewTable(nil), fmt.Errorf("read route table: %w", err)
	}

	routes, err := decodeTable(filepath.Ext(path), data)
	if err != nil {
		return NewTable(nil), fmt.Errorf("decode route table %s: %w", path, err)
	}

	for p, r := range routes {
		if r.Status == "" {
			return NewTable(nil), fmt.Errorf("route %q: missing status", p)
		}
	}

	t := NewTable(routes)
	t.source = path
	return t, nil
}

func decodeTable(ext string, data []byte) (map[string]Route, error) {
	routes := make(map[string]Route)

	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &routes)
	case ".toml":
		err = toml.Unmarshal(data, &routes)
	default:
		err = json.Unmarshal(data, &routes)
	}
	if err != nil {
		return nil, err
	}
	return routes, nil
}

// Lookup returns the entry registered for path.
func (t *Table) Lookup(path string) (Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.routes[path]
	return r, ok
}

// Len returns the number of routes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.routes)
}

// Source returns the file the table was loaded from, or "".
func (t *Table) Source() string {
	return t.source
}
