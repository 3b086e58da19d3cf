/*
Package tez is a small HTTP/1.x server for static files and a table of
fixed responses.

A poller (epoll on Linux, kqueue on BSD and macOS) watches the listening
socket; accepted connections are handed to a fixed worker pool, and each
connection is served by one sequential keep-alive session. GET requests
under /static/ are resolved against a configured root directory, and every
other path goes through the router: built-in endpoints first, then the
route table loaded from a JSON, YAML or TOML file. Both kinds of response
are kept in bounded LRU caches with a TTL.

# Quick Start

	tez --config tez.yaml
	tez --addr :9000 --static-root ./public --routes routes.json
	tez check-config

Configuration is layered: built-in defaults, the YAML file, TEZ_ environment
variables (TEZ_STATIC_CACHE_TTL=30s sets static.cache.ttl), then flags.

# Modules

  - app: Component wiring, admin server and signal handling
  - config: Configuration loading and validation
  - core: Listener, accept loop and connection sessions
  - core/http: Request parsing and response framing
  - core/router: Built-in endpoints and the route table
  - core/static: Static file resolution under a root directory
  - core/cache: LRU cache with write-anchored TTL
  - core/middleware: Request pipeline and access log
  - core/pools: Worker pool, buffer pools and GC tuning
  - core/poller: Readiness notification (epoll/kqueue)
  - core/observability: Prometheus metrics

# Operations

When admin.addr is set, a second listener serves /metrics in Prometheus
format, /debug/stats as JSON and /healthz.
*/
package tez
