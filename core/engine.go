// Package core is the connection engine: a poller-driven acceptor feeding
// accepted sockets to a fixed worker pool, where each connection is served
// by one sequential keep-alive session.
package core

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/Amogh-2404/Tez/core/http"
	"github.com/Amogh-2404/Tez/core/middleware"
	"github.com/Amogh-2404/Tez/core/observability"
	"github.com/Amogh-2404/Tez/core/poller"
	"github.com/Amogh-2404/Tez/core/pools"
	"github.com/Amogh-2404/Tez/core/router"
	"github.com/Amogh-2404/Tez/core/static"
)

// Options wires the engine's collaborators. Router is required; the rest
// are optional.
type Options struct {
	// Workers is the pool size; 0 selects the CPU count.
	Workers int

	Router    *router.Router
	Static    *static.Resolver
	AccessLog *middleware.AccessLog
	Metrics   *observability.Metrics
	Logger    *zerolog.Logger
}

// Engine accepts connections and serves them on a worker pool.
type Engine struct {
	router   *router.Router
	static   *static.Resolver
	pipeline *middleware.Pipeline
	metrics  *observability.Metrics
	pool     *pools.WorkerPool
	bufs     *pools.BytePool
	log      zerolog.Logger
	now      func() time.Time

	ln     *net.TCPListener
	addr   atomic.Pointer[net.TCPAddr]
	lnFile *os.File
	lfd    int
	poller poller.Poller

	closing   atomic.Bool
	serving   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	// accepted connections whose session has not started yet
	pendingMu sync.Mutex
	pending   map[net.Conn]struct{}

	acceptErrs  rate.Sometimes
	acceptDelay time.Duration
	accept      func(fd int) (int, unix.Sockaddr, error)
	sleep       func(time.Duration)

	stats struct {
		accepted atomic.Uint64
		rejected atomic.Uint64
		requests atomic.Uint64
		active   atomic.Int64
	}
}

// NewEngine creates an engine and starts its worker pool.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		router:  opts.Router,
		static:  opts.Static,
		metrics: opts.Metrics,
		bufs:    pools.NewBytePool(512, MaxHeaderBytes),
		log:     log.Logger,
		now:     time.Now,
		lfd:     -1,
		accept:  unix.Accept,
		sleep:   time.Sleep,
		done:    make(chan struct{}),
		pending: make(map[net.Conn]struct{}),
		acceptErrs: rate.Sometimes{
			First:    3,
			Interval: 10 * time.Second,
		},
	}
	if opts.Logger != nil {
		e.log = *opts.Logger
	}
	if e.router == nil {
		e.router = router.New(nil, nil, router.WithLogger(e.log))
	}

	e.pool = pools.NewWorkerPool(opts.Workers, e.log)

	e.pipeline = middleware.NewPipeline().WithLogger(e.log)
	if opts.AccessLog != nil {
		e.pipeline.Use(middleware.Logging(opts.AccessLog))
	}
	e.pipeline.UseAfter(middleware.Observe(func(ex *middleware.Exchange, elapsed time.Duration) {
		e.metrics.ObserveRequest(ex.Kind, ex.Response.Code(), elapsed)
	}))

	e.metrics.RegisterPool(e.pool.Stats)

	return e
}

// Listen binds addr and prepares the poller. The listening socket is
// switched to non-blocking mode and watched for readability.
func (e *Engine) Listen(addr string) error {
	if e.closing.Load() {
		return ErrServerClosed
	}

	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}

	ln, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	lnFile, err := ln.File()
	if err != nil {
		ln.Close()
		return fmt.Errorf("listener fd: %w", err)
	}
	lfd := int(lnFile.Fd())

	if err := unix.SetNonblock(lfd, true); err != nil {
		lnFile.Close()
		ln.Close()
		return fmt.Errorf("set nonblock: %w", err)
	}

	p, err := poller.NewPoller()
	if err != nil {
		lnFile.Close()
		ln.Close()
		return fmt.Errorf("create poller: %w", err)
	}

	if err := p.Add(lfd); err != nil {
		p.Close()
		lnFile.Close()
		ln.Close()
		return fmt.Errorf("watch listener: %w", err)
	}

	e.ln = ln
	e.lnFile = lnFile
	e.lfd = lfd
	e.poller = p
	e.addr.Store(ln.Addr().(*net.TCPAddr))

	e.log.Info().
		Str("addr", ln.Addr().String()).
		Int("workers", e.pool.Workers()).
		Msg("Listening")

	return nil
}

// Addr returns the bound address, or nil before Listen.
func (e *Engine) Addr() net.Addr {
	if a := e.addr.Load(); a != nil {
		return a
	}
	return nil
}

// Serve runs the accept loop until Shutdown. It returns nil after a
// shutdown and an error if the poller fails.
func (e *Engine) Serve() error {
	if e.poller == nil {
		return ErrNotListening
	}
	if !e.serving.CompareAndSwap(false, true) {
		return fmt.Errorf("serve: already running")
	}
	defer close(e.done)
	defer e.closeListener()

	for !e.closing.Load() {
		fds, err := e.poller.Wait(pollInterval)
		if err != nil {
			if e.closing.Load() {
				break
			}
			e.log.Error().Err(err).Msg("Poller wait failed")
			return fmt.Errorf("poller wait: %w", err)
		}

		for _, fd := range fds {
			if fd == e.lfd {
				e.acceptConnections()
			}
		}
	}

	return nil
}

// ListenAndServe is Listen followed by Serve.
func (e *Engine) ListenAndServe(addr string) error {
	if err := e.Listen(addr); err != nil {
		return err
	}
	return e.Serve()
}

// Shutdown stops accepting, stops the pool from taking new sessions and
// waits for running sessions to finish. Sessions still queued are dropped
// and their connections closed. If ctx ends first, Shutdown returns its
// error; running sessions keep going in the background.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !e.closing.CompareAndSwap(false, true) {
		return ErrServerClosed
	}

	if e.serving.Load() {
		select {
		case <-e.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		e.closeListener()
	}

	drained := make(chan struct{})
	go func() {
		e.pool.Shutdown()
		e.closePending()
		close(drained)
	}()

	select {
	case <-drained:
		e.log.Info().Msg("Engine stopped")
		return nil
	case <-ctx.Done():
		e.log.Warn().
			Int64("active_sessions", e.stats.active.Load()).
			Msg("Shutdown deadline reached with sessions still running")
		return ctx.Err()
	}
}

func (e *Engine) closeListener() {
	e.closeOnce.Do(func() {
		if e.poller != nil {
			e.poller.Remove(e.lfd)
			e.poller.Close()
		}
		if e.lnFile != nil {
			e.lnFile.Close()
		}
		if e.ln != nil {
			e.ln.Close()
		}
	})
}

// track registers an accepted connection until its session starts.
func (e *Engine) track(conn net.Conn) {
	e.pendingMu.Lock()
	e.pending[conn] = struct{}{}
	e.pendingMu.Unlock()
}

func (e *Engine) untrack(conn net.Conn) {
	e.pendingMu.Lock()
	delete(e.pending, conn)
	e.pendingMu.Unlock()
}

// closePending closes connections whose sessions were dropped by the pool.
func (e *Engine) closePending() {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	for conn := range e.pending {
		conn.Close()
		delete(e.pending, conn)
	}
}

// submit hands conn to the pool as a new session.
func (e *Engine) submit(conn net.Conn) {
	e.track(conn)

	err := e.pool.Submit(func() {
		e.untrack(conn)
		e.serveConn(conn)
	})
	if err != nil {
		e.untrack(conn)
		conn.Close()
		e.stats.rejected.Add(1)
		e.metrics.ConnRejected()
	}
}

// Pool returns the worker pool.
func (e *Engine) Pool() *pools.WorkerPool {
	return e.pool
}

// dispatch is the final pipeline handler.
func (e *Engine) dispatch(ex *middleware.Exchange) {
	req := ex.Request

	if ex.Kind == kindStatic {
		if e.static == nil {
			ex.Response = http.ErrorResponse(http.ErrNotFound)
			return
		}
		ex.Response = e.static.Serve(req.Path)
		return
	}

	ex.Response = e.router.Route(req.Method, req.Path, req.Body)
}
