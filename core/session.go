package core

import (
	"bytes"
	"errors"
	"io"
	"net"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Amogh-2404/Tez/core/http"
	"github.com/Amogh-2404/Tez/core/middleware"
	"github.com/Amogh-2404/Tez/core/pools"
	"github.com/Amogh-2404/Tez/core/static"
)

// Dispatch kinds, used as the metrics label.
const (
	kindStatic = "static"
	kindRoute  = "route"
	kindError  = "error"
)

// errPeerClosed ends a session silently: the peer went away between
// requests without sending anything.
var errPeerClosed = errors.New("peer closed connection")

// session serves one connection: read a request, dispatch it, write the
// response, and repeat while keep-alive holds.
type session struct {
	e      *Engine
	conn   net.Conn
	client string
	log    zerolog.Logger

	// head buffer, MaxHeaderBytes long; buf[:n] is unread input
	buf *[]byte
	n   int

	served int
}

// serveConn is the worker task for an accepted connection. It owns conn
// and closes it before returning.
func (e *Engine) serveConn(conn net.Conn) {
	s := &session{
		e:      e,
		conn:   conn,
		client: clientAddr(conn),
		buf:    e.bufs.Get(MaxHeaderBytes),
	}
	s.log = e.log.With().
		Str("conn", ulid.Make().String()).
		Str("client", s.client).
		Logger()

	e.stats.active.Add(1)
	e.metrics.SessionStarted()
	defer func() {
		s.close()
		e.bufs.Put(s.buf)
		e.stats.active.Add(-1)
		e.metrics.SessionFinished()
	}()

	s.log.Debug().Msg("Session started")
	s.loop()
	s.log.Debug().Int("requests", s.served).Msg("Session closed")
}

func (s *session) loop() {
	for {
		req, err := s.readRequest()
		if err != nil {
			if errors.Is(err, errPeerClosed) {
				return
			}
			s.log.Debug().Err(err).Msg("Rejecting request")
			s.reject(err)
			return
		}

		keepAlive := req.KeepAlive()
		if s.served+1 >= MaxKeepAliveRequests {
			keepAlive = false
		}

		resp := s.dispatch(req)
		http.ReleaseRequest(req)

		if err := s.write(resp, keepAlive); err != nil {
			s.log.Debug().Err(err).Msg("Write failed")
			return
		}
		s.served++
		s.e.stats.requests.Add(1)

		if !keepAlive {
			return
		}
	}
}

// readRequest reads one request head and its body. Input past the body is
// kept for the next call.
func (s *session) readRequest() (*http.Request, error) {
	buf := *s.buf

	end := headerEnd(buf[:s.n])
	for end < 0 {
		if s.n == len(buf) {
			return nil, http.ErrHeaderTooLarge
		}

		m, err := s.conn.Read(buf[s.n:])
		s.n += m
		end = headerEnd(buf[:s.n])

		if err != nil && end < 0 {
			if s.n == 0 {
				return nil, errPeerClosed
			}
			s.log.Debug().Err(err).Int("buffered", s.n).Msg("Connection ended mid-head")
			return nil, http.ErrMalformedRequest
		}
	}

	req, err := http.ParseRequest(buf[:end])
	if err != nil {
		return nil, err
	}

	length, _ := req.ContentLength()
	switch {
	case length < 0:
		http.ReleaseRequest(req)
		return nil, http.ErrInvalidContentLength
	case length > MaxBodyBytes:
		http.ReleaseRequest(req)
		return nil, http.ErrBodyTooLarge
	}

	// Body bytes that arrived with the head
	take := min(s.n-end, int(length))
	req.Body = append(req.Body[:0], buf[end:end+take]...)

	consumed := end + take
	s.n = copy(buf, buf[consumed:s.n])

	if take < int(length) {
		req.Body = slices.Grow(req.Body, int(length)-take)[:length]
		if _, err := io.ReadFull(s.conn, req.Body[take:]); err != nil {
			s.log.Debug().Err(err).Msg("Body read failed")
			req.Body = req.Body[:0]
		}
	}

	return req, nil
}

// headerEnd returns the offset just past the blank line ending the head, or
// -1 if there is none yet. Both CRLF and bare LF line endings are accepted.
func headerEnd(b []byte) int {
	end := -1
	if i := bytes.Index(b, []byte("\r\n\r\n")); i >= 0 {
		end = i + 4
	}
	if i := bytes.Index(b, []byte("\n\n")); i >= 0 && (end < 0 || i+2 < end) {
		end = i + 2
	}
	return end
}

func (s *session) dispatch(req *http.Request) http.Response {
	ex := middleware.Exchange{
		Client:  s.client,
		Request: req,
		Kind:    kindRoute,
		Start:   s.e.now(),
	}
	if strings.HasPrefix(req.Path, static.Prefix) {
		ex.Kind = kindStatic
	}

	s.e.pipeline.Execute(&ex, s.e.dispatch)
	return ex.Response
}

// reject sends a best-effort error response before the session closes.
func (s *session) reject(err error) {
	resp := http.ErrorResponse(err)
	s.e.metrics.ObserveRequest(kindError, resp.Code(), 0)

	if werr := s.write(resp, false); werr != nil {
		s.log.Debug().Err(werr).Msg("Error response not delivered")
	}
}

func (s *session) write(resp http.Response, keepAlive bool) error {
	frame := pools.AcquireFrameBuffer(len(resp.Body) + 256)
	defer pools.ReleaseFrameBuffer(frame)

	*frame = resp.AppendFrame((*frame)[:0], http.FrameOptions{
		KeepAlive:       keepAlive,
		Server:          ServerName,
		Date:            s.e.now(),
		KeepAliveParams: KeepAliveParams,
	})

	_, err := s.conn.Write(*frame)
	return err
}

// close shuts down both directions before releasing the socket.
func (s *session) close() {
	if c, ok := s.conn.(interface{ CloseRead() error }); ok {
		c.CloseRead()
	}
	if c, ok := s.conn.(interface{ CloseWrite() error }); ok {
		c.CloseWrite()
	}
	s.conn.Close()
}

func clientAddr(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}
	return addr.String()
}
