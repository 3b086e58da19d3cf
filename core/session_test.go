package core

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Amogh-2404/Tez/core/cache"
	"github.com/Amogh-2404/Tez/core/http"
	"github.com/Amogh-2404/Tez/core/middleware"
	"github.com/Amogh-2404/Tez/core/router"
	"github.com/Amogh-2404/Tez/core/static"
)

type testResponse struct {
	proto   string
	code    int
	status  string
	headers map[string]string
	body    string
}

// readResponse reads one framed response from r.
func readResponse(r *bufio.Reader) (*testResponse, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")

	proto, status, ok := strings.Cut(line, " ")
	if !ok {
		return nil, fmt.Errorf("bad status line %q", line)
	}
	code, err := strconv.Atoi(status[:3])
	if err != nil {
		return nil, fmt.Errorf("bad status %q", status)
	}

	resp := &testResponse{proto: proto, code: code, status: status, headers: map[string]string{}}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		k, v, _ := strings.Cut(line, ": ")
		resp.headers[k] = v
	}

	n, err := strconv.Atoi(resp.headers["Content-Length"])
	if err != nil {
		return nil, fmt.Errorf("bad Content-Length %q", resp.headers["Content-Length"])
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	resp.body = string(body)

	return resp, nil
}

func newTestEngine(t testing.TB, accessLog *middleware.AccessLog) *Engine {
	t.Helper()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "css"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "css", "site.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	nop := zerolog.Nop()

	resolver, err := static.NewResolver(root, cache.New[http.Response](16, time.Minute), static.WithLogger(nop))
	if err != nil {
		t.Fatal(err)
	}

	table := router.NewTable(map[string]router.Route{
		"/about": {Status: "200 OK", ContentType: "text/html", Body: "<h1>About</h1>"},
	})
	rt := router.New(table, cache.New[http.Response](16, time.Minute), router.WithLogger(nop))
	router.RegisterBuiltins(rt)
	rt.Handle("GET", "/panic", func(string, []byte) http.Response { panic("handler bug") })

	e := NewEngine(Options{
		Workers:   4,
		Router:    rt,
		Static:    resolver,
		AccessLog: accessLog,
		Logger:    &nop,
	})
	t.Cleanup(e.pool.Shutdown)
	return e
}

// pipeSession runs a session over an in-memory pipe and returns the client
// side.
func pipeSession(t *testing.T, e *Engine) (net.Conn, *bufio.Reader, <-chan struct{}) {
	t.Helper()

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		e.serveConn(server)
		close(done)
	}()
	t.Cleanup(func() { client.Close() })

	return client, bufio.NewReader(client), done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestSession_KeepAliveSequence(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	for i := 0; i < 3; i++ {
		if _, err := io.WriteString(client, "GET /health HTTP/1.1\r\nHost: x\r\n\r\n"); err != nil {
			t.Fatal(err)
		}
		resp, err := readResponse(r)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.code != 200 || resp.body != "{\"status\":\"ok\"}\n" {
			t.Fatalf("request %d: unexpected response %+v", i, resp)
		}
		if resp.headers["Connection"] != "keep-alive" || resp.headers["Keep-Alive"] != "timeout=5, max=1000" {
			t.Errorf("request %d: expected keep-alive headers, got %v", i, resp.headers)
		}
		if resp.headers["Server"] != ServerName || resp.headers["Content-Type"] != "application/json" {
			t.Errorf("request %d: unexpected headers %v", i, resp.headers)
		}
		if _, err := time.Parse(http.TimeFormat, resp.headers["Date"]); err != nil {
			t.Errorf("request %d: bad Date header %q", i, resp.headers["Date"])
		}
	}

	client.Close()
	waitDone(t, done)
}

func TestSession_ConnectionClose(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	io.WriteString(client, "GET /health HTTP/1.1\r\nConnection: close\r\n\r\n")

	resp, err := readResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.headers["Connection"] != "close" {
		t.Errorf("expected Connection: close, got %q", resp.headers["Connection"])
	}
	if _, ok := resp.headers["Keep-Alive"]; ok {
		t.Error("Keep-Alive header must not be sent on close")
	}

	waitDone(t, done)
	if _, err := r.ReadByte(); err != io.EOF {
		t.Errorf("expected EOF after close, got %v", err)
	}
}

func TestSession_HTTP10ClosesByDefault(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	io.WriteString(client, "GET /health HTTP/1.0\r\n\r\n")

	resp, err := readResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.proto != "HTTP/1.1" || resp.headers["Connection"] != "close" {
		t.Errorf("unexpected response %+v", resp)
	}
	waitDone(t, done)
}

func TestSession_HTTP10KeepAlive(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	io.WriteString(client, "GET /health HTTP/1.0\r\nConnection: Keep-Alive\r\n\r\n")
	resp, err := readResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.headers["Connection"] != "keep-alive" {
		t.Errorf("expected keep-alive, got %q", resp.headers["Connection"])
	}

	client.Close()
	waitDone(t, done)
}

func TestSession_RequestCap(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	for i := 1; i <= MaxKeepAliveRequests; i++ {
		if _, err := io.WriteString(client, "GET /health HTTP/1.1\r\n\r\n"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		resp, err := readResponse(r)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}

		want := "keep-alive"
		if i == MaxKeepAliveRequests {
			want = "close"
		}
		if resp.headers["Connection"] != want {
			t.Fatalf("request %d: expected Connection %q, got %q", i, want, resp.headers["Connection"])
		}
	}

	waitDone(t, done)
	if _, err := r.ReadByte(); err != io.EOF {
		t.Errorf("expected EOF after the last permitted request, got %v", err)
	}
}

func TestSession_NegativeContentLength(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	io.WriteString(client, "POST /echo HTTP/1.1\r\nContent-Length: -1\r\n\r\n")

	resp, err := readResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.code != 400 || resp.headers["Connection"] != "close" {
		t.Errorf("expected 400 with close, got %s %v", resp.status, resp.headers)
	}
	waitDone(t, done)
}

func TestSession_BodyTooLarge(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	fmt.Fprintf(client, "POST /echo HTTP/1.1\r\nContent-Length: %d\r\n\r\n", MaxBodyBytes+1)

	resp, err := readResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.code != 413 || resp.headers["Connection"] != "close" {
		t.Errorf("expected 413 with close, got %s %v", resp.status, resp.headers)
	}
	waitDone(t, done)
}

func TestSession_HeaderTooLarge(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	head := "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("a", MaxHeaderBytes)
	go io.WriteString(client, head[:MaxHeaderBytes])

	resp, err := readResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.code != 431 || resp.headers["Connection"] != "close" {
		t.Errorf("expected 431 with close, got %s %v", resp.status, resp.headers)
	}
	waitDone(t, done)
}

func TestSession_MalformedRequestLine(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	io.WriteString(client, "NONSENSE\r\n\r\n")

	resp, err := readResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if resp.code != 400 {
		t.Errorf("expected 400, got %s", resp.status)
	}
	waitDone(t, done)
}

func TestSession_SilentCloseBetweenRequests(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	io.WriteString(client, "GET /health HTTP/1.1\r\n\r\n")
	if _, err := readResponse(r); err != nil {
		t.Fatal(err)
	}

	client.Close()
	waitDone(t, done)

	if s := e.Stats(); s.Requests != 1 {
		t.Errorf("expected 1 request served, got %d", s.Requests)
	}
}

func TestSession_BodySplitAcrossReads(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	go func() {
		io.WriteString(client, "POST /echo HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello")
		time.Sleep(10 * time.Millisecond)
		io.WriteString(client, " world")
	}()

	resp, err := readResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.body, "\"received_body\": \"hello world\"") {
		t.Errorf("expected full body echoed, got %q", resp.body)
	}
	if !strings.Contains(resp.body, "\"body_length\": 11") {
		t.Errorf("expected body_length 11, got %q", resp.body)
	}

	client.Close()
	waitDone(t, done)
}

func TestSession_PipelinedRequestsKept(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	go io.WriteString(client, "PUT /echo HTTP/1.1\r\nContent-Length: 2\r\n\r\nabGET /about HTTP/1.1\r\n\r\n")

	first, err := readResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(first.body, "\"received_body\": \"ab\"") {
		t.Errorf("unexpected first body %q", first.body)
	}

	second, err := readResponse(r)
	if err != nil {
		t.Fatal(err)
	}
	if second.code != 200 || second.body != "<h1>About</h1>" {
		t.Errorf("unexpected second response %+v", second)
	}

	client.Close()
	waitDone(t, done)
}

func TestSession_Dispatch(t *testing.T) {
	e := newTestEngine(t, nil)
	client, r, done := pipeSession(t, e)

	tests := []struct {
		request string
		code    int
		ctype   string
		body    string
	}{
		{"GET /static/css/site.css HTTP/1.1\r\n\r\n", 200, "text/css; charset=utf-8", "body{}"},
		{"GET /static/../etc/passwd HTTP/1.1\r\n\r\n", 403, http.ContentTypeText, "Forbidden.\r\n"},
		{"GET /static/none.css HTTP/1.1\r\n\r\n", 404, http.ContentTypeText, "File not found.\r\n"},
		{"GET /about HTTP/1.1\r\n\r\n", 200, "text/html", "<h1>About</h1>"},
		{"POST /health HTTP/1.1\r\n\r\n", 405, "application/json", "{\"error\":\"Method not allowed\"}\n"},
		{"DELETE /about HTTP/1.1\r\n\r\n", 405, http.ContentTypeText, "Method not allowed for this path\n"},
		{"GET /panic HTTP/1.1\r\n\r\n", 500, http.ContentTypeText, "Internal Server Error\r\n"},
	}

	for _, tt := range tests {
		io.WriteString(client, tt.request)
		resp, err := readResponse(r)
		if err != nil {
			t.Fatalf("%q: %v", tt.request, err)
		}
		if resp.code != tt.code || resp.headers["Content-Type"] != tt.ctype || resp.body != tt.body {
			t.Errorf("%q: got %d %q %q", tt.request, resp.code, resp.headers["Content-Type"], resp.body)
		}
	}

	if resp, _ := readAfter(client, r, "GET /api/data HTTP/1.1\r\n\r\n"); resp == nil || resp.code != 200 {
		t.Errorf("expected session to survive a handler panic")
	}

	client.Close()
	waitDone(t, done)
}

func readAfter(client net.Conn, r *bufio.Reader, request string) (*testResponse, error) {
	if _, err := io.WriteString(client, request); err != nil {
		return nil, err
	}
	return readResponse(r)
}

func TestSession_AccessLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	e := newTestEngine(t, middleware.NewAccessLog(path))
	client, r, done := pipeSession(t, e)

	readAfter(client, r, "GET /health HTTP/1.1\r\n\r\n")
	readAfter(client, r, "GET /static/css/site.css HTTP/1.1\r\nConnection: close\r\n\r\n")
	waitDone(t, done)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %q", data)
	}
	if !strings.Contains(lines[1], "\"path\":\"/static/css/site.css\"") {
		t.Errorf("unexpected log line %q", lines[1])
	}
}

func TestHeaderEnd(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", -1},
		{"GET / HTTP/1.1\r\n", -1},
		{"GET / HTTP/1.1\r\n\r\n", 18},
		{"GET / HTTP/1.1\r\n\r\nbody", 18},
		{"GET / HTTP/1.1\n\n", 16},
		{"GET / HTTP/1.1\nA: b\n\nx\r\n\r\n", 21},
	}

	for _, tt := range tests {
		if got := headerEnd([]byte(tt.in)); got != tt.want {
			t.Errorf("%q: expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestKeepAliveParams(t *testing.T) {
	if KeepAliveParams != "timeout=5, max=1000" {
		t.Errorf("unexpected Keep-Alive value %q", KeepAliveParams)
	}
}
