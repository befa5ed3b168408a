package internal_test

import (
	"bufio"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/frankli0324/go-httpconn/internal"
	"github.com/frankli0324/go-httpconn/internal/config"
	"github.com/frankli0324/go-httpconn/internal/dialer"
	errs "github.com/frankli0324/go-httpconn/internal/errors"
	"github.com/frankli0324/go-httpconn/internal/model"
	"github.com/frankli0324/go-httpconn/internal/transport"
)

// headServer records the head of every request it receives and answers with
// an empty 200 response, keeping the connection alive.
func headServer(t *testing.T) (port int, heads <-chan string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	ch := make(chan string, 16)
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				r := bufio.NewReader(c)
				for {
					var head strings.Builder
					for {
						line, err := r.ReadString('\n')
						if err != nil {
							return
						}
						head.WriteString(line)
						if line == "\r\n" {
							break
						}
					}
					ch <- head.String()
					io.WriteString(c, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
				}
			}()
		}
	}()
	return l.Addr().(*net.TCPAddr).Port, ch
}

type tCase struct {
	data string
	req  *model.Request
}

var reqShouldBe = map[string]tCase{
	"BasicRequest": {
		req:  &model.Request{Method: "GET", URL: "http://www.example.com:%d"},
		data: "GET / HTTP/1.1\r\nHost: www.example.com:%d\r\n\r\n",
	},
	"QueryNonStandard": {
		req:  &model.Request{Method: "GET", URL: "http://www.example.com:%d/test?1=33=1"},
		data: "GET /test?1=33=1 HTTP/1.1\r\nHost: www.example.com:%d\r\n\r\n",
	},
	"HeaderNotCanonicalized": {
		req: &model.Request{
			Method: "GET",
			URL:    "http://www.example.com:%d/",
			Header: model.Headers{{Name: "x-123-vv", Value: "1"}},
		},
		data: "GET / HTTP/1.1\r\nHost: www.example.com:%d\r\nx-123-vv: 1\r\n\r\n",
	},
	"URIFragmentNotIncluded": {
		req:  &model.Request{Method: "GET", URL: "http://www.example.com:%d/?test=1#frag"},
		data: "GET /?test=1 HTTP/1.1\r\nHost: www.example.com:%d\r\n\r\n",
	},
	"BodyContentLength": {
		req:  &model.Request{Method: "POST", URL: "http://www.example.com:%d/", Body: ""},
		data: "POST / HTTP/1.1\r\nHost: www.example.com:%d\r\nContent-Length: 0\r\n\r\n",
	},
}

func TestRequestSerialize(t *testing.T) {
	port, heads := headServer(t)
	d := &dialer.Dialer{ResolveConfig: &dialer.ResolveConfig{
		StaticHosts: map[string]string{"www.example.com": "127.0.0.1"},
	}}
	for name, cas := range reqShouldBe {
		tCase := cas
		t.Run(name, func(t *testing.T) {
			req := *tCase.req
			req.URL = fmt.Sprintf(req.URL, port)
			origin, err := model.NewOrigin(req.URL)
			if err != nil {
				t.Fatal(err)
			}
			c := internal.NewConnection(origin, internal.WithDialer(d))
			defer c.Close()
			if _, err := c.Send(context.Background(), &req); err != nil {
				t.Fatal(err)
			}
			if got, want := <-heads, fmt.Sprintf(tCase.data, port); got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

type pool struct {
	name     string
	released atomic.Int32
}

func newServer(t *testing.T, h2 bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Proto", r.Proto)
		w.Header().Set("X-Traceparent", r.Header.Get("Traceparent"))
		if r.URL.Path == "/close" {
			w.Header().Set("Connection", "close")
		}
		if r.Method == "POST" {
			b, _ := io.ReadAll(r.Body)
			w.Write(b)
			return
		}
		io.WriteString(w, "hello")
	}))
	srv.Config.ConnState = func(_ net.Conn, s http.ConnState) {
		if s == http.StateNew {
			conns.Add(1)
		}
	}
	if h2 {
		srv.EnableHTTP2 = true
		srv.StartTLS()
	} else {
		srv.Start()
	}
	t.Cleanup(srv.Close)
	return srv, &conns
}

func connectTo(t *testing.T, srv *httptest.Server, opts ...internal.Option) *internal.Connection {
	t.Helper()
	origin, err := model.NewOrigin(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if srv.TLS != nil {
		roots := x509.NewCertPool()
		roots.AddCert(srv.Certificate())
		opts = append([]internal.Option{internal.WithSSL(&config.SSLConfig{Verify: true, RootCAs: roots})}, opts...)
	}
	c := internal.NewConnection(origin, opts...)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConnectionKeepAlive(t *testing.T) {
	srv, conns := newServer(t, false)
	p := &pool{name: "test"}
	c := connectTo(t, srv, internal.WithReleaseFunc(internal.WeakRelease(p, func(p *pool, _ *internal.Connection) {
		p.released.Add(1)
	})))
	if !c.IsClosed() || c.IsMultiplexed() {
		t.Fatal("unconnected connection state")
	}

	for i := 1; i <= 3; i++ {
		resp, err := c.Send(context.Background(), &model.Request{URL: srv.URL + "/"})
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 200 || string(resp.Content) != "hello" || resp.Proto != "HTTP/1.1" {
			t.Fatalf("got %d %s %q", resp.StatusCode, resp.Proto, resp.Content)
		}
		if n := p.released.Load(); n != int32(i) {
			t.Fatalf("released %d times after %d requests", n, i)
		}
	}
	if conns.Load() != 1 {
		t.Fatalf("server saw %d connections", conns.Load())
	}
	if c.IsClosed() || c.IsMultiplexed() {
		t.Fatal("connection should be open and not multiplexed")
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestConnectionStreamedBody(t *testing.T) {
	srv, _ := newServer(t, false)
	c := connectTo(t, srv)
	resp, err := c.Send(context.Background(), &model.Request{
		Method: "POST",
		URL:    srv.URL + "/",
		Body:   strings.NewReader(strings.Repeat("0123456789", 1000)),
	}, config.WithStream(), config.WithTimeout(&config.TimeoutConfig{Read: time.Second, Write: time.Second}))
	if err != nil {
		t.Fatal(err)
	}
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil || n != 10000 {
		t.Fatalf("read %d bytes, %v", n, err)
	}
	resp.Close()
	if c.IsClosed() {
		t.Fatal("connection closed after a complete exchange")
	}
}

func TestConnectionServerClose(t *testing.T) {
	srv, _ := newServer(t, false)
	c := connectTo(t, srv)
	if _, err := c.Send(context.Background(), &model.Request{URL: srv.URL + "/close"}); err != nil {
		t.Fatal(err)
	}
	if !c.IsClosed() {
		t.Fatal("connection open after Connection: close")
	}
	_, err := c.Send(context.Background(), &model.Request{URL: srv.URL + "/"})
	if !errors.Is(err, errs.ErrProtocol) {
		t.Fatalf("err = %v, want protocol error", err)
	}
}

func TestConnectionDropped(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("liveness check unsupported on this platform")
	}
	srv, _ := newServer(t, false)
	c := connectTo(t, srv)
	if c.IsConnectionDropped() {
		t.Fatal("unconnected connection dropped")
	}
	if _, err := c.Send(context.Background(), &model.Request{URL: srv.URL + "/"}); err != nil {
		t.Fatal(err)
	}
	srv.CloseClientConnections()
	deadline := time.Now().Add(time.Second)
	for !c.IsConnectionDropped() {
		if time.Now().After(deadline) {
			t.Fatal("drop not detected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectionHTTP2(t *testing.T) {
	srv, conns := newServer(t, true)
	var released atomic.Int32
	c := connectTo(t, srv, internal.WithReleaseFunc(func(*internal.Connection) { released.Add(1) }))
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !c.IsMultiplexed() || c.IsClosed() {
		t.Fatalf("state: %s", c)
	}

	resp, err := c.Send(context.Background(), &model.Request{URL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Proto != "HTTP/2" || resp.Header.Get("X-Proto") != "HTTP/2.0" || string(resp.Content) != "hello" {
		t.Fatalf("got %s %v %q", resp.Proto, resp.Header, resp.Content)
	}

	// two responses open at once on one connection
	r1, err := c.Send(context.Background(), &model.Request{URL: srv.URL + "/"}, config.WithStream())
	if err != nil {
		t.Fatal(err)
	}
	r2, err := c.Send(context.Background(), &model.Request{Method: "POST", URL: srv.URL + "/", Body: []byte("echo")}, config.WithStream())
	if err != nil {
		t.Fatal(err)
	}
	b2, _ := r2.Read()
	b1, _ := r1.Read()
	if string(b1) != "hello" || string(b2) != "echo" {
		t.Fatalf("bodies %q %q", b1, b2)
	}
	if released.Load() != 3 || conns.Load() != 1 {
		t.Fatalf("released %d, server connections %d", released.Load(), conns.Load())
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Close()
	if !c.IsClosed() {
		t.Fatal("closed connection reports open")
	}
}

func TestConnectionDisableHTTP2(t *testing.T) {
	srv, _ := newServer(t, true)
	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())
	c := connectTo(t, srv, internal.WithSSL(&config.SSLConfig{Verify: true, RootCAs: roots, DisableHTTP2: true}))
	resp, err := c.Send(context.Background(), &model.Request{URL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	if c.IsMultiplexed() || resp.Proto != "HTTP/1.1" || resp.Header.Get("X-Proto") != "HTTP/1.1" {
		t.Fatalf("got %s over %s", resp.Proto, c)
	}
}

func TestConnectionUnverifiedCertificate(t *testing.T) {
	srv, _ := newServer(t, true)
	origin, _ := model.NewOrigin(srv.URL)
	c := internal.NewConnection(origin)
	err := c.Connect(context.Background())
	if !errors.Is(err, errs.ErrConnectFailed) {
		t.Fatalf("err = %v, want connect failed", err)
	}
	if !c.IsClosed() {
		t.Fatal("failed connection reports open")
	}
}

func TestConnectionUnconnected(t *testing.T) {
	origin, _ := model.NewOrigin("https://example.com")
	c := internal.NewConnection(origin)
	if !c.IsClosed() || c.IsMultiplexed() || c.IsConnectionDropped() {
		t.Fatal("unconnected state")
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errs.ErrClosed) {
		t.Fatalf("ping err = %v", err)
	}
	if _, err := c.Send(context.Background(), &model.Request{URL: "https://example.org/"}); !errors.Is(err, internal.ErrOriginMismatch) {
		t.Fatalf("err = %v, want origin mismatch", err)
	}
	if c.ID() == "" || c.ID() == internal.NewConnection(origin).ID() {
		t.Fatal("connection IDs must be unique")
	}
}

func TestTracePropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	srv, _ := newServer(t, false)
	c := connectTo(t, srv)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	resp, err := c.Send(ctx, &model.Request{URL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get("X-Traceparent"); !strings.Contains(got, sc.TraceID().String()) {
		t.Fatalf("traceparent = %q", got)
	}
}

func TestWeakReleaseOwnerCollected(t *testing.T) {
	var calls atomic.Int32
	p := &pool{name: "short lived"}
	release := internal.WeakRelease(p, func(*pool, *internal.Connection) { calls.Add(1) })
	origin, _ := model.NewOrigin("http://example.com")
	c := internal.NewConnection(origin)

	release(c)
	if calls.Load() != 1 {
		t.Fatal("release did not reach a live owner")
	}
	runtime.KeepAlive(p)
	p = nil
	runtime.GC()
	runtime.GC()
	release(c)
	if calls.Load() != 1 {
		t.Fatal("release reached a collected owner")
	}
}

func TestConnectionHTTP2WriteTimeout(t *testing.T) {
	srv, _ := newServer(t, true)
	c := connectTo(t, srv, internal.WithTimeout(&config.TimeoutConfig{Connect: 5 * time.Second, Read: 5 * time.Second, Write: 3 * time.Second}))
	_, err := c.Send(context.Background(), &model.Request{URL: srv.URL + "/"},
		config.WithTimeout(&config.TimeoutConfig{Read: 5 * time.Second, Write: time.Millisecond}))
	if err != nil {
		t.Fatal(err)
	}
	d, ok := c.Driver().(*transport.HTTP2Conn)
	if !ok {
		t.Fatalf("bound to %T", c.Driver())
	}
	if d.WriteTimeout() != 3*time.Second {
		t.Fatalf("write timeout %v", d.WriteTimeout())
	}
}

func TestConnectionQueriesDuringConnect(t *testing.T) {
	// a proxy that accepts and never answers the CONNECT
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	proxy, _ := url.Parse("http://" + l.Addr().String())
	origin, _ := model.NewOrigin("http://example.com")
	c := internal.NewConnection(origin,
		internal.WithDialer(&dialer.Dialer{Proxy: proxy}),
		internal.WithTimeout(&config.TimeoutConfig{Connect: 10 * time.Second}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := c.Send(ctx, &model.Request{URL: "http://example.com/"})
		done <- err
	}()
	select {
	case conn := <-accepted:
		defer conn.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("proxy never dialed")
	}

	start := time.Now()
	_ = c.String()
	if !c.IsClosed() || c.IsMultiplexed() || c.IsConnectionDropped() {
		t.Fatalf("state while connecting: %s", c)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("queries waited %v on the connect", elapsed)
	}

	cancel()
	if err := <-done; err == nil {
		t.Fatal("send through a silent proxy succeeded")
	}
}

func TestConnectionCopiesDialer(t *testing.T) {
	port, heads := headServer(t)
	d := &dialer.Dialer{ResolveConfig: &dialer.ResolveConfig{
		StaticHosts: map[string]string{"www.example.com": "127.0.0.1"},
	}}
	origin, err := model.NewOrigin(fmt.Sprintf("http://www.example.com:%d", port))
	if err != nil {
		t.Fatal(err)
	}
	c := internal.NewConnection(origin, internal.WithDialer(d))
	defer c.Close()
	delete(d.ResolveConfig.StaticHosts, "www.example.com")
	d.ResolveConfig = nil

	if _, err := c.Send(context.Background(), &model.Request{URL: origin.String() + "/"}); err != nil {
		t.Fatal(err)
	}
	<-heads
}
