package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/http2"

	"github.com/frankli0324/go-httpconn/internal/config"
	errs "github.com/frankli0324/go-httpconn/internal/errors"
	"github.com/frankli0324/go-httpconn/internal/model"
)

// HTTP2Conn multiplexes requests over one HTTP/2 connection. It is safe for
// concurrent use; the release hook runs once per closed response.
type HTTP2Conn struct {
	cc           *http2.ClientConn
	release      ReleaseFunc
	logger       *slog.Logger
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewHTTP2Conn performs the HTTP/2 preface and settings exchange over conn.
// writeTimeout bounds every frame write for the lifetime of the connection,
// frames of concurrent streams share the socket so it can't vary per request.
func NewHTTP2Conn(conn net.Conn, writeTimeout time.Duration, release ReleaseFunc, logger *slog.Logger) (*HTTP2Conn, error) {
	t := &http2.Transport{
		WriteByteTimeout: writeTimeout,
	}
	cc, err := t.NewClientConn(conn)
	if err != nil {
		return nil, errs.FromConnect(err)
	}
	return &HTTP2Conn{cc: cc, release: release, logger: loggerOrDefault(logger), writeTimeout: writeTimeout}, nil
}

// WriteTimeout is the frame write timeout fixed when connecting.
func (c *HTTP2Conn) WriteTimeout() time.Duration { return c.writeTimeout }

func (c *HTTP2Conn) driver() {}

func (c *HTTP2Conn) IsMultiplexed() bool { return true }

func (c *HTTP2Conn) Send(ctx context.Context, req *model.PreparedRequest, opts *config.Options) (*model.Response, error) {
	timeout := opts.Timeout
	if timeout == nil {
		timeout = &config.TimeoutConfig{}
	}
	ctx, cancel := context.WithCancel(ctx)
	hreq, err := c.newRequest(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	wd := newWatchdog(cancel)
	wd.arm(timeout.Read)
	hres, err := c.cc.RoundTrip(hreq)
	if wd.stop() {
		err = errs.ErrReadTimeout.Wrap(context.DeadlineExceeded)
	}
	if err != nil {
		cancel()
		c.logger.Debug("http/2 round trip failed", "error", err)
		return nil, h2Error(err)
	}

	resp := &model.Response{
		StatusCode: hres.StatusCode,
		Reason:     http.StatusText(hres.StatusCode),
		Proto:      "HTTP/2",
		Header:     fromHTTPHeader(hres.Header),
	}
	resp.Body = model.NewBody(c.bodyNext(hres.Body, wd, timeout.Read), func() error {
		err := hres.Body.Close()
		cancel()
		c.release.call()
		return err
	})
	if opts.Stream {
		return resp, nil
	}
	_, err = resp.Read()
	if cerr := resp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTP2Conn) bodyNext(body io.Reader, wd *watchdog, timeout time.Duration) func() ([]byte, error) {
	buf := make([]byte, readSize)
	var sticky error
	return func() ([]byte, error) {
		for sticky == nil {
			wd.arm(timeout)
			n, err := body.Read(buf)
			if wd.stop() {
				err = errs.ErrReadTimeout.Wrap(context.DeadlineExceeded)
			}
			if err != nil {
				sticky = h2Error(err)
			}
			if n > 0 {
				return append([]byte(nil), buf[:n]...), nil
			}
		}
		return nil, sticky
	}
}

// hopHeaders are connection-specific and must not be sent on HTTP/2
// (RFC9113 Section 8.2.2).
var hopHeaders = map[string]bool{
	"connection":        true,
	"keep-alive":        true,
	"proxy-connection":  true,
	"transfer-encoding": true,
	"upgrade":           true,
}

func (c *HTTP2Conn) newRequest(ctx context.Context, req *model.PreparedRequest) (*http.Request, error) {
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	u := *req.U
	u.Host = req.Origin.Authority()
	hreq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), nil)
	if err != nil {
		body.Close()
		return nil, err
	}
	hreq.ContentLength = req.ContentLength
	if body != http.NoBody {
		hreq.Body = body
		hreq.GetBody = req.GetBody
	} else {
		hreq.ContentLength = 0
		body.Close()
	}
	for _, f := range req.Header {
		name := strings.ToLower(f.Name)
		switch {
		case name == "host":
			hreq.Host = f.Value
		case name == "content-length", hopHeaders[name]:
		case name == "te":
			// only "trailers" is allowed
			if httpguts.HeaderValuesContainsToken([]string{f.Value}, "trailers") {
				hreq.Header.Add("Te", "trailers")
			}
		default:
			hreq.Header.Add(f.Name, f.Value)
		}
	}
	return hreq, nil
}

// fromHTTPHeader flattens h into a list sorted by name, http2 delivers
// headers as a map so the wire order is lost.
func fromHTTPHeader(h http.Header) model.Headers {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	var out model.Headers
	for _, k := range names {
		for _, v := range h[k] {
			out = append(out, model.Field{Name: k, Value: v})
		}
	}
	return out
}

func h2Error(err error) error {
	var (
		se http2.StreamError
		ce http2.ConnectionError
		ge http2.GoAwayError
	)
	switch {
	case errors.As(err, new(errs.Error)):
		return err
	case errors.As(err, &se), errors.As(err, &ce), errors.As(err, &ge):
		return errs.ErrProtocol.Wrap(err)
	}
	return errs.FromRead(err)
}

// Ping sends a PING frame and waits for the acknowledgement.
func (c *HTTP2Conn) Ping(ctx context.Context) error {
	if err := c.cc.Ping(ctx); err != nil {
		c.logger.Debug("http/2 ping failed", "error", err)
		return h2Error(err)
	}
	return nil
}

func (c *HTTP2Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.cc.Close()
		c.logger.Debug("http/2 connection closed")
	})
	return c.closeErr
}

func (c *HTTP2Conn) IsClosed() bool {
	st := c.cc.State()
	return st.Closed || st.Closing
}

func (c *HTTP2Conn) IsDropped() bool {
	return c.IsClosed() || !c.cc.CanTakeNewRequest()
}
