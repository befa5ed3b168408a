package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frankli0324/go-httpconn/internal/config"
	errs "github.com/frankli0324/go-httpconn/internal/errors"
	"github.com/frankli0324/go-httpconn/internal/model"
	"github.com/frankli0324/go-httpconn/internal/transport/h1"
)

var ErrConnectUnsupported = errs.LocalProtocol("CONNECT requests can't be sent over a connection, configure a proxy on the dialer instead")

// HTTP1Conn sends requests over a single HTTP/1.1 stream, one at a time.
// Once a response is closed the connection either starts a new cycle or is
// closed, and the release hook runs.
type HTTP1Conn struct {
	stream  Stream
	release ReleaseFunc
	logger  *slog.Logger

	mu    sync.Mutex // guards state
	state *h1.Conn
	busy  atomic.Bool

	buf []byte

	closeOnce sync.Once
	closeErr  error
}

func NewHTTP1Conn(s Stream, release ReleaseFunc, logger *slog.Logger) *HTTP1Conn {
	return &HTTP1Conn{
		stream:  s,
		release: release,
		logger:  loggerOrDefault(logger),
		state:   h1.NewConn(),
		buf:     make([]byte, readSize),
	}
}

func (c *HTTP1Conn) driver() {}

func (c *HTTP1Conn) IsMultiplexed() bool { return false }

// Send writes req and reads the response head. Unless opts.Stream is set the
// body is read into Content and the response closed before returning.
//
// Any error leaves the connection closed. CONNECT is refused without touching
// the connection, tunnels are opened by the dialer.
func (c *HTTP1Conn) Send(ctx context.Context, req *model.PreparedRequest, opts *config.Options) (*model.Response, error) {
	if req.Method == http.MethodConnect {
		return nil, ErrConnectUnsupported
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, errs.ErrConnectionBusy
	}
	timeout := opts.Timeout
	if timeout == nil {
		timeout = &config.TimeoutConfig{}
	}
	resp, err := c.send(ctx, req, timeout)
	if err != nil {
		c.logger.Debug("http/1.1 send failed", "error", err)
		c.Close()
		c.busy.Store(false)
		return nil, err
	}
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

func (c *HTTP1Conn) send(ctx context.Context, req *model.PreparedRequest, timeout *config.TimeoutConfig) (*model.Response, error) {
	start := h1.Request{Method: req.Method, Target: req.Target, Headers: req.Header}
	if err := c.sendEvent(ctx, start, timeout.Write); err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	err = sendBody(body, readSize, func(b []byte) error {
		return c.sendEvent(ctx, h1.Data{Data: b}, timeout.Write)
	})
	body.Close() // request body is ALWAYS closed
	if err != nil {
		return nil, err
	}
	if err := c.sendEvent(ctx, h1.EndOfMessage{}, timeout.Write); err != nil {
		return nil, err
	}

	for {
		ev, err := c.receiveEvent(ctx, timeout.Read)
		if err != nil {
			return nil, err
		}
		switch ev := ev.(type) {
		case h1.InformationalResponse:
			continue
		case h1.Response:
			return &model.Response{
				StatusCode: ev.StatusCode,
				Reason:     ev.Reason,
				Proto:      "HTTP/1.1",
				Header:     ev.Headers,
				Body:       model.NewBody(c.bodyNext(ctx, timeout.Read), c.responseClosed),
			}, nil
		default:
			return nil, errs.RemoteProtocol("unexpected %s while waiting for a response", h1.Name(ev))
		}
	}
}

func (c *HTTP1Conn) bodyNext(ctx context.Context, timeout time.Duration) func() ([]byte, error) {
	return func() ([]byte, error) {
		ev, err := c.receiveEvent(ctx, timeout)
		if err != nil {
			return nil, err
		}
		switch ev := ev.(type) {
		case h1.Data:
			return ev.Data, nil
		case h1.EndOfMessage:
			return nil, io.EOF
		}
		return nil, errs.RemoteProtocol("unexpected %s in response body", h1.Name(ev))
	}
}

func (c *HTTP1Conn) sendEvent(ctx context.Context, ev h1.Event, timeout time.Duration) error {
	c.mu.Lock()
	data, err := c.state.Send(ev)
	c.mu.Unlock()
	if err != nil || len(data) == 0 {
		return err
	}
	return errs.FromWrite(c.stream.Write(ctx, data, timeout))
}

func (c *HTTP1Conn) receiveEvent(ctx context.Context, timeout time.Duration) (h1.Event, error) {
	for {
		c.mu.Lock()
		ev, err := c.state.NextEvent()
		c.mu.Unlock()
		if err != nil || ev != h1.NeedData {
			return ev, err
		}

		n, rerr := c.stream.Read(ctx, c.buf, timeout)
		if rerr != nil && rerr != io.EOF {
			return nil, errs.FromRead(rerr)
		}
		c.mu.Lock()
		if n > 0 {
			err = c.state.ReceiveData(c.buf[:n])
		}
		if err == nil && rerr == io.EOF {
			err = c.state.ReceiveData(nil)
		}
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
}

// responseClosed runs exactly once per response.
func (c *HTTP1Conn) responseClosed() error {
	var err error
	c.mu.Lock()
	if c.state.OurState() == h1.Done && c.state.TheirState() == h1.Done {
		err = c.state.StartNextCycle()
		c.mu.Unlock()
		c.logger.Debug("http/1.1 connection reusable")
	} else {
		c.mu.Unlock()
		err = c.Close()
	}
	c.busy.Store(false)
	c.release.call()
	return err
}

// Close closes the stream. It is idempotent.
func (c *HTTP1Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		// fails unless we were idle or done, the state then ends up in Error
		_, err := c.state.Send(h1.ConnectionClosed{})
		our, their := c.state.OurState(), c.state.TheirState()
		c.mu.Unlock()
		c.logger.Debug("http/1.1 connection closed", "our", our, "their", their, "premature", err != nil)
		c.closeErr = c.stream.Close()
	})
	return c.closeErr
}

func (c *HTTP1Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.OurState() {
	case h1.Closed, h1.Error:
		return true
	}
	return false
}

// IsDropped reports whether the stream became readable while idle, meaning
// the peer closed it or sent unsolicited bytes. Streams that can't tell are
// assumed alive.
func (c *HTTP1Conn) IsDropped() bool {
	if c.IsClosed() {
		return true
	}
	if c.busy.Load() {
		return false
	}
	r, ok := c.stream.(interface{ IsReadable() bool })
	return ok && r.IsReadable()
}
