package internal

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/frankli0324/go-httpconn/internal/config"
	"github.com/frankli0324/go-httpconn/internal/dialer"
	errs "github.com/frankli0324/go-httpconn/internal/errors"
	"github.com/frankli0324/go-httpconn/internal/model"
	"github.com/frankli0324/go-httpconn/internal/transport"
)

var ErrOriginMismatch = errors.New("request origin does not match the connection")

// ReleaseFunc is called once per request cycle, after the connection decided
// whether it can be reused. See [WeakRelease] for owners that must not be
// kept alive by their connections.
type ReleaseFunc func(*Connection)

// Connection is a connection to a single origin. It connects lazily on the
// first Send and binds for good to the driver of the protocol negotiated
// then. HTTP/1.1 connections serve one request at a time, HTTP/2 ones any
// number concurrently.
type Connection struct {
	id      uuid.UUID
	origin  model.Origin
	ssl     *config.SSLConfig
	timeout *config.TimeoutConfig
	release ReleaseFunc
	dialer  *dialer.Dialer
	logger  *slog.Logger
	tracer  trace.Tracer

	dialMu sync.Mutex // serialises connect
	mu     sync.Mutex // guards driver, never held across I/O
	driver transport.Driver
}

func NewConnection(origin model.Origin, opts ...Option) *Connection {
	c := &Connection{id: uuid.New(), origin: origin}
	for _, opt := range opts {
		opt(c)
	}
	if c.ssl == nil {
		c.ssl = &config.DefaultSSLConfig
	}
	if c.timeout == nil {
		c.timeout = &config.DefaultTimeoutConfig
	}
	c.dialer = c.dialer.Clone()
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = defaultTracer()
	}
	c.logger = c.logger.With("conn", c.id.String(), "origin", origin.String())
	return c
}

func (c *Connection) ID() string           { return c.id.String() }
func (c *Connection) Origin() model.Origin { return c.origin }

func (c *Connection) String() string {
	state := "unconnected"
	if d := c.bound(); d != nil {
		state = "HTTP/1.1"
		if d.IsMultiplexed() {
			state = "HTTP/2"
		}
		if d.IsClosed() {
			state += ", closed"
		}
	}
	return fmt.Sprintf("<Connection %s [%s]>", c.origin, state)
}

// Send sends req, connecting first if needed. Unless [config.WithStream] is
// given the body is read into Response.Content and the connection released
// before Send returns; otherwise the caller must close the response.
func (c *Connection) Send(ctx context.Context, req *model.Request, opts ...config.Option) (*model.Response, error) {
	o, err := config.Apply(opts...)
	if err != nil {
		return nil, err
	}
	o = o.Resolve(c.ssl, c.timeout)
	pr, err := req.Prepare()
	if err != nil {
		return nil, err
	}
	if pr.Origin != c.origin {
		return nil, fmt.Errorf("%w: %s is not %s", ErrOriginMismatch, pr.Origin, c.origin)
	}

	ctx, span := c.startSpan(ctx, "httpconn.send", sendAttributes(pr)...)
	defer span.End()
	injectTrace(ctx, pr)

	d, err := c.connect(ctx, o)
	if err != nil {
		return nil, endSpan(span, err)
	}
	resp, err := d.Send(ctx, pr, o)
	if err != nil {
		return nil, endSpan(span, err)
	}
	span.SetAttributes(responseAttributes(resp)...)
	return resp, nil
}

// Connect establishes the transport ahead of the first Send. It is a no-op
// on a connection that already connected.
func (c *Connection) Connect(ctx context.Context, opts ...config.Option) error {
	o, err := config.Apply(opts...)
	if err != nil {
		return err
	}
	_, err = c.connect(ctx, o.Resolve(c.ssl, c.timeout))
	return err
}

func (c *Connection) connect(ctx context.Context, o *config.Options) (transport.Driver, error) {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()
	if d := c.bound(); d != nil {
		return d, nil
	}

	ctx, span := c.startSpan(ctx, "httpconn.connect")
	defer span.End()

	var tlsCfg *tls.Config
	if c.origin.IsSecure {
		var err error
		if tlsCfg, err = o.SSL.TLSConfig(c.origin.Host); err != nil {
			return nil, endSpan(span, err)
		}
	}
	conn, proto, err := c.dialer.Connect(ctx, c.origin.Host, c.origin.Port, tlsCfg, o.Timeout.Connect)
	if err != nil {
		c.logger.Debug("connect failed", "error", err)
		return nil, endSpan(span, err)
	}

	var d transport.Driver
	var release transport.ReleaseFunc
	if c.release != nil {
		release = func() {
			c.logger.Debug("release")
			c.release(c)
		}
	}
	switch proto {
	case dialer.HTTP2:
		h2, err := transport.NewHTTP2Conn(conn.Raw(), c.timeout.Write, release, c.logger)
		if err != nil {
			conn.Close()
			return nil, endSpan(span, err)
		}
		d = h2
	default:
		d = transport.NewHTTP1Conn(conn, release, c.logger)
	}
	c.mu.Lock()
	c.driver = d
	c.mu.Unlock()
	span.SetAttributes(protoAttribute(proto))
	c.logger.Debug("connected", "proto", proto.String(), "write_timeout", c.timeout.Write)
	return d, nil
}

func (c *Connection) bound() transport.Driver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver
}

// Close closes the transport. It is a no-op before connecting, a connect in
// flight is not interrupted.
func (c *Connection) Close() error {
	d := c.bound()
	if d == nil {
		return nil
	}
	c.logger.Debug("close")
	return d.Close()
}

func (c *Connection) IsMultiplexed() bool {
	d := c.bound()
	return d != nil && d.IsMultiplexed()
}

// IsClosed is true before the connection is established.
func (c *Connection) IsClosed() bool {
	d := c.bound()
	return d == nil || d.IsClosed()
}

// IsConnectionDropped reports whether an idle connection was closed by the
// peer or otherwise became unusable, so that a pool can discard it.
func (c *Connection) IsConnectionDropped() bool {
	d := c.bound()
	return d != nil && d.IsDropped()
}

// Ping checks the connection is alive. HTTP/2 connections send a PING frame.
func (c *Connection) Ping(ctx context.Context) error {
	switch d := c.bound().(type) {
	case nil:
		return errs.ErrClosed
	case *transport.HTTP2Conn:
		return d.Ping(ctx)
	default:
		if d.IsDropped() {
			return errs.ErrClosed
		}
		return nil
	}
}
