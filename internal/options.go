package internal

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/frankli0324/go-httpconn/internal/config"
	"github.com/frankli0324/go-httpconn/internal/dialer"
)

// Option configures a [Connection].
type Option func(*Connection)

// WithSSL sets the default SSL configuration, [config.DefaultSSLConfig] if
// not given.
func WithSSL(ssl *config.SSLConfig) Option {
	return func(c *Connection) { c.ssl = ssl }
}

// WithTimeout sets the default timeouts, [config.DefaultTimeoutConfig] if
// not given. Its Write timeout is the only one HTTP/2 connections use.
func WithTimeout(timeout *config.TimeoutConfig) Option {
	return func(c *Connection) { c.timeout = timeout }
}

func WithReleaseFunc(fn ReleaseFunc) Option {
	return func(c *Connection) { c.release = fn }
}

// WithDialer sets the dialer. It is copied, later changes to d are not seen.
func WithDialer(d *dialer.Dialer) Option {
	return func(c *Connection) { c.dialer = d }
}

// WithLogger sets the logger, default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Connection) { c.logger = l }
}

// WithTracer sets the tracer, default is a no-op tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Connection) { c.tracer = t }
}
