// Package httpconn is the connection layer of an HTTP client. A [Connection]
// owns a single transport to one origin, negotiates HTTP/1.1 or HTTP/2 on it
// and drives every request sent over it. A pool of connections is expected
// to sit on top, reacting to the release hook.
package httpconn

import (
	"github.com/frankli0324/go-httpconn/internal"
	"github.com/frankli0324/go-httpconn/internal/config"
	"github.com/frankli0324/go-httpconn/internal/dialer"
	"github.com/frankli0324/go-httpconn/internal/model"
)

type Connection = internal.Connection
type ReleaseFunc = internal.ReleaseFunc
type Option = internal.Option

type Origin = model.Origin
type Request = model.Request
type PreparedRequest = model.PreparedRequest
type Response = model.Response
type Headers = model.Headers
type Field = model.Field
type Body = model.Body

type TimeoutConfig = config.TimeoutConfig
type SSLConfig = config.SSLConfig
type SendOption = config.Option

type Dialer = dialer.Dialer
type ResolveConfig = dialer.ResolveConfig
type ProxyConfig = dialer.ProxyConfig

var (
	DefaultTimeoutConfig = config.DefaultTimeoutConfig
	DefaultSSLConfig     = config.DefaultSSLConfig
)

// New returns an unconnected connection to origin.
func New(origin Origin, opts ...Option) *Connection {
	return internal.NewConnection(origin, opts...)
}

// NewOrigin parses the scheme, host and port of an http or https URL.
func NewOrigin(rawURL string) (Origin, error) {
	return model.NewOrigin(rawURL)
}

// WeakRelease builds a release hook calling fn on owner for as long as owner
// is reachable from elsewhere.
func WeakRelease[T any](owner *T, fn func(owner *T, c *Connection)) ReleaseFunc {
	return internal.WeakRelease(owner, fn)
}

var (
	WithSSL         = internal.WithSSL
	WithTimeout     = internal.WithTimeout
	WithReleaseFunc = internal.WithReleaseFunc
	WithDialer      = internal.WithDialer
	WithLogger      = internal.WithLogger
	WithTracer      = internal.WithTracer
)

// Options of a single Send, overriding the ones of the connection.
var (
	WithStream         = config.WithStream
	WithRequestTimeout = config.WithTimeout
	WithRequestSSL     = config.WithSSL
)
