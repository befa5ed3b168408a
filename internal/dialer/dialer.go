package dialer

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/frankli0324/go-httpconn/internal/config"
	errs "github.com/frankli0324/go-httpconn/internal/errors"
)

// Protocol is the application protocol negotiated while connecting.
type Protocol uint8

const (
	HTTP11 Protocol = iota
	HTTP2
)

func (p Protocol) String() string {
	if p == HTTP2 {
		return "HTTP/2"
	}
	return "HTTP/1.1"
}

// Dialer handles pretty much everything related to the actual connection,
// including going through a proxy, setting resolvers, and the TLS handshake.
// The zero value dials directly with the system resolver.
type Dialer struct {
	ResolveConfig *ResolveConfig

	Proxy       *url.URL // http or https proxy, CONNECT is always used
	ProxyConfig *ProxyConfig

	Logger *slog.Logger
}

func (d *Dialer) Clone() *Dialer {
	if d == nil {
		return &Dialer{}
	}
	c := &Dialer{
		ResolveConfig: d.ResolveConfig.Clone(),
		ProxyConfig:   d.ProxyConfig.Clone(),
		Logger:        d.Logger,
	}
	if d.Proxy != nil {
		u := *d.Proxy
		c.Proxy = &u
	}
	return c
}

func (d *Dialer) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

var zeroDialer net.Dialer
var customDnsDialer = net.Dialer{
	Resolver: &customServerResolver,
}

// Connect opens a transport to host:port, performing the TLS handshake when
// tlsCfg is not nil. The returned Protocol tells what ALPN settled on, it is
// always HTTP11 for plain connections. timeout bounds the whole process.
func (d *Dialer) Connect(ctx context.Context, host string, port int, tlsCfg *tls.Config, timeout time.Duration) (*Conn, Protocol, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	portStr := strconv.Itoa(port)

	var conn net.Conn
	var err error
	if d.Proxy != nil {
		conn, err = d.DialContextOverProxy(ctx, host, portStr)
	} else {
		conn, err = d.dialDirect(ctx, host, portStr)
	}
	if err != nil {
		return nil, HTTP11, errs.FromConnect(err)
	}

	proto := HTTP11
	if tlsCfg != nil {
		cfg := tlsCfg.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = host
		}
		c := tls.Client(conn, cfg)
		if err := c.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, HTTP11, errs.FromConnect(err)
		}
		if c.ConnectionState().NegotiatedProtocol == config.ALPNHTTP2 {
			proto = HTTP2
		}
		conn = c
	}
	d.logger().Debug("connected", "addr", conn.RemoteAddr().String(), "host", host, "tls", tlsCfg != nil, "proto", proto.String())
	return newConn(conn, d.logger()), proto, nil
}

func (d *Dialer) dialDirect(ctx context.Context, host, port string) (net.Conn, error) {
	// as of now net.Dialer could handle current DNS configurations
	network, dialer, dialctx, dst := "tcp", &zeroDialer, ctx, net.JoinHostPort(host, port)
	if cfg := d.ResolveConfig; cfg != nil {
		if cfg.Network == "ip4" {
			network = "tcp4"
		} else if cfg.Network == "ip6" {
			network = "tcp6"
		}
		if static, ok := cfg.StaticHosts[host]; ok {
			dst = net.JoinHostPort(static, port)
		}
		if dns := cfg.CustomDNSServer; dns != "" {
			dialctx = dnsServerCtx{dialctx, dns}
			dialer = &customDnsDialer
		}
	}
	return dialer.DialContext(dialctx, network, dst)
}
