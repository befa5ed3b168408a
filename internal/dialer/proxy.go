package dialer

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/url"
	"time"

	"github.com/frankli0324/go-httpconn/internal/model"
	"github.com/frankli0324/go-httpconn/internal/transport/h1"
)

var (
	ErrUnsupportedProxy = errors.New("unsupported proxy scheme")
	ErrProxyRefused     = errors.New("proxy refused to tunnel")
)

type ProxyConfig struct {
	TLSConfig      *tls.Config // used with https proxies, the system defaults apply if nil
	ResolveLocally bool
	ResolveConfig  *ResolveConfig // overrides the resolver config for dialer for proxy
}

func (c *ProxyConfig) Clone() *ProxyConfig {
	if c == nil {
		return nil
	}
	return &ProxyConfig{
		TLSConfig:      c.TLSConfig.Clone(),
		ResolveLocally: c.ResolveLocally,
		ResolveConfig:  c.ResolveConfig.Clone(),
	}
}

var proxyPorts = map[string]string{
	"http": "80", "https": "443",
}

// aLongTimeAgo is a non-zero time in the past, used to unblock I/O at once.
var aLongTimeAgo = time.Unix(1, 0)

// DialContextOverProxy opens a tunnel to host:port through d.Proxy with an
// HTTP CONNECT request.
func (d *Dialer) DialContextOverProxy(ctx context.Context, host, port string) (net.Conn, error) {
	proxy := d.Proxy
	if proxy.Scheme != "http" && proxy.Scheme != "https" { // TODO: socks5
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProxy, proxy.Scheme)
	}
	hp := proxy.Host
	if proxy.Port() == "" {
		hp = net.JoinHostPort(proxy.Hostname(), proxyPorts[proxy.Scheme])
	}
	pcfg := d.ProxyConfig
	if pcfg == nil {
		pcfg = &ProxyConfig{}
	}

	conn, err := zeroDialer.DialContext(ctx, "tcp", hp)
	if err != nil {
		return nil, err
	}
	if proxy.Scheme == "https" {
		cfg := pcfg.TLSConfig.Clone()
		if cfg == nil {
			cfg = &tls.Config{}
		}
		if cfg.ServerName == "" {
			cfg.ServerName = proxy.Hostname()
		}
		c := tls.Client(conn, cfg)
		if err := c.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		conn = c
	}

	addr := host
	if pcfg.ResolveLocally {
		ips, err := lookup(ctx, pcfg.ResolveConfig.Merge(d.ResolveConfig), host)
		if err != nil {
			conn.Close()
			return nil, err
		}
		addr = ips[rand.Intn(len(ips))].String()
	}

	tunnel, err := connectTunnel(ctx, conn, net.JoinHostPort(addr, port), proxy.User)
	if err != nil {
		conn.Close()
		return nil, err
	}
	d.logger().Debug("proxy tunnel established", "proxy", hp, "target", net.JoinHostPort(addr, port))
	return tunnel, nil
}

// connectTunnel sends CONNECT over conn and waits for a 2xx answer. Bytes the
// proxy sent past the response head are replayed by the returned conn.
func connectTunnel(ctx context.Context, conn net.Conn, target string, user *url.Userinfo) (net.Conn, error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(aLongTimeAgo) })
	defer stop()
	fail := func(err error) (net.Conn, error) {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}

	state := h1.NewConn()
	headers := model.Headers{{Name: "Host", Value: target}}
	if user != nil {
		password, _ := user.Password()
		auth := base64.StdEncoding.EncodeToString([]byte(user.Username() + ":" + password))
		headers.Add("Proxy-Authorization", "Basic "+auth)
	}
	for _, ev := range []h1.Event{h1.Request{Method: "CONNECT", Target: target, Headers: headers}, h1.EndOfMessage{}} {
		data, err := state.Send(ev)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		if _, err := conn.Write(data); err != nil {
			return fail(err)
		}
	}

	buf := make([]byte, 4096)
	for {
		ev, err := state.NextEvent()
		if err != nil {
			return nil, err
		}
		switch ev := ev.(type) {
		case h1.InformationalResponse:
			continue
		case h1.Response:
			if ev.StatusCode < 200 || ev.StatusCode > 299 {
				return nil, fmt.Errorf("%w: %d %s", ErrProxyRefused, ev.StatusCode, ev.Reason)
			}
			if trailing, _ := state.TrailingData(); len(trailing) > 0 {
				return &prefixConn{Conn: conn, prefix: trailing}, nil
			}
			return conn, nil
		}
		n, err := conn.Read(buf)
		if n > 0 {
			state.ReceiveData(buf[:n])
		}
		if err == io.EOF {
			state.ReceiveData(nil)
		} else if err != nil {
			return fail(err)
		}
	}
}

// prefixConn reads prefix before reading from Conn.
type prefixConn struct {
	net.Conn
	prefix []byte
}

func (c *prefixConn) Read(p []byte) (int, error) {
	if len(c.prefix) > 0 {
		n := copy(p, c.prefix)
		c.prefix = c.prefix[n:]
		return n, nil
	}
	return c.Conn.Read(p)
}

func (c *prefixConn) NetConn() net.Conn { return c.Conn }
