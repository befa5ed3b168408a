package dialer

import (
	"net"
	"syscall"
)

func sysConn(raw net.Conn) syscall.RawConn {
	for {
		t, ok := raw.(interface{ NetConn() net.Conn })
		if !ok {
			break
		}
		// *tls.Conn or a proxied connection
		raw = t.NetConn()
	}
	if c, ok := raw.(syscall.Conn); ok {
		if c, err := c.SyscallConn(); err == nil {
			return c
		}
	}
	return nil
}
