package dialer

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/frankli0324/go-httpconn/internal/config"
	errs "github.com/frankli0324/go-httpconn/internal/errors"
)

// Conn is an established transport whose reads and writes each carry their
// own timeout and give up as soon as the context is done.
type Conn struct {
	conn   net.Conn
	logger *slog.Logger
	closed atomic.Bool
}

func newConn(c net.Conn, logger *slog.Logger) *Conn {
	return &Conn{conn: c, logger: logger}
}

// Raw returns the underlying connection, a *tls.Conn for secure origins.
func (c *Conn) Raw() net.Conn { return c.conn }

func (c *Conn) Read(ctx context.Context, p []byte, timeout time.Duration) (int, error) {
	if err := c.conn.SetReadDeadline(config.Deadline(timeout)); err != nil {
		return 0, err
	}
	stop := context.AfterFunc(ctx, func() { c.conn.SetReadDeadline(aLongTimeAgo) })
	n, err := c.conn.Read(p)
	if !stop() && err != nil {
		err = ctx.Err()
	}
	if err != nil && err != io.EOF {
		c.logger.Debug("error on read", "error", err)
		err = errs.FromRead(err)
	}
	return n, err
}

func (c *Conn) Write(ctx context.Context, p []byte, timeout time.Duration) error {
	if err := c.conn.SetWriteDeadline(config.Deadline(timeout)); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { c.conn.SetWriteDeadline(aLongTimeAgo) })
	_, err := c.conn.Write(p)
	if !stop() && err != nil {
		err = ctx.Err()
	}
	if err != nil {
		c.logger.Debug("error on write", "error", err)
		err = errs.FromWrite(err)
	}
	return err
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

func (c *Conn) IsClosed() bool { return c.closed.Load() }

// IsReadable reports whether the peer closed the connection or sent bytes
// nobody asked for. It only makes sense on an idle connection.
func (c *Conn) IsReadable() bool {
	return c.IsClosed() || pollReadable(c.conn)
}
