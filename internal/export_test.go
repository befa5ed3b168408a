package internal

import "github.com/frankli0324/go-httpconn/internal/transport"

func (c *Connection) Driver() transport.Driver { return c.bound() }
