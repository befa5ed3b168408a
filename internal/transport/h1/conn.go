package h1

import (
	"bytes"

	errs "github.com/frankli0324/go-httpconn/internal/errors"
)

// DefaultMaxIncompleteEventSize bounds the bytes buffered while waiting for
// a complete response head, chunk header or trailer block.
const DefaultMaxIncompleteEventSize = 64 << 10

// Conn is the protocol state of one client connection. It is not safe for
// concurrent use.
type Conn struct {
	our, their State
	keepAlive  bool
	method     string // method of the request in flight

	writer bodyWriter
	reader bodyReader

	buf []byte
	eof bool

	MaxIncompleteEventSize int
}

func NewConn() *Conn {
	return &Conn{
		keepAlive:              true,
		MaxIncompleteEventSize: DefaultMaxIncompleteEventSize,
	}
}

func (c *Conn) OurState() State   { return c.our }
func (c *Conn) TheirState() State { return c.their }

// KeepAlive reports whether the connection may be reused once both roles are
// Done. It turns false for good once either side asks to close.
func (c *Conn) KeepAlive() bool { return c.keepAlive }

// Send converts an outgoing event into the bytes to write. Any error moves
// our role into Error.
func (c *Conn) Send(ev Event) ([]byte, error) {
	if c.our == Error {
		return nil, errs.LocalProtocol("can't send data when our state is %s", c.our)
	}
	data, err := c.send(ev)
	if err != nil {
		c.our = Error
		c.settle()
		return nil, err
	}
	return data, nil
}

func (c *Conn) send(ev Event) ([]byte, error) {
	switch ev := ev.(type) {
	case Request:
		if c.our != Idle {
			return nil, errs.LocalProtocol("can't send Request in state %s", c.our)
		}
		if err := validateRequest(ev); err != nil {
			return nil, err
		}
		w, err := requestFraming(ev.Headers)
		if err != nil {
			return nil, err
		}
		if wantsClose(ev.Headers) {
			c.keepAlive = false
		}
		c.method, c.writer = ev.Method, w
		c.our, c.their = SendBody, SendResponse
		c.settle()
		return writeRequest(nil, ev), nil
	case Data:
		if c.our != SendBody {
			return nil, errs.LocalProtocol("can't send Data in state %s", c.our)
		}
		return c.writer.write(ev.Data)
	case EndOfMessage:
		if c.our != SendBody {
			return nil, errs.LocalProtocol("can't send EndOfMessage in state %s", c.our)
		}
		data, err := c.writer.end(ev.Headers)
		if err != nil {
			return nil, err
		}
		c.our = Done
		c.settle()
		return data, nil
	case ConnectionClosed:
		switch c.our {
		case Idle, Done, MustClose, Closed:
			c.our = Closed
			c.settle()
			return nil, nil
		}
		return nil, errs.LocalProtocol("can't send ConnectionClosed in state %s", c.our)
	}
	return nil, errs.LocalProtocol("client can't send %s", Name(ev))
}

// ReceiveData feeds bytes read from the peer. An empty slice signals EOF.
func (c *Conn) ReceiveData(data []byte) error {
	if len(data) == 0 {
		c.eof = true
		return nil
	}
	if c.eof {
		return errs.RemoteProtocol("received data after EOF")
	}
	if len(c.buf) == 0 {
		c.buf = c.buf[:0:0] // drop consumed backing array
	}
	c.buf = append(c.buf, data...)
	return nil
}

// NextEvent parses the next incoming event, or returns NeedData or Paused.
// Any error moves their role into Error.
func (c *Conn) NextEvent() (Event, error) {
	if c.their == Error {
		return nil, errs.RemoteProtocol("can't receive data when peer state is %s", c.their)
	}
	ev, err := c.nextEvent()
	if err != nil {
		c.their = Error
		c.settle()
		return nil, err
	}
	if ev == nil {
		return NeedData, nil
	}
	return ev, nil
}

func (c *Conn) nextEvent() (Event, error) {
	switch c.their {
	case Done:
		if len(c.buf) != 0 {
			return Paused, nil
		}
		return c.expectNothing()
	case SwitchedProtocol:
		return Paused, nil
	case Idle:
		if len(c.buf) != 0 {
			return nil, errs.RemoteProtocol("received data before a request was sent")
		}
		return c.expectNothing()
	case SendResponse:
		return c.readResponseHead()
	case SendBody:
		ev, err := c.reader.read(c)
		if _, ok := ev.(EndOfMessage); ok {
			c.their = Done
			c.settle()
		}
		return ev, err
	}
	return c.expectNothing()
}

func (c *Conn) expectNothing() (Event, error) {
	if len(c.buf) != 0 {
		return nil, errs.RemoteProtocol("got data when expecting EOF")
	}
	if c.eof {
		c.their = Closed
		c.settle()
		return ConnectionClosed{}, nil
	}
	return nil, nil
}

func (c *Conn) readResponseHead() (Event, error) {
	end := headEnd(c.buf)
	if end < 0 {
		if c.eof && len(c.buf) == 0 {
			return nil, errs.PrematureClose("server disconnected without sending a response")
		}
		return nil, c.incomplete("peer closed connection in the middle of a response head")
	}
	lines := splitLines(c.take(end))
	if len(lines) == 0 {
		return nil, errs.RemoteProtocol("empty response head")
	}
	version, code, reason, err := parseStatusLine(lines[0])
	if err != nil {
		return nil, err
	}
	headers, err := parseFields(lines[1:])
	if err != nil {
		return nil, err
	}

	if code < 200 {
		if code == 101 {
			return nil, errs.RemoteProtocol("unexpected protocol switch without an upgrade request")
		}
		return InformationalResponse{version, code, reason, headers}, nil
	}
	resp := Response{version, code, reason, headers}

	if version < "1.1" || wantsClose(headers) {
		c.keepAlive = false
	}
	if c.method == "CONNECT" && code < 300 {
		c.their = SwitchedProtocol
		c.settle()
		return resp, nil
	}
	r, err := responseFraming(c.method, code, headers)
	if err != nil {
		return nil, err
	}
	if r.mode == framingUntilClose {
		c.keepAlive = false
	}
	c.reader = r
	c.their = SendBody
	c.settle()
	return resp, nil
}

// settle applies the transitions triggered by the joint state.
func (c *Conn) settle() {
	if !c.keepAlive {
		if c.our == Done {
			c.our = MustClose
		}
		if c.their == Done {
			c.their = MustClose
		}
	}
	switch {
	case c.their == SwitchedProtocol && c.our == Done:
		c.our = SwitchedProtocol
	case c.our == Closed && (c.their == Done || c.their == Idle),
		c.our == Error && c.their == Done:
		c.their = MustClose
	case c.their == Closed && (c.our == Done || c.our == Idle),
		c.their == Error && c.our == Done:
		c.our = MustClose
	}
}

// StartNextCycle resets both roles to Idle after a completed exchange so the
// connection can carry another request.
func (c *Conn) StartNextCycle() error {
	if c.our != Done || c.their != Done {
		return errs.LocalProtocol("not in a reusable state: our %s, their %s", c.our, c.their)
	}
	c.our, c.their = Idle, Idle
	c.method = ""
	c.writer, c.reader = bodyWriter{}, bodyReader{}
	return nil
}

// TrailingData returns the bytes received past the last event, and whether
// EOF was seen. It is meaningful after a protocol switch (CONNECT).
func (c *Conn) TrailingData() ([]byte, bool) {
	return append([]byte(nil), c.buf...), c.eof
}

// take consumes n bytes from the receive buffer, returning a copy.
func (c *Conn) take(n int) []byte {
	data := append([]byte(nil), c.buf[:n]...)
	c.buf = c.buf[n:]
	return data
}

// takeLine consumes a line terminated by LF or CRLF, returning it without
// the terminator. ok is false if no complete line is buffered yet.
func (c *Conn) takeLine() (line []byte, ok bool, err error) {
	i := bytes.IndexByte(c.buf, '\n')
	if i < 0 {
		return nil, false, c.incomplete("peer closed connection in the middle of a chunk header")
	}
	line = bytes.TrimSuffix(c.take(i + 1)[:i], []byte("\r"))
	return line, true, nil
}

// incomplete is called when the buffer holds a partial event. It returns nil
// if more data may complete it.
func (c *Conn) incomplete(eofMsg string) error {
	if c.eof {
		return errs.PrematureClose("%s", eofMsg)
	}
	if len(c.buf) > c.MaxIncompleteEventSize {
		return errs.RemoteProtocol("receive buffer too long")
	}
	return nil
}
