package h1

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	errs "github.com/frankli0324/go-httpconn/internal/errors"
	"github.com/frankli0324/go-httpconn/internal/model"
)

type framing uint8

const (
	framingLength framing = iota
	framingChunked
	framingUntilClose // response bodies delimited by the connection closing
)

// bodyWriter frames outgoing Data and EndOfMessage events.
type bodyWriter struct {
	mode      framing
	remaining int64
}

func (w *bodyWriter) write(data []byte) ([]byte, error) {
	if w.mode == framingChunked {
		return appendChunk(nil, data), nil
	}
	if int64(len(data)) > w.remaining {
		return nil, errs.LocalProtocol("too much data for declared Content-Length")
	}
	w.remaining -= int64(len(data))
	return data, nil
}

func (w *bodyWriter) end(trailers model.Headers) ([]byte, error) {
	if w.mode == framingChunked {
		if err := validateFields(trailers); err != nil {
			return nil, err
		}
		buf := append([]byte(nil), "0\r\n"...)
		buf = writeFields(buf, trailers)
		return append(buf, "\r\n"...), nil
	}
	if w.remaining != 0 {
		return nil, errs.LocalProtocol("too little data for declared Content-Length")
	}
	if len(trailers) != 0 {
		return nil, errs.LocalProtocol("trailers are only allowed with chunked encoding")
	}
	return nil, nil
}

// requestFraming decides the body framing of an outgoing request. A request
// with neither Content-Length nor Transfer-Encoding has no body.
func requestFraming(h model.Headers) (bodyWriter, error) {
	if te := h.Values("Transfer-Encoding"); len(te) != 0 {
		if len(te) != 1 || !strings.EqualFold(strings.TrimSpace(te[0]), "chunked") {
			return bodyWriter{}, errs.LocalProtocol("only Transfer-Encoding: chunked is supported")
		}
		return bodyWriter{mode: framingChunked}, nil
	}
	if cl := h.Values("Content-Length"); len(cl) != 0 {
		n, err := parseContentLength(cl)
		if err != nil {
			return bodyWriter{}, errs.LocalProtocol("%v", err)
		}
		return bodyWriter{mode: framingLength, remaining: n}, nil
	}
	return bodyWriter{mode: framingLength}, nil
}

// parseContentLength accepts repeated Content-Length values only if they
// agree, hardening against request smuggling (RFC 9112 Section 6.3).
func parseContentLength(values []string) (int64, error) {
	var first string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if first == "" {
				first = part
			} else if part != first {
				return 0, fmt.Errorf("message cannot contain multiple Content-Length headers; got %q", values)
			}
		}
	}
	n, err := strconv.ParseUint(first, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Length %q", first)
	}
	return int64(n), nil
}

type chunkPhase uint8

const (
	chunkSize chunkPhase = iota
	chunkData
	chunkDataEnd
	chunkTrailer
)

// bodyReader keeps the progress of an incoming message body.
type bodyReader struct {
	mode      framing
	remaining int64 // framingLength: bytes left; framingChunked: bytes left in chunk
	received  int64
	phase     chunkPhase
}

// responseFraming decides how the body of a response is delimited.
func responseFraming(method string, code int, h model.Headers) (bodyReader, error) {
	if method == "HEAD" || code == 204 || code == 304 {
		return bodyReader{mode: framingLength}, nil
	}
	if te := h.Values("Transfer-Encoding"); len(te) != 0 {
		codings := strings.Split(strings.Join(te, ","), ",")
		if len(codings) != 1 || !strings.EqualFold(strings.TrimSpace(codings[0]), "chunked") {
			return bodyReader{}, errs.RemoteProtocol("unsupported Transfer-Encoding %q", te)
		}
		return bodyReader{mode: framingChunked}, nil
	}
	if cl := h.Values("Content-Length"); len(cl) != 0 {
		n, err := parseContentLength(cl)
		if err != nil {
			return bodyReader{}, errs.RemoteProtocol("%v", err)
		}
		return bodyReader{mode: framingLength, remaining: n}, nil
	}
	return bodyReader{mode: framingUntilClose}, nil
}

// read produces the next body event from c's buffer, nil means NeedData.
func (r *bodyReader) read(c *Conn) (Event, error) {
	switch r.mode {
	case framingLength:
		if r.remaining == 0 {
			return EndOfMessage{}, nil
		}
		if len(c.buf) == 0 {
			if c.eof {
				return nil, errs.PrematureClose("peer closed connection without sending complete message body: received %d bytes, expected %d", r.received, r.received+r.remaining)
			}
			return nil, nil
		}
		data := c.take(int(min(int64(len(c.buf)), r.remaining)))
		r.remaining -= int64(len(data))
		r.received += int64(len(data))
		return Data{Data: data}, nil
	case framingUntilClose:
		if len(c.buf) != 0 {
			data := c.take(len(c.buf))
			r.received += int64(len(data))
			return Data{Data: data}, nil
		}
		if c.eof {
			return EndOfMessage{}, nil
		}
		return nil, nil
	}
	return r.readChunked(c)
}

func (r *bodyReader) readChunked(c *Conn) (Event, error) {
	for {
		switch r.phase {
		case chunkSize:
			line, ok, err := c.takeLine()
			if err != nil || !ok {
				return nil, err
			}
			n, err := parseChunkSize(line)
			if err != nil {
				return nil, err
			}
			if n > math.MaxInt64-uint64(r.received) {
				return nil, errs.RemoteProtocol("http chunk length too large")
			}
			if n == 0 {
				r.phase = chunkTrailer
				continue
			}
			r.remaining, r.phase = int64(n), chunkData
		case chunkData:
			if len(c.buf) == 0 {
				if c.eof {
					return nil, errs.PrematureClose("peer closed connection in the middle of a chunk")
				}
				return nil, nil
			}
			data := c.take(int(min(int64(len(c.buf)), r.remaining)))
			r.remaining -= int64(len(data))
			r.received += int64(len(data))
			if r.remaining == 0 {
				r.phase = chunkDataEnd
			}
			return Data{Data: data}, nil
		case chunkDataEnd:
			line, ok, err := c.takeLine()
			if err != nil || !ok {
				return nil, err
			}
			if len(line) != 0 {
				return nil, errs.RemoteProtocol("malformed chunked encoding")
			}
			r.phase = chunkSize
		case chunkTrailer:
			end := headEnd(c.buf)
			if end < 0 {
				return nil, c.incomplete("peer closed connection before the end of chunked trailers")
			}
			trailers, err := parseFields(splitLines(c.take(end)))
			if err != nil {
				return nil, err
			}
			return EndOfMessage{Headers: trailers}, nil
		}
	}
}
