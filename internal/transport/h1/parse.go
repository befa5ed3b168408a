package h1

import (
	"bytes"
	"strconv"
	"strings"

	errs "github.com/frankli0324/go-httpconn/internal/errors"
	"github.com/frankli0324/go-httpconn/internal/model"
	"golang.org/x/net/http/httpguts"
)

// headEnd returns the offset right after the blank line terminating a header
// block, or -1 if the block is incomplete. Bare LF line endings are accepted.
func headEnd(b []byte) int {
	for i := 0; i < len(b); {
		j := bytes.IndexByte(b[i:], '\n')
		if j < 0 {
			return -1
		}
		line := b[i : i+j]
		i += j + 1
		if len(line) == 0 || (len(line) == 1 && line[0] == '\r') {
			return i
		}
	}
	return -1
}

// splitLines splits a header block into lines without their terminators,
// dropping the final blank line.
func splitLines(block []byte) []string {
	lines := strings.Split(string(block), "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSuffix(l, "\r")
		if l == "" {
			break
		}
		out = append(out, l)
	}
	return out
}

// parseStatusLine parses e.g. "HTTP/1.1 200 OK". The reason phrase is optional.
func parseStatusLine(line string) (version string, code int, reason string, err error) {
	proto, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return "", 0, "", errs.RemoteProtocol("malformed status line %q", line)
	}
	version = strings.TrimPrefix(proto, "HTTP/")
	if len(version) != 3 || version[1] != '.' || !isDigit(version[0]) || !isDigit(version[2]) {
		return "", 0, "", errs.RemoteProtocol("malformed HTTP version %q", proto)
	}
	rest = strings.TrimLeft(rest, " ")
	statusCode, reason, _ := strings.Cut(rest, " ")
	if len(statusCode) != 3 {
		return "", 0, "", errs.RemoteProtocol("malformed HTTP status code %q", statusCode)
	}
	code, err = strconv.Atoi(statusCode)
	if err != nil || code < 100 {
		return "", 0, "", errs.RemoteProtocol("malformed HTTP status code %q", statusCode)
	}
	for i := 0; i < len(reason); i++ {
		if c := reason[i]; c < ' ' && c != '\t' || c == 0x7f {
			return "", 0, "", errs.RemoteProtocol("illegal character in reason phrase")
		}
	}
	return version, code, reason, nil
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }

// parseFields parses header lines, unfolding obsolete line folding.
func parseFields(lines []string) (model.Headers, error) {
	var h model.Headers
	for _, line := range lines {
		if line[0] == ' ' || line[0] == '\t' {
			if len(h) == 0 {
				return nil, errs.RemoteProtocol("continuation line at start of headers")
			}
			last := &h[len(h)-1]
			last.Value = strings.TrimSpace(last.Value + " " + strings.TrimSpace(line))
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errs.RemoteProtocol("malformed header line %q", line)
		}
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, errs.RemoteProtocol("illegal header name %q", name)
		}
		value = strings.Trim(value, " \t")
		h = append(h, model.Field{Name: name, Value: value})
	}
	for _, f := range h {
		if !httpguts.ValidHeaderFieldValue(f.Value) {
			return nil, errs.RemoteProtocol("illegal header value for %q", f.Name)
		}
	}
	return h, nil
}

func validateRequest(r Request) error {
	if r.Method == "" || !httpguts.ValidHeaderFieldName(r.Method) {
		return errs.LocalProtocol("illegal method %q", r.Method)
	}
	if r.Target == "" {
		return errs.LocalProtocol("empty request target")
	}
	for i := 0; i < len(r.Target); i++ {
		if c := r.Target[i]; c <= ' ' || c == 0x7f {
			return errs.LocalProtocol("illegal character in request target %q", r.Target)
		}
	}
	if err := validateFields(r.Headers); err != nil {
		return err
	}
	if len(r.Headers.Values("Host")) != 1 {
		return errs.LocalProtocol("request must carry exactly one Host header")
	}
	if r.Headers.Has("Content-Length") && r.Headers.Has("Transfer-Encoding") {
		return errs.LocalProtocol("request declares both Content-Length and Transfer-Encoding")
	}
	return nil
}

func validateFields(h model.Headers) error {
	for _, f := range h {
		if !httpguts.ValidHeaderFieldName(f.Name) {
			return errs.LocalProtocol("illegal header name %q", f.Name)
		}
		if !httpguts.ValidHeaderFieldValue(f.Value) {
			return errs.LocalProtocol("illegal header value for %q", f.Name)
		}
	}
	return nil
}

// writeRequest serializes the request line and headers, e.g.:
//
//	GET / HTTP/1.1\r\n
//	Host: www.google.com\r\n
//	X-Xx-Yy: cccccc\r\n
//	\r\n
func writeRequest(buf []byte, r Request) []byte {
	buf = append(buf, r.Method...)
	buf = append(buf, ' ')
	buf = append(buf, r.Target...)
	buf = append(buf, " HTTP/1.1\r\n"...)
	buf = writeFields(buf, r.Headers)
	return append(buf, "\r\n"...)
}

func writeFields(buf []byte, h model.Headers) []byte {
	for _, f := range h {
		buf = append(buf, f.Name...)
		buf = append(buf, ": "...)
		buf = append(buf, f.Value...)
		buf = append(buf, "\r\n"...)
	}
	return buf
}

func wantsClose(h model.Headers) bool {
	return httpguts.HeaderValuesContainsToken(h.Values("Connection"), "close")
}
