package model

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
)

var ErrConflictingLength = errors.New("conflicting value between body size and content-length request header")

type PreparedRequest struct {
	*Request

	// Method is the request method with the GET default applied.
	Method string
	U      *url.URL
	Origin Origin
	Target string
	// Header is the header list sent on the wire, Host comes first.
	Header Headers

	ContentLength int64 // -1 if unknown
	GetBody       func() (io.ReadCloser, error)
}

func (r *Request) Prepare() (*PreparedRequest, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, err
	}
	origin, err := OriginOf(u)
	if err != nil {
		return nil, err
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	host := origin.Authority()
	cl := int64(-1)
	chunked := false
	var headers Headers
	// user defined headers has higher priority
	for _, f := range r.Header {
		switch strings.ToLower(f.Name) {
		case "host":
			host = f.Value
			continue
		case "content-length":
			n, err := strconv.ParseInt(strings.TrimSpace(f.Value), 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid content-length request header %q", f.Value)
			}
			cl = n
			continue
		case "transfer-encoding":
			chunked = strings.EqualFold(strings.TrimSpace(f.Value), "chunked")
		}
		headers = append(headers, f)
	}
	if host == "" {
		return nil, url.InvalidHostError("empty host")
	}

	target := u.RequestURI()
	if method == http.MethodConnect {
		target = origin.Address()
	}
	pr := &PreparedRequest{
		Request:       r,
		Method:        method,
		U:             u,
		Origin:        origin,
		Target:        target,
		ContentLength: -1,
	}
	if err := pr.updateBody(); err != nil {
		// note that updateBody potentially updates content-length
		return nil, err
	}
	if cl != -1 && pr.ContentLength != -1 && pr.ContentLength != cl {
		return nil, ErrConflictingLength
	}
	if pr.ContentLength == -1 {
		pr.ContentLength = cl
	}

	pr.Header = append(Headers{{"Host", host}}, headers...)
	switch {
	case chunked:
		pr.ContentLength = -1
	case pr.ContentLength != -1:
		if r.Body != nil || pr.ContentLength > 0 || expectsBody(method) {
			pr.Header.Add("Content-Length", strconv.FormatInt(pr.ContentLength, 10))
		}
	case r.Body != nil:
		pr.Header.Add("Transfer-Encoding", "chunked")
	case expectsBody(method):
		pr.ContentLength = 0
		pr.Header.Add("Content-Length", "0")
	}
	return pr, nil
}

func expectsBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// should only be called once at [Prepare]
func (r *PreparedRequest) updateBody() (err error) {
	if r.Request.Body == nil {
		r.GetBody = func() (io.ReadCloser, error) {
			return http.NoBody, nil
		}
		return nil
	}
	switch b := r.Request.Body.(type) {
	case string:
		r.ContentLength = int64(len(b))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(b)), nil
		}
	case []byte:
		r.ContentLength = int64(len(b))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		}
	case *bytes.Buffer: // below is taken from http.NewRequest
		r.ContentLength = int64(b.Len())
		buf := b.Bytes()
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		}
	case *bytes.Reader:
		r.ContentLength = int64(b.Len())
		snapshot := *b
		r.GetBody = func() (io.ReadCloser, error) {
			r := snapshot
			return io.NopCloser(&r), nil
		}
	case *strings.Reader:
		r.ContentLength = int64(b.Len())
		snapshot := *b
		r.GetBody = func() (io.ReadCloser, error) {
			r := snapshot
			return io.NopCloser(&r), nil
		}
	case io.Reader:
		if sizer, ok := b.(interface{ Size() int64 }); ok {
			r.ContentLength = sizer.Size()
		}
		cb, ok := b.(io.ReadCloser)
		if !ok {
			cb = io.NopCloser(b)
		}
		once := atomic.Bool{}
		r.GetBody = func() (io.ReadCloser, error) {
			if once.CompareAndSwap(false, true) {
				return cb, nil
			}
			return nil, http.ErrBodyReadAfterClose
		}
	default:
		return fmt.Errorf("unsupported body type: %T", r.Request.Body)
	}
	return nil
}
