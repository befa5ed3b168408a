package model

import (
	"io"
	"strconv"
)

type Request struct {
	Method string
	URL    string
	Body   interface{}
	Header Headers
}

type Response struct {
	StatusCode int
	Reason     string
	Proto      string
	Header     Headers

	Body *Body

	// Content holds the body once [Response.Read] returned successfully.
	Content []byte
	read    bool
}

// Status returns the status line part after the protocol, e.g. "200 OK".
func (r *Response) Status() string {
	s := strconv.Itoa(r.StatusCode)
	if r.Reason != "" {
		s += " " + r.Reason
	}
	return s
}

// Read drains the body into Content. Reading to the end closes the body.
func (r *Response) Read() ([]byte, error) {
	if r.read {
		return r.Content, nil
	}
	var content []byte
	for {
		chunk, err := r.Body.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		content = append(content, chunk...)
	}
	r.Content, r.read = content, true
	return content, nil
}

// Close must be called exactly once for every response that was not read to
// the end, additional calls are no-ops.
func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}
