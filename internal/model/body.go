package model

import (
	"errors"
	"io"
	"sync"
)

var ErrBodyClosed = errors.New("http: read on closed response body")

// Body is a lazy, forward-only sequence of byte chunks. Each call to Next
// pulls the next chunk from the connection, io.EOF marks the end of the
// message. Reaching the end closes the body implicitly; otherwise the owner
// must call Close, which is the only way the underlying connection is handed
// back. Close is idempotent.
//
// Body also implements [io.ReadCloser] on top of Next. It is not safe for
// concurrent use.
type Body struct {
	next    func() ([]byte, error)
	onClose func() error

	pending []byte
	err     error // sticky, io.EOF once exhausted
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

// NewBody returns a Body pulling chunks from next. onClose may be nil.
func NewBody(next func() ([]byte, error), onClose func() error) *Body {
	return &Body{next: next, onClose: onClose}
}

// NoBody returns an empty body which runs onClose once it is observed.
func NoBody(onClose func() error) *Body {
	return NewBody(func() ([]byte, error) { return nil, io.EOF }, onClose)
}

// BytesBody returns a body yielding a single chunk.
func BytesBody(b []byte, onClose func() error) *Body {
	done := len(b) == 0
	return NewBody(func() ([]byte, error) {
		if done {
			return nil, io.EOF
		}
		done = true
		return b, nil
	}, onClose)
}

func (b *Body) Next() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.closed {
		return nil, ErrBodyClosed
	}
	chunk, err := b.next()
	if err == io.EOF {
		b.err = io.EOF
		if cerr := b.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, io.EOF
	}
	if err != nil {
		b.err = err
		return nil, err
	}
	return chunk, nil
}

func (b *Body) Read(p []byte) (int, error) {
	for len(b.pending) == 0 {
		chunk, err := b.Next()
		if err != nil {
			return 0, err
		}
		b.pending = chunk
	}
	n := copy(p, b.pending)
	b.pending = b.pending[n:]
	return n, nil
}

// Close releases the body. Chunks that were not pulled are discarded.
func (b *Body) Close() error {
	b.closeOnce.Do(func() {
		b.closed = true
		b.pending = nil
		if b.onClose != nil {
			b.closeErr = b.onClose()
		}
	})
	return b.closeErr
}
