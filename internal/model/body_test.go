package model

import (
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func chunks(c ...string) func() ([]byte, error) {
	return func() ([]byte, error) {
		if len(c) == 0 {
			return nil, io.EOF
		}
		b := []byte(c[0])
		c = c[1:]
		return b, nil
	}
}

func TestBodyReader(t *testing.T) {
	closed := 0
	b := NewBody(chunks("hel", "", "lo ", "world"), func() error { closed++; return nil })
	if err := iotest.TestReader(b, []byte("hello world")); err != nil {
		t.Fatal(err)
	}
	if closed != 1 {
		t.Fatalf("closed %d times", closed)
	}
	b.Close()
	if closed != 1 {
		t.Fatalf("closed %d times", closed)
	}
}

func TestBodyNextClosesAtEOF(t *testing.T) {
	closed := 0
	b := NewBody(chunks("a"), func() error { closed++; return nil })
	if c, err := b.Next(); err != nil || string(c) != "a" {
		t.Fatalf("Next = %q, %v", c, err)
	}
	if closed != 0 {
		t.Fatal("closed before EOF")
	}
	if _, err := b.Next(); err != io.EOF {
		t.Fatalf("Next = %v", err)
	}
	if _, err := b.Next(); err != io.EOF {
		t.Fatalf("Next after EOF = %v", err)
	}
	if closed != 1 {
		t.Fatalf("closed %d times", closed)
	}
}

func TestBodyErrors(t *testing.T) {
	boom := errors.New("boom")
	b := NewBody(func() ([]byte, error) { return nil, boom }, func() error { return boom })
	if _, err := b.Next(); err != boom {
		t.Fatalf("Next = %v", err)
	}
	if _, err := b.Next(); err != boom {
		t.Fatalf("error not sticky: %v", err)
	}
	if err := b.Close(); err != boom {
		t.Fatalf("Close = %v", err)
	}

	b = BytesBody([]byte("x"), nil)
	b.Close()
	if _, err := b.Next(); err != ErrBodyClosed {
		t.Fatalf("Next on closed = %v", err)
	}
}

func TestResponseRead(t *testing.T) {
	closed := 0
	r := &Response{StatusCode: 404, Reason: "Not Found", Body: NewBody(chunks("a", "b"), func() error { closed++; return nil })}
	for i := 0; i < 2; i++ {
		b, err := r.Read()
		if err != nil || string(b) != "ab" {
			t.Fatalf("Read = %q, %v", b, err)
		}
	}
	if closed != 1 || r.Status() != "404 Not Found" {
		t.Fatalf("closed %d, status %q", closed, r.Status())
	}
	if err := NoBody(nil).Close(); err != nil {
		t.Fatal(err)
	}
}
