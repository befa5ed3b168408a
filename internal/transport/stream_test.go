package transport

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

// fakeStream replays scripted reads and records writes.
type fakeStream struct {
	mu sync.Mutex

	reads   [][]byte
	readErr error // returned once reads run out, io.EOF if nil
	nread   int

	written  bytes.Buffer
	writeErr error
	failAt   int // fail the failAt-th write (1-based), 0 never
	nwrite   int

	closed   int
	readable bool
}

func script(chunks ...string) *fakeStream {
	s := &fakeStream{}
	for _, c := range chunks {
		s.reads = append(s.reads, []byte(c))
	}
	return s
}

func (s *fakeStream) Read(ctx context.Context, p []byte, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nread++
	if len(s.reads) == 0 {
		if s.readErr != nil {
			return 0, s.readErr
		}
		return 0, io.EOF
	}
	n := copy(p, s.reads[0])
	if n == len(s.reads[0]) {
		s.reads = s.reads[1:]
	} else {
		s.reads[0] = s.reads[0][n:]
	}
	return n, nil
}

func (s *fakeStream) Write(ctx context.Context, p []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nwrite++
	if s.failAt != 0 && s.nwrite >= s.failAt {
		return s.writeErr
	}
	s.written.Write(p)
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeStream) IsReadable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readable
}
