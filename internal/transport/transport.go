package transport

import (
	"context"
	"time"

	"github.com/frankli0324/go-httpconn/internal/config"
	"github.com/frankli0324/go-httpconn/internal/model"
)

// Stream is a byte stream whose every operation is bounded by its own
// timeout. A zero timeout means no deadline.
type Stream interface {
	// Read reads up to len(p) bytes. io.EOF is returned once the peer closed
	// its side.
	Read(ctx context.Context, p []byte, timeout time.Duration) (int, error)
	Write(ctx context.Context, p []byte, timeout time.Duration) error
	Close() error
}

// Driver is implemented by [HTTP1Conn] and [HTTP2Conn] only.
type Driver interface {
	Send(ctx context.Context, req *model.PreparedRequest, opts *config.Options) (*model.Response, error)
	Close() error
	IsClosed() bool
	IsMultiplexed() bool
	// IsDropped reports whether an idle connection is no longer usable.
	IsDropped() bool

	driver()
}

// ReleaseFunc is invoked once per request cycle, after the driver decided
// whether the connection is reusable.
type ReleaseFunc func()

func (f ReleaseFunc) call() {
	if f != nil {
		f()
	}
}

var (
	_ Driver = (*HTTP1Conn)(nil)
	_ Driver = (*HTTP2Conn)(nil)
)
