package config

import "errors"

// Options are the per-send overrides. Nil fields fall back to the defaults
// of the connection the request is sent over.
type Options struct {
	SSL     *SSLConfig
	Timeout *TimeoutConfig

	// Stream defers reading the response body to the caller. When false the
	// body is read and the response closed before send returns.
	Stream bool
}

type Option func(*Options) error

var ErrNilConfig = errors.New("config: nil configuration")

func WithSSL(ssl *SSLConfig) Option {
	return func(o *Options) error {
		if ssl == nil {
			return ErrNilConfig
		}
		o.SSL = ssl
		return nil
	}
}

// WithTimeout overrides the timeouts of one send. On HTTP/2 connections the
// Write timeout is ignored, frame writes use the one of the connection.
func WithTimeout(timeout *TimeoutConfig) Option {
	return func(o *Options) error {
		if timeout == nil {
			return ErrNilConfig
		}
		o.Timeout = timeout
		return nil
	}
}

func WithStream() Option {
	return func(o *Options) error {
		o.Stream = true
		return nil
	}
}

// Apply collects opts into an Options value.
func Apply(opts ...Option) (*Options, error) {
	o := &Options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Resolve fills nil fields from the given defaults.
func (o *Options) Resolve(ssl *SSLConfig, timeout *TimeoutConfig) *Options {
	r := *o
	if r.SSL == nil {
		r.SSL = ssl
	}
	if r.Timeout == nil {
		r.Timeout = timeout
	}
	if r.Timeout == nil {
		r.Timeout = &TimeoutConfig{}
	}
	return &r
}
