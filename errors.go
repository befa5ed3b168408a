package httpconn

import (
	"github.com/frankli0324/go-httpconn/internal"
	"github.com/frankli0324/go-httpconn/internal/dialer"
	errs "github.com/frankli0324/go-httpconn/internal/errors"
	"github.com/frankli0324/go-httpconn/internal/model"
)

// Error is the type of every error raised by the connection itself. Match
// kinds with errors.Is against the sentinels below.
type Error = errs.Error

var (
	ErrConnectTimeout = errs.ErrConnectTimeout
	ErrConnectFailed  = errs.ErrConnectFailed
	ErrReadTimeout    = errs.ErrReadTimeout
	ErrWriteTimeout   = errs.ErrWriteTimeout
	ErrProtocol       = errs.ErrProtocol
	ErrPrematureClose = errs.ErrPrematureClose
	ErrConnectionBusy = errs.ErrConnectionBusy
	ErrClosed         = errs.ErrClosed

	ErrOriginMismatch    = internal.ErrOriginMismatch
	ErrUnsupportedScheme = model.ErrUnsupportedScheme
	ErrBodyClosed        = model.ErrBodyClosed
	ErrUnsupportedProxy  = dialer.ErrUnsupportedProxy
	ErrProxyRefused      = dialer.ErrProxyRefused
)
