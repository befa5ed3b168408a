package h1

import "github.com/frankli0324/go-httpconn/internal/model"

// Event is one of Request, InformationalResponse, Response, Data,
// EndOfMessage, ConnectionClosed, or the sentinels NeedData and Paused.
type Event interface {
	event()
}

type Request struct {
	Method  string
	Target  string
	Headers model.Headers
}

// InformationalResponse is an interim 1xx response.
type InformationalResponse struct {
	HTTPVersion string
	StatusCode  int
	Reason      string
	Headers     model.Headers
}

type Response struct {
	HTTPVersion string
	StatusCode  int
	Reason      string
	Headers     model.Headers
}

type Data struct {
	Data []byte
}

// EndOfMessage carries the trailers of a chunked message, if any.
type EndOfMessage struct {
	Headers model.Headers
}

type ConnectionClosed struct{}

type sentinel string

const (
	// NeedData means more bytes must be fed with [Conn.ReceiveData].
	NeedData sentinel = "NEED_DATA"
	// Paused means the peer is done and no further event is produced until
	// the next cycle starts.
	Paused sentinel = "PAUSED"
)

func (Request) event()               {}
func (InformationalResponse) event() {}
func (Response) event()              {}
func (Data) event()                  {}
func (EndOfMessage) event()          {}
func (ConnectionClosed) event()      {}
func (sentinel) event()              {}

// Name returns a readable name for ev, used in error messages.
func Name(ev Event) string {
	switch ev := ev.(type) {
	case Request:
		return "request"
	case InformationalResponse:
		return "informational response"
	case Response:
		return "response"
	case Data:
		return "body data"
	case EndOfMessage:
		return "end of message"
	case ConnectionClosed:
		return "connection close"
	case sentinel:
		if ev == Paused {
			return "paused connection"
		}
		return "incomplete data"
	}
	return "unknown event"
}
