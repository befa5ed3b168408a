// package transport drives requests over an established byte stream.
//
// Two drivers exist and a connection is bound to exactly one of them for its
// lifetime, depending on the protocol negotiated during the TLS handshake:
//
//	HTTP/1.1 (RFC9112), strictly one request at a time, with keep-alive reuse
//	HTTP/2 (RFC9113), multiplexed, delegated to golang.org/x/net/http2
//
// Message framing of HTTP/1.1 lives in the sans-IO state machine of package
// h1; the driver here only sequences I/O around it.

package transport
