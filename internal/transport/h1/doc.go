// package h1 is a sans-IO implementation of the client side of HTTP/1.1
// message syntax (RFC9112). It never touches a socket: outgoing events are
// turned into bytes by [Conn.Send], incoming bytes are fed with
// [Conn.ReceiveData] and turned back into events by [Conn.NextEvent].
//
// Two independent state machines are kept, one for our (client) role and one
// for their (server) role:
//
//	Idle -> SendBody -> Done            (client)
//	Idle -> SendResponse -> SendBody -> Done  (server)
//
// with the terminal branches MustClose, Closed and Error. When both roles are
// Done the exchange can be recycled with [Conn.StartNextCycle].
package h1
