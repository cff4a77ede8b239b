package collective

import "github.com/lsds/dagcoll/srcs/go/rchannel/connection"

// Request is a send or receive handed to the transport. Src and Dst are
// global ranks. For sends Buffer holds the packed payload; for receives it
// is where rendezvous data lands.
type Request struct {
	Action  ActionID
	Header  connection.Header
	Src     int
	Dst     int
	Buffer  []byte
	Handler EventHandler
}

// Event is the outcome of a Request. Payload is set for eager receives,
// owned by the transport and only valid during the callback.
type Event struct {
	Protocol connection.Protocol
	Payload  []byte
	Err      error
}

// EventHandler is called back by the transport when a request finishes or fails.
type EventHandler interface {
	OnTransportEvent(id ActionID, ev Event) error
}

// Transport moves bytes between ranks. Send and Recv must not call back
// synchronously.
type Transport interface {
	Send(req *Request) error
	Recv(req *Request) error
	AllocateWorkspace(n int) []byte
	FreeWorkspace(buf []byte)
}
