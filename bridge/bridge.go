// Package bridge connects the multiplexer to the transport loops with two
// unbounded, ordered queues: encoded requests flow out, decoded replies flow
// in.
//
// Each side gets its own view of the same pair of queues. The multiplexer holds
// a Handle, the transport holds a Conn. Both are small values and may be copied
// freely.
package bridge

import (
	"github.com/vinayprograms/reipc/errors"
	"github.com/vinayprograms/reipc/jsonrpc"
)

type queues struct {
	outbound *Queue[[]byte]
	inbound  *Queue[*jsonrpc.Reply]
}

// Handle is the multiplexer side: push outbound, pull inbound.
type Handle struct {
	q *queues
}

// Conn is the transport side: pull outbound, push inbound.
type Conn struct {
	q *queues
}

// New creates a bridge and returns its two ends.
func New() (Handle, Conn) {
	q := &queues{
		outbound: NewQueue[[]byte](),
		inbound:  NewQueue[*jsonrpc.Reply](),
	}
	return Handle{q: q}, Conn{q: q}
}

// Send queues an encoded request for the write loop.
func (h Handle) Send(frame []byte) error {
	if !h.q.outbound.Push(frame) {
		return errors.Closed("outbound channel closed")
	}
	return nil
}

// Recv blocks for the next reply. Returns false once the read loop has ended
// the inbound stream and every earlier reply has been received.
func (h Handle) Recv() (*jsonrpc.Reply, bool) {
	return h.q.inbound.Pop()
}

// CloseSend ends the outbound stream; the write loop exits after flushing
// what was already queued.
func (h Handle) CloseSend() bool {
	return h.q.outbound.Close()
}

// Next blocks for the next encoded request. Returns false when the outbound
// stream has ended.
func (c Conn) Next() ([]byte, bool) {
	return c.q.outbound.Pop()
}

// Deliver hands a decoded reply to the multiplexer.
func (c Conn) Deliver(reply *jsonrpc.Reply) error {
	if !c.q.inbound.Push(reply) {
		return errors.Closed("inbound channel closed")
	}
	return nil
}

// EndInbound signals the end of the reply stream. Safe to call more than
// once; only the first call has an effect.
func (c Conn) EndInbound() bool {
	return c.q.inbound.Close()
}

// Abort ends the outbound stream from the transport side, used when the
// socket is gone and nothing further can be written.
func (c Conn) Abort() bool {
	return c.q.outbound.Close()
}

// Backlog returns the number of requests waiting for the write loop.
func (c Conn) Backlog() int {
	return c.q.outbound.Len()
}
