// Package mux multiplexes concurrent calls over one bridge.
//
// Every outgoing request registers a single-use reply slot keyed by its id.
// A receive loop routes each inbound reply to its slot; replies with no slot
// (timed out, never sent, duplicate) are discarded. When the inbound stream
// ends, or Close is called, every remaining slot is released so no caller
// waits forever.
//
// Slot ownership: whoever removes an entry from the table with LoadAndDelete
// is the only party allowed to fulfil or close its slot.
package mux

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/reipc/bridge"
	rpcerrors "github.com/vinayprograms/reipc/errors"
	"github.com/vinayprograms/reipc/jsonrpc"
	"github.com/vinayprograms/reipc/logging"
)

type slot chan *jsonrpc.Reply

// Option configures a Multiplexer.
type Option func(*Multiplexer)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Multiplexer) {
		if l != nil {
			m.log = l
		}
	}
}

// Multiplexer matches replies to waiting callers by id.
type Multiplexer struct {
	handle  bridge.Handle
	pending sync.Map // uint64 -> slot
	closed  atomic.Bool
	log     *logging.Logger

	startOnce sync.Once
	done      chan struct{}
}

// New creates a multiplexer over handle. Call Start to begin routing replies.
func New(handle bridge.Handle, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		handle: handle,
		log:    logging.Nop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithComponent("mux")
	return m
}

// Start launches the receive loop. Calling it more than once has no effect.
func (m *Multiplexer) Start() {
	m.startOnce.Do(func() {
		go m.receiveLoop()
	})
}

// Done is closed when the receive loop has exited.
func (m *Multiplexer) Done() <-chan struct{} {
	return m.done
}

// Closed reports whether new sends are rejected.
func (m *Multiplexer) Closed() bool {
	return m.closed.Load()
}

// Pending returns the number of calls waiting for a reply.
func (m *Multiplexer) Pending() int {
	n := 0
	m.pending.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Send transmits req and blocks until its reply arrives, the connection
// closes, or ctx is done.
func (m *Multiplexer) Send(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Reply, error) {
	return m.send(ctx, req, 0)
}

// SendWithDeadline is Send bounded by d. On timeout only this call's entry is
// removed; a reply arriving later is discarded. d <= 0 means no deadline.
func (m *Multiplexer) SendWithDeadline(ctx context.Context, req *jsonrpc.Request, d time.Duration) (*jsonrpc.Reply, error) {
	return m.send(ctx, req, d)
}

func (m *Multiplexer) send(ctx context.Context, req *jsonrpc.Request, d time.Duration) (*jsonrpc.Reply, error) {
	id := req.ID()
	ch, err := m.register(req)
	if err != nil {
		return nil, err
	}

	// The slot is registered before the request is queued so a fast reply
	// always finds it; if queueing fails the entry is rolled back.
	if err := m.handle.Send(req.Body()); err != nil {
		m.pending.LoadAndDelete(id)
		return nil, rpcerrors.Wrap(err, "send request", callInfo(req)...)
	}

	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case reply, ok := <-ch:
		return m.result(req, reply, ok)
	case <-timeout:
		if reply, ok, raced := m.abandon(id, ch); raced {
			return m.result(req, reply, ok)
		}
		m.log.RequestTimedOut(id, req.Method(), d)
		return nil, rpcerrors.Timeout("request timed out after "+d.String(), callInfo(req)...)
	case <-ctx.Done():
		if reply, ok, raced := m.abandon(id, ch); raced {
			return m.result(req, reply, ok)
		}
		return nil, rpcerrors.Wrap(ctx.Err(), "waiting for reply", callInfo(req)...)
	}
}

func (m *Multiplexer) register(req *jsonrpc.Request) (slot, error) {
	if m.closed.Load() {
		return nil, rpcerrors.Closed("connection closed", callInfo(req)...)
	}

	ch := make(slot, 1)
	if _, loaded := m.pending.LoadOrStore(req.ID(), ch); loaded {
		return nil, rpcerrors.InvalidInput("request id already in flight", callInfo(req)...)
	}

	// A concurrent shutdown may have drained before the store landed.
	if m.closed.Load() {
		m.pending.LoadAndDelete(req.ID())
		return nil, rpcerrors.Closed("connection closed", callInfo(req)...)
	}
	return ch, nil
}

// abandon removes the caller's own entry. If the entry was already taken by
// the receive loop or a drain, the slot is about to be fulfilled or closed,
// so its outcome is collected instead.
func (m *Multiplexer) abandon(id uint64, ch slot) (reply *jsonrpc.Reply, ok, raced bool) {
	if _, loaded := m.pending.LoadAndDelete(id); loaded {
		return nil, false, false
	}
	reply, ok = <-ch
	return reply, ok, true
}

func (m *Multiplexer) result(req *jsonrpc.Request, reply *jsonrpc.Reply, ok bool) (*jsonrpc.Reply, error) {
	if !ok {
		return nil, rpcerrors.Closed("connection closed before reply", callInfo(req)...)
	}
	return reply, nil
}

// receiveLoop routes replies until the inbound stream ends, then shuts down.
func (m *Multiplexer) receiveLoop() {
	defer close(m.done)
	defer func() {
		if r := recover(); r != nil {
			m.log.LoopExited("receive", rpcerrors.RecoverPanic(r))
		}
		m.shutdown()
	}()

	for {
		reply, ok := m.handle.Recv()
		if !ok {
			m.log.LoopExited("receive", nil)
			return
		}

		v, loaded := m.pending.LoadAndDelete(reply.ID)
		if !loaded {
			m.log.ReplyDiscarded(reply.ID)
			continue
		}
		v.(slot) <- reply
	}
}

// Close rejects new sends, ends the outbound stream and releases every
// pending caller with a CLOSED error. Safe to call more than once.
func (m *Multiplexer) Close() error {
	m.shutdown()
	return nil
}

// shutdown runs on Close and again when the receive loop ends. Only the first
// run, or a later one that still finds waiters, is logged.
func (m *Multiplexer) shutdown() {
	first := m.closed.CompareAndSwap(false, true)
	m.handle.CloseSend()
	if released := m.drain(); first || released > 0 {
		m.log.PendingDrained(released)
	}
}

// drain snapshots the keys, then removes each one individually. Entries
// removed concurrently by a timing-out caller are skipped.
func (m *Multiplexer) drain() int {
	var ids []uint64
	m.pending.Range(func(k, _ any) bool {
		ids = append(ids, k.(uint64))
		return true
	})

	released := 0
	for _, id := range ids {
		if v, loaded := m.pending.LoadAndDelete(id); loaded {
			close(v.(slot))
			released++
		}
	}
	return released
}

func callInfo(req *jsonrpc.Request) []rpcerrors.Option {
	return []rpcerrors.Option{
		rpcerrors.WithRequestID(req.ID()),
		rpcerrors.WithMethod(req.Method()),
	}
}
