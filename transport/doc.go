// Package transport moves bytes between a Unix domain socket and the bridge
// queues.
//
// # Overview
//
// An IPC runs two loops on separate goroutines. The read loop accumulates
// bytes in a growable buffer and decodes as many complete replies as it
// holds, pushing each into the bridge. The write loop pulls encoded requests
// from the bridge and writes them to the socket in order.
//
// # Usage
//
//	handle, conn := bridge.New()
//	t, err := transport.Dial(ctx, "/tmp/node.ipc", conn, transport.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	read, write := t.Start(ctx)
//
// # Termination
//
//   - End of stream from the peer ends the read loop without an error.
//   - Bytes that can never form a valid message end the read loop with a
//     DECODE error.
//   - The end of the outbound stream ends the write loop without an error.
//   - A failed write ends the write loop with that error.
//
// Whichever way the read loop exits, it ends the inbound stream exactly once,
// so the multiplexer always observes termination.
//
// # Thread Safety
//
// Close may be called from any goroutine, any number of times.
package transport
