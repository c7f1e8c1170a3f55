package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/vinayprograms/reipc/bridge"
	"github.com/vinayprograms/reipc/codec"
	rpcerrors "github.com/vinayprograms/reipc/errors"
	"github.com/vinayprograms/reipc/logging"
)

// IPC owns one stream socket and moves bytes between it and the bridge.
type IPC struct {
	stream net.Conn
	conn   bridge.Conn
	config Config
	log    *logging.Logger
	addr   string

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the Unix domain socket at path.
func Dial(ctx context.Context, path string, conn bridge.Conn, cfg Config) (*IPC, error) {
	var d net.Dialer
	stream, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, dialError(path, err)
	}

	t := New(stream, conn, cfg)
	t.addr = path
	t.log.ConnectionOpened(path)
	return t, nil
}

// dialError classifies a failed connect by errno.
func dialError(path string, err error) error {
	opts := []rpcerrors.Option{
		rpcerrors.WithCause(err),
		rpcerrors.WithMetadata("socket", path),
	}
	switch {
	case errors.Is(err, unix.ENOENT):
		return rpcerrors.Connect("socket not found: "+path, opts...)
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return rpcerrors.Connect("permission denied: "+path, append(opts, rpcerrors.WithCategory(rpcerrors.CategoryPermanent))...)
	case errors.Is(err, unix.ECONNREFUSED):
		return rpcerrors.Connect("connection refused: "+path, opts...)
	case errors.Is(err, unix.ENOTSOCK):
		return rpcerrors.Connect("not a socket: "+path, append(opts, rpcerrors.WithCategory(rpcerrors.CategoryPermanent))...)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return rpcerrors.Connect("dial aborted: "+path, opts...)
	default:
		return rpcerrors.Connect("dial "+path, opts...)
	}
}

// New wraps an already connected stream.
func New(stream net.Conn, conn bridge.Conn, cfg Config) *IPC {
	cfg = cfg.withDefaults()
	addr := ""
	if ra := stream.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &IPC{
		stream: stream,
		conn:   conn,
		config: cfg,
		log:    cfg.Logger.WithComponent("transport"),
		addr:   addr,
	}
}

// Addr returns the socket path or remote address.
func (t *IPC) Addr() string {
	return t.addr
}

// Start launches the read and write loops and returns without waiting.
// Cancelling ctx closes the socket. A failure in either loop closes the
// socket so the other one ends too.
func (t *IPC) Start(ctx context.Context) (read, write *Task) {
	read, write = newTask(), newTask()
	g := t.group(ctx, read, write)
	go g.Wait()
	return read, write
}

// Run is Start that blocks until both loops have exited and returns the first
// loop error.
func (t *IPC) Run(ctx context.Context) error {
	return t.group(ctx, newTask(), newTask()).Wait()
}

// group runs both loops under one errgroup. The group context ends when a
// loop fails, when ctx is cancelled, or once both loops have returned; the
// socket is closed at that point.
func (t *IPC) group(ctx context.Context, read, write *Task) *errgroup.Group {
	g, gctx := errgroup.WithContext(ctx)
	context.AfterFunc(gctx, func() { t.Close() })

	g.Go(func() error {
		err := t.readLoop()
		read.finish(err)
		return err
	})
	g.Go(func() error {
		err := t.writeLoop()
		write.finish(err)
		return err
	})
	return g
}

// Close closes the socket and ends the outbound stream, unblocking both loops.
func (t *IPC) Close() error {
	t.closeOnce.Do(func() {
		t.closing.Store(true)
		t.conn.Abort()
		err := t.stream.Close()
		if err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
			t.closeErr = err
		}
	})
	return t.closeErr
}

// readLoop decodes replies from the socket until end of stream or a fatal
// error. It always ends the inbound stream exactly once.
func (t *IPC) readLoop() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rpcerrors.RecoverPanic(r)
		}
		t.conn.EndInbound()
		t.closeRead()
		t.log.LoopExited("read", err)
	}()

	buf := make([]byte, 0, t.config.ReadBufferSize)
	for {
		if len(buf) == cap(buf) {
			buf = slices.Grow(buf, cap(buf))
		}

		n, rerr := t.stream.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]

		if n > 0 {
			if buf, err = t.decodeBuffered(buf); err != nil {
				return err
			}
		}

		if rerr != nil {
			if errors.Is(rerr, io.EOF) || t.closing.Load() {
				return nil
			}
			return rpcerrors.Wrapf(rerr, "read from socket %s", t.addr)
		}
	}
}

// decodeBuffered pushes every complete reply in buf to the bridge and returns
// the undecoded remainder moved to the front of buf.
func (t *IPC) decodeBuffered(buf []byte) ([]byte, error) {
	pending := buf
	for len(pending) > 0 {
		reply, n, err := t.config.Codec.DecodeReply(pending)
		if errors.Is(err, codec.ErrNeedMore) {
			break
		}
		if err != nil {
			t.log.DecodeFailed(len(pending), err)
			return buf[:0], rpcerrors.WrapWithCode(err, rpcerrors.ErrCodeDecode, "decode reply")
		}

		if reply == nil {
			t.log.ValueSkipped(n)
		} else if err := t.conn.Deliver(reply); err != nil {
			return buf[:0], err
		}
		pending = pending[n:]
	}

	rest := copy(buf, pending)
	return buf[:rest], nil
}

// writeLoop writes queued requests in order until the outbound stream ends.
func (t *IPC) writeLoop() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rpcerrors.RecoverPanic(r)
		}
		t.conn.Abort()
		t.closeWrite()
		t.log.LoopExited("write", err)
	}()

	for {
		frame, ok := t.conn.Next()
		if !ok {
			return nil
		}
		// net.Conn writes the whole frame or fails.
		if _, err := t.stream.Write(frame); err != nil {
			if t.closing.Load() {
				return nil
			}
			return rpcerrors.Wrapf(err, "write to socket %s", t.addr)
		}
	}
}

func (t *IPC) closeRead() {
	if hc, ok := t.stream.(interface{ CloseRead() error }); ok {
		if err := hc.CloseRead(); err == nil {
			return
		}
	}
	t.Close()
}

func (t *IPC) closeWrite() {
	if hc, ok := t.stream.(interface{ CloseWrite() error }); ok {
		if err := hc.CloseWrite(); err == nil {
			return
		}
	}
	t.Close()
}
