package provider

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/reipc/bridge"
	"github.com/vinayprograms/reipc/codec"
	rpcerrors "github.com/vinayprograms/reipc/errors"
	"github.com/vinayprograms/reipc/jsonrpc"
	"github.com/vinayprograms/reipc/logging"
	"github.com/vinayprograms/reipc/mux"
	"github.com/vinayprograms/reipc/telemetry"
	"github.com/vinayprograms/reipc/transport"
)

// Provider is one connection shared by any number of goroutines.
type Provider struct {
	connID string
	path   string
	opts   options
	codec  codec.Codec
	log    *logging.Logger
	tracer *telemetry.Tracer

	ids         jsonrpc.IDGenerator
	mux         *mux.Multiplexer
	ipc         *transport.IPC
	read, write *transport.Task
	stopLoops   context.CancelFunc

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
	err       error
}

// Dial connects to the socket at path and starts the transport and
// multiplexer loops. ctx bounds only the connect.
func Dial(ctx context.Context, path string, opts ...Option) (p *Provider, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	connID := uuid.NewString()
	log := o.logger.WithConnID(connID)

	_, span := o.tracer.StartConnectSpan(ctx, path)
	defer func() { o.tracer.EndConnectSpan(span, connID, err) }()

	handle, conn := bridge.New()
	ipc, err := transport.Dial(ctx, path, conn, transport.Config{
		ReadBufferSize: o.readBufferSize,
		Codec:          o.codec,
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}

	p = &Provider{
		connID: connID,
		path:   path,
		opts:   o,
		codec:  o.codec,
		log:    log.WithComponent("provider"),
		tracer: o.tracer,
		ipc:    ipc,
		mux:    mux.New(handle, mux.WithLogger(log)),
		done:   make(chan struct{}),
	}

	// The loops outlive the dial context; Close stops them.
	loopCtx, cancel := context.WithCancel(context.Background())
	p.stopLoops = cancel
	p.read, p.write = ipc.Start(loopCtx)
	p.mux.Start()
	go p.watch()

	return p, nil
}

// ConnID returns the connection's unique identifier, as used in logs and spans.
func (p *Provider) ConnID() string {
	return p.connID
}

// Path returns the socket path.
func (p *Provider) Path() string {
	return p.path
}

// Codec returns the wire codec.
func (p *Provider) Codec() codec.Codec {
	return p.codec
}

// Pending returns the number of calls waiting for a reply.
func (p *Provider) Pending() int {
	return p.mux.Pending()
}

// watch records how the connection ended once every loop has exited.
func (p *Provider) watch() {
	<-p.read.Done()
	<-p.write.Done()
	<-p.mux.Done()

	p.err = rpcerrors.Join(p.read.Err(), p.write.Err())
	p.stopLoops()
	p.log.ConnectionClosed(p.path, p.err)
	close(p.done)
}

// Done is closed when the connection has fully terminated.
func (p *Provider) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the connection terminates and returns the error that
// ended it, or nil for a clean shutdown.
func (p *Provider) Wait() error {
	<-p.done
	return p.err
}

// Err returns the terminating error once the connection has ended, and nil
// while it is running.
func (p *Provider) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Close releases every pending call with a CLOSED error, lets queued
// requests flush for a bounded time, then closes the socket. Safe to call
// more than once and from any goroutine.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		p.mux.Close()

		flush := time.NewTimer(p.opts.closeGrace)
		defer flush.Stop()

		select {
		case <-p.write.Done():
		case <-flush.C:
			p.log.Warn("close_flush_timeout", map[string]interface{}{
				"grace": p.opts.closeGrace.String(),
			})
		}

		p.closeErr = p.ipc.Close()
		p.stopLoops()

		exit := time.NewTimer(p.opts.closeGrace)
		defer exit.Stop()

		select {
		case <-p.done:
		case <-exit.C:
		}
	})
	return p.closeErr
}
