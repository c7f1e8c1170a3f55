// Package testsupport provides a scripted JSON-RPC endpoint on a Unix domain
// socket for package tests.
package testsupport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vinayprograms/reipc/jsonrpc"
)

// ErrNoReply makes the server swallow a request without answering.
var ErrNoReply = errors.New("no reply")

// Request is a call received by the server. Params are always JSON, whatever
// the wire codec.
type Request struct {
	ID     uint64
	Method string
	Params json.RawMessage
}

// Fault is returned by a handler to produce an error reply.
type Fault struct {
	Code    int64
	Message string
	Data    interface{}
}

func (f *Fault) Error() string { return f.Message }

// Handler handles one request. Each request is handled on its own goroutine.
type Handler interface {
	Handle(ctx context.Context, req Request) (interface{}, error)
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, req Request) (interface{}, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (interface{}, error) {
	return f(ctx, req)
}

// Option configures a Server.
type Option func(*Server)

// WithMsgpack makes the server speak MessagePack instead of JSON.
func WithMsgpack() Option {
	return func(s *Server) { s.msgpack = true }
}

// Server is a JSON-RPC endpoint listening on a temporary socket.
type Server struct {
	path    string
	ln      net.Listener
	handler Handler
	msgpack bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	conns    []*serverConn
	connCh   chan struct{}
	requests []Request
}

type serverConn struct {
	net.Conn
	writeMu sync.Mutex
}

// NewServer starts a server. It is shut down when the test ends.
func NewServer(t testing.TB, handler Handler, opts ...Option) *Server {
	t.Helper()

	// Socket paths are limited to ~100 bytes; t.TempDir() can exceed that.
	dir, err := os.MkdirTemp("", "reipc")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}

	path := filepath.Join(dir, "rpc.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("listen %s: %v", path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		path:    path,
		ln:      ln,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		connCh:  make(chan struct{}, 16),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.accept()

	t.Cleanup(func() {
		s.Close()
		os.RemoveAll(dir)
	})
	return s
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Requests returns every request received so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// WaitConn blocks until a client has connected.
func (s *Server) WaitConn(t testing.TB) {
	t.Helper()
	select {
	case <-s.connCh:
	case <-time.After(5 * time.Second):
		t.Fatal("no client connected")
	}
}

// WriteRaw writes b verbatim to every connected client.
func (s *Server) WriteRaw(b []byte) {
	s.mu.Lock()
	conns := append([]*serverConn(nil), s.conns...)
	s.mu.Unlock()

	for _, c := range conns {
		c.writeMu.Lock()
		c.Write(b)
		c.writeMu.Unlock()
	}
}

// Reply writes a success reply for id to every connected client.
func (s *Server) Reply(id uint64, result interface{}) {
	s.WriteRaw(s.encode(map[string]interface{}{
		"jsonrpc": jsonrpc.Version,
		"id":      id,
		"result":  result,
	}))
}

// Notify writes a notification to every connected client.
func (s *Server) Notify(method string, params interface{}) {
	s.WriteRaw(s.encode(map[string]interface{}{
		"jsonrpc": jsonrpc.Version,
		"method":  method,
		"params":  params,
	}))
}

// DropClients closes every client connection while keeping the listener.
func (s *Server) DropClients() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// Close stops the listener, closes client connections and waits for handlers.
func (s *Server) Close() {
	s.cancel()
	s.ln.Close()
	s.DropClients()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		sc := &serverConn{Conn: c}

		s.mu.Lock()
		s.conns = append(s.conns, sc)
		s.mu.Unlock()

		select {
		case s.connCh <- struct{}{}:
		default:
		}

		s.wg.Add(1)
		go s.serve(sc)
	}
}

// serve reads back-to-back request values until the client goes away.
func (s *Server) serve(c *serverConn) {
	defer s.wg.Done()
	defer c.Close()

	next := s.requestReader(c)
	for {
		req, err := next()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(c, req)
		}()
	}
}

func (s *Server) handle(c *serverConn, req Request) {
	result, err := s.handler.Handle(s.ctx, req)
	if errors.Is(err, ErrNoReply) {
		return
	}

	reply := map[string]interface{}{
		"jsonrpc": jsonrpc.Version,
		"id":      req.ID,
	}
	if err != nil {
		fault := &Fault{Code: jsonrpc.InternalError, Message: err.Error()}
		errors.As(err, &fault)
		obj := map[string]interface{}{"code": fault.Code, "message": fault.Message}
		if fault.Data != nil {
			obj["data"] = fault.Data
		}
		reply["error"] = obj
	} else {
		reply["result"] = result
	}

	data := s.encode(reply)
	c.writeMu.Lock()
	c.Write(data)
	c.writeMu.Unlock()
}

func (s *Server) requestReader(r io.Reader) func() (Request, error) {
	if s.msgpack {
		dec := msgpack.NewDecoder(r)
		return func() (Request, error) {
			var env struct {
				ID     uint64      `msgpack:"id"`
				Method string      `msgpack:"method"`
				Params interface{} `msgpack:"params"`
			}
			if err := dec.Decode(&env); err != nil {
				return Request{}, err
			}
			req := Request{ID: env.ID, Method: env.Method}
			if env.Params != nil {
				params, err := json.Marshal(env.Params)
				if err != nil {
					return Request{}, err
				}
				req.Params = params
			}
			return req, nil
		}
	}

	dec := json.NewDecoder(r)
	return func() (Request, error) {
		var env struct {
			ID     uint64          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := dec.Decode(&env); err != nil {
			return Request{}, err
		}
		return Request{ID: env.ID, Method: env.Method, Params: env.Params}, nil
	}
}

func (s *Server) encode(v interface{}) []byte {
	if s.msgpack {
		b, err := msgpack.Marshal(v)
		if err != nil {
			panic(err)
		}
		return b
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
