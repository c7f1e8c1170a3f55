// Package jsonrpc defines the JSON-RPC 2.0 envelopes exchanged over the socket.
//
// A Request is encoded exactly once, when it is built, and is immutable
// afterwards. A Reply keeps its payload codec-encoded until a caller decodes
// it into a concrete type.
package jsonrpc

import (
	"sync/atomic"
)

// Version is the protocol version carried in every envelope.
const Version = "2.0"

// Standard error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Envelope is the wire form of a request. The msgpack tags mirror the JSON
// names so both codecs speak the same schema.
type Envelope struct {
	JSONRPC string      `json:"jsonrpc" msgpack:"jsonrpc"`
	ID      uint64      `json:"id" msgpack:"id"`
	Method  string      `json:"method" msgpack:"method"`
	Params  interface{} `json:"params,omitempty" msgpack:"params,omitempty"`
}

// Encoder serializes request envelopes. Implemented by the codec package.
type Encoder interface {
	EncodeRequest(env Envelope) ([]byte, error)
}

// Request is a serialized call ready for transmission.
type Request struct {
	id     uint64
	method string
	params interface{}
	body   []byte
}

// NewRequest encodes a request for method with the given id and params.
// A nil params value is omitted from the envelope.
func NewRequest(enc Encoder, id uint64, method string, params interface{}) (*Request, error) {
	body, err := enc.EncodeRequest(Envelope{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}
	return &Request{id: id, method: method, params: params, body: body}, nil
}

// ID returns the correlation identifier.
func (r *Request) ID() uint64 { return r.id }

// Method returns the RPC method name.
func (r *Request) Method() string { return r.method }

// Params returns the params the request was built with.
func (r *Request) Params() interface{} { return r.params }

// Body returns the encoded wire bytes. Callers must not modify it.
func (r *Request) Body() []byte { return r.body }

// PayloadKind tags a reply payload.
type PayloadKind uint8

const (
	// PayloadSuccess marks a reply carrying a result.
	PayloadSuccess PayloadKind = iota + 1
	// PayloadFailure marks a reply carrying an error object.
	PayloadFailure
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadSuccess:
		return "success"
	case PayloadFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Payload is either a raw result or a raw error object, still in wire encoding.
type Payload struct {
	Kind PayloadKind
	Raw  []byte
}

// Success builds a success payload.
func Success(raw []byte) Payload {
	return Payload{Kind: PayloadSuccess, Raw: raw}
}

// Failure builds a failure payload.
func Failure(raw []byte) Payload {
	return Payload{Kind: PayloadFailure, Raw: raw}
}

// Reply is a decoded response routed by ID.
type Reply struct {
	ID      uint64
	Payload Payload
}

// Result returns the raw result, or false if the reply is not a success.
func (r *Reply) Result() ([]byte, bool) {
	if r.Payload.Kind != PayloadSuccess {
		return nil, false
	}
	return r.Payload.Raw, true
}

// ErrorObject returns the raw error object, or false if the reply is not a failure.
func (r *Reply) ErrorObject() ([]byte, bool) {
	if r.Payload.Kind != PayloadFailure {
		return nil, false
	}
	return r.Payload.Raw, true
}

// ErrorPayload is the JSON-RPC error object.
type ErrorPayload struct {
	Code    int64       `json:"code" msgpack:"code"`
	Message string      `json:"message" msgpack:"message"`
	Data    interface{} `json:"data,omitempty" msgpack:"data,omitempty"`
}

// IDGenerator hands out correlation identifiers starting at 1.
// Only uniqueness among in-flight requests matters, not cross-goroutine order.
type IDGenerator struct {
	last atomic.Uint64
}

// Next returns a fresh identifier.
func (g *IDGenerator) Next() uint64 {
	return g.last.Add(1)
}
