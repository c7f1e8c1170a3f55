// Package codec turns request envelopes into wire bytes and a partially
// delivered byte stream back into replies.
//
// Values on the wire are self-delimiting and sent back to back with no
// separators. DecodeReply is called repeatedly against the front of the read
// buffer and reports one of:
//
//   - a reply and the number of bytes it occupied;
//   - a nil reply and a positive byte count, for a well-formed value that is
//     not a routable reply (a notification, or a reply without a numeric id);
//   - ErrNeedMore when the buffer ends inside a value;
//   - any other error, which means the stream is corrupt.
package codec

import (
	"errors"
	"strings"

	rpcerrors "github.com/vinayprograms/reipc/errors"
	"github.com/vinayprograms/reipc/jsonrpc"
)

// ErrNeedMore reports that the buffer holds only part of a value.
var ErrNeedMore = errors.New("codec: need more data")

// Codec encodes requests and decodes replies for one wire format.
type Codec interface {
	jsonrpc.Encoder

	// Name is the configuration name of the codec.
	Name() string

	// DecodeReply decodes the first value in buf.
	DecodeReply(buf []byte) (*jsonrpc.Reply, int, error)

	// Unmarshal decodes a raw payload produced by DecodeReply into v.
	Unmarshal(data []byte, v interface{}) error
}

// ByName returns the codec registered under name ("json" or "msgpack").
// An empty name selects JSON.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON{}, nil
	case "msgpack", "messagepack":
		return Msgpack{}, nil
	default:
		return nil, rpcerrors.Newf(rpcerrors.ErrCodeInvalidInput, "unknown codec %q", name)
	}
}

// Names lists the supported codec names.
func Names() []string {
	return []string{"json", "msgpack"}
}

// routeFields classifies the members of a decoded object. Returns a nil reply
// when the value should be skipped.
func routeFields(id uint64, hasID bool, result []byte, hasResult bool, errObj []byte, hasError bool) *jsonrpc.Reply {
	if !hasID {
		return nil
	}
	switch {
	case hasError:
		return &jsonrpc.Reply{ID: id, Payload: jsonrpc.Failure(errObj)}
	case hasResult:
		return &jsonrpc.Reply{ID: id, Payload: jsonrpc.Success(result)}
	default:
		return nil
	}
}
