package codec

import (
	"bytes"
	"errors"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/vinayprograms/reipc/jsonrpc"
)

// Msgpack carries the JSON-RPC envelope as MessagePack maps.
// Result types are decoded using their json struct tags, so the same Go types
// work with either codec.
type Msgpack struct{}

var _ Codec = Msgpack{}

// Name implements Codec.
func (Msgpack) Name() string { return "msgpack" }

// EncodeRequest implements jsonrpc.Encoder.
func (Msgpack) EncodeRequest(env jsonrpc.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal implements Codec.
func (Msgpack) Unmarshal(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// DecodeReply implements Codec.
func (Msgpack) DecodeReply(buf []byte) (*jsonrpc.Reply, int, error) {
	r := bytes.NewReader(buf)
	dec := msgpack.NewDecoder(r)

	raw, err := dec.DecodeRaw()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, ErrNeedMore
		}
		return nil, 0, err
	}
	n := len(buf) - r.Len()

	return msgpackReply(raw), n, nil
}

// msgpackReply inspects one complete value. Anything that is not a map with
// string keys and a numeric id is skipped.
func msgpackReply(raw msgpack.RawMessage) *jsonrpc.Reply {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))

	size, err := dec.DecodeMapLen()
	if err != nil || size <= 0 {
		return nil
	}

	var (
		id                  uint64
		hasID               bool
		result, errObj      []byte
		hasResult, hasError bool
	)
	for i := 0; i < size; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil
		}
		switch key {
		case "id":
			code, err := dec.PeekCode()
			if err != nil {
				return nil
			}
			if code == msgpcode.Nil {
				if err := dec.Skip(); err != nil {
					return nil
				}
				continue
			}
			v, err := dec.DecodeUint64()
			if err != nil {
				return nil
			}
			id, hasID = v, true
		case "result":
			v, err := dec.DecodeRaw()
			if err != nil {
				return nil
			}
			result, hasResult = v, true
		case "error":
			v, err := dec.DecodeRaw()
			if err != nil {
				return nil
			}
			if len(v) == 1 && v[0] == msgpcode.Nil {
				continue
			}
			errObj, hasError = v, true
		default:
			if err := dec.Skip(); err != nil {
				return nil
			}
		}
	}

	return routeFields(id, hasID, result, hasResult, errObj, hasError)
}
