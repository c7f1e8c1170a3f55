package provider

import (
	"fmt"

	"github.com/vinayprograms/reipc/codec"
	rpcerrors "github.com/vinayprograms/reipc/errors"
	"github.com/vinayprograms/reipc/jsonrpc"
)

// ParseReply classifies reply and decodes its result into R:
//
//   - success that decodes: the value
//   - success that does not fit R: PAYLOAD_SHAPE
//   - failure with a code and message: SERVER, carrying both
//   - failure that cannot be parsed: PAYLOAD_SHAPE
//   - payload read under the wrong tag: PAYLOAD_TAG
func ParseReply[R any](c codec.Codec, reply *jsonrpc.Reply) (R, error) {
	var out R
	err := parseInto(c, reply, &out)
	return out, err
}

func parseInto(c codec.Codec, reply *jsonrpc.Reply, out interface{}) error {
	switch reply.Payload.Kind {
	case jsonrpc.PayloadSuccess:
		return readSuccess(c, reply, out)
	case jsonrpc.PayloadFailure:
		return readFailure(c, reply)
	default:
		return rpcerrors.PayloadTag("reply payload has no tag", rpcerrors.WithRequestID(reply.ID))
	}
}

func readSuccess(c codec.Codec, reply *jsonrpc.Reply, out interface{}) error {
	raw, ok := reply.Result()
	if !ok {
		return rpcerrors.PayloadTag("error payload read as success", rpcerrors.WithRequestID(reply.ID))
	}
	if err := c.Unmarshal(raw, out); err != nil {
		return rpcerrors.PayloadShape(fmt.Sprintf("result does not fit %T", out),
			rpcerrors.WithCause(err), rpcerrors.WithRequestID(reply.ID))
	}
	return nil
}

// wireError mirrors jsonrpc.ErrorPayload with presence checks on the
// required members.
type wireError struct {
	Code    *int64      `json:"code"`
	Message *string     `json:"message"`
	Data    interface{} `json:"data"`
}

func readFailure(c codec.Codec, reply *jsonrpc.Reply) error {
	raw, ok := reply.ErrorObject()
	if !ok {
		return rpcerrors.PayloadTag("success payload read as error", rpcerrors.WithRequestID(reply.ID))
	}

	var w wireError
	if err := c.Unmarshal(raw, &w); err != nil {
		return rpcerrors.PayloadShape("malformed error object",
			rpcerrors.WithCause(err), rpcerrors.WithRequestID(reply.ID))
	}
	if w.Code == nil || w.Message == nil {
		return rpcerrors.PayloadShape("error object lacks code or message", rpcerrors.WithRequestID(reply.ID))
	}

	opts := []rpcerrors.Option{rpcerrors.WithRequestID(reply.ID)}
	if w.Data != nil {
		opts = append(opts, rpcerrors.WithMetadata("data", fmt.Sprint(w.Data)))
	}
	return rpcerrors.Server(*w.Code, *w.Message, opts...)
}
