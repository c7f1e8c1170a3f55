package testsupport

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/vinayprograms/reipc/jsonrpc"
)

// PingPong answers "ping" with the numbered pong for its first param, so
// ["ping_3"] yields "pong_3". Any other method fails with MethodNotFound.
func PingPong() Handler {
	return HandlerFunc(func(ctx context.Context, req Request) (interface{}, error) {
		if req.Method != "ping" {
			return nil, &Fault{Code: jsonrpc.MethodNotFound, Message: "the method " + req.Method + " does not exist/is not available"}
		}
		var params []string
		if err := json.Unmarshal(req.Params, &params); err != nil || len(params) == 0 {
			return nil, &Fault{Code: jsonrpc.InvalidParams, Message: "invalid params"}
		}
		return strings.Replace(params[0], "ping", "pong", 1), nil
	})
}

// Silent never replies.
func Silent() Handler {
	return HandlerFunc(func(ctx context.Context, req Request) (interface{}, error) {
		return nil, ErrNoReply
	})
}

// Echo returns the request params as the result, or the request id when the
// call has no params.
func Echo() Handler {
	return HandlerFunc(func(ctx context.Context, req Request) (interface{}, error) {
		if len(req.Params) == 0 {
			return req.ID, nil
		}
		var params interface{}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &Fault{Code: jsonrpc.InvalidParams, Message: "invalid params"}
		}
		return params, nil
	})
}

// Delayed wraps h, sleeping for delay(req) before handling each request.
// Used to force replies to arrive out of order.
func Delayed(h Handler, delay func(Request) time.Duration) Handler {
	return HandlerFunc(func(ctx context.Context, req Request) (interface{}, error) {
		select {
		case <-time.After(delay(req)):
		case <-ctx.Done():
			return nil, ErrNoReply
		}
		return h.Handle(ctx, req)
	})
}
