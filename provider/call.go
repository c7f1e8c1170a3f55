package provider

import (
	"context"
	"time"

	rpcerrors "github.com/vinayprograms/reipc/errors"
	"github.com/vinayprograms/reipc/jsonrpc"
	"github.com/vinayprograms/reipc/telemetry"
)

// Call invokes method and decodes the result into R. The provider's default
// timeout applies.
func Call[R any](ctx context.Context, p *Provider, method string, params interface{}) (R, error) {
	return CallWithTimeout[R](ctx, p, method, params, p.opts.defaultTimeout)
}

// CallWithTimeout is Call with an explicit timeout. d <= 0 means no deadline.
func CallWithTimeout[R any](ctx context.Context, p *Provider, method string, params interface{}, d time.Duration) (R, error) {
	var out R
	err := p.call(ctx, method, params, d, func(reply *jsonrpc.Reply) error {
		return parseInto(p.codec, reply, &out)
	})
	return out, err
}

// CallNoParams invokes a method that takes no params.
func CallNoParams[R any](ctx context.Context, p *Provider, method string) (R, error) {
	return Call[R](ctx, p, method, nil)
}

// CallInto invokes method and decodes the result into out, which must be a
// pointer. The provider's default timeout applies.
func (p *Provider) CallInto(ctx context.Context, method string, params interface{}, out interface{}) error {
	return p.call(ctx, method, params, p.opts.defaultTimeout, func(reply *jsonrpc.Reply) error {
		return parseInto(p.codec, reply, out)
	})
}

// call runs one request through the multiplexer inside a span.
func (p *Provider) call(ctx context.Context, method string, params interface{}, d time.Duration, decode func(*jsonrpc.Reply) error) (err error) {
	ctx, span := p.tracer.StartCallSpan(ctx, method)
	start := time.Now()

	id := p.ids.Next()
	opts := telemetry.CallSpanOptions{ID: id, Codec: p.codec.Name()}
	defer func() {
		p.tracer.EndCallSpan(span, opts, err)
		p.log.CallComplete(method, id, time.Since(start), err)
	}()

	req, err := jsonrpc.NewRequest(p.codec, id, method, params)
	if err != nil {
		return rpcerrors.WrapWithCode(err, rpcerrors.ErrCodeEncode, "encode request",
			rpcerrors.WithRequestID(id), rpcerrors.WithMethod(method))
	}
	opts.RequestBytes = len(req.Body())
	opts.Params = req.Body()

	reply, err := p.mux.SendWithDeadline(ctx, req, d)
	if err != nil {
		return err
	}
	opts.ReplyBytes = len(reply.Payload.Raw)
	opts.Result = reply.Payload.Raw

	if err := decode(reply); err != nil {
		return rpcerrors.Wrap(err, "call "+method, rpcerrors.WithMethod(method))
	}
	return nil
}
