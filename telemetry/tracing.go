// Package telemetry provides OpenTelemetry tracing for RPC calls.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	rpcerrors "github.com/vinayprograms/reipc/errors"
)

// maxPayloadAttr bounds payload attributes recorded in debug mode.
const maxPayloadAttr = 4000

// Tracer wraps OpenTelemetry tracing with call-specific helpers.
type Tracer struct {
	tracer trace.Tracer
	debug  bool // When true, include params and results in span attributes
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return Noop()
	}
	return globalTracer
}

// Noop returns a tracer that records nothing.
func Noop() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
}

// NewTracer creates a tracer from the globally registered provider.
func NewTracer(name string, debug bool) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(name),
		debug:  debug,
	}
}

// NewTracerFromProvider creates a tracer from an explicit provider.
func NewTracerFromProvider(tp trace.TracerProvider, name string, debug bool) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(name),
		debug:  debug,
	}
}

// SetDebug enables or disables debug mode (payloads in spans).
func (t *Tracer) SetDebug(debug bool) {
	t.debug = debug
}

// Debug returns whether debug mode is enabled.
func (t *Tracer) Debug() bool {
	return t.debug
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Call Spans ---

// CallSpanOptions contains options for RPC call spans.
type CallSpanOptions struct {
	ID           uint64
	Codec        string
	RequestBytes int
	ReplyBytes   int
	Params       []byte // Only included if debug=true
	Result       []byte // Only included if debug=true
}

// StartCallSpan starts a client span for one call.
func (t *Tracer) StartCallSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "rpc."+method, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", method),
	)
	return ctx, span
}

// EndCallSpan ends a call span with attributes and the call's outcome.
func (t *Tracer) EndCallSpan(span trace.Span, opts CallSpanOptions, err error) {
	span.SetAttributes(
		attribute.Int64("rpc.jsonrpc.request_id", int64(opts.ID)),
		attribute.String("reipc.codec", opts.Codec),
		attribute.Int("reipc.request.bytes", opts.RequestBytes),
		attribute.Int("reipc.reply.bytes", opts.ReplyBytes),
	)

	if t.debug {
		if len(opts.Params) > 0 {
			span.SetAttributes(attribute.String("reipc.params", truncate(string(opts.Params), maxPayloadAttr)))
		}
		if len(opts.Result) > 0 {
			span.SetAttributes(attribute.String("reipc.result", truncate(string(opts.Result), maxPayloadAttr)))
		}
	}

	endWithError(span, err)
}

// --- Connection Spans ---

// StartConnectSpan starts a span covering dial and loop startup.
func (t *Tracer) StartConnectSpan(ctx context.Context, socket string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "reipc.connect", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("network.peer.address", socket))
	return ctx, span
}

// EndConnectSpan ends a connect span.
func (t *Tracer) EndConnectSpan(span trace.Span, connID string, err error) {
	if connID != "" {
		span.SetAttributes(attribute.String("reipc.conn_id", connID))
	}
	endWithError(span, err)
}

func endWithError(span trace.Span, err error) {
	if err != nil {
		if code := rpcerrors.Code(err); code != "" {
			span.SetAttributes(attribute.String("reipc.error.code", string(code)))
		}
		if payload, ok := rpcerrors.ServerError(err); ok {
			span.SetAttributes(
				attribute.Int64("rpc.jsonrpc.error_code", payload.Code),
				attribute.String("rpc.jsonrpc.error_message", payload.Message),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// --- Helpers ---

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
