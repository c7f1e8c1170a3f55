package telemetry

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	rpcerrors "github.com/vinayprograms/reipc/errors"
)

func newRecorder(t *testing.T, debug bool) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return NewTracerFromProvider(tp, "reipc-test", debug), sr
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestGetTracer_DefaultsToNoop(t *testing.T) {
	SetGlobalTracer(nil)
	tr := GetTracer()
	if tr == nil {
		t.Fatal("GetTracer() returned nil")
	}
	_, span := tr.StartCallSpan(context.Background(), "eth_chainId")
	if span.SpanContext().IsValid() {
		t.Error("no-op tracer should produce invalid span contexts")
	}
	tr.EndCallSpan(span, CallSpanOptions{}, nil)
}

func TestSetGlobalTracer(t *testing.T) {
	tr, _ := newRecorder(t, false)
	SetGlobalTracer(tr)
	defer SetGlobalTracer(nil)

	if GetTracer() != tr {
		t.Error("GetTracer() should return the tracer set globally")
	}
}

func TestCallSpan_Success(t *testing.T) {
	tr, sr := newRecorder(t, false)

	_, span := tr.StartCallSpan(context.Background(), "eth_blockNumber")
	tr.EndCallSpan(span, CallSpanOptions{
		ID:           12,
		Codec:        "json",
		RequestBytes: 60,
		ReplyBytes:   40,
		Params:       []byte(`["secret"]`),
	}, nil)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Name() != "rpc.eth_blockNumber" {
		t.Errorf("Name() = %q", s.Name())
	}
	if s.SpanKind() != trace.SpanKindClient {
		t.Errorf("SpanKind() = %v", s.SpanKind())
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("Status() = %v", s.Status())
	}

	a := attrs(s)
	if a["rpc.method"].AsString() != "eth_blockNumber" {
		t.Errorf("rpc.method = %v", a["rpc.method"])
	}
	if a["rpc.jsonrpc.request_id"].AsInt64() != 12 {
		t.Errorf("request_id = %v", a["rpc.jsonrpc.request_id"])
	}
	if _, ok := a["reipc.params"]; ok {
		t.Error("params must not be recorded outside debug mode")
	}
}

func TestCallSpan_ServerError(t *testing.T) {
	tr, sr := newRecorder(t, true)

	_, span := tr.StartCallSpan(context.Background(), "eth_call")
	tr.EndCallSpan(span, CallSpanOptions{ID: 3, Params: []byte(`[{"to":"0x0"}]`)},
		rpcerrors.Server(-32000, "execution reverted"))

	s := sr.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("Status() = %v, want Error", s.Status())
	}
	a := attrs(s)
	if a["reipc.error.code"].AsString() != "SERVER" {
		t.Errorf("error.code = %v", a["reipc.error.code"])
	}
	if a["rpc.jsonrpc.error_code"].AsInt64() != -32000 {
		t.Errorf("jsonrpc error_code = %v", a["rpc.jsonrpc.error_code"])
	}
	if a["reipc.params"].AsString() != `[{"to":"0x0"}]` {
		t.Errorf("params = %v", a["reipc.params"])
	}
	if len(s.Events()) == 0 {
		t.Error("expected the error to be recorded as an event")
	}
}

func TestConnectSpan(t *testing.T) {
	tr, sr := newRecorder(t, false)

	_, span := tr.StartConnectSpan(context.Background(), "/tmp/node.ipc")
	tr.EndConnectSpan(span, "c-1", rpcerrors.Connect("refused"))

	s := sr.Ended()[0]
	a := attrs(s)
	if a["network.peer.address"].AsString() != "/tmp/node.ipc" {
		t.Errorf("peer address = %v", a["network.peer.address"])
	}
	if a["reipc.conn_id"].AsString() != "c-1" {
		t.Errorf("conn_id = %v", a["reipc.conn_id"])
	}
	if s.Status().Code != codes.Error {
		t.Errorf("Status() = %v", s.Status())
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 10)
	if got := truncate(long, 4); got != "aaaa..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("ab", 4); got != "ab" {
		t.Errorf("truncate = %q", got)
	}
}
