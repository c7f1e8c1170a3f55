package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"
)

// ============================================================================
// 1. Error creation with different codes/categories
// ============================================================================

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         ErrorCode
		message      string
		wantCategory ErrorCategory
	}{
		{"connect", ErrCodeConnect, "dial failed", CategoryTransient},
		{"closed", ErrCodeClosed, "channel closed", CategoryTransient},
		{"timeout", ErrCodeTimeout, "request timed out", CategoryTransient},
		{"decode", ErrCodeDecode, "bad json", CategoryPermanent},
		{"payload_shape", ErrCodePayloadShape, "not a uint", CategoryPermanent},
		{"server", ErrCodeServer, "method not found", CategoryPermanent},
		{"payload_tag", ErrCodePayloadTag, "tag mixup", CategoryInternal},
		{"internal", ErrCodeInternal, "internal error", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)
			if err.Code() != tt.code {
				t.Errorf("Code() = %v, want %v", err.Code(), tt.code)
			}
			if err.Category() != tt.wantCategory {
				t.Errorf("Category() = %v, want %v", err.Category(), tt.wantCategory)
			}
			if err.Error() != tt.message {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.message)
			}
			if err.Timestamp().IsZero() {
				t.Error("Timestamp() should not be zero")
			}
		})
	}
}

func TestFromCode(t *testing.T) {
	err := FromCode(ErrCodeTimeout)
	if err.Code() != ErrCodeTimeout {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeTimeout)
	}
	if err.Error() != "request timed out" {
		t.Errorf("Error() = %v, want %v", err.Error(), "request timed out")
	}
}

func TestUnknownCodeDescription(t *testing.T) {
	if got := ErrorCode("NOPE").Description(); got != "unknown error" {
		t.Errorf("Description() = %q, want %q", got, "unknown error")
	}
	if got := ErrorCode("NOPE").DefaultCategory(); got != CategoryInternal {
		t.Errorf("DefaultCategory() = %v, want %v", got, CategoryInternal)
	}
}

// ============================================================================
// 2. Retryable vs non-retryable errors
// ============================================================================

func TestRetryable(t *testing.T) {
	if !Timeout("slow").Retryable() {
		t.Error("timeout should be retryable")
	}
	if !Closed("gone").Retryable() {
		t.Error("closed should be retryable")
	}
	if Decode("garbage").Retryable() {
		t.Error("decode should not be retryable")
	}
	if PayloadTag("mixup").Retryable() {
		t.Error("payload tag should not be retryable")
	}
	if !New(ErrCodeDecode, "x", WithRetryable(true)).Retryable() {
		t.Error("WithRetryable(true) should override the category")
	}
}

// ============================================================================
// 3. Server errors
// ============================================================================

func TestServerError(t *testing.T) {
	err := Server(-32601, "the method foo does not exist", WithMethod("foo"), WithRequestID(7))

	if err.Code() != ErrCodeServer {
		t.Fatalf("Code() = %v, want %v", err.Code(), ErrCodeServer)
	}
	payload, ok := err.Server()
	if !ok {
		t.Fatal("expected server payload")
	}
	if payload.Code != -32601 || payload.Message != "the method foo does not exist" {
		t.Errorf("payload = %+v", payload)
	}
	if err.Method() != "foo" {
		t.Errorf("Method() = %q, want foo", err.Method())
	}
	if err.RequestID() != "7" {
		t.Errorf("RequestID() = %q, want 7", err.RequestID())
	}

	wrapped := fmt.Errorf("calling foo: %w", err)
	got, ok := ServerError(wrapped)
	if !ok || got != payload {
		t.Errorf("ServerError(wrapped) = %+v, %v", got, ok)
	}

	if _, ok := ServerError(Timeout("x")); ok {
		t.Error("timeout should not carry a server payload")
	}
}

// ============================================================================
// 4. Wrapping
// ============================================================================

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "nothing") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if WrapWithCode(nil, ErrCodeDecode, "nothing") != nil {
		t.Error("WrapWithCode(nil) should return nil")
	}
}

func TestWrapPreservesCode(t *testing.T) {
	inner := Timeout("inner", WithRequestID(3))
	outer := Wrap(inner, "outer")

	if outer.Code() != ErrCodeTimeout {
		t.Errorf("Code() = %v, want %v", outer.Code(), ErrCodeTimeout)
	}
	if outer.RequestID() != "3" {
		t.Errorf("RequestID() = %q, want 3", outer.RequestID())
	}
	if !errors.Is(outer, inner) {
		t.Error("wrapped error should match inner via errors.Is")
	}
}

func TestWrapMapsStandardErrors(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{context.DeadlineExceeded, ErrCodeTimeout},
		{context.Canceled, ErrCodeCanceled},
		{net.ErrClosed, ErrCodeClosed},
		{io.ErrClosedPipe, ErrCodeClosed},
		{io.EOF, ErrCodeClosed},
		{errors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := Wrap(tt.err, "wrapped").Code(); got != tt.want {
				t.Errorf("Wrap(%v).Code() = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsHelpers(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Closed("bye"))
	if !IsClosed(err) {
		t.Error("IsClosed should see through fmt wrapping")
	}
	if IsTimeout(err) {
		t.Error("IsTimeout should be false for closed errors")
	}
	if Code(err) != ErrCodeClosed {
		t.Errorf("Code() = %v", Code(err))
	}
	if Category(err) != CategoryTransient {
		t.Errorf("Category() = %v", Category(err))
	}
	if !IsRetryable(err) {
		t.Error("closed errors should be retryable")
	}
	if Code(errors.New("plain")) != "" {
		t.Error("plain errors have no code")
	}
	if AsRPCError(errors.New("plain")) != nil {
		t.Error("plain errors are not RPCErrors")
	}
}

func TestCause(t *testing.T) {
	root := errors.New("root")
	err := Wrap(WrapWithCode(root, ErrCodeDecode, "decode"), "read loop")
	if Cause(err) != root {
		t.Errorf("Cause() = %v, want %v", Cause(err), root)
	}
}

// ============================================================================
// 5. JSON serialization
// ============================================================================

func TestJSONRoundTrip(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := Server(-32000, "execution reverted",
		WithMethod("eth_call"),
		WithRequestID(42),
		WithMetadata("socket", "/tmp/node.ipc"),
		WithTimestamp(ts),
	)

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Error
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Code() != ErrCodeServer {
		t.Errorf("Code() = %v", decoded.Code())
	}
	if decoded.Method() != "eth_call" || decoded.RequestID() != "42" {
		t.Errorf("method/id = %q/%q", decoded.Method(), decoded.RequestID())
	}
	if payload, ok := decoded.Server(); !ok || payload.Code != -32000 {
		t.Errorf("Server() = %+v, %v", payload, ok)
	}
	if !decoded.Timestamp().Equal(ts) {
		t.Errorf("Timestamp() = %v, want %v", decoded.Timestamp(), ts)
	}
	if decoded.Metadata()["socket"] != "/tmp/node.ipc" {
		t.Errorf("Metadata() = %v", decoded.Metadata())
	}
}

// ============================================================================
// 6. Panic recovery
// ============================================================================

func TestRecoverPanic(t *testing.T) {
	if RecoverPanic(nil) != nil {
		t.Error("RecoverPanic(nil) should return nil")
	}
	err := RecoverPanic("send on closed channel")
	if err.Code() != ErrCodePanic {
		t.Errorf("Code() = %v", err.Code())
	}
	if err.Metadata()["panic_value"] != "string" {
		t.Errorf("panic_value = %q", err.Metadata()["panic_value"])
	}
}
