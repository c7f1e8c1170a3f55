package provider

import (
	"testing"

	"github.com/vinayprograms/reipc/codec"
	rpcerrors "github.com/vinayprograms/reipc/errors"
	"github.com/vinayprograms/reipc/jsonrpc"
)

func TestParseReply_Success(t *testing.T) {
	reply := &jsonrpc.Reply{ID: 1, Payload: jsonrpc.Success([]byte(`"0x1"`))}
	got, err := ParseReply[string](codec.JSON{}, reply)
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if got != "0x1" {
		t.Errorf("got %q, want 0x1", got)
	}
}

func TestParseReply_Classification(t *testing.T) {
	tests := []struct {
		name    string
		payload jsonrpc.Payload
		want    rpcerrors.ErrorCode
	}{
		{"wrong shape", jsonrpc.Success([]byte(`"not a number"`)), rpcerrors.ErrCodePayloadShape},
		{"server error", jsonrpc.Failure([]byte(`{"code":-32601,"message":"no such method"}`)), rpcerrors.ErrCodeServer},
		{"error not an object", jsonrpc.Failure([]byte(`"boom"`)), rpcerrors.ErrCodePayloadShape},
		{"error without message", jsonrpc.Failure([]byte(`{"code":-32000}`)), rpcerrors.ErrCodePayloadShape},
		{"untagged", jsonrpc.Payload{Raw: []byte(`1`)}, rpcerrors.ErrCodePayloadTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReply[uint64](codec.JSON{}, &jsonrpc.Reply{ID: 9, Payload: tt.payload})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := rpcerrors.Code(err); got != tt.want {
				t.Errorf("Code() = %v, want %v (err: %v)", got, tt.want, err)
			}
			if e, ok := err.(*rpcerrors.Error); ok && e.RequestID() != "9" {
				t.Errorf("RequestID() = %q, want 9", e.RequestID())
			}
		})
	}
}

func TestParseReply_ServerPayload(t *testing.T) {
	reply := &jsonrpc.Reply{ID: 2, Payload: jsonrpc.Failure([]byte(`{"code":3,"message":"execution reverted","data":"0x08c379a0"}`))}
	_, err := ParseReply[string](codec.JSON{}, reply)

	payload, ok := rpcerrors.ServerError(err)
	if !ok {
		t.Fatalf("expected server error, got %v", err)
	}
	if payload.Code != 3 || payload.Message != "execution reverted" {
		t.Errorf("payload = %+v", payload)
	}
	if got := err.(*rpcerrors.Error).Metadata()["data"]; got != "0x08c379a0" {
		t.Errorf("data = %q", got)
	}
}

func TestParseReply_Msgpack(t *testing.T) {
	c := codec.Msgpack{}
	raw, err := c.EncodeRequest(jsonrpc.Envelope{JSONRPC: jsonrpc.Version, ID: 4, Method: "m"})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	// The encoded envelope doubles as a map payload to decode into a struct.
	got, err := ParseReply[jsonrpc.Envelope](c, &jsonrpc.Reply{ID: 4, Payload: jsonrpc.Success(raw)})
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if got.ID != 4 || got.Method != "m" {
		t.Errorf("got %+v", got)
	}
}
