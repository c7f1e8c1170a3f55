package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/vinayprograms/reipc/jsonrpc"
)

// JSON is the default codec: plain JSON values, back to back.
type JSON struct{}

var _ Codec = JSON{}

// Name implements Codec.
func (JSON) Name() string { return "json" }

// EncodeRequest implements jsonrpc.Encoder.
func (JSON) EncodeRequest(env jsonrpc.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Unmarshal implements Codec.
func (JSON) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// DecodeReply implements Codec.
func (JSON) DecodeReply(buf []byte) (*jsonrpc.Reply, int, error) {
	dec := json.NewDecoder(bytes.NewReader(buf))

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, ErrNeedMore
		}
		return nil, 0, err
	}
	n := int(dec.InputOffset())

	// Only objects can be replies.
	if len(raw) == 0 || raw[0] != '{' {
		return nil, n, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, n, nil
	}

	id, hasID := jsonID(fields["id"])
	result, hasResult := fields["result"]
	errObj, hasError := fields["error"]
	if hasError && isJSONNull(errObj) {
		hasError = false
	}

	return routeFields(id, hasID, result, hasResult, errObj, hasError), n, nil
}

func jsonID(raw json.RawMessage) (uint64, bool) {
	if len(raw) == 0 || isJSONNull(raw) {
		return 0, false
	}
	var id uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, false
	}
	return id, true
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
