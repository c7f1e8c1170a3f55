// Package errors provides the structured error taxonomy used across reipc.
//
// Every failure the client surfaces is an *Error with a code and a category.
//
// # Error Categories
//
//   - Transient: a new call may succeed (connection lost, call timed out)
//   - Permanent: repeating the same call will not help (malformed payload, server error)
//   - Internal: logic faults inside the client
//
// # Error Codes
//
//   - CONNECT: the socket could not be opened
//   - DECODE: bytes on the wire are not a valid message; fatal to the connection
//   - CLOSED: the connection is closing or closed
//   - TIMEOUT: a single call's deadline elapsed
//   - PAYLOAD_SHAPE: a reply arrived but did not fit the expected shape
//   - PAYLOAD_TAG: a success payload was read as an error or vice versa
//   - SERVER: the remote side reported failure with a code and message
//
// # Usage
//
//	result, err := provider.Call[uint64](ctx, p, "eth_blockNumber", nil)
//	switch {
//	case errors.IsTimeout(err):
//	    // retry with a fresh request
//	case errors.Is(err, errors.ErrCodeServer):
//	    payload, _ := errors.ServerError(err)
//	    log.Printf("node said %d: %s", payload.Code, payload.Message)
//	}
//
// Nothing in reipc retries automatically; Retryable only reports whether a
// caller-driven retry makes sense.
package errors
