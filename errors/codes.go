package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates failures where a new attempt may succeed.
	// Examples: the connection went away, a single call timed out.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where repeating the same call will not help.
	// Examples: malformed bytes on the wire, a reply that does not fit the result type.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates logic faults inside the client itself.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for the failure kinds surfaced by the client.
const (
	// Transient errors
	ErrCodeConnect ErrorCode = "CONNECT" // Socket connection could not be established
	ErrCodeClosed  ErrorCode = "CLOSED"  // Connection closing or closed
	ErrCodeTimeout ErrorCode = "TIMEOUT" // A single call's deadline elapsed

	// Permanent errors
	ErrCodeDecode       ErrorCode = "DECODE"        // Bytes on the wire are not a valid message
	ErrCodeEncode       ErrorCode = "ENCODE"        // Request could not be serialized
	ErrCodePayloadShape ErrorCode = "PAYLOAD_SHAPE" // Reply body does not match the expected shape
	ErrCodeServer       ErrorCode = "SERVER"        // Remote side reported failure
	ErrCodeCanceled     ErrorCode = "CANCELED"      // Caller canceled the wait
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT" // Bad argument or configuration

	// Internal errors
	ErrCodePayloadTag ErrorCode = "PAYLOAD_TAG" // Success/failure tag read the wrong way round
	ErrCodeInternal   ErrorCode = "INTERNAL"    // Unexpected internal error
	ErrCodePanic      ErrorCode = "PANIC"       // Recovered from panic
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeConnect, ErrCodeClosed, ErrCodeTimeout:
		return CategoryTransient

	case ErrCodeDecode, ErrCodeEncode, ErrCodePayloadShape, ErrCodeServer,
		ErrCodeCanceled, ErrCodeInvalidInput:
		return CategoryPermanent

	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	return c.DefaultCategory().IsRetryable()
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeConnect:      "could not connect to socket",
	ErrCodeClosed:       "connection closed",
	ErrCodeTimeout:      "request timed out",
	ErrCodeDecode:       "could not decode received bytes",
	ErrCodeEncode:       "could not encode request",
	ErrCodePayloadShape: "reply payload has unexpected shape",
	ErrCodeServer:       "server returned an error",
	ErrCodeCanceled:     "request canceled",
	ErrCodeInvalidInput: "invalid input provided",
	ErrCodePayloadTag:   "reply payload tag misinterpreted",
	ErrCodeInternal:     "internal error",
	ErrCodePanic:        "recovered from panic",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
