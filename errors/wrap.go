package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already an *Error, the wrapper keeps its code and category.
// Context and connection errors are mapped onto their codes; anything else
// becomes an Internal error.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		wrapped := &Error{
			code:      rpcErr.code,
			category:  rpcErr.category,
			message:   message,
			cause:     err,
			metadata:  rpcErr.Metadata(),
			retryable: rpcErr.retryable,
			timestamp: rpcErr.timestamp,
			requestID: rpcErr.requestID,
			method:    rpcErr.method,
			server:    rpcErr.server,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	opts = append(opts, WithCause(err))
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return New(ErrCodeTimeout, message, opts...)
	case errors.Is(err, context.Canceled):
		return New(ErrCodeCanceled, message, opts...)
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe), errors.Is(err, io.EOF):
		return New(ErrCodeClosed, message, opts...)
	}
	return New(ErrCodeInternal, message, opts...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsRPCError extracts an RPCError from an error chain.
// Returns nil if no RPCError is found.
func AsRPCError(err error) RPCError {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return nil
}

// Is checks if the outermost *Error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.code == code
	}
	return false
}

// IsCategory checks if the outermost *Error in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.category == category
	}
	return false
}

// IsRetryable checks if the error is retryable.
func IsRetryable(err error) bool {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Retryable()
	}
	return false
}

// IsTimeout reports whether err is a per-call timeout.
func IsTimeout(err error) bool {
	return Is(err, ErrCodeTimeout)
}

// IsClosed reports whether err means the connection is closing or closed.
func IsClosed(err error) bool {
	return Is(err, ErrCodeClosed)
}

// Code extracts the error code from an error, if available.
// Returns empty string if err is not an *Error.
func Code(err error) ErrorCode {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.code
	}
	return ""
}

// Category extracts the error category from an error, if available.
func Category(err error) ErrorCategory {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.category
	}
	return ""
}

// ServerError extracts the remote error payload from err, if it carries one.
func ServerError(err error) (ServerPayload, bool) {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Server()
	}
	return ServerPayload{}, false
}

// Cause returns the root cause of the error chain.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := unwrapper.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}

// Join combines multiple errors into a single error.
// If all errors are nil, returns nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// RecoverPanic converts a recovered panic value into an Error.
func RecoverPanic(recovered interface{}) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(ErrCodePanic, message, WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
}
