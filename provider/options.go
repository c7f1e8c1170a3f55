package provider

import (
	"time"

	"github.com/vinayprograms/reipc/codec"
	"github.com/vinayprograms/reipc/logging"
	"github.com/vinayprograms/reipc/telemetry"
	"github.com/vinayprograms/reipc/transport"
)

// Option configures a Provider.
type Option func(*options)

type options struct {
	defaultTimeout time.Duration
	codec          codec.Codec
	logger         *logging.Logger
	tracer         *telemetry.Tracer
	readBufferSize int
	closeGrace     time.Duration
}

func defaultOptions() options {
	return options{
		codec:          codec.JSON{},
		logger:         logging.Nop(),
		tracer:         telemetry.GetTracer(),
		readBufferSize: transport.DefaultReadBufferSize,
		closeGrace:     2 * time.Second,
	}
}

// WithDefaultTimeout bounds every Call that does not pass its own timeout.
// Zero means calls wait until a reply arrives or the connection closes.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		o.defaultTimeout = d
	}
}

// WithCodec selects the wire codec. Default: JSON.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer. Default: the global tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithReadBufferSize sets the initial read buffer capacity.
func WithReadBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readBufferSize = n
		}
	}
}

// WithCloseGrace bounds how long Close waits for queued requests to flush
// and the loops to exit. Default: 2s.
func WithCloseGrace(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.closeGrace = d
		}
	}
}
