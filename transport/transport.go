package transport

import (
	"context"

	"github.com/vinayprograms/reipc/codec"
	"github.com/vinayprograms/reipc/logging"
)

// DefaultReadBufferSize holds one typical reply without reallocation.
const DefaultReadBufferSize = 25 * 1024

// Config holds transport configuration.
type Config struct {
	// ReadBufferSize is the initial capacity of the read buffer. The buffer
	// grows when a single reply does not fit.
	// Default: 25 KiB
	ReadBufferSize int

	// Codec frames the byte stream.
	// Default: codec.JSON
	Codec codec.Codec

	// Logger receives loop lifecycle and decode events.
	// Default: logging.Nop()
	Logger *logging.Logger
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize: DefaultReadBufferSize,
		Codec:          codec.JSON{},
		Logger:         logging.Nop(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.Codec == nil {
		c.Codec = def.Codec
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
	return c
}

// Task tracks one background loop. It resolves to nil on a clean end of
// stream, or to the error that ended the loop.
type Task struct {
	done chan struct{}
	err  error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed when the loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the loop's result, or nil while it is still running.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the loop exits or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
