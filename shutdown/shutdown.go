package shutdown

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout indicates shutdown did not complete within the timeout.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more handlers failed during shutdown.
	ErrHandlerFailed = errors.New("one or more handlers failed")
)

// Phases used by the CLI. Lower phases run first.
const (
	// PhaseWork stops issuing new calls and drains the worker pool.
	PhaseWork = 10
	// PhaseConnection closes providers, releasing any pending callers.
	PhaseConnection = 20
)

// Handler is implemented by components that need an orderly stop.
type Handler interface {
	// OnShutdown stops the component. ctx is cancelled when the timeout is reached.
	OnShutdown(ctx context.Context) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context) error

// OnShutdown implements Handler.
func (f HandlerFunc) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// Closer adapts an io.Closer-style Close method to Handler.
type Closer func() error

// OnShutdown implements Handler. Close runs on its own goroutine so a slow
// close cannot outlive ctx.
func (f Closer) OnShutdown(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- f() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandlerResult is the outcome of a single handler.
type HandlerResult struct {
	Name     string
	Phase    int
	Duration time.Duration
	Err      error
}

// Result is the outcome of a complete shutdown.
type Result struct {
	TotalDuration time.Duration
	Results       []HandlerResult
	Err           error
}

// Failed returns true if any handler failed.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// FailedHandlers returns the names of handlers that failed.
func (r *Result) FailedHandlers() []string {
	var failed []string
	for _, hr := range r.Results {
		if hr.Err != nil {
			failed = append(failed, hr.Name)
		}
	}
	return failed
}

type registration struct {
	name    string
	handler Handler
	phase   int
}
