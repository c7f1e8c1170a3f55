package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/reipc/logging"
)

// Coordinator runs registered handlers phase by phase, once.
type Coordinator struct {
	timeout time.Duration
	log     *logging.Logger

	mu       sync.Mutex
	handlers []registration
	once     sync.Once
	done     chan struct{}
	result   *Result
	signals  chan os.Signal
	signaled chan os.Signal
}

// NewCoordinator creates a coordinator whose signal-triggered shutdown is
// bounded by timeout. A zero timeout means 10 seconds.
func NewCoordinator(timeout time.Duration, log *logging.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Coordinator{
		timeout:  timeout,
		log:      log.WithComponent("shutdown"),
		done:     make(chan struct{}),
		signals:  make(chan os.Signal, 1),
		signaled: make(chan os.Signal, 1),
	}
}

// Register adds a handler to phase. Handlers in the same phase run concurrently.
func (c *Coordinator) Register(name string, phase int, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, handler: h, phase: phase})
}

// RegisterFunc registers a function as a handler.
func (c *Coordinator) RegisterFunc(name string, phase int, fn func(ctx context.Context) error) {
	c.Register(name, phase, HandlerFunc(fn))
}

// Shutdown runs every handler. Only the first call does any work; later
// calls wait for it and return the same error.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.result = c.run(ctx)
		close(c.done)
	})
	<-c.done
	return c.result.Err
}

// ShutdownWithTimeout calls Shutdown bounded by d, or by the coordinator's
// timeout when d is zero.
func (c *Coordinator) ShutdownWithTimeout(d time.Duration) error {
	if d <= 0 {
		d = c.timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals shuts down on SIGINT or SIGTERM. The returned function stops
// listening; it does not trigger a shutdown.
func (c *Coordinator) HandleSignals() (stop func()) {
	signal.Notify(c.signals, syscall.SIGTERM, syscall.SIGINT)
	quit := make(chan struct{})

	go func() {
		select {
		case sig := <-c.signals:
			c.log.Info("signal_received", map[string]interface{}{"signal": sig.String()})
			c.signaled <- sig
			_ = c.ShutdownWithTimeout(0)
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(c.signals)
			close(quit)
		})
	}
}

// Signaled receives the signal that triggered shutdown, if any.
func (c *Coordinator) Signaled() <-chan os.Signal {
	return c.signaled
}

// Trigger behaves as if SIGTERM had been received. HandleSignals must be active.
func (c *Coordinator) Trigger() {
	select {
	case c.signals <- syscall.SIGTERM:
	default:
	}
}

// Done is closed when shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error once Done is closed, and nil before.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.result.Err
	default:
		return nil
	}
}

// Result returns the per-handler outcome once Done is closed, and nil before.
func (c *Coordinator) Result() *Result {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) *Result {
	start := time.Now()

	c.mu.Lock()
	handlers := append([]registration(nil), c.handlers...)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	result := &Result{Results: make([]HandlerResult, 0, len(handlers))}
	for _, group := range groupByPhase(handlers) {
		if ctx.Err() != nil {
			result.Err = ErrTimeout
			break
		}
		for _, hr := range c.runPhase(ctx, group) {
			result.Results = append(result.Results, hr)
			if hr.Err != nil && result.Err == nil {
				result.Err = ErrHandlerFailed
			}
		}
	}
	result.TotalDuration = time.Since(start)

	fields := map[string]interface{}{
		"handlers": len(result.Results),
		"duration": result.TotalDuration.String(),
	}
	if result.Err != nil {
		fields["error"] = result.Err.Error()
		c.log.Warn("shutdown_complete", fields)
	} else {
		c.log.Debug("shutdown_complete", fields)
	}
	return result
}

func (c *Coordinator) runPhase(ctx context.Context, group []registration) []HandlerResult {
	results := make([]HandlerResult, len(group))
	var wg sync.WaitGroup

	for i, reg := range group {
		wg.Add(1)
		go func(i int, r registration) {
			defer wg.Done()
			start := time.Now()
			err := r.handler.OnShutdown(ctx)
			results[i] = HandlerResult{
				Name:     r.name,
				Phase:    r.phase,
				Duration: time.Since(start),
				Err:      err,
			}
			if err != nil {
				c.log.Warn("handler_failed", map[string]interface{}{"handler": r.name, "error": err.Error()})
			}
		}(i, reg)
	}

	wg.Wait()
	return results
}

// groupByPhase splits handlers, already sorted by phase, into runs of equal phase.
func groupByPhase(handlers []registration) [][]registration {
	var groups [][]registration
	for i, h := range handlers {
		if i == 0 || h.phase != handlers[i-1].phase {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], h)
	}
	return groups
}
