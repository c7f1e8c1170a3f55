package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"

	rpcerrors "github.com/vinayprograms/reipc/errors"
	"github.com/vinayprograms/reipc/logging"
	"github.com/vinayprograms/reipc/provider"
	"github.com/vinayprograms/reipc/ratelimit"
	"github.com/vinayprograms/reipc/shutdown"
)

func newBenchCommand(ctx *commandContext) *cobra.Command {
	var concurrency, requests, rate int

	cmd := &cobra.Command{
		Use:   "bench <method> [params-json]",
		Short: "Issue many concurrent calls over one connection and report latency",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("concurrency") {
				concurrency = ctx.cfg.Bench.Concurrency
			}
			if !cmd.Flags().Changed("requests") {
				requests = ctx.cfg.Bench.Requests
			}
			if !cmd.Flags().Changed("rate") {
				rate = ctx.cfg.Bench.Rate
			}
			if concurrency <= 0 || requests <= 0 {
				return fmt.Errorf("--concurrency and --requests must be positive")
			}
			if rate < 0 {
				return fmt.Errorf("--rate must not be negative")
			}

			method := args[0]
			params, err := parseParams(ctx.cfg.Codec, args[1:])
			if err != nil {
				return err
			}

			var report *benchReport
			err = ctx.withProvider(cmd, func(runCtx context.Context, p *provider.Provider, coord *shutdown.Coordinator) error {
				b := &bench{
					p:           p,
					method:      method,
					params:      params,
					concurrency: concurrency,
					log:         ctx.log.WithComponent("bench"),
				}
				if rate > 0 {
					lim, err := ratelimit.PerSecond(rate)
					if err != nil {
						return err
					}
					defer lim.Close()
					b.limiter = lim
				}
				coord.Register("bench", shutdown.PhaseWork, shutdown.HandlerFunc(b.stop))

				stats, err := b.run(runCtx, requests)
				if err != nil {
					return err
				}
				report = stats.report(method, concurrency)
				return nil
			})
			if report != nil {
				if ctx.jsonOutput(cmd) {
					if werr := writeJSON(cmd, report); werr != nil {
						return werr
					}
				} else {
					printBenchReport(cmd.OutOrStdout(), report)
				}
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "Number of concurrent workers (default from config)")
	cmd.Flags().IntVarP(&requests, "requests", "r", 0, "Total number of calls (default from config)")
	cmd.Flags().IntVar(&rate, "rate", 0, "Maximum calls per second, 0 for unlimited (default from config)")
	return cmd
}

// bench issues calls from a fixed-size ants pool over one provider.
type bench struct {
	p           *provider.Provider
	method      string
	params      interface{}
	concurrency int
	limiter     *ratelimit.Limiter
	log         *logging.Logger

	mu   sync.Mutex
	pool *ants.Pool
}

func (b *bench) run(ctx context.Context, n int) (*benchStats, error) {
	pool, err := ants.NewPool(b.concurrency, ants.WithPanicHandler(func(v interface{}) {
		b.log.Error("worker_panic", map[string]interface{}{"panic": fmt.Sprint(v)})
	}))
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.pool = pool
	b.mu.Unlock()
	defer pool.Release()

	stats := newBenchStats()
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < n && ctx.Err() == nil; i++ {
		if b.limiter != nil {
			if err := b.limiter.Acquire(ctx); err != nil {
				break
			}
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			t0 := time.Now()
			_, err := callResult(ctx, b.p, b.method, b.params)
			stats.record(time.Since(t0), err)
		})
		if err != nil {
			wg.Done()
			if ctx.Err() != nil || errors.Is(err, ants.ErrPoolClosed) {
				break
			}
			wg.Wait()
			return nil, err
		}
	}

	wg.Wait()
	stats.elapsed = time.Since(start)
	b.log.Debug("bench_complete", map[string]interface{}{
		"calls":   stats.count,
		"elapsed": stats.elapsed.String(),
	})
	return stats, nil
}

// stop releases idle workers and wakes a submitter waiting on the rate
// limit; calls in flight are released when the provider closes in the next
// phase.
func (b *bench) stop(context.Context) error {
	if b.limiter != nil {
		b.limiter.Close()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pool != nil {
		b.pool.Release()
	}
	return nil
}

type benchStats struct {
	mu      sync.Mutex
	count   int
	ok      int
	errors  map[rpcerrors.ErrorCode]int
	total   time.Duration
	min     time.Duration
	max     time.Duration
	elapsed time.Duration
}

func newBenchStats() *benchStats {
	return &benchStats{errors: make(map[rpcerrors.ErrorCode]int)}
}

func (s *benchStats) record(d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.total += d
	if s.count == 1 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	if err == nil {
		s.ok++
		return
	}
	code := rpcerrors.Code(err)
	if code == "" {
		code = rpcerrors.ErrCodeInternal
	}
	s.errors[code]++
}

type benchReport struct {
	Method      string         `json:"method"`
	Concurrency int            `json:"concurrency"`
	Calls       int            `json:"calls"`
	Succeeded   int            `json:"succeeded"`
	Errors      map[string]int `json:"errors,omitempty"`
	Min         string         `json:"min"`
	Avg         string         `json:"avg"`
	Max         string         `json:"max"`
	Elapsed     string         `json:"elapsed"`
	RatePerSec  float64        `json:"rate_per_sec"`
}

func (s *benchStats) report(method string, concurrency int) *benchReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &benchReport{
		Method:      method,
		Concurrency: concurrency,
		Calls:       s.count,
		Succeeded:   s.ok,
		Min:         s.min.String(),
		Max:         s.max.String(),
		Avg:         time.Duration(0).String(),
		Elapsed:     s.elapsed.String(),
	}
	if s.count > 0 {
		r.Avg = (s.total / time.Duration(s.count)).String()
	}
	if s.elapsed > 0 {
		r.RatePerSec = float64(s.count) / s.elapsed.Seconds()
	}
	if len(s.errors) > 0 {
		r.Errors = make(map[string]int, len(s.errors))
		for code, n := range s.errors {
			r.Errors[string(code)] = n
		}
	}
	return r
}

func printBenchReport(w io.Writer, r *benchReport) {
	rows := [][]string{
		{"calls", strconv.Itoa(r.Calls)},
		{"succeeded", strconv.Itoa(r.Succeeded)},
		{"concurrency", strconv.Itoa(r.Concurrency)},
		{"min", r.Min},
		{"avg", r.Avg},
		{"max", r.Max},
		{"elapsed", r.Elapsed},
		{"rate", strconv.FormatFloat(r.RatePerSec, 'f', 1, 64) + "/s"},
	}
	fmt.Fprintln(w, renderTable(r.Method, []string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(r.Errors) == 0 {
		return
	}
	codes := make([]string, 0, len(r.Errors))
	for code := range r.Errors {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	errRows := make([][]string, 0, len(codes))
	for _, code := range codes {
		errRows = append(errRows, []string{code, strconv.Itoa(r.Errors[code])})
	}
	fmt.Fprintln(w, renderTable("errors", []string{"Code", "Count"}, errRows, []columnAlignment{alignLeft, alignRight}))
}
