package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("limiter closed")

	// ErrInvalidConfig is returned for a non-positive capacity or window.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Limiter is a token bucket holding up to capacity tokens, refilled evenly
// over window. It starts full and is safe for concurrent use.
type Limiter struct {
	mu         sync.Mutex
	capacity   int
	available  int
	window     time.Duration
	lastRefill time.Time
	closed     chan struct{}
	closeOnce  sync.Once
	nowFunc    func() time.Time // for testing
}

// New creates a limiter allowing capacity acquisitions per window.
func New(capacity int, window time.Duration) (*Limiter, error) {
	if capacity <= 0 || window <= 0 {
		return nil, ErrInvalidConfig
	}
	return &Limiter{
		capacity:   capacity,
		available:  capacity,
		window:     window,
		lastRefill: time.Now(),
		closed:     make(chan struct{}),
		nowFunc:    time.Now,
	}, nil
}

// PerSecond is New(rate, time.Second).
func PerSecond(rate int) (*Limiter, error) {
	return New(rate, time.Second)
}

// refill adds the tokens earned since the last refill. Partial tokens are
// kept by advancing lastRefill only by the time actually converted.
func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	perToken := l.window / time.Duration(l.capacity)
	if perToken <= 0 {
		perToken = 1
	}
	tokens := int(elapsed / perToken)
	if tokens == 0 {
		return
	}
	l.available += tokens
	l.lastRefill = l.lastRefill.Add(time.Duration(tokens) * perToken)
	if l.available >= l.capacity {
		l.available = l.capacity
		l.lastRefill = now
	}
}

// reserve takes a token if one is available, otherwise reports how long
// until the next one.
func (l *Limiter) reserve() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	l.refill(now)
	if l.available > 0 {
		l.available--
		return true, 0
	}
	perToken := l.window / time.Duration(l.capacity)
	wait := l.lastRefill.Add(perToken).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait
}

// TryAcquire takes a token without blocking.
func (l *Limiter) TryAcquire() bool {
	select {
	case <-l.closed:
		return false
	default:
	}
	ok, _ := l.reserve()
	return ok
}

// Acquire blocks until a token is available, ctx ends or the limiter is closed.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		select {
		case <-l.closed:
			return ErrClosed
		default:
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, wait := l.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-l.closed:
			timer.Stop()
			return ErrClosed
		}
	}
}

// Available returns the tokens currently in the bucket.
func (l *Limiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.nowFunc())
	return l.available
}

// Close wakes every waiter with ErrClosed. Safe to call more than once.
func (l *Limiter) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}
