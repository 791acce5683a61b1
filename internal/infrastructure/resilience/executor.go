// Package resilience wraps outbound calls with retries and per-operation
// circuit breakers.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Transient reports whether the error is worth retrying. Nil means
// nothing retries and every failure trips the breaker.
type Transient func(err error) bool

type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Run invokes fn, retrying transient failures with exponential backoff.
// Context cancellation is never retried and never counts against the
// breaker for the operation.
func (e *Executor) Run(ctx context.Context, operation string, transient Transient, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil callback for %q", operation)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if transient == nil {
		transient = func(error) bool { return false }
	}

	if !e.cfg.BreakerEnabled {
		return e.runWithRetry(ctx, op, transient, fn)
	}

	_, err := e.breaker(op, transient).Execute(func() (any, error) {
		return nil, e.runWithRetry(ctx, op, transient, fn)
	})
	return err
}

func (e *Executor) runWithRetry(ctx context.Context, op string, transient Transient, fn func(context.Context) error) error {
	backoff := e.cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if isCanceled(lastErr) || !transient(lastErr) || attempt == e.cfg.MaxAttempts {
			return lastErr
		}

		slog.Warn("retry_attempt",
			"operation", op,
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", lastErr,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
		backoff *= 2
		if backoff > e.cfg.MaxBackoff {
			backoff = e.cfg.MaxBackoff
		}
	}
	return lastErr
}

func (e *Executor) breaker(op string, transient Transient) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, ok := e.breakers[op]; ok {
		return b
	}

	b := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        op,
		MaxRequests: e.cfg.BreakerHalfOpenMax,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isCanceled(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[op] = b
	return b
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
