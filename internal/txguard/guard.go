package txguard

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/supportdesk/ticketflow/internal/repository"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

// Transactor is the slice of the store the guard needs.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
	IsTransient(err error) bool
}

// Observer receives retry telemetry. Metrics implements it.
type Observer interface {
	TxRetried()
	TxRetryExhausted()
}

// Policy bounds the transient-contention retry loop.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy is five attempts, 20ms base, 500ms cap.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: 20 * time.Millisecond, MaxDelay: 500 * time.Millisecond}
}

// Backoff returns min(base*2^attempt, cap), without jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if delay >= p.MaxDelay {
			break
		}
		delay *= 2
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Guard wraps units of work in a transaction and retries them only on
// transient storage contention.
type Guard struct {
	store    Transactor
	policy   Policy
	logger   *zap.Logger
	observer Observer
	jitter   func(n int64) int64
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes a Guard.
type Option func(*Guard)

// WithObserver reports retries to o.
func WithObserver(o Observer) Option {
	return func(g *Guard) { g.observer = o }
}

// WithSleep replaces the delay function; tests use it to avoid waiting.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Guard) { g.sleep = fn }
}

// WithJitter replaces the jitter source, which must return a value in [0, n).
func WithJitter(fn func(n int64) int64) Option {
	return func(g *Guard) { g.jitter = fn }
}

// New builds a Guard over store.
func New(store Transactor, policy Policy, logger *zap.Logger, opts ...Option) *Guard {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultPolicy().BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultPolicy().MaxDelay
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = policy.BaseDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{
		store:  store,
		policy: policy,
		logger: logger,
		jitter: rand.Int63n,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the effective retry policy.
func (g *Guard) Policy() Policy {
	return g.policy
}

// Run executes fn inside a transaction. Errors fn returns itself (CONFLICT,
// FORBIDDEN and the like) propagate at once; only errors the store reports
// as transient start a new attempt. A spent budget surfaces as
// INTERNAL_ERROR, never as CONFLICT.
func (g *Guard) Run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < g.policy.MaxAttempts; attempt++ {
		err := g.store.WithinTx(ctx, fn)
		if err == nil {
			return nil
		}
		if apperrors.IsDomainError(err) || !g.store.IsTransient(err) {
			return err
		}
		lastErr = err
		if attempt == g.policy.MaxAttempts-1 {
			break
		}

		delay := g.delay(attempt)
		g.logger.Warn("transient storage contention; retrying transaction",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if g.observer != nil {
			g.observer.TxRetried()
		}
		if err := g.sleep(ctx, delay); err != nil {
			return apperrors.NewInternalError(fmt.Errorf("transaction retry interrupted: %w", err))
		}
	}

	if g.observer != nil {
		g.observer.TxRetryExhausted()
	}
	g.logger.Error("transaction retry budget exhausted",
		zap.Int("attempts", g.policy.MaxAttempts),
		zap.Error(lastErr))
	return apperrors.NewInternalError(fmt.Errorf("transaction failed after %d attempts: %w", g.policy.MaxAttempts, lastErr))
}

func (g *Guard) delay(attempt int) time.Duration {
	delay := g.policy.Backoff(attempt)
	if base := int64(g.policy.BaseDelay); base > 0 {
		delay += time.Duration(g.jitter(base))
	}
	return delay
}

// ExpectOne turns the affected-row count of a conditional write into the
// engine's compare-and-swap verdict.
func ExpectOne(affected int64) error {
	if affected != 1 {
		return apperrors.NewConflict("ticket was modified concurrently; reload and retry", nil)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
