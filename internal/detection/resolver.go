package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/devintruefi/91825truefi-sub000/internal/cache"
	"github.com/devintruefi/91825truefi-sub000/internal/log"
	"github.com/devintruefi/91825truefi-sub000/internal/metrics"
	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
)

const (
	DefaultTimeout   = 3 * time.Second
	DefaultTTL       = 15 * time.Minute
	defaultCacheSize = 1024
)

// Resolver fetches signals from a Provider with a hard deadline. Concurrent
// requests for one user share a single fetch and successful results are
// cached for the TTL. Failures never reach the caller: they are logged and
// whatever was fetched in time is returned.
type Resolver struct {
	provider Provider
	name     string
	timeout  time.Duration
	ttl      time.Duration
	now      func() time.Time
	logger   *log.Logger
	cache    *cache.LRUCache[onboarding.DetectedSignals]
	group    singleflight.Group
}

type ResolverOption func(*Resolver)

func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.timeout = d }
}

func WithTTL(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.ttl = d }
}

func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

func WithLogger(l *log.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// WithName sets the provider label used in metrics and logs.
func WithName(name string) ResolverOption {
	return func(r *Resolver) { r.name = name }
}

func NewResolver(p Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		provider: p,
		name:     "none",
		timeout:  DefaultTimeout,
		ttl:      DefaultTTL,
		now:      time.Now,
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.provider == nil {
		r.provider = None{}
	}
	r.logger = r.logger.WithComponent(log.ComponentDetection)
	r.cache = cache.NewLRUCache[onboarding.DetectedSignals](defaultCacheSize, r.ttl, cache.WithClock(r.now))
	return r
}

// TTL is how long resolved signals stay fresh.
func (r *Resolver) TTL() time.Duration {
	return r.ttl
}

// Cache exposes the result cache so a janitor can sweep it.
func (r *Resolver) Cache() cache.Cleaner {
	return r.cache
}

// Signals returns the detected signals for userID. It never returns nil.
func (r *Resolver) Signals(ctx context.Context, userID string) *onboarding.DetectedSignals {
	if sig, ok := r.cache.Get(userID); ok {
		metrics.RecordDetection(r.name, "cached", 0)
		return sig.Clone()
	}

	start := time.Now()
	v, err, _ := r.group.Do(userID, func() (any, error) {
		// Detached so one caller's cancellation does not fail the others
		// waiting on the same fetch; the deadline still applies.
		return r.fetch(context.WithoutCancel(ctx), userID)
	})
	sig := v.(onboarding.DetectedSignals)

	if err != nil {
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.RecordDetection(r.name, status, time.Since(start))
		r.logger.WarnContext(ctx, "Detection degraded, falling back to manual entry",
			log.FieldUserID, userID,
			log.FieldBackend, r.name,
			log.FieldErrorType, status,
			log.FieldError, err.Error())
		sig.Degraded = true
		return sig.Clone()
	}

	r.cache.Set(userID, sig)
	metrics.RecordDetection(r.name, "success", time.Since(start))
	return sig.Clone()
}

// Invalidate drops the cached signals for userID.
func (r *Resolver) Invalidate(userID string) {
	r.cache.Delete(userID)
}

type fetchResult struct {
	sig onboarding.DetectedSignals
	err error
}

func (r *Resolver) fetch(ctx context.Context, userID string) (onboarding.DetectedSignals, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		var (
			sig onboarding.DetectedSignals
			g   errgroup.Group
		)
		// Each goroutine owns one field; a failure in one leaves the others.
		g.Go(func() error {
			income, err := r.provider.DetectedIncome(ctx, userID)
			if err != nil {
				return fmt.Errorf("detect income: %w", err)
			}
			sig.Income = income
			return nil
		})
		g.Go(func() error {
			expenses, err := r.provider.DetectedExpenses(ctx, userID)
			if err != nil {
				return fmt.Errorf("detect expenses: %w", err)
			}
			sig.Expenses = expenses
			return nil
		})
		g.Go(func() error {
			linked, err := r.provider.AccountsLinked(ctx, userID)
			if err != nil {
				return fmt.Errorf("check linked accounts: %w", err)
			}
			sig.AccountsLinked = linked
			return nil
		})
		err := g.Wait()
		sig.FetchedAt = r.now()
		done <- fetchResult{sig: sig, err: err}
	}()

	select {
	case res := <-done:
		return res.sig, res.err
	case <-ctx.Done():
		return onboarding.DetectedSignals{FetchedAt: r.now()}, ctx.Err()
	}
}
