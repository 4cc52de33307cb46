// Package idempotency provides per-key at-most-once execution for command handlers.
//
// A key identifies one logical request. While a request for a key is in flight,
// concurrent calls with the same key wait for its outcome instead of executing
// again. A successful outcome is cached for a TTL and replayed to later calls with
// the same key; failures are never cached, so a retry after an error executes the
// action again.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/flowline/eventflow-go/eventlog"
)

// HeaderName is the conventional request header carrying an idempotency key.
// Transport layers map it into the command's IdempotencyKey field; the guard
// itself only ever sees the key string.
const HeaderName = "Idempotency-Key"

const (
	defaultResultTTL = 24 * time.Hour

	logMsgResultReplayed  = "cached result replayed for idempotency key"
	logMsgActionExecuted  = "action executed for idempotency key"
	logAttrIdempotencyKey = "idempotency_key"
	guardHitsMetric       = "idempotency_replays_total"
	guardExecutionsMetric = "idempotency_executions_total"
)

var (
	// ErrInvalidTTL is returned when a non-positive TTL is configured.
	ErrInvalidTTL = errors.New("result ttl must be positive")

	// ErrNilClock is returned when a nil clock function is configured.
	ErrNilClock = errors.New("clock function must not be nil")

	// ErrUnexpectedResultType is returned by Execute when a key's cached result was
	// produced by an action with a different response type. Keys must not be shared
	// across handlers.
	ErrUnexpectedResultType = errors.New("cached result has unexpected type for idempotency key")
)

// ClockFunc supplies the current time; injectable for expiry tests.
type ClockFunc func() time.Time

type cachedResult struct {
	value     any
	expiresAt time.Time
}

// Guard deduplicates action executions by idempotency key.
//
// Concurrent calls for one key collapse into a single execution via singleflight;
// completed successful results are held in a TTL cache. An empty key opts out of
// deduplication entirely: the action simply runs.
//
// The zero value is not usable; construct with NewGuard.
type Guard struct {
	ttl     time.Duration
	clock   ClockFunc
	flight  singleflight.Group
	mu      sync.Mutex
	results map[string]cachedResult
	logger  eventlog.ContextualLogger
	metrics eventlog.MetricsCollector
}

// Option defines a functional option for configuring the Guard.
type Option func(*Guard) error

// WithTTL sets how long a successful result is replayed for its key.
func WithTTL(ttl time.Duration) Option {
	return func(g *Guard) error {
		if ttl <= 0 {
			return ErrInvalidTTL
		}

		g.ttl = ttl

		return nil
	}
}

// WithClock overrides the time source, mainly for expiry tests.
func WithClock(clock ClockFunc) Option {
	return func(g *Guard) error {
		if clock == nil {
			return ErrNilClock
		}

		g.clock = clock

		return nil
	}
}

// WithContextualLogger sets the logger for replay and execution logging.
func WithContextualLogger(logger eventlog.ContextualLogger) Option {
	return func(g *Guard) error {
		g.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for replay/execution counters.
func WithMetrics(metrics eventlog.MetricsCollector) Option {
	return func(g *Guard) error {
		g.metrics = metrics
		return nil
	}
}

// NewGuard creates a Guard with a default TTL of 24 hours.
func NewGuard(options ...Option) (*Guard, error) {
	g := &Guard{
		ttl:     defaultResultTTL,
		clock:   time.Now,
		results: make(map[string]cachedResult),
	}

	for _, option := range options {
		if err := option(g); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Do runs action at most once per key within the TTL window.
//
// The key alone decides deduplication: a later call with the same key but a
// different payload still gets the first call's cached result. Callers that
// reuse keys across distinct requests get collapsed requests, which is the
// contract working as designed.
//
// Waiting on an in-flight execution respects ctx: a canceled waiter returns
// ctx.Err() while the original execution keeps running to completion with its
// own context.
func (g *Guard) Do(ctx context.Context, key string, action func(ctx context.Context) (any, error)) (any, error) {
	if key == "" {
		return action(ctx)
	}

	if value, found := g.lookup(key); found {
		g.recordReplay(ctx, key)
		return value, nil
	}

	resultCh := g.flight.DoChan(key, func() (any, error) {
		// Another call may have completed and cached between our lookup and
		// this flight winning the key.
		if value, found := g.lookup(key); found {
			return value, nil
		}

		value, actionErr := action(ctx)
		if actionErr != nil {
			return nil, actionErr
		}

		g.store(key, value)
		g.recordExecution(ctx, key)

		return value, nil
	})

	select {
	case result := <-resultCh:
		if result.Err != nil {
			return nil, result.Err
		}

		if result.Shared {
			g.recordReplay(ctx, key)
		}

		return result.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Execute is a typed wrapper around Guard.Do for handlers with concrete response types.
func Execute[T any](ctx context.Context, g *Guard, key string, action func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	value, err := g.Do(ctx, key, func(ctx context.Context) (any, error) {
		return action(ctx)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, ErrUnexpectedResultType
	}

	return typed, nil
}

// lookup returns the cached result for the key if present and not expired.
func (g *Guard) lookup(key string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	result, exists := g.results[key]
	if !exists {
		return nil, false
	}

	if g.clock().After(result.expiresAt) {
		delete(g.results, key)
		return nil, false
	}

	return result.value, true
}

// store caches a successful result and opportunistically purges expired entries.
func (g *Guard) store(key string, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()

	for cachedKey, result := range g.results {
		if now.After(result.expiresAt) {
			delete(g.results, cachedKey)
		}
	}

	g.results[key] = cachedResult{
		value:     value,
		expiresAt: now.Add(g.ttl),
	}
}

func (g *Guard) recordReplay(ctx context.Context, key string) {
	if g.logger != nil {
		g.logger.DebugContext(ctx, logMsgResultReplayed, logAttrIdempotencyKey, key)
	}

	if g.metrics != nil {
		if contextual, ok := g.metrics.(eventlog.ContextualMetricsCollector); ok {
			contextual.IncrementCounterContext(ctx, guardHitsMetric, nil)
		} else {
			g.metrics.IncrementCounter(guardHitsMetric, nil)
		}
	}
}

func (g *Guard) recordExecution(ctx context.Context, key string) {
	if g.logger != nil {
		g.logger.DebugContext(ctx, logMsgActionExecuted, logAttrIdempotencyKey, key)
	}

	if g.metrics != nil {
		if contextual, ok := g.metrics.(eventlog.ContextualMetricsCollector); ok {
			contextual.IncrementCounterContext(ctx, guardExecutionsMetric, nil)
		} else {
			g.metrics.IncrementCounter(guardExecutionsMetric, nil)
		}
	}
}
