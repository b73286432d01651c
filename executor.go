package booru

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/hikawa-dev/booru/cache"
	"github.com/hikawa-dev/booru/ratelimit"
)

// RetryConfig bounds the retry loop around a single fetch.
type RetryConfig struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts uint
	// BaseDelay is the wait before the first retry; each subsequent wait
	// doubles up to MaxDelay.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// Jitter adds up to this much random extra delay per wait. Zero
	// disables jitter.
	Jitter time.Duration
}

// DefaultRetry returns the retry policy used when none is configured:
// three attempts with exponential backoff from 100ms capped at 5s.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Executor runs queries through the shared rate limiter, cache and retry
// policy. One executor is intended to be shared by every builder talking
// to the same process-wide budget; its zero configuration applies default
// rate limiting and retry with no cache.
type Executor struct {
	limiter *ratelimit.Limiter
	store   *cache.Store
	retry   RetryConfig
	logger  *slog.Logger
}

// ExecOption configures an Executor.
type ExecOption func(*Executor)

// WithRateLimiter replaces the default limiter of 2 permits per second.
func WithRateLimiter(l *ratelimit.Limiter) ExecOption {
	return func(e *Executor) { e.limiter = l }
}

// WithCache enables response caching. Without it every query hits the
// network.
func WithCache(s *cache.Store) ExecOption {
	return func(e *Executor) { e.store = s }
}

// WithRetry replaces the default retry policy.
func WithRetry(cfg RetryConfig) ExecOption {
	return func(e *Executor) { e.retry = cfg }
}

// WithLogger sets the logger for request tracing. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) ExecOption {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor creates an executor.
func NewExecutor(opts ...ExecOption) *Executor {
	e := &Executor{
		limiter: ratelimit.Default(),
		retry:   DefaultRetry(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retry.MaxAttempts == 0 {
		e.retry.MaxAttempts = 1
	}
	return e
}

// Close releases the executor's cache, if any.
func (e *Executor) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Execute runs a frozen query against its site adapter.
//
// The sequence is fixed: cache lookup first (a hit returns immediately and
// consumes no rate-limit permit), then a single permit acquisition, then
// the fetch under the retry policy. Only transient failures are retried;
// successful responses are cached, failures never are.
func Execute[P Post](ctx context.Context, e *Executor, adapter Adapter[P], q *Query) ([]P, error) {
	key := q.CacheKey()
	if e.store != nil {
		if posts, ok := cache.Get[[]P](ctx, e.store, key); ok {
			e.logger.DebugContext(ctx, "cache hit", "site", q.Site(), "page", q.Page())
			return posts, nil
		}
	}

	if err := e.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	posts, err := withRetry(ctx, e, q.Site(), func() ([]P, error) {
		return adapter.Fetch(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		cache.Insert(ctx, e.store, key, posts)
	}
	return posts, nil
}

// ExecuteByID fetches a single post by ID with the same rate limiting,
// caching and retry behavior as a search.
func ExecuteByID[P Post](ctx context.Context, e *Executor, adapter Adapter[P], id uint64) (P, error) {
	var zero P
	key := hashKey(fmt.Sprintf("%s:id=%d", adapter.Name(), id))
	if e.store != nil {
		if post, ok := cache.Get[P](ctx, e.store, key); ok {
			e.logger.DebugContext(ctx, "cache hit", "site", adapter.Name(), "id", id)
			return post, nil
		}
	}

	if err := e.limiter.Acquire(ctx); err != nil {
		return zero, fmt.Errorf("rate limit wait: %w", err)
	}

	post, err := withRetry(ctx, e, adapter.Name(), func() (P, error) {
		return adapter.FetchByID(ctx, id)
	})
	if err != nil {
		return zero, err
	}

	if e.store != nil {
		cache.Insert(ctx, e.store, key, post)
	}
	return post, nil
}

func withRetry[T any](ctx context.Context, e *Executor, site string, fetch func() (T, error)) (T, error) {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(e.retry.MaxAttempts),
		retry.Delay(e.retry.BaseDelay),
		retry.MaxDelay(e.retry.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsTransient),
		retry.OnRetry(func(n uint, err error) {
			e.logger.WarnContext(ctx, "retrying fetch",
				"site", site, "attempt", n+1, "error", err)
		}),
	}
	if e.retry.Jitter > 0 {
		opts = append(opts,
			retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
			retry.MaxJitter(e.retry.Jitter),
		)
	}
	return retry.DoWithData(fetch, opts...)
}
