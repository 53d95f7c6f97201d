package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BatchConfig holds batch fetcher configuration.
type BatchConfig struct {
	// MaxConcurrency is the maximum number of parallel requests.
	MaxConcurrency int

	// Timeout bounds each fetch. Zero leaves it to the caller's context.
	Timeout time.Duration

	Logger zerolog.Logger
}

// DefaultBatchConfig returns conservative defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		Timeout:        30 * time.Second,
		Logger:         zerolog.Nop(),
	}
}

// BatchResult is the outcome for one key.
type BatchResult[K comparable, T any] struct {
	Key   K
	Value T
	Err   error
}

// FetchAll fetches every key with a bounded worker pool. Results are
// returned in key order. Failed keys carry their error; the returned error
// reports how many failed and wraps the first failure in key order.
func FetchAll[K comparable, T any](ctx context.Context, keys []K, fetch func(context.Context, K) (T, error), cfg BatchConfig) ([]BatchResult[K, T], error) {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	workers := min(cfg.MaxConcurrency, len(keys))

	results := make([]BatchResult[K, T], len(keys))
	queue := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processed := 0
			for i := range queue {
				results[i] = fetchOne(ctx, keys[i], fetch, cfg.Timeout)
				processed++
			}
			cfg.Logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker completed")
		}(w)
	}

	start := time.Now()
enqueue:
	for i := range keys {
		select {
		case queue <- i:
		case <-ctx.Done():
			for j := i; j < len(keys); j++ {
				results[j] = BatchResult[K, T]{Key: keys[j], Err: ctx.Err()}
			}
			break enqueue
		}
	}
	close(queue)
	wg.Wait()

	failed := 0
	var first error
	for _, r := range results {
		if r.Err != nil {
			failed++
			if first == nil {
				first = r.Err
			}
		}
	}

	cfg.Logger.Debug().
		Int("keys", len(keys)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	if first != nil {
		return results, fmt.Errorf("batch fetch: %d of %d failed: %w", failed, len(keys), first)
	}
	return results, nil
}

func fetchOne[K comparable, T any](ctx context.Context, key K, fetch func(context.Context, K) (T, error), timeout time.Duration) BatchResult[K, T] {
	if err := ctx.Err(); err != nil {
		return BatchResult[K, T]{Key: key, Err: err}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	v, err := fetch(ctx, key)
	return BatchResult[K, T]{Key: key, Value: v, Err: err}
}
