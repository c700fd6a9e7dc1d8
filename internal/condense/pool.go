package condense

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs a Worker over the sub-units of one unit. Concurrency is bounded
// by a semaphore shared across every pool in flight, so unit-level fan-out
// can never multiply the configured worker cap.
type Pool struct {
	worker *Worker
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewPool creates a pool dispatching to worker under the shared cap.
func NewPool(worker *Worker, sem *semaphore.Weighted, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{worker: worker, sem: sem, logger: logger}
}

// Run condenses all sub-units and returns one Result per sub-unit, in
// completion order. Individual failures are captured in their Result and do
// not stop the pool. Cancellation is checked before each dispatch; sub-units
// never dispatched emit no result, and an observed cancellation discards all
// partial results and returns ctx.Err() so callers report the unit as
// cancelled, never as partial success.
func (p *Pool) Run(ctx context.Context, subs []SubUnit) ([]Result, error) {
	results := make(chan Result, len(subs))
	var wg sync.WaitGroup

	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		if err := p.sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(su SubUnit) {
			defer wg.Done()
			defer p.sem.Release(1)
			results <- p.worker.Condense(ctx, su)
		}(sub)
	}

	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		p.logger.Info("pool cancelled, discarding in-flight results", "sub_units", len(subs))
		return nil, err
	}

	collected := make([]Result, 0, len(subs))
	for res := range results {
		collected = append(collected, res)
	}
	return collected, nil
}
