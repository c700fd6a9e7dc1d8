package condense

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/bookforge/abridge/internal/providers"
	"github.com/bookforge/abridge/internal/types"
)

// Options configures a Condenser.
type Options struct {
	Client  providers.LLMClient
	Limiter *providers.RateLimiter // optional
	Logger  *slog.Logger

	// Semaphore is the global concurrency cap shared across all units in
	// flight. Required; the pipeline creates exactly one per run.
	Semaphore *semaphore.Weighted

	MinRatioPct   int // 1..100
	MaxRatioPct   int // 1..100, >= MinRatioPct
	MaxChunkSize  int // characters per sub-unit
	MaxRetries    int // length-contract retries per sub-unit
	MinUnitLength int // units below this are passed through unchanged
}

// Condenser condenses one TextUnit at a time: chunk, dispatch, reassemble.
type Condenser struct {
	opts   Options
	pool   *Pool
	logger *slog.Logger
}

// New creates a Condenser.
func New(opts Options) (*Condenser, error) {
	if opts.Semaphore == nil {
		return nil, fmt.Errorf("must provide a shared semaphore")
	}
	if opts.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be positive, got %d", opts.MaxChunkSize)
	}
	if opts.MinRatioPct <= 0 || opts.MinRatioPct > opts.MaxRatioPct || opts.MaxRatioPct > 100 {
		return nil, fmt.Errorf("invalid ratio bounds %d..%d", opts.MinRatioPct, opts.MaxRatioPct)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	worker, err := NewWorker(WorkerConfig{
		Client:      opts.Client,
		Limiter:     opts.Limiter,
		Logger:      logger,
		MinRatioPct: opts.MinRatioPct,
		MaxRetries:  opts.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	return &Condenser{
		opts:   opts,
		pool:   NewPool(worker, opts.Semaphore, logger),
		logger: logger,
	}, nil
}

// CondenseUnit condenses a single TextUnit into a UnitOutcome. Units shorter
// than MinUnitLength are returned unchanged without any external call.
// A non-nil error means the unit was cancelled, not that it degraded;
// degraded chunks surface in the outcome's Errors list.
func (c *Condenser) CondenseUnit(ctx context.Context, unit types.TextUnit) (types.UnitOutcome, error) {
	outcome := types.UnitOutcome{
		Index: unit.Index,
		Title: unit.Title,
		Body:  unit.Body,
	}

	if len(unit.Body) < c.opts.MinUnitLength {
		c.logger.Debug("unit below length floor, passing through",
			"unit", unit.Index, "length", len(unit.Body))
		return outcome, nil
	}

	subs := Split(unit.Index, unit.Body, c.opts.MaxChunkSize, c.opts.MinRatioPct, c.opts.MaxRatioPct)

	results, err := c.pool.Run(ctx, subs)
	if err != nil {
		return types.UnitOutcome{}, err
	}

	outcome.Body = Reassemble(results)
	for _, res := range results {
		if !res.Succeeded {
			outcome.Errors = append(outcome.Errors,
				fmt.Sprintf("unit %d chunk %d/%d: %s", unit.Index, res.ChunkIndex+1, len(subs), res.Err))
		}
	}

	return outcome, nil
}
