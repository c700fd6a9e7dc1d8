package condense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/bookforge/abridge/internal/providers"
)

// Sentinel errors for the condense package.
var (
	// ErrBelowRatioFloor is returned when generated output shrank below the
	// configured minimum ratio.
	ErrBelowRatioFloor = errors.New("output below minimum ratio")

	// ErrEmptyOutput is returned when the model produced no text.
	ErrEmptyOutput = errors.New("empty output from model")
)

// Result is the output of one condense invocation. When Succeeded is false,
// Body holds the best output achieved, or the original sub-unit text if every
// call failed outright; it is never empty for a non-empty input.
type Result struct {
	ChunkIndex int    `json:"chunk_index"`
	Body       string `json:"body"`
	Succeeded  bool   `json:"succeeded"`
	Err        string `json:"error,omitempty"`
}

// WorkerConfig configures a condense worker.
type WorkerConfig struct {
	Client  providers.LLMClient
	Limiter *providers.RateLimiter // optional
	Logger  *slog.Logger

	// MinRatioPct is the acceptance floor: output/input length in percent.
	MinRatioPct int

	// MaxRetries is the number of length-contract retries after the first
	// attempt. 0 means a single attempt.
	MaxRetries int

	// RetryDelay is the base delay between attempts (default: client's).
	RetryDelay time.Duration
}

// Worker performs single-chunk condensation with escalating retries.
type Worker struct {
	client      providers.LLMClient
	limiter     *providers.RateLimiter
	logger      *slog.Logger
	minRatioPct int
	maxRetries  int
	retryDelay  time.Duration
}

// NewWorker creates a condense worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("must provide an LLM client")
	}
	if cfg.MinRatioPct <= 0 {
		return nil, fmt.Errorf("min ratio must be positive, got %d", cfg.MinRatioPct)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	delay := cfg.RetryDelay
	if delay == 0 {
		delay = cfg.Client.RetryDelayBase()
	}
	if delay == 0 {
		delay = time.Second
	}

	return &Worker{
		client:      cfg.Client,
		limiter:     cfg.Limiter,
		logger:      logger.With("worker", cfg.Client.Name()),
		minRatioPct: cfg.MinRatioPct,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  delay,
	}, nil
}

// Condense produces a Result for one SubUnit. The attempt loop covers both
// transport failures and length-contract violations; a violation escalates
// the warning tier on the next attempt. Cancellation is honored before every
// attempt. The original text is always the terminal fallback, never an empty
// string, and a panic anywhere in an attempt degrades the result instead of
// crashing the pool.
func (w *Worker) Condense(ctx context.Context, sub SubUnit) (result Result) {
	result = Result{ChunkIndex: sub.ChunkIndex, Body: sub.Body}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("condense panicked",
				"parent", sub.ParentIndex, "chunk", sub.ChunkIndex, "panic", r)
			result = Result{
				ChunkIndex: sub.ChunkIndex,
				Body:       sub.Body,
				Err:        fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	if len(sub.Body) == 0 {
		result.Succeeded = true
		return result
	}

	var (
		attempt  int
		misses   int // length-contract misses; transport errors do not count
		accepted string
		bestShot string // last non-empty output, kept when all attempts miss the floor
	)

	err := retry.Do(
		func() error {
			attempt++
			if err := ctx.Err(); err != nil {
				return retry.Unrecoverable(err)
			}

			tier := TierForMisses(misses)
			req := &providers.ChatRequest{
				Messages: []providers.Message{
					{Role: "system", Content: SystemPrompt(sub.Target, tier)},
					{Role: "user", Content: UserPrompt(sub.Body, sub.Target)},
				},
			}

			if w.limiter != nil {
				if err := w.limiter.Wait(ctx); err != nil {
					return retry.Unrecoverable(err)
				}
			}

			res, err := w.client.Chat(ctx, req)
			if err != nil {
				if ctx.Err() != nil {
					return retry.Unrecoverable(err)
				}
				return fmt.Errorf("generation failed: %w", err)
			}

			out := strings.TrimSpace(res.Content)
			if out == "" {
				misses++
				return ErrEmptyOutput
			}
			bestShot = out

			if r := RatioPct(len(out), len(sub.Body)); r < w.minRatioPct {
				misses++
				w.logger.Debug("output below ratio floor",
					"parent", sub.ParentIndex, "chunk", sub.ChunkIndex,
					"ratio", r, "floor", w.minRatioPct, "tier", tier.String())
				return fmt.Errorf("%w: got %d%%, need %d%%", ErrBelowRatioFloor, r, w.minRatioPct)
			}

			accepted = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(w.maxRetries)+1),
		retry.Delay(w.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)

	if err == nil {
		result.Body = accepted
		result.Succeeded = true
		w.logger.Debug("chunk condensed",
			"parent", sub.ParentIndex, "chunk", sub.ChunkIndex, "attempts", attempt)
		return result
	}

	result.Err = err.Error()
	if errors.Is(err, ErrBelowRatioFloor) && bestShot != "" {
		// Length contract missed on every attempt: keep the best output
		// rather than dropping the shrinkage entirely.
		result.Body = bestShot
	}
	w.logger.Warn("chunk degraded to fallback",
		"parent", sub.ParentIndex, "chunk", sub.ChunkIndex,
		"attempts", attempt, "error", err)
	return result
}

// RatioPct computes the achieved shrink ratio as an integer percentage.
// An empty input counts as fully preserved.
func RatioPct(outputLen, inputLen int) int {
	if inputLen == 0 {
		return 100
	}
	return outputLen * 100 / inputLen
}
