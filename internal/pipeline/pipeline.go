// Package pipeline orchestrates a full condensation run: split the source
// into units, condense them concurrently, and merge the outcomes into the
// output document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bookforge/abridge/internal/codec"
	"github.com/bookforge/abridge/internal/home"
	"github.com/bookforge/abridge/internal/types"
)

// State is the lifecycle phase of a pipeline run.
type State string

const (
	StateIdle       State = "idle"
	StateSplitting  State = "splitting"
	StateCondensing State = "condensing"
	StateMerging    State = "merging"
	StateDone       State = "done"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// UnitCondenser condenses one text unit. A returned error means the unit was
// cancelled; degraded text surfaces in the outcome instead.
type UnitCondenser interface {
	CondenseUnit(ctx context.Context, unit types.TextUnit) (types.UnitOutcome, error)
}

// ProgressFunc receives serialized progress updates. Percent is 0..100 over
// the whole run, not per phase.
type ProgressFunc func(percent int, message string)

// Options configures a DocumentPipeline.
type Options struct {
	Reader    codec.Reader
	Writer    codec.Writer
	Condenser UnitCondenser

	// Home enables the per-unit artifact cache. Optional; with no home
	// directory every run condenses from scratch.
	Home *home.Dir

	Logger   *slog.Logger
	Progress ProgressFunc

	// MaxUnitWorkers bounds how many units are in flight at once. Chunk
	// concurrency within a unit is capped separately by the condenser's
	// shared semaphore.
	MaxUnitWorkers int

	// ForceRegenerate ignores cached unit artifacts.
	ForceRegenerate bool
}

// DocumentPipeline runs one document end to end. A pipeline is single-use:
// create a new one per run.
type DocumentPipeline struct {
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	state State
	runID string
}

// New creates a DocumentPipeline.
func New(opts Options) (*DocumentPipeline, error) {
	if opts.Reader == nil || opts.Writer == nil {
		return nil, fmt.Errorf("must provide a reader and a writer")
	}
	if opts.Condenser == nil {
		return nil, fmt.Errorf("must provide a condenser")
	}
	if opts.MaxUnitWorkers <= 0 {
		opts.MaxUnitWorkers = 2
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DocumentPipeline{
		opts:   opts,
		logger: logger,
		state:  StateIdle,
	}, nil
}

// State returns the current lifecycle phase.
func (p *DocumentPipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// RunID returns the identifier of the current or last run.
func (p *DocumentPipeline) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

// setState transitions the pipeline and emits progress. The mutex serializes
// progress callbacks, so sinks never need their own locking.
func (p *DocumentPipeline) setState(state State, percent int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	if p.opts.Progress != nil {
		p.opts.Progress(percent, message)
	}
}

func (p *DocumentPipeline) progress(percent int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opts.Progress != nil {
		p.opts.Progress(percent, message)
	}
}

// Run executes the pipeline against one source document. The returned report
// is valid even on error; its counters cover whatever completed.
func (p *DocumentPipeline) Run(ctx context.Context, sourcePath, outPath string) (types.Report, error) {
	runID := uuid.New().String()
	p.mu.Lock()
	p.runID = runID
	p.mu.Unlock()

	report := types.Report{RunID: runID}
	logger := p.logger.With("run_id", runID)

	p.setState(StateSplitting, 0, "reading source")
	units, err := p.opts.Reader.Split(ctx, sourcePath)
	if err != nil {
		p.setState(p.terminalState(ctx, err), 0, "split failed")
		return report, fmt.Errorf("failed to split source: %w", err)
	}
	if len(units) == 0 {
		p.setState(StateFailed, 0, "no units extracted")
		return report, fmt.Errorf("failed to split source: %w", codec.ErrNoUnits)
	}
	report.Total = len(units)
	logger.Info("source split into units", "units", len(units))

	var checksum string
	if p.opts.Home != nil {
		checksum, err = SourceChecksum(sourcePath)
		if err != nil {
			p.setState(StateFailed, 0, "checksum failed")
			return report, fmt.Errorf("failed to checksum source: %w", err)
		}
		if err := p.opts.Home.EnsureDocumentCacheDir(checksum); err != nil {
			p.setState(StateFailed, 0, "cache setup failed")
			return report, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	p.setState(StateCondensing, 5, fmt.Sprintf("condensing %d units", len(units)))

	outcomes := make([]types.UnitOutcome, len(units))
	var finished, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxUnitWorkers)
	for i, unit := range units {
		g.Go(func() error {
			if body, ok := p.cachedArtifact(checksum, unit.Index); ok {
				outcomes[i] = types.UnitOutcome{Index: unit.Index, Title: unit.Title, Body: body}
				skipped.Add(1)
				n := finished.Add(1)
				p.progress(condensePercent(n, len(units)), fmt.Sprintf("unit %d cached", unit.Index))
				return nil
			}

			outcome, err := p.opts.Condenser.CondenseUnit(gctx, unit)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			p.storeArtifact(checksum, outcome, logger)

			n := finished.Add(1)
			p.progress(condensePercent(n, len(units)), fmt.Sprintf("unit %d condensed", unit.Index))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		state := p.terminalState(ctx, err)
		p.setState(state, condensePercent(finished.Load(), len(units)), "condensing aborted")
		return report, fmt.Errorf("condensing aborted: %w", err)
	}

	report.Skipped = int(skipped.Load())
	for _, outcome := range outcomes {
		if outcome.Degraded() {
			report.Failed++
			report.Errors = append(report.Errors, outcome.Errors...)
		} else {
			report.Succeeded++
		}
	}

	p.setState(StateMerging, 95, "writing output")
	if err := p.opts.Writer.Merge(ctx, outcomes, outPath); err != nil {
		p.setState(p.terminalState(ctx, err), 95, "merge failed")
		return report, fmt.Errorf("failed to write output: %w", err)
	}

	p.setState(StateDone, 100, "done")
	logger.Info("run complete",
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

// terminalState distinguishes a cancelled run from a failed one.
func (p *DocumentPipeline) terminalState(ctx context.Context, err error) State {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StateCancelled
	}
	return StateFailed
}

// condensePercent maps unit completion onto the 5..90 band of the run.
func condensePercent(done int64, total int) int {
	if total == 0 {
		return 90
	}
	return 5 + int(done*85/int64(total))
}
