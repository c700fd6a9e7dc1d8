package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bookforge/abridge/internal/codec"
	"github.com/bookforge/abridge/internal/home"
	"github.com/bookforge/abridge/internal/types"
)

type stubReader struct {
	units []types.TextUnit
	err   error
}

func (r *stubReader) Split(ctx context.Context, path string) ([]types.TextUnit, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.units, nil
}

type stubWriter struct {
	mu    sync.Mutex
	calls int
	got   []types.UnitOutcome
	err   error
}

func (w *stubWriter) Merge(ctx context.Context, units []types.UnitOutcome, outPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.got = units
	return w.err
}

type stubCondenser struct {
	calls atomic.Int64
	fn    func(ctx context.Context, unit types.TextUnit) (types.UnitOutcome, error)
}

func (c *stubCondenser) CondenseUnit(ctx context.Context, unit types.TextUnit) (types.UnitOutcome, error) {
	c.calls.Add(1)
	if c.fn != nil {
		return c.fn(ctx, unit)
	}
	return types.UnitOutcome{
		Index: unit.Index,
		Title: unit.Title,
		Body:  unit.Body[:len(unit.Body)/2],
	}, nil
}

func threeUnits() []types.TextUnit {
	units := make([]types.TextUnit, 3)
	for i := range units {
		units[i] = types.TextUnit{
			Index: i,
			Title: fmt.Sprintf("Chapter %d", i+1),
			Body:  strings.Repeat("s", 1000),
		}
	}
	return units
}

func TestRunHappyPath(t *testing.T) {
	reader := &stubReader{units: threeUnits()}
	writer := &stubWriter{}
	condenser := &stubCondenser{}

	var (
		mu       sync.Mutex
		percents []int
	)
	p, err := New(Options{
		Reader:    reader,
		Writer:    writer,
		Condenser: condenser,
		Progress: func(percent int, message string) {
			mu.Lock()
			percents = append(percents, percent)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report, err := p.Run(context.Background(), "src.txt", "out.txt")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if p.State() != StateDone {
		t.Errorf("state = %s, want done", p.State())
	}
	if report.Total != 3 || report.Succeeded != 3 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.RunID == "" {
		t.Error("report missing run id")
	}
	if report.Degraded() {
		t.Error("clean run must not be degraded")
	}

	if writer.calls != 1 || len(writer.got) != 3 {
		t.Fatalf("writer calls = %d, outcomes = %d", writer.calls, len(writer.got))
	}
	for i, outcome := range writer.got {
		if outcome.Index != i {
			t.Errorf("outcome %d has index %d: unit order must survive concurrency", i, outcome.Index)
		}
		if len(outcome.Body) != 500 {
			t.Errorf("outcome %d body length = %d, want 500", i, len(outcome.Body))
		}
	}

	if len(percents) == 0 || percents[0] != 0 || percents[len(percents)-1] != 100 {
		t.Errorf("progress percents = %v, want 0 first and 100 last", percents)
	}
}

func TestRunCancelledBeforeMerge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	reader := &stubReader{units: threeUnits()}
	writer := &stubWriter{}
	condenser := &stubCondenser{
		fn: func(ctx context.Context, unit types.TextUnit) (types.UnitOutcome, error) {
			cancel()
			<-ctx.Done()
			return types.UnitOutcome{}, ctx.Err()
		},
	}

	p, err := New(Options{Reader: reader, Writer: writer, Condenser: condenser, MaxUnitWorkers: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := p.Run(ctx, "src.txt", "out.txt"); err == nil {
		t.Fatal("cancelled run must return an error")
	}
	if p.State() != StateCancelled {
		t.Errorf("state = %s, want cancelled", p.State())
	}
	if writer.calls != 0 {
		t.Error("cancelled run must not write output")
	}
}

func TestRunDegradedUnitsStillMerge(t *testing.T) {
	reader := &stubReader{units: threeUnits()}
	writer := &stubWriter{}
	condenser := &stubCondenser{
		fn: func(ctx context.Context, unit types.TextUnit) (types.UnitOutcome, error) {
			outcome := types.UnitOutcome{Index: unit.Index, Title: unit.Title, Body: unit.Body}
			if unit.Index == 1 {
				outcome.Errors = []string{"unit 1 chunk 1/2: generation failed"}
			}
			return outcome, nil
		},
	}

	p, err := New(Options{Reader: reader, Writer: writer, Condenser: condenser})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report, err := p.Run(context.Background(), "src.txt", "out.txt")
	if err != nil {
		t.Fatalf("degraded units must not fail the run: %v", err)
	}

	if p.State() != StateDone {
		t.Errorf("state = %s, want done", p.State())
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if !report.Degraded() || len(report.Errors) != 1 {
		t.Errorf("report must carry the degraded unit's errors: %+v", report)
	}
	if writer.calls != 1 {
		t.Error("output must still be written when units degrade")
	}
}

func TestRunSplitFailure(t *testing.T) {
	reader := &stubReader{err: errors.New("unreadable")}
	p, err := New(Options{Reader: reader, Writer: &stubWriter{}, Condenser: &stubCondenser{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := p.Run(context.Background(), "src.txt", "out.txt"); err == nil {
		t.Fatal("split failure must fail the run")
	}
	if p.State() != StateFailed {
		t.Errorf("state = %s, want failed", p.State())
	}
}

func TestRunFailsOnZeroUnits(t *testing.T) {
	reader := &stubReader{units: []types.TextUnit{}}
	writer := &stubWriter{}
	condenser := &stubCondenser{}

	p, err := New(Options{Reader: reader, Writer: writer, Condenser: condenser})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := p.Run(context.Background(), "src.txt", "out.txt"); !errors.Is(err, codec.ErrNoUnits) {
		t.Fatalf("error = %v, want ErrNoUnits", err)
	}
	if p.State() != StateFailed {
		t.Errorf("state = %s, want failed", p.State())
	}
	if condenser.calls.Load() != 0 {
		t.Error("nothing to condense when the source yields no units")
	}
	if writer.calls != 0 {
		t.Error("empty split must not write output")
	}
}

func TestRunMergeFailure(t *testing.T) {
	reader := &stubReader{units: threeUnits()}
	writer := &stubWriter{err: errors.New("disk full")}
	p, err := New(Options{Reader: reader, Writer: writer, Condenser: &stubCondenser{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := p.Run(context.Background(), "src.txt", "out.txt"); err == nil {
		t.Fatal("merge failure must fail the run")
	}
	if p.State() != StateFailed {
		t.Errorf("state = %s, want failed", p.State())
	}
}

func testHome(t *testing.T) *home.Dir {
	t.Helper()
	dir, err := home.New(filepath.Join(t.TempDir(), ".abridge"))
	if err != nil {
		t.Fatal(err)
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	return dir
}

func testSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.txt")
	if err := os.WriteFile(path, []byte("source content"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunReusesCachedArtifacts(t *testing.T) {
	dir := testHome(t)
	src := testSource(t)

	newPipeline := func(condenser *stubCondenser, force bool) *DocumentPipeline {
		p, err := New(Options{
			Reader:          &stubReader{units: threeUnits()},
			Writer:          &stubWriter{},
			Condenser:       condenser,
			Home:            dir,
			ForceRegenerate: force,
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return p
	}

	first := &stubCondenser{}
	if _, err := newPipeline(first, false).Run(context.Background(), src, "out.txt"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.calls.Load() != 3 {
		t.Fatalf("first run condensed %d units, want 3", first.calls.Load())
	}

	second := &stubCondenser{}
	report, err := newPipeline(second, false).Run(context.Background(), src, "out.txt")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.calls.Load() != 0 {
		t.Errorf("second run condensed %d units, want 0 (all cached)", second.calls.Load())
	}
	if report.Skipped != 3 || report.Succeeded != 3 {
		t.Errorf("report = %+v, want 3 skipped", report)
	}

	forced := &stubCondenser{}
	if _, err := newPipeline(forced, true).Run(context.Background(), src, "out.txt"); err != nil {
		t.Fatalf("forced run failed: %v", err)
	}
	if forced.calls.Load() != 3 {
		t.Errorf("forced run condensed %d units, want 3", forced.calls.Load())
	}
}

func TestRunDoesNotCacheDegradedUnits(t *testing.T) {
	dir := testHome(t)
	src := testSource(t)

	degradeUnitOne := &stubCondenser{
		fn: func(ctx context.Context, unit types.TextUnit) (types.UnitOutcome, error) {
			outcome := types.UnitOutcome{Index: unit.Index, Title: unit.Title, Body: unit.Body}
			if unit.Index == 1 {
				outcome.Errors = []string{"degraded"}
			}
			return outcome, nil
		},
	}

	run := func(c *stubCondenser) types.Report {
		p, err := New(Options{
			Reader:    &stubReader{units: threeUnits()},
			Writer:    &stubWriter{},
			Condenser: c,
			Home:      dir,
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		report, err := p.Run(context.Background(), src, "out.txt")
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return report
	}

	run(degradeUnitOne)

	// Only the degraded unit should be recondensed.
	retry := &stubCondenser{}
	report := run(retry)
	if retry.calls.Load() != 1 {
		t.Errorf("retry run condensed %d units, want 1", retry.calls.Load())
	}
	if report.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", report.Skipped)
	}
}

func TestSourceChecksum(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(a, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	sum1, err := SourceChecksum(a)
	if err != nil {
		t.Fatalf("SourceChecksum failed: %v", err)
	}
	sum2, err := SourceChecksum(a)
	if err != nil {
		t.Fatal(err)
	}
	if sum1 != sum2 {
		t.Error("checksum must be deterministic")
	}

	if err := os.WriteFile(a, []byte("hello!"), 0644); err != nil {
		t.Fatal(err)
	}
	sum3, err := SourceChecksum(a)
	if err != nil {
		t.Fatal(err)
	}
	if sum3 == sum1 {
		t.Error("changed content must change the checksum")
	}

	// Directory checksums cover file names and contents.
	sub := filepath.Join(dir, "book")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "0000_one.txt"), []byte("ch1"), 0644); err != nil {
		t.Fatal(err)
	}
	dirSum1, err := SourceChecksum(sub)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "0001_two.txt"), []byte("ch2"), 0644); err != nil {
		t.Fatal(err)
	}
	dirSum2, err := SourceChecksum(sub)
	if err != nil {
		t.Fatal(err)
	}
	if dirSum1 == dirSum2 {
		t.Error("added file must change the directory checksum")
	}
}
