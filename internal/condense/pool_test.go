package condense

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bookforge/abridge/internal/providers"
)

func newTestPool(t *testing.T, client providers.LLMClient, cap int64) *Pool {
	t.Helper()
	w, err := NewWorker(WorkerConfig{Client: client, MinRatioPct: 30, MaxRetries: 0})
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}
	return NewPool(w, semaphore.NewWeighted(cap), nil)
}

func makeSubUnits(n, size int) []SubUnit {
	return Split(0, strings.Repeat("s", n*size), size, 30, 50)
}

func TestPoolRunCompletesAllSubUnits(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = strings.Repeat("x", 400) // 40% of 1000

	pool := newTestPool(t, mock, 3)
	subs := makeSubUnits(10, 1000)

	results, err := pool.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != len(subs) {
		t.Fatalf("got %d results, want %d", len(results), len(subs))
	}

	seen := make(map[int]bool)
	for _, res := range results {
		if !res.Succeeded {
			t.Errorf("chunk %d degraded: %s", res.ChunkIndex, res.Err)
		}
		if seen[res.ChunkIndex] {
			t.Errorf("duplicate result for chunk %d", res.ChunkIndex)
		}
		seen[res.ChunkIndex] = true
	}
}

func TestPoolFailuresDoNotStopDispatch(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ShouldFail = true

	pool := newTestPool(t, mock, 3)
	subs := makeSubUnits(5, 1000)

	results, err := pool.Run(context.Background(), subs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != len(subs) {
		t.Fatalf("got %d results, want %d: failures must not stop the pool", len(results), len(subs))
	}
	for _, res := range results {
		if res.Succeeded {
			t.Error("result should be degraded")
		}
		if res.Body == "" {
			t.Error("degraded result lost its fallback body")
		}
	}
}

func TestPoolCancellationDiscardsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var completions atomic.Int64
	mock := providers.NewMockClient()
	mock.Latency = 5 * time.Millisecond
	mock.ResponseFunc = func(req *providers.ChatRequest) (string, error) {
		if completions.Add(1) == 2 {
			cancel()
		}
		return strings.Repeat("x", 400), nil
	}

	pool := newTestPool(t, mock, 3)
	subs := makeSubUnits(10, 1000)

	results, err := pool.Run(ctx, subs)
	if err == nil {
		t.Fatal("Run should surface the cancellation")
	}
	if results != nil {
		t.Errorf("cancelled run returned %d results, want none", len(results))
	}
	if got := mock.RequestCount(); got >= 10 {
		t.Errorf("dispatched %d requests, cancellation should stop further dispatch", got)
	}
}

func TestPoolSharedSemaphoreBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64

	mock := providers.NewMockClient()
	mock.Latency = 0
	mock.ResponseFunc = func(req *providers.ChatRequest) (string, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(3 * time.Millisecond)
		inFlight.Add(-1)
		return strings.Repeat("x", 400), nil
	}

	sem := semaphore.NewWeighted(3)
	w, err := NewWorker(WorkerConfig{Client: mock, MinRatioPct: 30})
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}

	// Two pools sharing one semaphore: combined concurrency stays capped.
	poolA := NewPool(w, sem, nil)
	poolB := NewPool(w, sem, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := poolA.Run(context.Background(), makeSubUnits(8, 1000)); err != nil {
			t.Errorf("poolA: %v", err)
		}
	}()
	if _, err := poolB.Run(context.Background(), makeSubUnits(8, 1000)); err != nil {
		t.Errorf("poolB: %v", err)
	}
	<-done

	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3 across both pools", got)
	}
}
