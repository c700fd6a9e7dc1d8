package condense

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bookforge/abridge/internal/providers"
)

func newTestWorker(t *testing.T, client providers.LLMClient, maxRetries int) *Worker {
	t.Helper()
	w, err := NewWorker(WorkerConfig{
		Client:      client,
		MinRatioPct: 30,
		MaxRetries:  maxRetries,
	})
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}
	return w
}

func testSubUnit(body string) SubUnit {
	return SubUnit{
		ParentIndex: 0,
		ChunkIndex:  0,
		TotalChunks: 1,
		Body:        body,
		Target:      NewTarget(len(body), 30, 50),
	}
}

func TestCondenseAcceptsFirstAttempt(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = strings.Repeat("x", 2000) // 40% of 5000

	w := newTestWorker(t, mock, 3)
	res := w.Condense(context.Background(), testSubUnit(strings.Repeat("s", 5000)))

	if !res.Succeeded {
		t.Fatalf("result not successful: %s", res.Err)
	}
	if len(res.Body) != 2000 {
		t.Errorf("body length = %d, want 2000", len(res.Body))
	}
	if mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.RequestCount())
	}
}

func TestCondenseEscalatesOnShortOutput(t *testing.T) {
	var (
		mu         sync.Mutex
		sysPrompts []string
	)

	mock := providers.NewMockClient()
	mock.ResponseFunc = func(req *providers.ChatRequest) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		sysPrompts = append(sysPrompts, req.Messages[0].Content)
		if len(sysPrompts) < 3 {
			return strings.Repeat("x", 100), nil // 2%: far below the 30% floor
		}
		return strings.Repeat("x", 2000), nil
	}

	w := newTestWorker(t, mock, 3)
	res := w.Condense(context.Background(), testSubUnit(strings.Repeat("s", 5000)))

	if !res.Succeeded {
		t.Fatalf("result not successful after escalation: %s", res.Err)
	}
	if len(sysPrompts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(sysPrompts))
	}
	if strings.Contains(sysPrompts[0], "Reminder") || strings.Contains(sysPrompts[0], "warning") {
		t.Error("first attempt should carry no warning")
	}
	if !strings.Contains(sysPrompts[1], "Reminder") {
		t.Error("second attempt should carry the reminder tier")
	}
	if !strings.Contains(sysPrompts[2], "Serious warning") {
		t.Error("third attempt should carry the serious tier")
	}
	if strings.Count(sysPrompts[2], "warning")+strings.Count(sysPrompts[2], "Reminder") > 2 {
		t.Error("warnings must not accumulate across retries")
	}
}

func TestCondenseTransportErrorDoesNotEscalateTier(t *testing.T) {
	var (
		mu         sync.Mutex
		sysPrompts []string
	)

	mock := providers.NewMockClient()
	mock.ResponseFunc = func(req *providers.ChatRequest) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		sysPrompts = append(sysPrompts, req.Messages[0].Content)
		if len(sysPrompts) == 1 {
			return "", errors.New("connection reset")
		}
		return strings.Repeat("x", 2000), nil
	}

	w := newTestWorker(t, mock, 3)
	res := w.Condense(context.Background(), testSubUnit(strings.Repeat("s", 5000)))

	if !res.Succeeded {
		t.Fatalf("result not successful: %s", res.Err)
	}
	if len(sysPrompts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(sysPrompts))
	}
	// The first attempt produced no output at all, so the retry must not
	// claim the previous output was too short.
	for i, prompt := range sysPrompts {
		if strings.Contains(prompt, "Reminder") || strings.Contains(prompt, "warning") {
			t.Errorf("attempt %d carries a length warning after a transport failure", i+1)
		}
	}
}

func TestCondenseKeepsBestOutputWhenFloorNeverMet(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = strings.Repeat("x", 100) // always 2%

	w := newTestWorker(t, mock, 2)
	src := strings.Repeat("s", 5000)
	res := w.Condense(context.Background(), testSubUnit(src))

	if res.Succeeded {
		t.Fatal("result should be degraded")
	}
	if len(res.Body) != 100 {
		t.Errorf("body length = %d, want the best output (100)", len(res.Body))
	}
	if res.Err == "" {
		t.Error("degraded result must carry an error message")
	}
	if mock.RequestCount() != 3 {
		t.Errorf("requests = %d, want 3 (1 + 2 retries)", mock.RequestCount())
	}
}

func TestCondenseFallsBackToOriginalOnTotalFailure(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ShouldFail = true

	w := newTestWorker(t, mock, 3)
	src := strings.Repeat("s", 5000)
	res := w.Condense(context.Background(), testSubUnit(src))

	if res.Succeeded {
		t.Fatal("result should be degraded")
	}
	if res.Body != src {
		t.Error("fallback body must be exactly the original sub-unit text")
	}
	if res.Body == "" {
		t.Error("fallback body must never be empty")
	}
}

func TestCondenseEmptyBody(t *testing.T) {
	mock := providers.NewMockClient()
	w := newTestWorker(t, mock, 3)

	res := w.Condense(context.Background(), testSubUnit(""))
	if !res.Succeeded {
		t.Error("empty sub-unit should succeed without calls")
	}
	if mock.RequestCount() != 0 {
		t.Errorf("requests = %d, want 0 for empty body", mock.RequestCount())
	}
}

func TestCondenseCancelledContext(t *testing.T) {
	mock := providers.NewMockClient()
	w := newTestWorker(t, mock, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := strings.Repeat("s", 5000)
	res := w.Condense(ctx, testSubUnit(src))

	if res.Succeeded {
		t.Fatal("cancelled condense should not report success")
	}
	if res.Body != src {
		t.Error("cancelled condense should keep the original text")
	}
	if mock.RequestCount() != 0 {
		t.Errorf("requests = %d, want 0 after pre-dispatch cancellation", mock.RequestCount())
	}
}

func TestCondenseRecoversFromPanic(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseFunc = func(req *providers.ChatRequest) (string, error) {
		panic("prompt bug")
	}

	w := newTestWorker(t, mock, 0)
	src := strings.Repeat("s", 5000)
	res := w.Condense(context.Background(), testSubUnit(src))

	if res.Succeeded {
		t.Fatal("panicked condense should be degraded")
	}
	if res.Body != src {
		t.Error("panicked condense should keep the original text")
	}
	if !strings.Contains(res.Err, "internal error") {
		t.Errorf("error = %q, want internal error marker", res.Err)
	}
}
