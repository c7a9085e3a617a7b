package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/damsaniajay/qaflow/internal/results"
	"github.com/damsaniajay/qaflow/internal/tracker"
	"github.com/damsaniajay/qaflow/internal/types"
)

const passResponse = `[
  {"test_step": "Open the page", "log_or_error": "Loaded", "result": "Pass", "timestamp": "2024-03-01T10:00:00Z"},
  {"test_step": "Check the banner", "log_or_error": "Visible", "result": "Pass", "timestamp": "2024-03-01T10:00:02Z"}
]`

const failResponse = `[
  {"test_step": "Open the page", "log_or_error": "Loaded", "result": "Pass", "timestamp": "2024-03-01T10:00:00Z"},
  {"test_step": "Check the banner", "log_or_error": "Banner missing", "result": "Fail", "timestamp": "2024-03-01T10:00:02Z"}
]`

// fakeRunner returns a canned response and remembers the prompts it saw
type fakeRunner struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (f *fakeRunner) ExecuteTest(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeRunner) seenPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func newTestExecutor(t *testing.T, source tracker.Source, runner Runner) (*Executor, results.Store) {
	t.Helper()

	dir := t.TempDir()
	store, err := results.NewJSONFileStore(filepath.Join(dir, "results.json"))
	if err != nil {
		t.Fatalf("Failed to create result store: %v", err)
	}

	exec, err := New(&Config{
		Source:       source,
		Store:        store,
		Runner:       runner,
		LogsDir:      filepath.Join(dir, "logs"),
		PollInterval: 10 * time.Millisecond,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	return exec, store
}

func TestNewValidation(t *testing.T) {
	source := tracker.NewMemorySource()
	store, err := results.NewJSONFileStore(filepath.Join(t.TempDir(), "results.json"))
	if err != nil {
		t.Fatalf("Failed to create result store: %v", err)
	}
	runner := &fakeRunner{response: passResponse}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"nil config", nil, "config is required"},
		{"missing source", &Config{Store: store, Runner: runner}, "source is required"},
		{"missing store", &Config{Source: source, Runner: runner}, "store is required"},
		{"missing runner", &Config{Source: source, Store: store}, "runner is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestExecuteOnePass runs the full pipeline for a passing case: the
// dependency is rendered as setup context (not executed separately), the
// result lands in the store, and the tracker case moves to Done.
func TestExecuteOnePass(t *testing.T) {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{Key: "QA-2", Title: "Login", Status: types.StatusDone,
		Steps: []types.TestStep{{Description: "Log in", Expected: "Dashboard shown"}}})
	source.Add(types.TestCase{Key: "QA-1", Title: "Checkout", Status: types.StatusToDo,
		Steps:        []types.TestStep{{Description: "Open cart", Expected: "Cart lists items"}},
		Dependencies: []string{"QA-2"}})

	runner := &fakeRunner{response: passResponse}
	exec, store := newTestExecutor(t, source, runner)

	result, err := exec.ExecuteOne(context.Background(), "QA-1")
	if err != nil {
		t.Fatalf("ExecuteOne failed: %v", err)
	}
	if result.OverallResult != types.OverallPass {
		t.Errorf("expected overall Pass, got %s", result.OverallResult)
	}
	if len(result.Results) != 2 {
		t.Errorf("expected 2 step results, got %d", len(result.Results))
	}

	prompts := runner.seenPrompts()
	if len(prompts) != 1 {
		t.Fatalf("expected exactly one model call, got %d", len(prompts))
	}
	if !strings.Contains(prompts[0], "## Setup: QA-2") {
		t.Errorf("prompt missing dependency setup section:\n%s", prompts[0])
	}
	if !strings.Contains(prompts[0], "## QA-1 - Checkout") {
		t.Errorf("prompt missing target section:\n%s", prompts[0])
	}

	stored, err := store.GetResult(context.Background(), "QA-1")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if stored == nil || !stored.Passed() {
		t.Fatalf("expected stored passing result, got %+v", stored)
	}

	tc, err := source.GetTestCase(context.Background(), "QA-1")
	if err != nil {
		t.Fatalf("GetTestCase failed: %v", err)
	}
	if tc.Status != types.StatusDone {
		t.Errorf("expected tracker status Done, got %s", tc.Status)
	}
}

// TestExecuteOneFail verifies a failing run is stored locally but leaves
// the tracker status alone.
func TestExecuteOneFail(t *testing.T) {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{Key: "QA-1", Title: "Checkout", Status: types.StatusToDo})

	exec, store := newTestExecutor(t, source, &fakeRunner{response: failResponse})

	result, err := exec.ExecuteOne(context.Background(), "QA-1")
	if err != nil {
		t.Fatalf("ExecuteOne failed: %v", err)
	}
	if result.OverallResult != types.OverallFail {
		t.Errorf("expected overall Fail, got %s", result.OverallResult)
	}

	stored, err := store.GetResult(context.Background(), "QA-1")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if stored == nil || stored.OverallResult != types.OverallFail {
		t.Fatalf("expected stored Fail result, got %+v", stored)
	}

	tc, err := source.GetTestCase(context.Background(), "QA-1")
	if err != nil {
		t.Fatalf("GetTestCase failed: %v", err)
	}
	if tc.Status != types.StatusToDo {
		t.Errorf("failed run must not advance tracker status, got %s", tc.Status)
	}
}

func TestExecuteOneUnknownKey(t *testing.T) {
	exec, _ := newTestExecutor(t, tracker.NewMemorySource(), &fakeRunner{response: passResponse})

	_, err := exec.ExecuteOne(context.Background(), "QA-404")
	if err == nil || !strings.Contains(err.Error(), "resolving QA-404") {
		t.Fatalf("expected resolve error, got %v", err)
	}
}

// TestExecuteOneUnparseableResponse verifies that when the model returns
// prose instead of step results, nothing is recorded anywhere.
func TestExecuteOneUnparseableResponse(t *testing.T) {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{Key: "QA-1", Title: "Checkout", Status: types.StatusToDo})

	exec, store := newTestExecutor(t, source, &fakeRunner{response: "I was unable to execute the test."})

	_, err := exec.ExecuteOne(context.Background(), "QA-1")
	if err == nil || !strings.Contains(err.Error(), "parsing operator response for QA-1") {
		t.Fatalf("expected parse error, got %v", err)
	}

	stored, err := store.GetResult(context.Background(), "QA-1")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if stored != nil {
		t.Error("unparseable response must not be recorded")
	}

	tc, err := source.GetTestCase(context.Background(), "QA-1")
	if err != nil {
		t.Fatalf("GetTestCase failed: %v", err)
	}
	if tc.Status != types.StatusToDo {
		t.Errorf("tracker status must stay To Do, got %s", tc.Status)
	}
}

func TestExecuteOneRunnerError(t *testing.T) {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{Key: "QA-1", Title: "Checkout", Status: types.StatusToDo})

	exec, _ := newTestExecutor(t, source, &fakeRunner{err: errors.New("api down")})

	_, err := exec.ExecuteOne(context.Background(), "QA-1")
	if err == nil || !strings.Contains(err.Error(), "running QA-1") {
		t.Fatalf("expected runner error, got %v", err)
	}
}

// TestRunDrainsQueue verifies the poll loop works through every
// incomplete case and stops cleanly on context cancellation.
func TestRunDrainsQueue(t *testing.T) {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{Key: "QA-1", Title: "Login", Status: types.StatusToDo})
	source.Add(types.TestCase{Key: "QA-2", Title: "Checkout", Status: types.StatusToDo})

	exec, _ := newTestExecutor(t, source, &fakeRunner{response: passResponse})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- exec.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		allDone := true
		for _, key := range []string{"QA-1", "QA-2"} {
			tc, err := source.GetTestCase(context.Background(), key)
			if err != nil {
				t.Fatalf("GetTestCase failed: %v", err)
			}
			if tc.Status != types.StatusDone {
				allDone = false
			}
		}
		if allDone {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for executor to drain the queue")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

// TestRunIdle verifies the loop idles without work and still stops on
// cancellation.
func TestRunIdle(t *testing.T) {
	exec, _ := newTestExecutor(t, tracker.NewMemorySource(), &fakeRunner{response: passResponse})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- exec.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

// TestRunContinuesPastFailure verifies a broken case does not wedge the
// loop: the error is logged and later cycles still run.
func TestRunContinuesPastFailure(t *testing.T) {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{Key: "QA-1", Title: "Login", Status: types.StatusToDo})

	runner := &fakeRunner{err: errors.New("api down")}
	exec, _ := newTestExecutor(t, source, runner)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- exec.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for len(runner.seenPrompts()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("executor stopped retrying after a failed cycle")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
