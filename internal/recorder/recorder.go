package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/damsaniajay/qaflow/internal/results"
	"github.com/damsaniajay/qaflow/internal/tracker"
	"github.com/damsaniajay/qaflow/internal/types"
)

// ErrEmptyResults is returned when a recording carries no step results.
var ErrEmptyResults = errors.New("no step results to record")

// Recorder persists execution outcomes. It is the only component that
// writes to the local result store or changes tracker status. The local
// write always happens first: a result must be durable before the tracker
// is allowed to learn about it.
type Recorder struct {
	source  tracker.Source
	store   results.Store
	logsDir string
	logger  *slog.Logger
}

// New creates a Recorder. logsDir may be empty to disable per-case log
// files. A nil logger falls back to slog.Default().
func New(source tracker.Source, store results.Store, logsDir string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{source: source, store: store, logsDir: logsDir, logger: logger}
}

// Record stores the outcome of one test case execution and returns the
// persisted result: local result store first, then the per-case log file
// (best effort), then the tracker status update. Only an overall Pass
// marks the tracker case Done; a Fail leaves tracker status untouched so
// the case stays visible as incomplete.
func (r *Recorder) Record(ctx context.Context, key string, steps []types.StepResult, overall types.OverallResult) (*types.ExecutionResult, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("recording %s: %w", key, ErrEmptyResults)
	}

	result := &types.ExecutionResult{
		TestCaseKey:   key,
		Results:       steps,
		OverallResult: overall,
		RecordedAt:    time.Now(),
	}

	if err := r.store.PutResult(ctx, result); err != nil {
		return nil, fmt.Errorf("storing result for %s: %w", key, err)
	}

	if err := r.writeLog(result); err != nil {
		r.logger.Warn("failed to write execution log",
			"test_case", key,
			"error", err)
	}

	if overall == types.OverallPass {
		if err := r.source.SetStatus(ctx, key, types.StatusDone); err != nil {
			// The local result is already durable at this point.
			return result, fmt.Errorf("updating tracker status for %s: %w", key, err)
		}
	}

	return result, nil
}

// writeLog appends one entry to the per-case execution log. Entries
// accumulate across runs, so a case's full attempt history stays
// greppable in one file.
func (r *Recorder) writeLog(result *types.ExecutionResult) error {
	if r.logsDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=== %s %s %s ===\n",
		result.RecordedAt.Format(time.RFC3339), result.TestCaseKey, result.OverallResult)
	for _, step := range result.Results {
		fmt.Fprintf(&buf, "[%s] %s: %s", step.Result, step.TestStep, step.LogOrError)
		if step.Timestamp != "" {
			fmt.Fprintf(&buf, " (%s)", step.Timestamp)
		}
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	path := filepath.Join(r.logsDir, result.TestCaseKey+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("appending log entry: %w", err)
	}
	return nil
}
