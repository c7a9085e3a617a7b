// Package executor implements the autonomous test execution loop. It
// polls the tracker for incomplete test cases, drives each one through
// the AI operator, and records the outcome.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/damsaniajay/qaflow/internal/ai"
	"github.com/damsaniajay/qaflow/internal/prompt"
	"github.com/damsaniajay/qaflow/internal/recorder"
	"github.com/damsaniajay/qaflow/internal/resolver"
	"github.com/damsaniajay/qaflow/internal/results"
	"github.com/damsaniajay/qaflow/internal/tracker"
	"github.com/damsaniajay/qaflow/internal/types"
	"github.com/damsaniajay/qaflow/internal/workqueue"
)

// DefaultPollInterval is how long the loop waits between execution
// cycles, including idle cycles where nothing is incomplete.
const DefaultPollInterval = 30 * time.Second

// Runner executes a rendered test prompt and returns the model's raw
// response text. *ai.Operator satisfies this interface; tests substitute
// a canned implementation.
type Runner interface {
	ExecuteTest(ctx context.Context, prompt string) (string, error)
}

// Config holds executor configuration
type Config struct {
	Source       tracker.Source // Test case source (required)
	Store        results.Store  // Local result store (required)
	Runner       Runner         // AI operator (required)
	LogsDir      string         // Per-case execution logs (empty disables them)
	PollInterval time.Duration  // Poll interval (default: DefaultPollInterval)
	Logger       *slog.Logger   // Logger (default: slog.Default())
}

// Executor owns one end-to-end execution pipeline: dependency
// resolution, prompt generation, the model call, response parsing, and
// recording. A single Executor runs one test case at a time.
type Executor struct {
	source    tracker.Source
	runner    Runner
	resolver  *resolver.Resolver
	generator *prompt.Generator
	queue     *workqueue.Calculator
	recorder  *recorder.Recorder
	logger    *slog.Logger

	pollInterval time.Duration
}

// New creates an executor from the given config
func New(cfg *Config) (*Executor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("test case source is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("results store is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	generator, err := prompt.NewGenerator()
	if err != nil {
		return nil, fmt.Errorf("creating prompt generator: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Executor{
		source:       cfg.Source,
		runner:       cfg.Runner,
		resolver:     resolver.New(cfg.Source),
		generator:    generator,
		queue:        workqueue.New(cfg.Source, cfg.Store),
		recorder:     recorder.New(cfg.Source, cfg.Store, cfg.LogsDir, logger),
		logger:       logger,
		pollInterval: pollInterval,
	}, nil
}

// ExecuteOne runs a single test case end to end: resolve the dependency
// chain, render the execution prompt, call the model, parse its step
// results, and record the outcome locally and in the tracker.
func (e *Executor) ExecuteOne(ctx context.Context, key string) (*types.ExecutionResult, error) {
	e.logger.Info("executing test case", "test_case", key)

	sequence, err := e.resolver.Resolve(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", key, err)
	}

	execPrompt, err := e.generator.Generate(sequence)
	if err != nil {
		return nil, fmt.Errorf("generating prompt for %s: %w", key, err)
	}
	e.logger.Debug("prompt ready",
		"test_case", key,
		"setup_cases", len(sequence)-1,
		"prompt_bytes", len(execPrompt))

	response, err := e.runner.ExecuteTest(ctx, execPrompt)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", key, err)
	}

	steps, err := ai.ParseStepResults(response)
	if err != nil {
		return nil, fmt.Errorf("parsing operator response for %s: %w", key, err)
	}

	overall := types.DeriveOverall(steps)
	result, err := e.recorder.Record(ctx, key, steps, overall)
	if err != nil {
		return result, err
	}

	e.logger.Info("test case finished",
		"test_case", key,
		"overall", overall,
		"steps", len(steps))
	return result, nil
}

// Run polls the tracker and executes incomplete test cases until the
// context is cancelled. Each cycle executes at most one case, then waits
// out the poll interval; a failure in one cycle is logged and the loop
// moves on, so a stuck case never stops the executor.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor started", "poll_interval", e.pollInterval)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		if err := e.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			e.logger.Error("execution cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			e.logger.Info("executor stopped")
			return nil
		case <-ticker.C:
		}
	}

	e.logger.Info("executor stopped")
	return nil
}

// runOnce executes at most one incomplete test case
func (e *Executor) runOnce(ctx context.Context) error {
	incomplete, err := e.queue.Incomplete(ctx)
	if err != nil {
		return fmt.Errorf("computing incomplete tests: %w", err)
	}
	if len(incomplete) == 0 {
		e.logger.Debug("no incomplete test cases, idling")
		return nil
	}

	next := incomplete[0]
	e.logger.Info("picked next test case",
		"test_case", next.Key,
		"incomplete", len(incomplete))

	_, err = e.ExecuteOne(ctx, next.Key)
	return err
}
