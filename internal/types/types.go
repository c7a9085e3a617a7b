package types

import (
	"fmt"
	"strings"
	"time"
)

// TestCase represents a tracked test fetched from the issue tracker.
// It is a read-only snapshot: nothing mutates a TestCase locally, and only
// the tracker-side status field is ever written back (by the result
// recorder, after execution).
type TestCase struct {
	Key          string     `json:"key"`
	Title        string     `json:"title"`
	Status       Status     `json:"status"`
	Steps        []TestStep `json:"steps,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty"` // declared order is significant
}

// Validate checks if the test case has valid field values
func (tc *TestCase) Validate() error {
	if tc.Key == "" {
		return fmt.Errorf("key is required")
	}
	if !tc.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", tc.Status)
	}
	for i, dep := range tc.Dependencies {
		if strings.TrimSpace(dep) == "" {
			return fmt.Errorf("dependency %d of %s is empty", i, tc.Key)
		}
	}
	return nil
}

// TestStep is a single step of a test case: what to do and what to expect
type TestStep struct {
	Description string `json:"description"`
	Expected    string `json:"expected,omitempty"`
}

// Status represents the tracker-side state of a test case
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
	// StatusOther covers any tracker status outside the three known names
	StatusOther Status = "Other"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone, StatusOther:
		return true
	}
	return false
}

// ParseStatus normalizes a raw tracker status name. Unrecognized names map
// to StatusOther rather than failing: trackers grow custom workflow states.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "to do", "todo", "open":
		return StatusToDo
	case "in progress":
		return StatusInProgress
	case "done", "closed":
		return StatusDone
	}
	return StatusOther
}

// StepOutcome is the reported result of executing a single test step
type StepOutcome string

const (
	OutcomePass    StepOutcome = "Pass"
	OutcomeFail    StepOutcome = "Fail"
	OutcomeSkipped StepOutcome = "Skipped"
)

// IsValid checks if the step outcome value is valid
func (o StepOutcome) IsValid() bool {
	switch o {
	case OutcomePass, OutcomeFail, OutcomeSkipped:
		return true
	}
	return false
}

// OverallResult is the verdict for a whole test case execution
type OverallResult string

const (
	OverallPass OverallResult = "Pass"
	OverallFail OverallResult = "Fail"
)

// IsValid checks if the overall result value is valid
func (r OverallResult) IsValid() bool {
	switch r {
	case OverallPass, OverallFail:
		return true
	}
	return false
}

// StepResult is one executed step as reported by the test operator.
// Timestamp stays a string: it arrives from the operator's JSON and is
// recorded verbatim, not interpreted.
type StepResult struct {
	TestStep   string      `json:"test_step"`
	LogOrError string      `json:"log_or_error"`
	Result     StepOutcome `json:"result"`
	Timestamp  string      `json:"timestamp,omitempty"`
}

// Validate checks if the step result has valid field values
func (sr *StepResult) Validate() error {
	if sr.TestStep == "" {
		return fmt.Errorf("test_step is required")
	}
	if !sr.Result.IsValid() {
		return fmt.Errorf("invalid step result: %s", sr.Result)
	}
	return nil
}

// ExecutionResult is the stored outcome of one test case execution,
// keyed by test case. A later submission for the same key fully replaces
// the stored value.
type ExecutionResult struct {
	TestCaseKey   string        `json:"test_case_key"`
	Results       []StepResult  `json:"test_results"`
	OverallResult OverallResult `json:"overall_result"`
	RecordedAt    time.Time     `json:"recorded_at"`
}

// Validate checks if the execution result has valid field values
func (er *ExecutionResult) Validate() error {
	if er.TestCaseKey == "" {
		return fmt.Errorf("test_case_key is required")
	}
	if len(er.Results) == 0 {
		return fmt.Errorf("test_results must not be empty")
	}
	if !er.OverallResult.IsValid() {
		return fmt.Errorf("invalid overall result: %s", er.OverallResult)
	}
	for i := range er.Results {
		if err := er.Results[i].Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// Passed reports whether this execution counts as a completed run
func (er *ExecutionResult) Passed() bool {
	return er.OverallResult == OverallPass
}

// DeriveOverall computes the overall verdict from individual step results:
// Pass only when there is at least one step and every step passed.
func DeriveOverall(steps []StepResult) OverallResult {
	if len(steps) == 0 {
		return OverallFail
	}
	for _, s := range steps {
		if s.Result != OutcomePass {
			return OverallFail
		}
	}
	return OverallPass
}

// ResolvedSequence is a dependency-ordered list of test cases: every
// dependency appears strictly before its dependents, the resolution target
// is last, and no key repeats.
type ResolvedSequence []TestCase

// Target returns the test case the sequence was resolved for, or nil for
// an empty sequence.
func (rs ResolvedSequence) Target() *TestCase {
	if len(rs) == 0 {
		return nil
	}
	return &rs[len(rs)-1]
}

// Keys returns the case keys in sequence order
func (rs ResolvedSequence) Keys() []string {
	keys := make([]string, len(rs))
	for i := range rs {
		keys[i] = rs[i].Key
	}
	return keys
}
