package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/damsaniajay/qaflow/internal/types"
)

// Pre-compiled patterns: compiling per parse is an order of magnitude
// slower than reusing these.
var (
	// Matches ```json ... ``` style fences, language tag and newlines optional
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	codeFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)

	// Greedy on purpose: nested structures must be captured whole
	arrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// ParseResult represents the outcome of a JSON parse operation
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// ParseOptions configures JSON parsing behavior
type ParseOptions struct {
	Context      string // Context for error messages
	MaxInputSize int    // Maximum input size in bytes (0 = use default of 10MB)
}

const defaultMaxInputSize = 10 * 1024 * 1024

// Parse attempts to parse JSON from model output with fallback strategies
// for the usual LLM formatting quirks:
//
//  1. Direct JSON parse
//  2. Strip markdown code fences and retry
//  3. Drop trailing commas and retry
//  4. Extract the JSON payload from surrounding prose and retry
//
// Deliberately absent: comment stripping and key quoting. Step logs carry
// URLs and free text, and rewriting those inside string values corrupts
// otherwise recoverable responses.
func Parse[T any](text string, opts ...ParseOptions) ParseResult[T] {
	var options ParseOptions
	if len(opts) > 0 {
		options = opts[0]
	}
	maxSize := options.MaxInputSize
	if maxSize == 0 {
		maxSize = defaultMaxInputSize
	}

	if len(text) > maxSize {
		return parseFailure[T](fmt.Sprintf("input exceeds size limit (%d > %d bytes)", len(text), maxSize), text, options.Context)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return parseFailure[T]("empty input", text, options.Context)
	}

	// Strategy 1: the response is already plain JSON
	if data, err := tryUnmarshal[T](trimmed); err == nil {
		return parseSuccess(data, text)
	} else {
		slog.Debug("direct JSON parse failed, trying cleanup strategies",
			"error", err.Error(),
			"textPreview", truncate(text, 100),
			"context", options.Context)
	}

	// Strategy 2: strip markdown code fences
	unfenced := stripCodeFences(trimmed)
	if unfenced != trimmed {
		if data, err := tryUnmarshal[T](unfenced); err == nil {
			return parseSuccess(data, text)
		}
	}

	// Strategy 3: drop trailing commas
	cleaned := strings.TrimSpace(trailingCommaRegex.ReplaceAllString(unfenced, "$1"))
	if cleaned != unfenced {
		if data, err := tryUnmarshal[T](cleaned); err == nil {
			return parseSuccess(data, text)
		}
	}

	// Strategy 4: extract the JSON payload from surrounding prose
	if extracted := extractJSON(cleaned); extracted != "" {
		if data, err := tryUnmarshal[T](extracted); err == nil {
			return parseSuccess(data, text)
		}
	}

	return parseFailure[T]("all JSON parsing strategies failed", text, options.Context)
}

// ParseStepResults extracts and validates the step result array from raw
// operator output. Outcome names are normalized case-insensitively before
// validation since models drift between "Pass", "pass", and "PASSED".
func ParseStepResults(text string) ([]types.StepResult, error) {
	result := Parse[[]types.StepResult](text, ParseOptions{Context: "step results"})
	if !result.Success {
		return nil, fmt.Errorf("parsing step results: %s", result.Error)
	}

	steps := result.Data
	if len(steps) == 0 {
		return nil, fmt.Errorf("operator response contained no step results")
	}

	for i := range steps {
		steps[i].Result = normalizeOutcome(steps[i].Result)
		if err := steps[i].Validate(); err != nil {
			return nil, fmt.Errorf("step result %d: %w", i, err)
		}
	}
	return steps, nil
}

// normalizeOutcome maps outcome spelling variants onto the canonical
// values. Unknown spellings pass through unchanged so validation can
// name them in its error.
func normalizeOutcome(raw types.StepOutcome) types.StepOutcome {
	switch strings.ToLower(strings.TrimSpace(string(raw))) {
	case "pass", "passed", "success":
		return types.OutcomePass
	case "fail", "failed", "error":
		return types.OutcomeFail
	case "skip", "skipped":
		return types.OutcomeSkipped
	}
	return raw
}

func tryUnmarshal[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

// stripCodeFences removes markdown code fences wrapping the payload
func stripCodeFences(text string) string {
	cleaned := codeFenceStartRegex.ReplaceAllString(text, "$1")
	if cleaned == text {
		cleaned = codeFenceAnyRegex.ReplaceAllString(text, "$1")
	}
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "`"), "`")
	}
	return strings.TrimSpace(cleaned)
}

// extractJSON pulls a JSON array or object out of mixed content. Arrays
// are preferred: the operator's response contract is an array, and
// object-first matching would clip the first element out of it.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '[':
			if match := arrayRegex.FindString(text); match != "" {
				return match
			}
		case '{':
			if match := objectRegex.FindString(text); match != "" {
				return match
			}
		}
	}

	if match := arrayRegex.FindString(text); match != "" {
		return match
	}
	return objectRegex.FindString(text)
}

func parseSuccess[T any](data T, original string) ParseResult[T] {
	return ParseResult[T]{Success: true, Data: data, OriginalText: original}
}

func parseFailure[T any](message, text, context string) ParseResult[T] {
	var zero T
	if context != "" {
		message = context + ": " + message
	}
	return ParseResult[T]{Success: false, Data: zero, Error: message, OriginalText: text}
}

// truncate shortens a string to maxLen characters for log previews
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
