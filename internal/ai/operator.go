// Package ai drives the AI test operator: it sends execution prompts to
// the Anthropic API and parses the structured step results the model
// reports back.
package ai

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
)

const (
	// ModelSonnet is the default model for test execution
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelHaiku is the cost-efficient alternative for short smoke runs
	ModelHaiku = "claude-3-5-haiku-20241022"
)

// GetDefaultModel returns the default model, checking QAFLOW_MODEL first
func GetDefaultModel() string {
	if model := os.Getenv("QAFLOW_MODEL"); model != "" {
		return model
	}
	return ModelSonnet
}

// Operator executes test cases through the Anthropic API. One prompt in,
// one raw response out; parsing and recording happen elsewhere.
//
// The Operator's responsibilities are split across files:
// - operator.go: core struct, constructor, and the execution call (this file)
// - retry.go: circuit breaker and retry logic
// - json_parser.go: resilient extraction of step results from model output
type Operator struct {
	client         *anthropic.Client
	model          string
	maxTokens      int64
	retry          RetryConfig
	breaker        *CircuitBreaker
	concurrencySem *semaphore.Weighted // Limits concurrent operator API calls

	usageMu sync.Mutex
	usage   UsageStats
}

// UsageStats tracks cumulative token consumption across all calls made
// by this operator.
type UsageStats struct {
	Calls        int64
	InputTokens  int64
	OutputTokens int64
}

// TotalTokens returns input and output tokens combined
func (u UsageStats) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Config holds operator configuration
type Config struct {
	APIKey    string      // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model     string      // Model to use (default: QAFLOW_MODEL env var, then ModelSonnet)
	MaxTokens int64       // Response token budget (default: 4096)
	Retry     RetryConfig // Retry configuration (uses defaults if not specified)
}

// NewOperator creates a new AI test operator
func NewOperator(cfg *Config) (*Operator, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var breaker *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		breaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}

	var concurrencySem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	return &Operator{
		client:         &client,
		model:          model,
		maxTokens:      maxTokens,
		retry:          retry,
		breaker:        breaker,
		concurrencySem: concurrencySem,
	}, nil
}

// Model returns the model this operator sends prompts to
func (o *Operator) Model() string {
	return o.model
}

// Usage returns a snapshot of cumulative token usage
func (o *Operator) Usage() UsageStats {
	o.usageMu.Lock()
	defer o.usageMu.Unlock()
	return o.usage
}

func (o *Operator) recordUsage(inputTokens, outputTokens int64) {
	o.usageMu.Lock()
	defer o.usageMu.Unlock()
	o.usage.Calls++
	o.usage.InputTokens += inputTokens
	o.usage.OutputTokens += outputTokens
}

// ExecuteTest sends an execution prompt to the model and returns the raw
// response text. The prompt instructs the model to answer with a JSON
// array of step results; use ParseStepResults on the returned text.
func (o *Operator) ExecuteTest(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt is empty")
	}

	var response *anthropic.Message
	err := o.retryWithBackoff(ctx, "test-execution", func(attemptCtx context.Context) error {
		resp, apiErr := o.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(o.model),
			MaxTokens: o.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	o.recordUsage(response.Usage.InputTokens, response.Usage.OutputTokens)

	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}
	if responseText == "" {
		return "", fmt.Errorf("model returned no text content")
	}

	return responseText, nil
}

// HealthCheck performs a pre-flight check of the operator's health.
// Returns an error if the circuit breaker is open.
func (o *Operator) HealthCheck(ctx context.Context) error {
	if o.breaker != nil {
		state, failures, _ := o.breaker.Metrics()
		if state == CircuitOpen {
			return fmt.Errorf("operator unavailable: %w (failures=%d, retry in %v)",
				ErrCircuitOpen, failures, o.retry.OpenTimeout)
		}
	}
	return nil
}
