package server

import "github.com/damsaniajay/qaflow/internal/types"

// HealthResponse is the GET /healthz payload
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// TestCaseSummary is the trimmed tracker view used in list responses
type TestCaseSummary struct {
	Key    string       `json:"key"`
	Title  string       `json:"title"`
	Status types.Status `json:"status"`
}

// IncompleteResponse is the GET /incomplete-tests payload
type IncompleteResponse struct {
	Incomplete []TestCaseSummary `json:"incomplete"`
	Count      int               `json:"count"`
}

// PromptRequest is the POST /get-test-prompt body
type PromptRequest struct {
	TestCaseKey string `json:"test_case_key"`
}

// PromptResponse is the POST /get-test-prompt payload
type PromptResponse struct {
	TestCaseKey string `json:"test_case_key"`
	Prompt      string `json:"prompt"`
}

// SubmitResultsRequest is the POST /send-test-results body
type SubmitResultsRequest struct {
	TestCaseKey   string              `json:"test_case_key"`
	Results       []types.StepResult  `json:"test_results"`
	OverallResult types.OverallResult `json:"overall_result"`
}

// SubmitResultsResponse acknowledges a recorded submission and reports
// what is left in the work queue.
type SubmitResultsResponse struct {
	Recorded           bool   `json:"recorded"`
	TestCaseKey        string `json:"test_case_key"`
	HasMoreTests       bool   `json:"has_more_tests"`
	RemainingTestCount int    `json:"remaining_test_count"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
}
