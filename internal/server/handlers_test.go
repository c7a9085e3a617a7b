package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damsaniajay/qaflow/internal/results"
	"github.com/damsaniajay/qaflow/internal/tracker"
	"github.com/damsaniajay/qaflow/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandlers(t *testing.T, source tracker.Source) (*Handlers, results.Store) {
	t.Helper()

	store, err := results.NewJSONFileStore(filepath.Join(t.TempDir(), "results.json"))
	require.NoError(t, err)

	h, err := NewHandlers(source, store, "", discardLogger())
	require.NoError(t, err)
	return h, store
}

// failingSource simulates an unreachable tracker
type failingSource struct{ tracker.Source }

func (f *failingSource) GetTestCase(ctx context.Context, key string) (*types.TestCase, error) {
	return nil, errors.New("tracker unreachable")
}

func (f *failingSource) ListTestCases(ctx context.Context, statusFilter types.Status) ([]types.TestCase, error) {
	return nil, errors.New("tracker unreachable")
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandlers(t, tracker.NewMemorySource())

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "qaflow", resp.Service)
}

func TestIncompleteTests(t *testing.T) {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{Key: "QA-1", Title: "Login", Status: types.StatusToDo})
	source.Add(types.TestCase{Key: "QA-2", Title: "Checkout", Status: types.StatusDone})
	source.Add(types.TestCase{Key: "QA-3", Title: "Search", Status: types.StatusToDo})
	h, store := newTestHandlers(t, source)

	// QA-3 already passed locally, so only QA-1 is left
	require.NoError(t, store.PutResult(context.Background(), &types.ExecutionResult{
		TestCaseKey:   "QA-3",
		Results:       []types.StepResult{{TestStep: "Search for a product", LogOrError: "Found", Result: types.OutcomePass}},
		OverallResult: types.OverallPass,
	}))

	rr := httptest.NewRecorder()
	h.IncompleteTests(rr, httptest.NewRequest(http.MethodGet, "/incomplete-tests", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp IncompleteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Incomplete, 1)
	assert.Equal(t, "QA-1", resp.Incomplete[0].Key)
	assert.Equal(t, "Login", resp.Incomplete[0].Title)
	assert.Equal(t, types.StatusToDo, resp.Incomplete[0].Status)
}

func TestIncompleteTestsEmptyIsArray(t *testing.T) {
	h, _ := newTestHandlers(t, tracker.NewMemorySource())

	rr := httptest.NewRecorder()
	h.IncompleteTests(rr, httptest.NewRequest(http.MethodGet, "/incomplete-tests", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"incomplete":[]`)
	assert.Contains(t, rr.Body.String(), `"count":0`)
}

func TestIncompleteTestsUpstreamError(t *testing.T) {
	h, _ := newTestHandlers(t, &failingSource{})

	rr := httptest.NewRecorder()
	h.IncompleteTests(rr, httptest.NewRequest(http.MethodGet, "/incomplete-tests", nil))

	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "tracker unreachable")
}

func TestGetTestPrompt(t *testing.T) {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{Key: "QA-2", Title: "Login", Status: types.StatusDone,
		Steps: []types.TestStep{{Description: "Log in", Expected: "Dashboard shown"}}})
	source.Add(types.TestCase{Key: "QA-1", Title: "Checkout", Status: types.StatusToDo,
		Steps:        []types.TestStep{{Description: "Open cart", Expected: "Cart lists items"}},
		Dependencies: []string{"QA-2"}})
	h, _ := newTestHandlers(t, source)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/get-test-prompt",
		strings.NewReader(`{"test_case_key":"QA-1"}`))
	h.GetTestPrompt(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp PromptResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "QA-1", resp.TestCaseKey)
	assert.Contains(t, resp.Prompt, "## Setup: QA-2")
	assert.Contains(t, resp.Prompt, "## QA-1 - Checkout")
}

func TestGetTestPromptErrors(t *testing.T) {
	tests := []struct {
		name       string
		seed       func(*tracker.MemorySource)
		failing    bool
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "unknown key",
			body:       `{"test_case_key":"QA-404"}`,
			wantStatus: http.StatusNotFound,
			wantError:  "QA-404",
		},
		{
			name: "dependency cycle",
			seed: func(s *tracker.MemorySource) {
				s.Add(types.TestCase{Key: "QA-A", Title: "A", Status: types.StatusToDo, Dependencies: []string{"QA-B"}})
				s.Add(types.TestCase{Key: "QA-B", Title: "B", Status: types.StatusToDo, Dependencies: []string{"QA-A"}})
			},
			body:       `{"test_case_key":"QA-A"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "cycle",
		},
		{
			name:       "malformed body",
			body:       `{"test_case_key":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "missing key",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "test_case_key is required",
		},
		{
			name:       "tracker unreachable",
			failing:    true,
			body:       `{"test_case_key":"QA-1"}`,
			wantStatus: http.StatusBadGateway,
			wantError:  "tracker unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memory := tracker.NewMemorySource()
			if tt.seed != nil {
				tt.seed(memory)
			}
			var source tracker.Source = memory
			if tt.failing {
				source = &failingSource{}
			}
			h, _ := newTestHandlers(t, source)

			rr := httptest.NewRecorder()
			h.GetTestPrompt(rr, httptest.NewRequest(http.MethodPost, "/get-test-prompt", strings.NewReader(tt.body)))

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), tt.wantError)
		})
	}
}

func TestSendTestResultsPass(t *testing.T) {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{Key: "QA-1", Title: "Login", Status: types.StatusToDo})
	h, store := newTestHandlers(t, source)

	body := `{
		"test_case_key": "QA-1",
		"test_results": [
			{"test_step": "Open the login page", "log_or_error": "Page loaded", "result": "Pass", "timestamp": "2024-03-01T10:00:00Z"}
		],
		"overall_result": "Pass"
	}`
	rr := httptest.NewRecorder()
	h.SendTestResults(rr, httptest.NewRequest(http.MethodPost, "/send-test-results", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var resp SubmitResultsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Recorded)
	assert.Equal(t, "QA-1", resp.TestCaseKey)
	assert.False(t, resp.HasMoreTests)
	assert.Equal(t, 0, resp.RemainingTestCount)

	stored, err := store.GetResult(context.Background(), "QA-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Passed())

	tc, err := source.GetTestCase(context.Background(), "QA-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDone, tc.Status)
}

func TestSendTestResultsFailStaysIncomplete(t *testing.T) {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{Key: "QA-1", Title: "Login", Status: types.StatusToDo})
	h, store := newTestHandlers(t, source)

	body := `{
		"test_case_key": "QA-1",
		"test_results": [
			{"test_step": "Open the login page", "log_or_error": "Timeout", "result": "Fail", "timestamp": "2024-03-01T10:00:00Z"}
		],
		"overall_result": "Fail"
	}`
	rr := httptest.NewRecorder()
	h.SendTestResults(rr, httptest.NewRequest(http.MethodPost, "/send-test-results", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var resp SubmitResultsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Recorded)
	assert.True(t, resp.HasMoreTests)
	assert.Equal(t, 1, resp.RemainingTestCount)

	stored, err := store.GetResult(context.Background(), "QA-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, types.OverallFail, stored.OverallResult)

	tc, err := source.GetTestCase(context.Background(), "QA-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusToDo, tc.Status, "a failed run must not advance tracker status")
}

func TestSendTestResultsErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "empty results",
			body:       `{"test_case_key":"QA-1","test_results":[],"overall_result":"Pass"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "no step results",
		},
		{
			name: "unknown key",
			body: `{"test_case_key":"QA-404","test_results":[
				{"test_step":"Open","log_or_error":"ok","result":"Pass"}],"overall_result":"Pass"}`,
			wantStatus: http.StatusNotFound,
			wantError:  "QA-404",
		},
		{
			name: "invalid overall",
			body: `{"test_case_key":"QA-1","test_results":[
				{"test_step":"Open","log_or_error":"ok","result":"Pass"}],"overall_result":"Maybe"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid overall_result",
		},
		{
			name:       "malformed body",
			body:       `{"test_case_key":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name: "invalid step",
			body: `{"test_case_key":"QA-1","test_results":[
				{"log_or_error":"ok","result":"Pass"}],"overall_result":"Pass"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "test_step is required",
		},
		{
			name: "missing key",
			body: `{"test_results":[
				{"test_step":"Open","log_or_error":"ok","result":"Pass"}],"overall_result":"Pass"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "test_case_key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := tracker.NewMemorySource()
			source.Add(types.TestCase{Key: "QA-1", Title: "Login", Status: types.StatusToDo})
			h, _ := newTestHandlers(t, source)

			rr := httptest.NewRecorder()
			h.SendTestResults(rr, httptest.NewRequest(http.MethodPost, "/send-test-results", strings.NewReader(tt.body)))

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), tt.wantError)
		})
	}
}

// TestServerRouting exercises the assembled mux and middleware stack.
func TestServerRouting(t *testing.T) {
	source := tracker.NewMemorySource()
	source.Add(types.TestCase{Key: "QA-1", Title: "Login", Status: types.StatusToDo})
	h, _ := newTestHandlers(t, source)
	srv := New(":0", h, discardLogger())
	handler := srv.httpServer.Handler

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	// Wrong method on a known pattern
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/incomplete-tests", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	// Unknown path
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
