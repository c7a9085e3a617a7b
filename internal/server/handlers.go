package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/damsaniajay/qaflow/internal/logger"
	"github.com/damsaniajay/qaflow/internal/prompt"
	"github.com/damsaniajay/qaflow/internal/recorder"
	"github.com/damsaniajay/qaflow/internal/resolver"
	"github.com/damsaniajay/qaflow/internal/results"
	"github.com/damsaniajay/qaflow/internal/tracker"
	"github.com/damsaniajay/qaflow/internal/workqueue"
)

// Handlers holds the HTTP handlers and their collaborators
type Handlers struct {
	resolver  *resolver.Resolver
	generator *prompt.Generator
	queue     *workqueue.Calculator
	recorder  *recorder.Recorder
	logger    *slog.Logger
}

// NewHandlers wires the handlers to a test case source and result store
func NewHandlers(source tracker.Source, store results.Store, logsDir string, log *slog.Logger) (*Handlers, error) {
	generator, err := prompt.NewGenerator()
	if err != nil {
		return nil, fmt.Errorf("creating prompt generator: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{
		resolver:  resolver.New(source),
		generator: generator,
		queue:     workqueue.New(source, store),
		recorder:  recorder.New(source, store, logsDir, log),
		logger:    log,
	}, nil
}

// Healthz is a liveness probe
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: "qaflow"})
}

// IncompleteTests handles GET /incomplete-tests.
// It returns the test cases still waiting for a passing run.
func (h *Handlers) IncompleteTests(w http.ResponseWriter, r *http.Request) {
	incomplete, err := h.queue.Incomplete(r.Context())
	if err != nil {
		h.httpError(w, r, err.Error(), http.StatusBadGateway)
		return
	}

	summaries := make([]TestCaseSummary, 0, len(incomplete))
	for _, tc := range incomplete {
		summaries = append(summaries, TestCaseSummary{Key: tc.Key, Title: tc.Title, Status: tc.Status})
	}
	h.respondJSON(w, http.StatusOK, IncompleteResponse{Incomplete: summaries, Count: len(summaries)})
}

// GetTestPrompt handles POST /get-test-prompt.
// It resolves the dependency chain for a key and returns the rendered
// execution prompt.
func (h *Handlers) GetTestPrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, r, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TestCaseKey == "" {
		h.httpError(w, r, "test_case_key is required", http.StatusBadRequest)
		return
	}

	sequence, err := h.resolver.Resolve(r.Context(), req.TestCaseKey)
	if err != nil {
		var cycleErr *resolver.CycleError
		switch {
		case errors.Is(err, tracker.ErrNotFound):
			h.httpError(w, r, err.Error(), http.StatusNotFound)
		case errors.As(err, &cycleErr):
			h.httpError(w, r, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.httpError(w, r, err.Error(), http.StatusBadGateway)
		}
		return
	}

	text, err := h.generator.Generate(sequence)
	if err != nil {
		h.httpError(w, r, err.Error(), http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, PromptResponse{TestCaseKey: req.TestCaseKey, Prompt: text})
}

// SendTestResults handles POST /send-test-results.
// It records the submitted step results and reports what is left in the
// work queue afterwards.
func (h *Handlers) SendTestResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubmitResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, r, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TestCaseKey == "" {
		h.httpError(w, r, "test_case_key is required", http.StatusBadRequest)
		return
	}
	if !req.OverallResult.IsValid() {
		h.httpError(w, r, fmt.Sprintf("invalid overall_result: %q", req.OverallResult), http.StatusBadRequest)
		return
	}
	for i := range req.Results {
		if err := req.Results[i].Validate(); err != nil {
			h.httpError(w, r, fmt.Sprintf("step %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	if _, err := h.recorder.Record(ctx, req.TestCaseKey, req.Results, req.OverallResult); err != nil {
		switch {
		case errors.Is(err, recorder.ErrEmptyResults):
			h.httpError(w, r, err.Error(), http.StatusBadRequest)
		case errors.Is(err, tracker.ErrNotFound):
			h.httpError(w, r, err.Error(), http.StatusNotFound)
		default:
			h.httpError(w, r, err.Error(), http.StatusBadGateway)
		}
		return
	}

	incomplete, err := h.queue.Incomplete(ctx)
	if err != nil {
		h.httpError(w, r, err.Error(), http.StatusBadGateway)
		return
	}

	h.respondJSON(w, http.StatusAccepted, SubmitResultsResponse{
		Recorded:           true,
		TestCaseKey:        req.TestCaseKey,
		HasMoreTests:       len(incomplete) > 0,
		RemainingTestCount: len(incomplete),
	})
}

// respondJSON writes a standard JSON response
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// httpError writes the standard error payload and logs it
func (h *Handlers) httpError(w http.ResponseWriter, r *http.Request, message string, code int) {
	logger.FromContext(r.Context(), h.logger).Warn("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", code,
		"error", message)
	h.respondJSON(w, code, ErrorResponse{Error: message})
}
