package results

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/damsaniajay/qaflow/internal/types"
)

// resultsFile is the on-disk layout of the JSON backend. Results are
// keyed by test case key under a single top-level object.
type resultsFile struct {
	TestResults map[string]*types.ExecutionResult `json:"test_results"`
}

// JSONFileStore stores execution results in a single JSON file. Every
// operation reads and rewrites the whole file, which keeps the format
// trivially inspectable and is plenty for the result volumes involved.
type JSONFileStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONFileStore creates a JSON file backend at path. The file itself
// is created lazily on the first write.
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &JSONFileStore{path: path}, nil
}

// GetResult returns the stored result for key, or (nil, nil) when no
// result has been recorded.
func (s *JSONFileStore) GetResult(ctx context.Context, key string) (*types.ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	return file.TestResults[key], nil
}

// PutResult stores a result, fully replacing any earlier result for the
// same test case key. The file is rewritten atomically.
func (s *JSONFileStore) PutResult(ctx context.Context, result *types.ExecutionResult) error {
	if result == nil {
		return fmt.Errorf("result is nil")
	}
	if err := result.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if result.RecordedAt.IsZero() {
		result.RecordedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	file.TestResults[result.TestCaseKey] = result
	return s.save(file)
}

// ListResults returns all stored results ordered by test case key.
func (s *JSONFileStore) ListResults(ctx context.Context) ([]*types.ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(file.TestResults))
	for key := range file.TestResults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]*types.ExecutionResult, 0, len(keys))
	for _, key := range keys {
		results = append(results, file.TestResults[key])
	}
	return results, nil
}

// Close is a no-op for the file backend.
func (s *JSONFileStore) Close() error {
	return nil
}

// load reads the results file. A missing file is an empty store.
func (s *JSONFileStore) load() (*resultsFile, error) {
	file := &resultsFile{TestResults: make(map[string]*types.ExecutionResult)}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return file, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	if err := json.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("parsing results file %s: %w", s.path, err)
	}
	if file.TestResults == nil {
		file.TestResults = make(map[string]*types.ExecutionResult)
	}
	return file, nil
}

// save persists the results file to disk.
func (s *JSONFileStore) save(file *resultsFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing results: %w", err)
	}

	// Write atomically using temp file + rename
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing results file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath) // Clean up on error (best effort)
		return fmt.Errorf("committing results file: %w", err)
	}

	return nil
}
