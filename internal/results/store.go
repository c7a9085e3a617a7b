package results

import (
	"context"

	"github.com/damsaniajay/qaflow/internal/results/sqlite"
	"github.com/damsaniajay/qaflow/internal/types"
)

// Store defines the interface for local execution-result storage backends.
// The store holds the latest result per test case key; it is the durable
// record that must be written before any tracker status change.
type Store interface {
	// GetResult returns the stored result for a test case key,
	// or (nil, nil) when no result has been recorded yet.
	GetResult(ctx context.Context, key string) (*types.ExecutionResult, error)

	// PutResult stores a result, fully replacing any earlier result
	// for the same test case key.
	PutResult(ctx context.Context, result *types.ExecutionResult) error

	// ListResults returns all stored results ordered by test case key.
	ListResults(ctx context.Context) ([]*types.ExecutionResult, error)

	// Lifecycle
	Close() error
}

// HistoryLister is an optional capability for backends that keep every
// recorded attempt, not just the latest result per key. The SQLite
// backend implements it; the JSON file backend does not.
type HistoryLister interface {
	History(ctx context.Context, key string) ([]*types.ExecutionResult, error)
}

// Config holds result store configuration
type Config struct {
	// Path is the JSON results file path.
	// Default: "test_results.json"
	Path string

	// DBPath, when set, selects the SQLite backend instead of the
	// JSON file backend.
	DBPath string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: "test_results.json",
	}
}

// Open creates the result store backend selected by cfg. A non-empty
// DBPath wins over the JSON file path.
func Open(cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.DBPath != "" {
		return sqlite.New(cfg.DBPath)
	}

	if cfg.Path == "" {
		cfg.Path = "test_results.json"
	}
	return NewJSONFileStore(cfg.Path)
}
