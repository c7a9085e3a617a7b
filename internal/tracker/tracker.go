package tracker

import (
	"context"
	"errors"

	"github.com/damsaniajay/qaflow/internal/types"
)

// ErrNotFound is returned when a test case key does not exist in the tracker
var ErrNotFound = errors.New("test case not found")

// Source supplies test-case records from the issue tracker and accepts
// status updates. The rest of the system depends on this interface only, so
// tests and demo mode can substitute MemorySource for the real Jira client.
type Source interface {
	// GetTestCase fetches a single test case by key. The returned error
	// wraps ErrNotFound when the key does not exist.
	GetTestCase(ctx context.Context, key string) (*types.TestCase, error)

	// ListTestCases returns the test cases in the configured project scope.
	// An empty statusFilter lists every status.
	ListTestCases(ctx context.Context, statusFilter types.Status) ([]types.TestCase, error)

	// SetStatus transitions a test case to the given tracker status.
	SetStatus(ctx context.Context, key string, status types.Status) error
}
