package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/damsaniajay/qaflow/internal/types"
)

// MemorySource is an in-memory Source. It backs demo mode and lets tests
// exercise the core components without a tracker; listing order is the
// order cases were added.
type MemorySource struct {
	mu    sync.RWMutex
	cases map[string]types.TestCase
	order []string
}

// NewMemorySource returns an empty in-memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{cases: make(map[string]types.TestCase)}
}

// Add inserts or replaces a test case. First insertion fixes listing order.
func (m *MemorySource) Add(tc types.TestCase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cases[tc.Key]; !exists {
		m.order = append(m.order, tc.Key)
	}
	m.cases[tc.Key] = tc
}

// GetTestCase returns a copy of the stored case or ErrNotFound
func (m *MemorySource) GetTestCase(ctx context.Context, key string) (*types.TestCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tc, ok := m.cases[key]
	if !ok {
		return nil, fmt.Errorf("test case %s: %w", key, ErrNotFound)
	}
	return &tc, nil
}

// ListTestCases returns the stored cases in insertion order, optionally
// narrowed to one status
func (m *MemorySource) ListTestCases(ctx context.Context, statusFilter types.Status) ([]types.TestCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var cases []types.TestCase
	for _, key := range m.order {
		tc := m.cases[key]
		if statusFilter != "" && tc.Status != statusFilter {
			continue
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

// SetStatus updates the stored status for a case
func (m *MemorySource) SetStatus(ctx context.Context, key string, status types.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.cases[key]
	if !ok {
		return fmt.Errorf("test case %s: %w", key, ErrNotFound)
	}
	tc.Status = status
	m.cases[key] = tc
	return nil
}
