package workqueue

import (
	"context"
	"fmt"

	"github.com/damsaniajay/qaflow/internal/results"
	"github.com/damsaniajay/qaflow/internal/tracker"
	"github.com/damsaniajay/qaflow/internal/types"
)

// Calculator computes which test cases still need work by combining two
// views: tracker status (the intake filter) and locally recorded results
// (the authority on what actually ran and passed).
type Calculator struct {
	source tracker.Source
	store  results.Store
}

// New creates a Calculator over the given data source and result store
func New(source tracker.Source, store results.Store) *Calculator {
	return &Calculator{source: source, store: store}
}

// Incomplete returns the test cases that still need a successful run: the
// tracker lists them as To Do and no locally stored result for the key is
// an overall Pass. A local Fail, or no local record at all, keeps a case
// in the set. Order follows the source listing; keys are unique.
func (c *Calculator) Incomplete(ctx context.Context) ([]types.TestCase, error) {
	cases, err := c.source.ListTestCases(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing test cases: %w", err)
	}

	seen := make(map[string]bool)
	incomplete := []types.TestCase{}
	for _, tc := range cases {
		// In Progress means someone is on it; Done and Other are out of
		// intake scope entirely.
		if tc.Status != types.StatusToDo {
			continue
		}
		if seen[tc.Key] {
			continue
		}
		seen[tc.Key] = true

		result, err := c.store.GetResult(ctx, tc.Key)
		if err != nil {
			return nil, fmt.Errorf("checking stored result for %s: %w", tc.Key, err)
		}
		if result != nil && result.Passed() {
			continue
		}
		incomplete = append(incomplete, tc)
	}

	return incomplete, nil
}
