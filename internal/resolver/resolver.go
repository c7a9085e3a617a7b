package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/damsaniajay/qaflow/internal/tracker"
	"github.com/damsaniajay/qaflow/internal/types"
)

// CycleError reports a dependency cycle discovered during resolution. Path
// holds the keys walked from the resolution root to the point where the
// cycle closed, with the re-entered key repeated at the end.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// Resolver expands a target test case into its dependency-ordered sequence
type Resolver struct {
	src tracker.Source
}

// New creates a resolver reading from the given source
func New(src tracker.Source) *Resolver {
	return &Resolver{src: src}
}

// Resolve walks the dependency graph rooted at targetKey depth-first and
// returns every reachable test case dependencies-first, the target last,
// each key exactly once. Sibling dependencies keep their declared order.
// A cycle anywhere in the reachable graph fails the call with CycleError;
// a key missing from the source fails it with the tracker's not-found
// error. Each key is fetched at most once per call; the graph is built
// fresh for the call and discarded with it.
func (r *Resolver) Resolve(ctx context.Context, targetKey string) (types.ResolvedSequence, error) {
	t := &traversal{
		src:      r.src,
		visiting: make(map[string]bool),
		done:     make(map[string]bool),
	}
	if err := t.visit(ctx, targetKey, nil); err != nil {
		return nil, err
	}
	return t.sequence, nil
}

// traversal carries the marker sets for one Resolve call
type traversal struct {
	src      tracker.Source
	visiting map[string]bool
	done     map[string]bool
	sequence types.ResolvedSequence
}

func (t *traversal) visit(ctx context.Context, key string, path []string) error {
	if t.done[key] {
		return nil
	}
	if t.visiting[key] {
		cycle := make([]string, 0, len(path)+1)
		cycle = append(cycle, path...)
		cycle = append(cycle, key)
		return &CycleError{Path: cycle}
	}
	t.visiting[key] = true

	tc, err := t.src.GetTestCase(ctx, key)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			return err
		}
		return fmt.Errorf("fetching %s: %w", key, err)
	}

	path = append(path, key)
	for _, dep := range tc.Dependencies {
		if err := t.visit(ctx, dep, path); err != nil {
			return err
		}
	}

	delete(t.visiting, key)
	t.done[key] = true
	t.sequence = append(t.sequence, *tc)
	return nil
}
