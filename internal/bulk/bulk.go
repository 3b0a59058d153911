// Package bulk runs per-object store operations and aggregates their outcome.
package bulk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is used when a caller passes a non-positive limit
const DefaultConcurrency = 8

// Failure records a single key that could not be processed
type Failure struct {
	Key string `json:"key"`
	Err error  `json:"-"`
}

// Reason returns the failure message
func (f Failure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Result aggregates the outcome of a bulk pass
type Result struct {
	Op        string    `json:"op"`
	Succeeded []string  `json:"succeeded"`
	Failed    []Failure `json:"failed"`

	mu sync.Mutex
}

// NewResult creates an empty result for op
func NewResult(op string) *Result {
	return &Result{Op: op}
}

func (r *Result) succeed(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Succeeded = append(r.Succeeded, key)
}

func (r *Result) fail(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, Failure{Key: key, Err: err})
}

// Total is the number of keys the pass attempted or skipped
func (r *Result) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

// Err returns a *PartialFailure when any key failed, nil otherwise
func (r *Result) Err() error {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	return &PartialFailure{Op: r.Op, Failed: r.Failed, Total: r.Total()}
}

func (r *Result) sortKeys() {
	sort.Strings(r.Succeeded)
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].Key < r.Failed[j].Key })
}

// PartialFailure reports that some objects of a bulk pass failed
type PartialFailure struct {
	Op     string
	Failed []Failure
	Total  int
}

func (e *PartialFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of %d objects failed", e.Op, len(e.Failed), e.Total)
	for i, f := range e.Failed {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Failed)-i)
			break
		}
		fmt.Fprintf(&b, "; %s: %v", f.Key, f.Err)
	}
	return b.String()
}

// Run applies fn to every key with at most concurrency calls in flight.
// A failing key never stops the others. Once ctx is canceled no further
// calls are issued; the keys not attempted are recorded as failed with the
// context error, and that error is returned alongside the result.
func Run(ctx context.Context, op string, keys []string, concurrency int, fn func(ctx context.Context, key string) error) (*Result, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	result := NewResult(op)

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			for _, skipped := range keys[i:] {
				result.fail(skipped, err)
			}
			break
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				result.fail(key, err)
				return nil
			}
			if err := fn(ctx, key); err != nil {
				result.fail(key, err)
				return nil
			}
			result.succeed(key)
			return nil
		})
	}

	_ = g.Wait()
	result.sortKeys()

	return result, ctx.Err()
}
