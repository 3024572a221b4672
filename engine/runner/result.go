package runner

import (
	"sync"
	"time"

	"github.com/vyPal/XTomate/engine/core"
)

// Result is one task's final outcome, recorded for the run summary
// (SPEC_FULL.md §9: supplemented, not present in spec.md's core scope).
type Result struct {
	Name     string
	ID       core.ID
	Success  bool
	Attempts int
	Duration time.Duration
	Err      error
}

// Summary aggregates every task's Result for a completed run.
type Summary struct {
	Results []Result
}

// Success reports whether every task in the summary succeeded.
func (s *Summary) Success() bool {
	for _, r := range s.Results {
		if !r.Success {
			return false
		}
	}
	return true
}

// resultSet is the concurrency-safe accumulator the Runner's per-stage
// goroutines write into.
type resultSet struct {
	mu      sync.Mutex
	results []Result
}

func (rs *resultSet) add(r Result) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.results = append(rs.results, r)
}

func (rs *resultSet) summary() *Summary {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]Result, len(rs.results))
	copy(out, rs.results)
	return &Summary{Results: out}
}
