package runner

import "sync"

// statusCell is the single-writer/multi-reader run-state cell backing one
// task: a mutex-guarded optional bool, nil until the task's first (and
// only) execution attempt commits its outcome (spec.md §3, §5).
type statusCell struct {
	mu      sync.Mutex
	success *bool
}

// Set commits the task's final outcome. Called exactly once, by the
// single goroutine that owns this task's execution.
func (c *statusCell) Set(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := success
	c.success = &v
}

// Get returns the committed outcome and whether one has been committed
// yet. Safe to call concurrently with Set from any number of dependent
// goroutines.
func (c *statusCell) Get() (success bool, done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.success == nil {
		return false, false
	}
	return *c.success, true
}
