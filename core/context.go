package core

import (
	"encoding/json"
	"fmt"
	"sync"
)

// TaskResult is the validated outcome of a single task.
type TaskResult struct {
	Task   string          `json:"task"`
	Agent  string          `json:"agent"`
	Output string          `json:"output"`          // Final rendered text produced by the agent
	Raw    json.RawMessage `json:"raw,omitempty"`   // Structured payload for field-path references
	Failed bool            `json:"failed,omitempty"` // Sentinel for best-effort tasks that did not complete
	Error  string          `json:"error,omitempty"`
}

// ExecutionContext is the per-run store of completed task results, keyed by
// task identifier. It is append-only for the lifetime of one orchestration
// run and discarded afterwards. Writes are single-writer per key (a second
// write for the same task is rejected); completed entries are safe for
// concurrent reads.
type ExecutionContext struct {
	mu      sync.RWMutex
	results map[string]TaskResult
	order   []string
}

// NewExecutionContext creates an empty ExecutionContext.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{results: map[string]TaskResult{}}
}

// Put stores a task result. Storing a second result for the same task
// violates the append-only contract and fails.
func (ec *ExecutionContext) Put(res TaskResult) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if _, exists := ec.results[res.Task]; exists {
		return fmt.Errorf("duplicate result for task %q", res.Task)
	}
	ec.results[res.Task] = res
	ec.order = append(ec.order, res.Task)
	return nil
}

// Get returns the result stored for taskID, if any.
func (ec *ExecutionContext) Get(taskID string) (TaskResult, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	res, ok := ec.results[taskID]
	return res, ok
}

// Len returns the number of stored results.
func (ec *ExecutionContext) Len() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.results)
}

// Order returns task identifiers in completion order.
func (ec *ExecutionContext) Order() []string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make([]string, len(ec.order))
	copy(out, ec.order)
	return out
}

// Snapshot returns a defensive copy of all results keyed by task identifier.
func (ec *ExecutionContext) Snapshot() map[string]TaskResult {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make(map[string]TaskResult, len(ec.results))
	for k, v := range ec.results {
		out[k] = v
	}
	return out
}
