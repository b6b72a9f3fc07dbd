// Package agent implements the four-stage query pipeline: routing,
// retrieval, synthesis, and validation, sequenced by the Orchestrator.
//
// Stages never call each other; the orchestrator is the only component
// that invokes more than one stage. Each stage consumes a Message whose
// Content it asserts at the boundary, and returns a typed result plus an
// error — failures are values, never panics crossing a stage boundary.
package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/polyrag/polyrag/pkg/models"
)

// tracker owns a stage instance's AgentStatus and counters. Stage
// instances are long-lived and shared across pipeline runs, so all
// mutation is confined behind the mutex; Status hands out copies only.
type tracker struct {
	mu    sync.Mutex
	state models.AgentStatus
}

func newTracker(name string) tracker {
	return tracker{state: models.AgentStatus{
		Name:       name,
		Status:     models.StateIdle,
		LastUpdate: time.Now().UTC(),
	}}
}

// begin marks the stage processing with a task label.
func (t *tracker) begin(task string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = models.StateProcessing
	t.state.CurrentTask = task
	t.state.LastUpdate = time.Now().UTC()
}

// done marks the stage idle and counts the completed message.
func (t *tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = models.StateIdle
	t.state.CurrentTask = ""
	t.state.LastUpdate = time.Now().UTC()
	t.state.ProcessedCount++
}

// fail marks the stage errored and counts the failure. The error state
// is deliberately not reset to idle; it persists until the next begin.
func (t *tracker) fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = models.StateError
	t.state.CurrentTask = ""
	t.state.LastUpdate = time.Now().UTC()
	t.state.ErrorCount++
}

// Status returns a snapshot copy. Safe to call concurrently; never blocks
// beyond the mutex and has no side effects.
func (t *tracker) Status() models.AgentStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// content asserts a message's payload to the stage's expected input type.
func content[T any](msg models.Message, kind models.StageKind) (T, error) {
	in, ok := msg.Content.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s stage: unexpected message content %T", kind, msg.Content)
	}
	return in, nil
}

// elapsedMS converts a duration to fractional milliseconds.
func elapsedMS(since time.Time) float64 {
	return float64(time.Since(since)) / float64(time.Millisecond)
}
