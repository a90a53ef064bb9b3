package orchestrator

import "shellpilot/internal/types"

// Recorder receives transcript events for persistence. Implementations must
// tolerate being called from the loop goroutine; failures are logged by the
// orchestrator and never interrupt the task.
type Recorder interface {
	// TaskStarted is called once when a fresh task is created.
	TaskStarted(t *types.Task) error

	// BlockAppended is called for every content block added to the task's
	// message, in order.
	BlockAppended(taskID string, b types.ContentBlock) error

	// TaskFinished is called when the task reaches a terminal state.
	TaskFinished(t *types.Task) error
}

// nopRecorder is the default when persistence is disabled.
type nopRecorder struct{}

func (nopRecorder) TaskStarted(*types.Task) error                  { return nil }
func (nopRecorder) BlockAppended(string, types.ContentBlock) error { return nil }
func (nopRecorder) TaskFinished(*types.Task) error                 { return nil }
