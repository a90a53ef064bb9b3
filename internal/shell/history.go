// Package shell is the local harness for driving the orchestrator without an
// SSH session: commands run against the local system and their output lands
// in an in-memory append-only history shaped like a terminal's capture
// buffer.
package shell

import (
	"sync"

	"shellpilot/internal/types"
)

// History is an in-memory, append-only implementation of
// types.OutputSource. The runner appends; the detector and orchestrator only
// read.
type History struct {
	mu      sync.RWMutex
	records []types.OutputRecord
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds a record to the end of the history.
func (h *History) Append(r types.OutputRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
}

// Len returns the current record count.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Slice returns a copy of the records appended at or after index from.
func (h *History) Slice(from int) []types.OutputRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from >= len(h.records) {
		return nil
	}
	out := make([]types.OutputRecord, len(h.records)-from)
	copy(out, h.records[from:])
	return out
}
