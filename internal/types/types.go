// Package types provides shared type definitions used across shellpilot packages.
// This package exists to break import cycles between orchestrator, dialogue,
// gateway, and transcript. Types in this package should be foundational data
// structures with no complex dependencies.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// RISK LEVELS
// =============================================================================

// RiskLevel classifies how dangerous a proposed command is. Levels are
// ordered: Low < Medium < High. The zero value is RiskLow.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

// String returns the lowercase wire form ("low", "medium", "high").
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return fmt.Sprintf("risk(%d)", int(r))
	}
}

// ParseRiskLevel parses a risk label case-insensitively. Unknown labels map
// to RiskHigh so that a malformed or missing label is never auto-executed
// under a stricter policy than the user configured.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow
	case "medium", "mid":
		return RiskMedium
	case "high":
		return RiskHigh
	default:
		return RiskHigh
	}
}

// UnmarshalJSON accepts the string form used in plan responses.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRiskLevel(s)
	return nil
}

// MarshalJSON emits the lowercase wire form.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// =============================================================================
// TASK / MESSAGE / CONTENT MODEL
// =============================================================================

// TaskState is the orchestrator lifecycle state of a task.
//
// Lifecycle: idle -> planning -> executing -> analyzing -> planning -> ...
// terminating in completed or error. Completed and error are terminal until
// a new goal creates a fresh task.
type TaskState string

const (
	TaskIdle      TaskState = "idle"
	TaskPlanning  TaskState = "planning"
	TaskExecuting TaskState = "executing"
	TaskAnalyzing TaskState = "analyzing"
	TaskCompleted TaskState = "completed"
	TaskError     TaskState = "error"
)

// Terminal reports whether the state admits no further transitions without a
// new goal.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskError
}

// MessageStatus is the rendering-facing status of a message turn.
type MessageStatus string

const (
	StatusWaiting   MessageStatus = "waiting"
	StatusExecuting MessageStatus = "executing"
	StatusAnalyzing MessageStatus = "analyzing"
	StatusCompleted MessageStatus = "completed"
	StatusError     MessageStatus = "error"
)

// ContentKind tags a content block variant.
type ContentKind string

const (
	ContentAnalysis ContentKind = "analysis"
	ContentCommand  ContentKind = "command"
	ContentOutput   ContentKind = "output"
	ContentResult   ContentKind = "result"
	ContentError    ContentKind = "error"
)

// Command is a single shell command proposed by the planner. Executed flips
// to true exactly once, when the output that followed its block has been
// captured; it never reverts.
type Command struct {
	Text        string
	Description string
	Risk        RiskLevel
	Executed    bool
}

// ContentBlock is one append-only entry in a message transcript. Command
// blocks carry one or more Commands plus optional analysis text; all other
// kinds carry only Text.
type ContentBlock struct {
	Kind      ContentKind
	Text      string
	Commands  []Command
	Timestamp time.Time
}

// Message is one agent turn: an ordered, append-only list of content blocks.
// A message is never rewritten, only extended.
type Message struct {
	Status    MessageStatus
	Blocks    []ContentBlock
	UserInput string
}

// Append adds a block to the end of the transcript.
func (m *Message) Append(b ContentBlock) {
	m.Blocks = append(m.Blocks, b)
}

// LastCommandBlock returns a pointer to the most recent command block, or nil
// if the message holds none. The pointer aliases the message's own storage so
// the caller can flip Executed flags in place.
func (m *Message) LastCommandBlock() *ContentBlock {
	for i := len(m.Blocks) - 1; i >= 0; i-- {
		if m.Blocks[i].Kind == ContentCommand {
			return &m.Blocks[i]
		}
	}
	return nil
}

// Task is one end-to-end goal-pursuit session. Exactly one task is current
// at a time; a new goal retires the previous task's message.
type Task struct {
	ID          string
	Goal        string
	State       TaskState
	AutoExecute bool
	Paused      bool
	Message     *Message

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// ElapsedSeconds computes wall-clock seconds for a task based on its state.
//   - idle/planning with no start: seconds since created
//   - in flight: seconds since started
//   - terminal: seconds from start to completion
func (t *Task) ElapsedSeconds(now time.Time) int {
	switch {
	case t.State.Terminal():
		if t.StartedAt.IsZero() || t.CompletedAt.IsZero() {
			return 0
		}
		return int(t.CompletedAt.Sub(t.StartedAt).Seconds())
	case !t.StartedAt.IsZero():
		return int(now.Sub(t.StartedAt).Seconds())
	default:
		return int(now.Sub(t.CreatedAt).Seconds())
	}
}

// =============================================================================
// DIALOGUE AND TERMINAL HISTORY
// =============================================================================

// DialogueRole tags an entry in the bounded conversation log.
type DialogueRole string

const (
	RoleSystem DialogueRole = "system"
	RoleUser   DialogueRole = "user"
)

// DialogueEntry is one role-tagged entry sent to the LLM gateway on each
// planning call.
type DialogueEntry struct {
	Role    DialogueRole
	Content string
}

// OutputRecord is one captured command/output pair from the terminal. The
// orchestrator only ever reads these; the terminal layer owns the history.
type OutputRecord struct {
	Command   string
	Output    string
	Timestamp time.Time
}

// OutputSource is the read-only view of the terminal's append-only output
// history. Len never decreases; Slice(from) returns records appended at or
// after index from, in order.
type OutputSource interface {
	Len() int
	Slice(from int) []OutputRecord
}
