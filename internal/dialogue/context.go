// Package dialogue maintains the bounded, role-tagged conversation log sent
// to the LLM gateway on each planning call, and compacts captured terminal
// output into continuation turns.
package dialogue

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"shellpilot/internal/types"
)

// Defaults for the compaction limits. The history cap counts user entries
// only; the permanent system entry sits outside the cap.
const (
	DefaultMaxHistoryLength = 10
	DefaultMaxOutputLines   = 50
	DefaultMaxOutputLength  = 500
)

// Limits bounds the dialogue log and the per-turn output compaction.
type Limits struct {
	MaxHistoryLength int // user entries kept (FIFO eviction beyond this)
	MaxOutputLines   int // most recent output lines kept per continuation
	MaxOutputLength  int // chars kept per line (tail)
}

// DefaultLimits returns the standard compaction limits.
func DefaultLimits() Limits {
	return Limits{
		MaxHistoryLength: DefaultMaxHistoryLength,
		MaxOutputLines:   DefaultMaxOutputLines,
		MaxOutputLength:  DefaultMaxOutputLength,
	}
}

// Context is the bounded conversation log. The system entry installed at
// construction is permanent and never evicted; user entries are capped at
// MaxHistoryLength. A new goal pushes a fresh user entry; continuation steps
// accumulate onto the last user entry instead, so one logical entry can carry
// many step outputs.
type Context struct {
	mu      sync.Mutex
	system  types.DialogueEntry
	entries []types.DialogueEntry
	limits  Limits
}

// NewContext creates a dialogue context seeded with the permanent system
// instruction.
func NewContext(systemPrompt string, limits Limits) *Context {
	if limits.MaxHistoryLength <= 0 {
		limits.MaxHistoryLength = DefaultMaxHistoryLength
	}
	if limits.MaxOutputLines <= 0 {
		limits.MaxOutputLines = DefaultMaxOutputLines
	}
	if limits.MaxOutputLength <= 0 {
		limits.MaxOutputLength = DefaultMaxOutputLength
	}
	sys := types.DialogueEntry{Role: types.RoleSystem, Content: systemPrompt}
	return &Context{
		system:  sys,
		entries: []types.DialogueEntry{sys},
		limits:  limits,
	}
}

// Entries returns a copy of the current log, system entry first.
func (c *Context) Entries() []types.DialogueEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.DialogueEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the current entry count including the system entry.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// AppendTurn records a turn. A new user query pushes a new user entry and
// evicts the oldest non-system entry while the cap is exceeded; a
// continuation concatenates content onto the existing last user entry,
// separated by a blank line.
func (c *Context) AppendTurn(content string, isNewUserQuery bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !isNewUserQuery {
		if last := len(c.entries) - 1; last >= 0 && c.entries[last].Role == types.RoleUser {
			c.entries[last].Content += "\n\n" + content
			return
		}
		// No user entry yet (continuation before any goal); fall through and
		// start one rather than dropping the content.
	}

	c.entries = append(c.entries, types.DialogueEntry{Role: types.RoleUser, Content: content})
	c.evictLocked()
}

// evictLocked drops the oldest non-system entries until the log fits
// MaxHistoryLength user entries plus the system entry.
func (c *Context) evictLocked() {
	for len(c.entries) > c.limits.MaxHistoryLength+1 {
		for i, e := range c.entries {
			if e.Role != types.RoleSystem {
				c.entries = append(c.entries[:i], c.entries[i+1:]...)
				break
			}
		}
	}
}

// Reset clears the log back to just the system entry.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = []types.DialogueEntry{c.system}
}

// FormatTurn renders the text for the next planning call. A new user query
// is returned verbatim: no wrapping, no history. A continuation pairs the
// most recent dispatched command from the output history with the captured
// output in input, compacted via CompactOutput.
func (c *Context) FormatTurn(input string, history types.OutputSource, isNewUserQuery bool) string {
	if isNewUserQuery {
		return input
	}

	command := ""
	if history != nil {
		if n := history.Len(); n > 0 {
			tail := history.Slice(n - 1)
			if len(tail) > 0 {
				command = tail[len(tail)-1].Command
			}
		}
	}

	output := c.CompactOutput(input)
	var b strings.Builder
	b.WriteString("The previous command has finished.\n")
	if command != "" {
		b.WriteString("Command: " + command + "\n")
	}
	b.WriteString("Output:\n")
	b.WriteString(output)
	b.WriteString("\nDecide the next step toward the goal, or report completion.")
	return b.String()
}

// CompactOutput bounds raw terminal output for inclusion in a continuation
// turn: ANSI escapes are stripped, blank lines dropped, only the most recent
// MaxOutputLines lines are kept (with a marker naming how many earlier lines
// were omitted), and each retained line is tail-capped at MaxOutputLength
// characters (with a marker naming the omitted char count). Output already
// within the limits passes through byte-for-byte.
func (c *Context) CompactOutput(raw string) string {
	cleaned := strings.TrimSpace(StripANSI(raw))
	if cleaned == "" {
		return ""
	}

	var lines []string
	for _, line := range strings.Split(cleaned, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}

	var omittedLines int
	if len(lines) > c.limits.MaxOutputLines {
		omittedLines = len(lines) - c.limits.MaxOutputLines
		lines = lines[omittedLines:]
	}

	for i, line := range lines {
		if len(line) > c.limits.MaxOutputLength {
			omitted := len(line) - c.limits.MaxOutputLength
			// Never cut through a multi-byte rune.
			for omitted < len(line) && !utf8.RuneStart(line[omitted]) {
				omitted++
			}
			lines[i] = fmt.Sprintf("[... %d chars omitted ...]%s", omitted, line[omitted:])
		}
	}

	if omittedLines > 0 {
		lines = append([]string{fmt.Sprintf("[... %d earlier lines omitted ...]", omittedLines)}, lines...)
	}
	return strings.Join(lines, "\n")
}
